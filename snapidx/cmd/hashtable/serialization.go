// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package hashtable

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// Magic number for checking file format
var Magic = [8]byte{'.', 's', 'n', 'a', 'p', 'h', 't', 'b'}

// MainVersion is use for checking compatibility
var MainVersion uint8 = 0

// MinorVersion is less important
var MinorVersion uint8 = 1

// BufferSize is size of reading and writing buffer
var BufferSize = 65536

// ErrInvalidFileFormat means invalid file format.
var ErrInvalidFileFormat = errors.New("hash table: invalid binary format")

// ErrBrokenFile means the file is not complete.
var ErrBrokenFile = errors.New("hash table: broken file")

// ErrVersionMismatch means version mismatch between files and program
var ErrVersionMismatch = errors.New("hash table: version mismatch")

// WriteTo writes the table in binary format.
//
// Header (48 bytes):
//
//	Magic number, 8 bytes, ".snaphtb".
//	Main and minor versions, 2 bytes.
//	Key size, 1 byte.
//	Blank, 5 bytes.
//	Capacity, 8 bytes.
//	Number of used slots, 8 bytes.
//	Invalid value, 8 bytes.
//	Hash seed, 8 bytes.
//
// For each slot:
//
//	Key, keySize bytes, the lowest bytes of the key.
//	Value, 8 bytes.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriterSize(w, BufferSize)
	var N int64

	err := binary.Write(bw, be, Magic)
	if err != nil {
		return N, err
	}
	N += 8

	err = binary.Write(bw, be, [8]uint8{MainVersion, MinorVersion, t.keySize})
	if err != nil {
		return N, err
	}
	N += 8

	err = binary.Write(bw, be, [4]uint64{uint64(len(t.values)), uint64(t.n), t.invalid, t.seed})
	if err != nil {
		return N, err
	}
	N += 32

	ks := int(t.keySize)
	buf := make([]byte, 16)
	var n int
	for i, v := range t.values {
		be.PutUint64(buf[:8], t.keys[i])
		copy(buf[:ks], buf[8-ks:8])
		be.PutUint64(buf[ks:ks+8], v)

		n, err = bw.Write(buf[:ks+8])
		N += int64(n)
		if err != nil {
			return N, err
		}
	}

	return N, bw.Flush()
}

// MaxCapacity is the largest capacity accepted by Read.
const MaxCapacity = 1 << 40

// Read reads a table written by WriteTo.
func Read(r io.Reader) (*Table, error) {
	return ReadWithMaxCapacity(r, MaxCapacity)
}

// ReadWithMaxCapacity is similar to Read, but returns ErrInvalidFileFormat
// for a table with more than maxCapacity slots, before allocating it.
func ReadWithMaxCapacity(r io.Reader, maxCapacity uint64) (*Table, error) {
	br := bufio.NewReaderSize(r, BufferSize)
	buf := make([]byte, 32)

	// check the magic number
	n, err := io.ReadFull(br, buf[:8])
	if err != nil {
		if n == 0 && err == io.EOF {
			return nil, ErrBrokenFile
		}
		return nil, checkEOF(err)
	}
	same := true
	for i := 0; i < 8; i++ {
		if Magic[i] != buf[i] {
			same = false
			break
		}
	}
	if !same {
		return nil, ErrInvalidFileFormat
	}

	// read version information
	_, err = io.ReadFull(br, buf[:8])
	if err != nil {
		return nil, checkEOF(err)
	}
	// check compatibility
	if MainVersion != buf[0] {
		return nil, ErrVersionMismatch
	}
	keySize := int(buf[2])
	if keySize < 1 || keySize > LargestKeySize {
		return nil, ErrInvalidFileFormat
	}

	_, err = io.ReadFull(br, buf[:32])
	if err != nil {
		return nil, checkEOF(err)
	}
	capacity := be.Uint64(buf[:8])
	used := be.Uint64(buf[8:16])
	if capacity == 0 || used > capacity || capacity > maxCapacity || capacity > MaxCapacity {
		return nil, ErrInvalidFileFormat
	}

	t := &Table{
		keySize: uint8(keySize),
		keyMask: keyMask(keySize),
		invalid: be.Uint64(buf[16:24]),
		seed:    be.Uint64(buf[24:32]),
		keys:    make([]uint64, capacity),
		values:  make([]uint64, capacity),
	}

	ks := keySize
	var key, v uint64
	var j int
	for i := range t.values {
		_, err = io.ReadFull(br, buf[:ks+8])
		if err != nil {
			return nil, checkEOF(err)
		}
		key = 0
		for j = 0; j < ks; j++ {
			key = key<<8 | uint64(buf[j])
		}
		v = be.Uint64(buf[ks : ks+8])

		t.keys[i] = key
		t.values[i] = v
		if v != t.invalid {
			t.n++
		}
	}

	if uint64(t.n) != used {
		return nil, ErrBrokenFile
	}

	return t, nil
}

func checkEOF(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrBrokenFile
	}
	return err
}
