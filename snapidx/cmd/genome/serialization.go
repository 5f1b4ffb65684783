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

package genome

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

var be = binary.BigEndian

// Magic number for checking file format
var Magic = [8]byte{'.', 's', 'n', 'a', 'p', 'g', 'e', 'n'}

// MainVersion is use for checking compatibility
var MainVersion uint8 = 0

// MinorVersion is less important
var MinorVersion uint8 = 1

// BufferSize is size of reading and writing buffer
var BufferSize = 65536 // os.Getpagesize()

// ErrInvalidFileFormat means invalid file format.
var ErrInvalidFileFormat = errors.New("genome data: invalid binary format")

// ErrBrokenFile means the file is not complete.
var ErrBrokenFile = errors.New("genome data: broken file")

// ErrVersionMismatch means version mismatch between files and program
var ErrVersionMismatch = errors.New("genome data: version mismatch")

// WriteTo writes the genome in a 2bit-packed format.
//
// Header (32 bytes):
//
//	Magic number, 8 bytes, ".snapgen".
//	Main and minor versions, 2 bytes.
//	Blank, 6 bytes.
//	Padding, 4 bytes.
//	Number of contigs, 4 bytes.
//	Number of bases, 8 bytes.
//
// Contigs, for each contig:
//
//	Name length, 2 bytes.
//	Name.
//	Start, 8 bytes.
//	Length, 8 bytes.
//
// N runs:
//
//	Number of runs, 8 bytes.
//	(start, length) pairs, 16 bytes each.
//
// Sequence, 2bit-packed, (bases+3)/4 bytes.
func (g *Genome) WriteTo(w io.Writer) (int64, error) {
	if g.destroyed {
		return 0, ErrDestroyed
	}

	bw := bufio.NewWriterSize(w, BufferSize)
	var N int64

	err := binary.Write(bw, be, Magic)
	if err != nil {
		return N, err
	}
	N += 8

	err = binary.Write(bw, be, [8]uint8{MainVersion, MinorVersion})
	if err != nil {
		return N, err
	}
	N += 8

	buf := make([]byte, 16)
	be.PutUint32(buf[:4], uint32(g.padding))
	be.PutUint32(buf[4:8], uint32(len(g.contigs)))
	be.PutUint64(buf[8:16], uint64(len(g.seq)))
	n, err := bw.Write(buf)
	N += int64(n)
	if err != nil {
		return N, err
	}

	for _, c := range g.contigs {
		name := c.Name
		if len(name) > 65535 {
			name = name[:65535]
		}
		be.PutUint16(buf[:2], uint16(len(name)))
		n, err = bw.Write(buf[:2])
		N += int64(n)
		if err != nil {
			return N, err
		}

		n, err = bw.WriteString(name)
		N += int64(n)
		if err != nil {
			return N, err
		}

		be.PutUint64(buf[:8], uint64(c.Start))
		be.PutUint64(buf[8:16], uint64(c.Len))
		n, err = bw.Write(buf)
		N += int64(n)
		if err != nil {
			return N, err
		}
	}

	runs := nRuns(g.seq)
	be.PutUint64(buf[:8], uint64(len(runs)))
	n, err = bw.Write(buf[:8])
	N += int64(n)
	if err != nil {
		return N, err
	}
	for _, run := range runs {
		be.PutUint64(buf[:8], uint64(run[0]))
		be.PutUint64(buf[8:16], uint64(run[1]))
		n, err = bw.Write(buf)
		N += int64(n)
		if err != nil {
			return N, err
		}
	}

	n, err = bw.Write(Seq2TwoBit(g.seq))
	N += int64(n)
	if err != nil {
		return N, err
	}

	return N, bw.Flush()
}

// Read reads a genome written by WriteTo.
func Read(r io.Reader) (*Genome, error) {
	return ReadWithMaxLen(r, MaxLen)
}

// ReadWithMaxLen is similar to Read, but returns ErrInvalidFileFormat for
// a genome longer than maxLen, before allocating it.
func ReadWithMaxLen(r io.Reader, maxLen uint64) (*Genome, error) {
	br := bufio.NewReaderSize(r, BufferSize)
	buf := make([]byte, 16)

	// check the magic number
	_, err := io.ReadFull(br, buf[:8])
	if err != nil {
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

	_, err = io.ReadFull(br, buf)
	if err != nil {
		return nil, checkEOF(err)
	}
	padding := int(be.Uint32(buf[:4]))
	nContigs := int(be.Uint32(buf[4:8]))
	bases := be.Uint64(buf[8:16])
	if bases > MaxLen || bases > maxLen {
		return nil, ErrInvalidFileFormat
	}

	g, err := New(padding)
	if err != nil {
		return nil, ErrInvalidFileFormat
	}

	var nameLen int
	name := make([]byte, 0, 256)
	var c Contig
	for i := 0; i < nContigs; i++ {
		_, err = io.ReadFull(br, buf[:2])
		if err != nil {
			return nil, checkEOF(err)
		}
		nameLen = int(be.Uint16(buf[:2]))
		if cap(name) < nameLen {
			name = make([]byte, nameLen)
		}
		name = name[:nameLen]
		_, err = io.ReadFull(br, name)
		if err != nil {
			return nil, checkEOF(err)
		}

		_, err = io.ReadFull(br, buf)
		if err != nil {
			return nil, checkEOF(err)
		}
		c = Contig{
			Name:  string(name),
			Start: int(be.Uint64(buf[:8])),
			Len:   int(be.Uint64(buf[8:16])),
		}
		if c.Len <= 0 || c.Start < 0 || uint64(c.End()) > bases {
			return nil, ErrInvalidFileFormat
		}
		g.addContig(c)
	}

	_, err = io.ReadFull(br, buf[:8])
	if err != nil {
		return nil, checkEOF(err)
	}
	nRuns := be.Uint64(buf[:8])
	if nRuns > bases {
		return nil, ErrInvalidFileFormat
	}
	// grown while reading
	runs := make([][2]int, 0, min(nRuns, 1024))
	var run [2]int
	for i := uint64(0); i < nRuns; i++ {
		_, err = io.ReadFull(br, buf)
		if err != nil {
			return nil, checkEOF(err)
		}
		run = [2]int{int(be.Uint64(buf[:8])), int(be.Uint64(buf[8:16]))}
		if run[0] < 0 || run[1] <= 0 || uint64(run[0]+run[1]) > bases {
			return nil, ErrInvalidFileFormat
		}
		runs = append(runs, run)
	}

	b2 := make([]byte, (bases+3)>>2)
	_, err = io.ReadFull(br, b2)
	if err != nil {
		return nil, checkEOF(err)
	}
	g.seq, err = TwoBit2Seq(b2, int(bases))
	if err != nil {
		return nil, err
	}

	var j, end int
	for _, run := range runs {
		for j, end = run[0], run[0]+run[1]; j < end; j++ {
			g.seq[j] = 'N'
		}
	}

	return g, nil
}

func checkEOF(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrBrokenFile
	}
	return err
}
