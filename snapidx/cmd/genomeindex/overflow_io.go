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

package genomeindex

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/HibberdLab/snap/snapidx/cmd/util"
	"github.com/pkg/errors"
)

var be = binary.BigEndian

// MagicOverflow is the magic number of the overflow table file.
var MagicOverflow = [8]byte{'.', 's', 'n', 'a', 'p', 'o', 'v', 'f'}

// bufferSize is size of reading and writing buffer
var bufferSize = 65536

// writeOverflowTable writes the overflow table.
//
// Header (24 bytes):
//
//	Magic number, 8 bytes, ".snapovf".
//	Main and minor versions, 2 bytes.
//	Blank, 6 bytes.
//	Number of positions, 8 bytes.
//
// Positions, every 4 positions are saved as zig-zag encoded deltas to the
// previous one, in a group varint format: one control byte and 4-16 bytes.
// The last group is padded with repeats of the last position.
func writeOverflowTable(w io.Writer, overflow []uint32) (int64, error) {
	bw := bufio.NewWriterSize(w, bufferSize)
	var N int64

	err := binary.Write(bw, be, MagicOverflow)
	if err != nil {
		return N, err
	}
	N += 8

	err = binary.Write(bw, be, [8]uint8{FormatMajorVersion, FormatMinorVersion})
	if err != nil {
		return N, err
	}
	N += 8

	err = binary.Write(bw, be, uint64(len(overflow)))
	if err != nil {
		return N, err
	}
	N += 8

	buf := make([]byte, 17)
	var ctrl byte
	var n int
	var prev uint32
	var group [4]uint32
	var j int
	for i := 0; i < len(overflow); i += 4 {
		for j = 0; j < 4; j++ {
			if i+j < len(overflow) {
				group[j] = util.ZigZagDelta(prev, overflow[i+j])
				prev = overflow[i+j]
			} else {
				group[j] = 0
			}
		}

		ctrl, n = util.PutUint32s(buf[1:], group[0], group[1], group[2], group[3])
		buf[0] = ctrl
		n, err = bw.Write(buf[:n+1])
		N += int64(n)
		if err != nil {
			return N, err
		}
	}

	return N, bw.Flush()
}

// readOverflowTable reads the overflow table written by writeOverflowTable.
// The table must have the given number of positions, which is checked
// before allocating it.
func readOverflowTable(r io.Reader, expected int) ([]uint32, error) {
	br := bufio.NewReaderSize(r, bufferSize)
	buf := make([]byte, 24)

	_, err := io.ReadFull(br, buf)
	if err != nil {
		return nil, checkEOF(err)
	}
	for i := 0; i < 8; i++ {
		if MagicOverflow[i] != buf[i] {
			return nil, ErrInvalidFileFormat
		}
	}
	if buf[8] != FormatMajorVersion {
		return nil, ErrVersionMismatch
	}
	size := be.Uint64(buf[16:24])
	if size > 1<<32 {
		return nil, ErrInvalidFileFormat
	}
	if size != uint64(expected) {
		return nil, errors.Wrapf(ErrBrokenFile, "overflow table of %d positions, %d expected", size, expected)
	}

	overflow := make([]uint32, size)
	var ctrl byte
	var nBytes, j int
	var prev uint32
	var group [4]uint32
	for i := 0; i < len(overflow); i += 4 {
		ctrl, err = br.ReadByte()
		if err != nil {
			return nil, checkEOF(err)
		}
		nBytes = util.CtrlByte2ByteLengthsUint32(ctrl)
		_, err = io.ReadFull(br, buf[:nBytes])
		if err != nil {
			return nil, checkEOF(err)
		}
		group[0], group[1], group[2], group[3], _ = util.Uint32s(ctrl, buf[:nBytes])

		for j = 0; j < 4 && i+j < len(overflow); j++ {
			prev = util.UnZigZagDelta(prev, group[j])
			overflow[i+j] = prev
		}
	}

	return overflow, nil
}

func checkEOF(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrBrokenFile
	}
	return err
}
