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

package util

var offsetsUint32 = [4]uint8{24, 16, 8, 0}

// PutUint32s encodes four uint32s into 4-16 bytes, and returns control byte
// and encoded byte length. Each value takes 2 bits of the control byte,
// the first value the highest bits, storing its byte length minus one.
func PutUint32s(buf []byte, v1, v2, v3, v4 uint32) (ctrl byte, n int) {
	var blen uint8
	for _, v := range [4]uint32{v1, v2, v3, v4} {
		blen = ByteLengthUint32(v)
		ctrl = ctrl<<2 | byte(blen-1)
		for _, offset := range offsetsUint32[4-blen:] {
			buf[n] = byte(v >> offset)
			n++
		}
	}
	return
}

// Uint32s decodes encoded bytes. n is 0 if buf is too short.
func Uint32s(ctrl byte, buf []byte) (v1, v2, v3, v4 uint32, n int) {
	if len(buf) < CtrlByte2ByteLengthsUint32(ctrl) {
		return 0, 0, 0, 0, 0
	}

	var vs [4]uint32
	var blen, j int
	for i := range vs {
		blen = int(ctrl>>(6-uint(i<<1))&3) + 1
		for j = 0; j < blen; j++ {
			vs[i] = vs[i]<<8 | uint32(buf[n])
			n++
		}
	}

	return vs[0], vs[1], vs[2], vs[3], n
}

// ByteLengthUint32 returns the minimum number of bytes to store a integer.
func ByteLengthUint32(n uint32) uint8 {
	if n < 256 {
		return 1
	}
	if n < 65536 {
		return 2
	}
	if n < 16777216 {
		return 3
	}
	return 4
}

// CtrlByte2ByteLengthsUint32 returns the byte length for a given control byte.
func CtrlByte2ByteLengthsUint32(ctrl byte) int {
	return int(ctrl>>6&3+ctrl>>4&3+ctrl>>2&3+ctrl&3) + 4
}

// ZigZagDelta encodes the difference cur-prev of two uint32s, in modular
// arithmetic, so small steps in both directions give small values.
func ZigZagDelta(prev, cur uint32) uint32 {
	d := int32(cur - prev)
	return uint32(d<<1) ^ uint32(d>>31)
}

// UnZigZagDelta reverses ZigZagDelta.
func UnZigZagDelta(prev, z uint32) uint32 {
	d := int32(z>>1) ^ -int32(z&1)
	return prev + uint32(d)
}
