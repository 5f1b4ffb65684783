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

import (
	"math"
	"math/rand"
	"testing"
)

var testsUint32 [][4]uint32

func init() {
	ntests := 10000
	testsUint32 = make([][4]uint32, ntests)
	var i int
	for ; i < ntests/2; i++ {
		testsUint32[i] = [4]uint32{rand.Uint32(), rand.Uint32(), rand.Uint32(), rand.Uint32()}
	}
	for ; i < ntests*3/4; i++ {
		testsUint32[i] = [4]uint32{uint32(rand.Intn(65536)), uint32(rand.Intn(256)), uint32(rand.Intn(16777216)), uint32(rand.Intn(256))}
	}
	for ; i < ntests; i++ {
		testsUint32[i] = [4]uint32{uint32(rand.Intn(256)), uint32(rand.Intn(256)), uint32(rand.Intn(256)), uint32(rand.Intn(256))}
	}
}

func TestStreamVByte32(t *testing.T) {
	buf := make([]byte, 16)
	var ctrl byte
	var n, n2 int
	var v1, v2, v3, v4 uint32
	for i, test := range testsUint32 {
		ctrl, n = PutUint32s(buf, test[0], test[1], test[2], test[3])
		if CtrlByte2ByteLengthsUint32(ctrl) != n {
			t.Errorf("#%d, wrong byte length", i)
		}

		v1, v2, v3, v4, n2 = Uint32s(ctrl, buf[0:n])
		if n2 != n {
			t.Errorf("#%d, wrong decoded number", i)
		}

		if v1 != test[0] || v2 != test[1] || v3 != test[2] || v4 != test[3] {
			t.Errorf("#%d, wrong decoded result: %d, %d, %d, %d, answer: %d, %d, %d, %d", i, v1, v2, v3, v4, test[0], test[1], test[2], test[3])
		}
	}

	// short buffer
	ctrl, n = PutUint32s(buf, 1<<30, 1, 1, 1)
	if _, _, _, _, n2 = Uint32s(ctrl, buf[:n-1]); n2 != 0 {
		t.Errorf("decoding a short buffer should fail")
	}
}

func TestZigZagDelta(t *testing.T) {
	tests := [][2]uint32{
		{0, 0},
		{100, 99},
		{99, 100},
		{0, math.MaxUint32},
		{math.MaxUint32, 0},
		{1 << 31, 5},
		{5, 1 << 31},
	}
	for _, test := range tests {
		z := ZigZagDelta(test[0], test[1])
		if v := UnZigZagDelta(test[0], z); v != test[1] {
			t.Errorf("prev %d, expected: %d, result: %d", test[0], test[1], v)
		}
	}

	if z := ZigZagDelta(100, 99); z != 1 {
		t.Errorf("a step of -1 should be encoded as 1, got %d", z)
	}
	if z := ZigZagDelta(99, 100); z != 2 {
		t.Errorf("a step of 1 should be encoded as 2, got %d", z)
	}
}

func BenchmarkUint32s(b *testing.B) {
	buf := make([]byte, 16)
	var ctrl byte
	var n int
	for i := 0; i < b.N; i++ {
		for _, test := range testsUint32 {
			ctrl, n = PutUint32s(buf, test[0], test[1], test[2], test[3])
			Uint32s(ctrl, buf[0:n])
		}
	}
}
