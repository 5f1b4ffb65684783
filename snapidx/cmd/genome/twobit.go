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

import "errors"

// ErrInvalidTwoBitData means the length of two bit seq slice does not match the number of bases
var ErrInvalidTwoBitData = errors.New("genome data: invalid two-bit data")

// base2bit maps ACGT to 0-3, N and others are stored as A,
// and restored from the list of N runs.
var base2bit = func() [256]uint8 {
	var t [256]uint8
	t['C'], t['c'] = 1, 1
	t['G'], t['g'] = 2, 2
	t['T'], t['t'] = 3, 3
	return t
}()

var bit2base = [4]byte{'A', 'C', 'G', 'T'}

// Seq2TwoBit converts a DNA sequence to 2bit-packed sequence,
// four bases a byte, the first base in the highest bits.
func Seq2TwoBit(s []byte) []byte {
	n := len(s) >> 2
	m := len(s) & 3

	codes := make([]byte, 0, n+1)

	var j int
	for i := 0; i < n; i++ {
		j = i << 2
		codes = append(codes, base2bit[s[j]]<<6+base2bit[s[j+1]]<<4+base2bit[s[j+2]]<<2+base2bit[s[j+3]])
	}

	j = n << 2
	switch m {
	case 3:
		codes = append(codes, base2bit[s[j]]<<6+base2bit[s[j+1]]<<4+base2bit[s[j+2]]<<2)
	case 2:
		codes = append(codes, base2bit[s[j]]<<6+base2bit[s[j+1]]<<4)
	case 1:
		codes = append(codes, base2bit[s[j]]<<6)
	}

	return codes
}

// TwoBit2Seq converts a 2bit-packed sequence to DNA.
func TwoBit2Seq(b2 []byte, bases int) ([]byte, error) {
	// possible bases for b2 of n bytes: [n*4-3, n*4]
	if bases < 0 || bases < (len(b2)<<2)-3 || bases > len(b2)<<2 {
		return nil, ErrInvalidTwoBitData
	}

	s := make([]byte, bases)
	n := bases >> 2
	var b byte
	var j int
	for i := 0; i < n; i++ {
		b = b2[i]
		j = i << 2

		s[j+3] = bit2base[b&3]
		b >>= 2
		s[j+2] = bit2base[b&3]
		b >>= 2
		s[j+1] = bit2base[b&3]
		b >>= 2
		s[j] = bit2base[b&3]
	}

	j = n << 2
	for i := 0; j+i < bases; i++ {
		s[j+i] = bit2base[b2[n]>>(6-uint(i<<1))&3]
	}

	return s, nil
}

// nRuns returns runs of N bases as (start, length) pairs.
func nRuns(s []byte) [][2]int {
	runs := make([][2]int, 0, 8)
	start := -1
	for i, b := range s {
		if b == 'N' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runs = append(runs, [2]int{start, i - start})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, [2]int{start, len(s) - start})
	}
	return runs
}
