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

package seed

import (
	"errors"

	"github.com/shenwei356/kmers"
)

// LargestSeedLen is the longest seed a Seed can hold, 2 bits per base in an uint64.
const LargestSeedLen = 32

// ErrInvalidSeedLen means the seed length is out of [1, 32].
var ErrInvalidSeedLen = errors.New("seed: seed length [1, 32] overflow")

// ErrInvalidBase means the sequence contains a base other than A, C, G or T.
var ErrInvalidBase = errors.New("seed: unresolved or invalid base")

// Seed is a bit-packed k-mer. Bases are encoded as A=00, C=01, G=10, T=11,
// with the first base in the highest bits.
type Seed struct {
	code uint64
	k    uint8
}

// New creates a seed from an encoded value and its length.
func New(code uint64, k int) (Seed, error) {
	if k < 1 || k > LargestSeedLen {
		return Seed{}, ErrInvalidSeedLen
	}
	if k < LargestSeedLen {
		code &= 1<<(uint(k)<<1) - 1
	}
	return Seed{code: code, k: uint8(k)}, nil
}

// MustNew is similar to New, but panics on an invalid k.
func MustNew(code uint64, k int) Seed {
	s, err := New(code, k)
	if err != nil {
		panic(err)
	}
	return s
}

// FromBytes encodes a DNA sequence as a seed.
// Lower case bases are accepted, N and other symbols are not.
func FromBytes(s []byte) (Seed, error) {
	if len(s) < 1 || len(s) > LargestSeedLen {
		return Seed{}, ErrInvalidSeedLen
	}
	for _, b := range s {
		if !IsResolved(b) {
			return Seed{}, ErrInvalidBase
		}
	}
	code, err := kmers.Encode(s)
	if err != nil {
		return Seed{}, ErrInvalidBase
	}
	return Seed{code: code, k: uint8(len(s))}, nil
}

// Code returns the encoded value.
func (s Seed) Code() uint64 { return s.code }

// Len returns the number of bases.
func (s Seed) Len() int { return int(s.k) }

// Bytes decodes the seed.
func (s Seed) Bytes() []byte {
	return kmers.MustDecode(s.code, int(s.k))
}

func (s Seed) String() string {
	return string(s.Bytes())
}

// ReverseComplement returns the reverse complement of the seed.
func (s Seed) ReverseComplement() Seed {
	return Seed{code: kmers.RevComp(s.code, int(s.k)), k: s.k}
}

// Split splits the seed into the index of the hash table (high bits)
// and the key stored in that table (the lowest keyBits bits).
func (s Seed) Split(keyBits uint) (table uint64, key uint64) {
	return Prefix(s.code, keyBits), Suffix(s.code, keyBits)
}

// Prefix returns the bits above the lowest keyBits bits.
func Prefix(code uint64, keyBits uint) uint64 {
	if keyBits >= 64 {
		return 0
	}
	return code >> keyBits
}

// Suffix returns the lowest keyBits bits.
func Suffix(code uint64, keyBits uint) uint64 {
	if keyBits >= 64 {
		return code
	}
	return code & (1<<keyBits - 1)
}

// Join is the inverse of Split.
func Join(table, key uint64, keyBits uint, k int) Seed {
	if keyBits >= 64 {
		return Seed{code: key, k: uint8(k)}
	}
	return Seed{code: table<<keyBits | key, k: uint8(k)}
}

// base2bit maps A/C/G/T (either case) to 2-bit codes, other bytes to 4.
var base2bit = func() [256]uint8 {
	var t [256]uint8
	for i := range t {
		t[i] = 4
	}
	t['A'], t['a'] = 0, 0
	t['C'], t['c'] = 1, 1
	t['G'], t['g'] = 2, 2
	t['T'], t['t'] = 3, 3
	return t
}()

// IsResolved tells if a base is one of A, C, G, T.
func IsResolved(b byte) bool {
	return base2bit[b] < 4
}

// Base2Bit returns the 2-bit code of a base and whether it is resolved.
func Base2Bit(b byte) (uint64, bool) {
	c := base2bit[b]
	return uint64(c), c < 4
}
