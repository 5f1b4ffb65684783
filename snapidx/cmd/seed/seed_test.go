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
	"testing"
)

func TestFromBytes(t *testing.T) {
	s, err := FromBytes([]byte("ACGT"))
	if err != nil {
		t.Error(err)
		return
	}
	if s.Code() != 0b00011011 {
		t.Errorf("unexpected code: %08b", s.Code())
	}
	if s.Len() != 4 {
		t.Errorf("unexpected length: %d", s.Len())
	}
	if s.String() != "ACGT" {
		t.Errorf("unexpected decoded seed: %s", s)
	}

	s2, err := FromBytes([]byte("acgt"))
	if err != nil {
		t.Error(err)
		return
	}
	if s2 != s {
		t.Errorf("lower case bases should be accepted")
	}

	for _, bad := range []string{"", "ACNT", "AC-T", "ACGTACGTACGTACGTACGTACGTACGTACGTA"} {
		if _, err = FromBytes([]byte(bad)); err == nil {
			t.Errorf("%q should be rejected", bad)
		}
	}
}

func TestReverseComplement(t *testing.T) {
	tests := [][2]string{
		{"ACGT", "ACGT"},
		{"AAAA", "TTTT"},
		{"ACCGTTA", "TAACGGT"},
		{"G", "C"},
		{"GATTACAGATTACAGATTACAGATTACAGATT", "AATCTGTAATCTGTAATCTGTAATCTGTAATC"},
	}
	for _, test := range tests {
		s, err := FromBytes([]byte(test[0]))
		if err != nil {
			t.Error(err)
			return
		}
		rc := s.ReverseComplement()
		if rc.String() != test[1] {
			t.Errorf("reverse complement of %s, expected: %s, result: %s", test[0], test[1], rc)
		}
		if rc.ReverseComplement() != s {
			t.Errorf("reverse complement of %s is not an involution", test[0])
		}
	}
}

func TestSplitAndJoin(t *testing.T) {
	s, err := FromBytes([]byte("ACGTTGCAAC"))
	if err != nil {
		t.Error(err)
		return
	}
	for _, keyBits := range []uint{2, 8, 16, 20} {
		table, key := s.Split(keyBits)
		if key >= 1<<keyBits {
			t.Errorf("key %d does not fit in %d bits", key, keyBits)
		}
		if Join(table, key, keyBits, s.Len()) != s {
			t.Errorf("split/join mismatch with %d key bits", keyBits)
		}
	}

	table, key := s.Split(64)
	if table != 0 || key != s.Code() {
		t.Errorf("a 64-bit key should hold the whole seed")
	}
}

func TestNew(t *testing.T) {
	if _, err := New(0, 0); err != ErrInvalidSeedLen {
		t.Errorf("k=0 should be rejected")
	}
	if _, err := New(0, 33); err != ErrInvalidSeedLen {
		t.Errorf("k=33 should be rejected")
	}
	s, err := New(0xff, 2)
	if err != nil {
		t.Error(err)
		return
	}
	if s.String() != "TT" {
		t.Errorf("high bits should be masked, got %s", s)
	}
}

func TestNewMasksHighBits(t *testing.T) {
	code := uint64(0b00011011) // ACGT
	for _, s := range []Seed{MustNew(code|1<<20, 4), MustNew(code|1<<63, 4)} {
		if s.Code() != code || s.String() != "ACGT" {
			t.Errorf("bits above the seed should be cleared: %b", s.Code())
		}
	}

	s, err := New(1<<64-1, 32)
	if err != nil {
		t.Error(err)
		return
	}
	if s.Code() != 1<<64-1 {
		t.Errorf("32-mers use all bits: %b", s.Code())
	}

	for _, k := range []int{0, 33} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("MustNew should panic for k=%d", k)
				}
			}()
			MustNew(code, k)
		}()
	}
}
