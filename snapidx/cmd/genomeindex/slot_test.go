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

import "testing"

func TestSlot(t *testing.T) {
	s := DirectSlot(12345)
	if s.Kind() != Direct || s.Position() != 12345 {
		t.Errorf("unexpected direct slot: %s", s)
	}

	s = pendingSlot(7)
	if s.Kind() != Pending || s.entry() != 7 {
		t.Errorf("unexpected pending slot: %s", s)
	}

	s, err := OverflowSlot(1<<32-1, MaxRunCount)
	if err != nil {
		t.Error(err)
		return
	}
	start, count := s.Run()
	if s.Kind() != Overflow || start != 1<<32-1 || count != MaxRunCount {
		t.Errorf("unexpected overflow slot: %s", s)
	}
	if Slot(uint64(s)) == emptySlot {
		t.Errorf("an overflow slot should not be the empty marker")
	}

	if _, err = OverflowSlot(0, MaxRunCount+1); err != ErrTooManyInstances {
		t.Errorf("expected ErrTooManyInstances, got %v", err)
	}

	if DirectSlot(1<<32-1) == emptySlot {
		t.Errorf("a direct slot should not be the empty marker")
	}
}
