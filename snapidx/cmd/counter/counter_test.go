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

package counter

import (
	"math"
	"math/rand"
	"testing"
)

func TestExact(t *testing.T) {
	c := New(true)
	if !c.Exact() {
		t.Errorf("exact counter expected")
		return
	}
	for i := 0; i < 1000; i++ {
		c.Observe(uint64(i % 300))
	}
	if c.Estimate() != 300 {
		t.Errorf("expected 300, got %d", c.Estimate())
	}
}

func TestApproximate(t *testing.T) {
	c := New(false)
	if c.Exact() {
		t.Errorf("approximate counter expected")
		return
	}

	r := rand.New(rand.NewSource(1))
	m := make(map[uint64]struct{}, 100000)
	for len(m) < 100000 {
		key := r.Uint64()
		m[key] = struct{}{}
		c.Observe(key)
		c.Observe(key)
	}

	e := float64(c.Estimate())
	n := float64(len(m))
	if math.Abs(e-n)/n > 0.03 {
		t.Errorf("estimate %.0f is too far from %.0f", e, n)
	}
}

func TestMerge(t *testing.T) {
	for _, exact := range []bool{true, false} {
		a, b, all := New(exact), New(exact), New(exact)
		for i := uint64(0); i < 5000; i++ {
			a.Observe(i)
			all.Observe(i)
		}
		for i := uint64(3000); i < 9000; i++ {
			b.Observe(i)
			all.Observe(i)
		}
		if err := a.Merge(b); err != nil {
			t.Error(err)
			return
		}
		e, n := float64(a.Estimate()), float64(all.Estimate())
		if exact && e != n || math.Abs(e-n)/n > 0.01 {
			t.Errorf("exact=%v: merged estimate %.0f != %.0f", exact, e, n)
		}
	}

	if err := NewExact().Merge(NewApproximate()); err != ErrIncompatibleCounter {
		t.Errorf("merging different counters should fail")
	}
	if err := NewApproximate().Merge(NewExact()); err != ErrIncompatibleCounter {
		t.Errorf("merging different counters should fail")
	}
}
