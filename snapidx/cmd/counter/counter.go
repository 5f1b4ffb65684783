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
	"encoding/binary"
	"errors"

	"github.com/axiomhq/hyperloglog"
	"github.com/zeebo/wyhash"
)

// ErrIncompatibleCounter means two counters of different kinds are merged.
var ErrIncompatibleCounter = errors.New("counter: can not merge counters of different kinds")

// Counter counts distinct uint64 keys.
type Counter interface {
	// Observe records a key.
	Observe(key uint64)
	// Estimate returns the (estimated) number of distinct keys.
	Estimate() uint64
	// Merge adds all keys observed by another counter of the same kind.
	Merge(other Counter) error
	// Exact tells whether Estimate is exact.
	Exact() bool
}

// New returns an exact counter if exact is true, or an approximate one.
func New(exact bool) Counter {
	if exact {
		return NewExact()
	}
	return NewApproximate()
}

// Approximate is a HyperLogLog counter with 2^16 registers,
// the standard error is about 0.4%.
type Approximate struct {
	sk *hyperloglog.Sketch
}

// NewApproximate creates an approximate counter.
func NewApproximate() *Approximate {
	return &Approximate{sk: hyperloglog.New16()}
}

// hashSeed is fixed so counters from different workers are mergeable.
const hashSeed = 0x5eed

// Observe records a key.
func (c *Approximate) Observe(key uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	c.sk.InsertHash(wyhash.Hash(buf[:], hashSeed))
}

// Estimate returns the estimated number of distinct keys.
func (c *Approximate) Estimate() uint64 {
	return c.sk.Estimate()
}

// Merge merges another approximate counter.
func (c *Approximate) Merge(other Counter) error {
	o, ok := other.(*Approximate)
	if !ok {
		return ErrIncompatibleCounter
	}
	return c.sk.Merge(o.sk)
}

// Exact returns false.
func (c *Approximate) Exact() bool { return false }

// Set counts distinct keys exactly. The memory grows with
// the number of distinct keys.
type Set struct {
	m map[uint64]struct{}
}

// NewExact creates an exact counter.
func NewExact() *Set {
	return &Set{m: make(map[uint64]struct{}, 1024)}
}

// Observe records a key.
func (c *Set) Observe(key uint64) {
	c.m[key] = struct{}{}
}

// Estimate returns the number of distinct keys.
func (c *Set) Estimate() uint64 {
	return uint64(len(c.m))
}

// Merge merges another exact counter.
func (c *Set) Merge(other Counter) error {
	o, ok := other.(*Set)
	if !ok {
		return ErrIncompatibleCounter
	}
	for k := range o.m {
		c.m[k] = struct{}{}
	}
	return nil
}

// Exact returns true.
func (c *Set) Exact() bool { return true }
