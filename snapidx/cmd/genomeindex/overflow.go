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
	"math"
	"sync/atomic"

	"github.com/HibberdLab/snap/snapidx/cmd/hashtable"
	"github.com/pkg/errors"
	"github.com/twotwotwo/sorts"
)

const noBackpointer = math.MaxUint32

// overflowEntry collects positions of a repeated seed during building.
type overflowEntry struct {
	table uint32 // index of the hash table
	slot  int    // slot in the hash table
	n     uint32 // number of positions, updated atomically
	head  uint32 // the latest backpointer, swapped atomically
}

// backpointer is a node of the singly linked list of positions of a seed.
type backpointer struct {
	pos  uint32
	next uint32
}

// overflowBuilder holds arenas of entries and backpointers. Both are
// preallocated and reserved with atomic cursors.
type overflowBuilder struct {
	entries  []overflowEntry
	nEntries uint64

	bps  []backpointer
	nBps uint64

	duplicates uint64 // 3rd and later occurrences, for reporting
}

// newOverflowBuilder reserves room for capacity positions of repeated seeds.
// Each repeated seed has at least two positions.
func newOverflowBuilder(capacity uint64) (ob *overflowBuilder, err error) {
	if capacity > math.MaxUint32-1 {
		capacity = math.MaxUint32 - 1
	}
	defer func() {
		if r := recover(); r != nil {
			ob, err = nil, errors.Wrapf(ErrAllocation, "overflow arrays of %d positions", capacity)
		}
	}()
	return &overflowBuilder{
		entries: make([]overflowEntry, capacity/2+1),
		bps:     make([]backpointer, capacity),
	}, nil
}

func (ob *overflowBuilder) reserveBackpointers(n uint64) (uint32, error) {
	end := atomic.AddUint64(&ob.nBps, n)
	if end > uint64(len(ob.bps)) {
		return 0, ErrOverflowTableFull
	}
	return uint32(end - n), nil
}

// newEntry is called with the lock of the table held, when a seed is seen
// for the second time. It links both positions.
func (ob *overflowBuilder) newEntry(table uint32, slot int, p0, p uint32) (uint32, error) {
	i := atomic.AddUint64(&ob.nEntries, 1) - 1
	if i >= uint64(len(ob.entries)) {
		return 0, ErrOverflowTableFull
	}
	b, err := ob.reserveBackpointers(2)
	if err != nil {
		return 0, err
	}
	ob.bps[b] = backpointer{pos: p0, next: noBackpointer}
	ob.bps[b+1] = backpointer{pos: p, next: b}
	ob.entries[i] = overflowEntry{table: table, slot: slot, n: 2, head: b + 1}
	return uint32(i), nil
}

// add links one more position of a seed. The lock of the table is not
// needed, only the entry index read under it.
func (ob *overflowBuilder) add(entry uint32, p uint32) error {
	b, err := ob.reserveBackpointers(1)
	if err != nil {
		return err
	}
	e := &ob.entries[entry]
	ob.bps[b].pos = p
	ob.bps[b].next = atomic.SwapUint32(&e.head, b)
	atomic.AddUint32(&e.n, 1)
	atomic.AddUint64(&ob.duplicates, 1)
	return nil
}

// finalize writes positions of each entry, in descending order, into a run
// of the overflow table, and points the hash table slot to the run.
// It must be called after all workers finish.
func (ob *overflowBuilder) finalize(tables []*hashtable.Table) ([]uint32, error) {
	nEntries := ob.nEntries
	if nEntries > uint64(len(ob.entries)) {
		nEntries = uint64(len(ob.entries))
	}
	total := ob.nBps
	if total > uint64(len(ob.bps)) {
		return nil, ErrOverflowTableFull
	}

	overflow := make([]uint32, total)
	var start uint64
	buf := make([]uint32, 0, 1024)
	var e *overflowEntry
	var j uint32
	for i := uint64(0); i < nEntries; i++ {
		e = &ob.entries[i]

		buf = buf[:0]
		for j = e.head; j != noBackpointer; j = ob.bps[j].next {
			buf = append(buf, ob.bps[j].pos)
		}
		if start+uint64(len(buf)) > total {
			return nil, ErrOverflowTableFull
		}

		sorts.Quicksort(descUint32s(buf))
		copy(overflow[start:], buf)

		s, err := OverflowSlot(uint32(start), uint32(len(buf)))
		if err != nil {
			return nil, err
		}
		if err = tables[e.table].SetValue(e.slot, uint64(s)); err != nil {
			return nil, err
		}
		start += uint64(len(buf))
	}

	ob.entries = nil
	ob.bps = nil
	return overflow[:start], nil
}

type descUint32s []uint32

func (s descUint32s) Len() int           { return len(s) }
func (s descUint32s) Less(i, j int) bool { return s[i] > s[j] }
func (s descUint32s) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
