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

import "fmt"

// SlotKind is the kind of value in a hash table slot.
type SlotKind uint8

const (
	// Direct slots hold the only position of a seed.
	Direct SlotKind = iota
	// Pending slots refer to an overflow entry, only during building.
	Pending
	// Overflow slots hold a run of positions in the overflow table.
	Overflow
)

func (k SlotKind) String() string {
	switch k {
	case Direct:
		return "direct"
	case Pending:
		return "pending"
	case Overflow:
		return "overflow"
	}
	return "invalid"
}

// Slot is the 64-bit value in a hash table slot, with a 2-bit tag in the
// highest bits:
//
//	00 Direct:   position in the lowest 32 bits.
//	01 Pending:  index of the overflow entry in the lowest 32 bits.
//	10 Overflow: start of the run in the lowest 32 bits,
//	             number of positions in bits 32-61.
//
// All ones marks an empty slot.
type Slot uint64

const (
	tagShift = 62

	emptySlot Slot = 1<<64 - 1

	// MaxRunCount is the maximum number of positions of a seed.
	MaxRunCount = 1<<30 - 1
)

// DirectSlot stores a single position.
func DirectSlot(pos uint32) Slot { return Slot(pos) }

func pendingSlot(entry uint32) Slot { return Slot(Pending)<<tagShift | Slot(entry) }

// OverflowSlot stores a run in the overflow table.
func OverflowSlot(start, count uint32) (Slot, error) {
	if count > MaxRunCount {
		return emptySlot, ErrTooManyInstances
	}
	return Slot(Overflow)<<tagShift | Slot(count)<<32 | Slot(start), nil
}

// Kind returns the kind of the slot.
func (s Slot) Kind() SlotKind { return SlotKind(s >> tagShift) }

// Position returns the position of a direct slot.
func (s Slot) Position() uint32 { return uint32(s) }

func (s Slot) entry() uint32 { return uint32(s) }

// Run returns the run of an overflow slot.
func (s Slot) Run() (start, count uint32) {
	return uint32(s), uint32(s>>32) & MaxRunCount
}

func (s Slot) String() string {
	switch s.Kind() {
	case Direct:
		return fmt.Sprintf("direct(%d)", s.Position())
	case Pending:
		return fmt.Sprintf("pending(%d)", s.entry())
	case Overflow:
		start, count := s.Run()
		return fmt.Sprintf("overflow(%d, %d)", start, count)
	}
	return "empty"
}
