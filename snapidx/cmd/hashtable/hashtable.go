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

package hashtable

import (
	"encoding/binary"
	"errors"
	"math/bits"

	"github.com/zeebo/wyhash"
)

var be = binary.BigEndian

// LargestKeySize is the maximum key width in bytes.
const LargestKeySize = 8

// ErrInvalidKeySize means the key size is out of [1, 8].
var ErrInvalidKeySize = errors.New("hash table: key size [1, 8] overflow")

// ErrInvalidCapacity means the capacity is not positive.
var ErrInvalidCapacity = errors.New("hash table: invalid capacity")

// ErrTableFull means there's no free slot left. Tables never grow.
var ErrTableFull = errors.New("hash table: table full")

// ErrInvalidValue means the value to insert equals the invalid value of the table.
var ErrInvalidValue = errors.New("hash table: the invalid value can not be inserted")

// Table is a fixed-capacity open-addressing hash table
// with keys of 1-8 bytes and uint64 values.
// A slot is free when its value equals the invalid value given in New().
//
// Table is not safe for concurrent use, callers need to lock it
// when mutating it from multiple goroutines.
type Table struct {
	keySize uint8
	keyMask uint64
	invalid uint64
	seed    uint64

	keys   []uint64
	values []uint64
	n      int // the number of used slots
}

// New allocates a table with a fixed capacity.
// Keys are truncated to keySize bytes.
func New(capacity int, keySize int, invalid uint64) (*Table, error) {
	if keySize < 1 || keySize > LargestKeySize {
		return nil, ErrInvalidKeySize
	}
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}

	t := &Table{
		keySize: uint8(keySize),
		keyMask: keyMask(keySize),
		invalid: invalid,
		seed:    uint64(capacity),
		keys:    make([]uint64, capacity),
		values:  make([]uint64, capacity),
	}
	if invalid != 0 {
		for i := range t.values {
			t.values[i] = invalid
		}
	}
	return t, nil
}

func keyMask(keySize int) uint64 {
	if keySize >= 8 {
		return 1<<64 - 1
	}
	return 1<<(uint(keySize)<<3) - 1
}

// Len returns the number of keys.
func (t *Table) Len() int { return t.n }

// Cap returns the number of slots.
func (t *Table) Cap() int { return len(t.values) }

// KeySize returns the key width in bytes.
func (t *Table) KeySize() int { return int(t.keySize) }

// Invalid returns the value marking a free slot.
func (t *Table) Invalid() uint64 { return t.invalid }

// home returns the first slot to probe for a key.
func (t *Table) home(key uint64) int {
	var buf [8]byte
	be.PutUint64(buf[:], key)
	h := wyhash.Hash(buf[:], t.seed)
	hi, _ := bits.Mul64(h, uint64(len(t.values)))
	return int(hi)
}

// probe returns the slot holding the key, or the first free slot
// on its probe sequence. found tells which one it is.
// slot is -1 if the key is absent and the table is full.
func (t *Table) probe(key uint64) (slot int, found bool) {
	c := len(t.values)
	i := t.home(key)
	for j := 0; j < c; j++ {
		if t.values[i] == t.invalid {
			return i, false
		}
		if t.keys[i] == key {
			return i, true
		}
		i++
		if i == c {
			i = 0
		}
	}
	return -1, false
}

// Insert inserts a key or overwrites its value, and returns the slot.
func (t *Table) Insert(key, value uint64) (int, error) {
	slot, _, err := t.upsert(key, value, true)
	return slot, err
}

// GetOrInsert returns the slot of an existing key, or inserts the key with
// the value. inserted reports whether the key was absent.
func (t *Table) GetOrInsert(key, value uint64) (slot int, inserted bool, err error) {
	return t.upsert(key, value, false)
}

func (t *Table) upsert(key, value uint64, overwrite bool) (int, bool, error) {
	if value == t.invalid {
		return -1, false, ErrInvalidValue
	}
	key &= t.keyMask
	slot, found := t.probe(key)
	if found {
		if overwrite {
			t.values[slot] = value
		}
		return slot, false, nil
	}
	if slot < 0 {
		return -1, false, ErrTableFull
	}
	t.keys[slot] = key
	t.values[slot] = value
	t.n++
	return slot, true, nil
}

// Lookup returns the value of a key.
func (t *Table) Lookup(key uint64) (uint64, bool) {
	slot, found := t.probe(key & t.keyMask)
	if !found {
		return t.invalid, false
	}
	return t.values[slot], true
}

// Find returns the slot of a key.
func (t *Table) Find(key uint64) (int, bool) {
	slot, found := t.probe(key & t.keyMask)
	if !found {
		return -1, false
	}
	return slot, true
}

// Key returns the key in a slot.
func (t *Table) Key(slot int) uint64 { return t.keys[slot] }

// Value returns the value in a slot.
func (t *Table) Value(slot int) uint64 { return t.values[slot] }

// SetValue replaces the value of a used slot.
// Freeing a slot is not supported, so value must not be the invalid value.
func (t *Table) SetValue(slot int, value uint64) error {
	if value == t.invalid {
		return ErrInvalidValue
	}
	t.values[slot] = value
	return nil
}

// Walk calls fn for each used slot until fn returns false.
func (t *Table) Walk(fn func(slot int, key, value uint64) bool) {
	for i, v := range t.values {
		if v == t.invalid {
			continue
		}
		if !fn(i, t.keys[i], v) {
			return
		}
	}
}
