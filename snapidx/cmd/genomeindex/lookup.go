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
	"sort"

	"github.com/HibberdLab/snap/snapidx/cmd/seed"
)

// LookupSeed returns positions of a seed and of its reverse complement,
// in descending order. The slices share memory with the index and should
// not be modified. Seeds absent from the genome, or of a different length,
// have no hits.
func (idx *GenomeIndex) LookupSeed(s seed.Seed) (hits, rcHits []uint32) {
	if s.Len() != idx.seedLen {
		return nil, nil
	}
	return idx.lookup(s), idx.lookup(s.ReverseComplement())
}

// LookupSeedInRange is similar to LookupSeed, but only returns positions
// in [minLoc, maxLoc].
func (idx *GenomeIndex) LookupSeedInRange(s seed.Seed, minLoc, maxLoc uint32) (hits, rcHits []uint32) {
	if s.Len() != idx.seedLen {
		return nil, nil
	}
	return inRange(idx.lookup(s), minLoc, maxLoc),
		inRange(idx.lookup(s.ReverseComplement()), minLoc, maxLoc)
}

// LookupSeedForward returns positions of a seed, without the reverse complement.
func (idx *GenomeIndex) LookupSeedForward(s seed.Seed) []uint32 {
	if s.Len() != idx.seedLen {
		return nil
	}
	return idx.lookup(s)
}

// LookupSeedForwardInRange returns positions of a seed in [minLoc, maxLoc],
// without the reverse complement.
func (idx *GenomeIndex) LookupSeedForwardInRange(s seed.Seed, minLoc, maxLoc uint32) []uint32 {
	if s.Len() != idx.seedLen {
		return nil
	}
	return inRange(idx.lookup(s), minLoc, maxLoc)
}

func (idx *GenomeIndex) lookup(s seed.Seed) []uint32 {
	table, key := s.Split(idx.keyBits)
	if table >= uint64(len(idx.tables)) {
		return nil
	}
	v, ok := idx.tables[table].Lookup(key)
	if !ok {
		return nil
	}

	slot := Slot(v)
	switch slot.Kind() {
	case Direct:
		return []uint32{slot.Position()}
	case Overflow:
		start, count := slot.Run()
		return idx.overflow[start : start+count : start+count]
	}
	return nil
}

// inRange returns positions in [minLoc, maxLoc] of a descending list.
func inRange(hits []uint32, minLoc, maxLoc uint32) []uint32 {
	if len(hits) == 0 || minLoc > maxLoc {
		return nil
	}
	// the first one <= maxLoc
	i := sort.Search(len(hits), func(i int) bool { return hits[i] <= maxLoc })
	// the first one < minLoc
	j := sort.Search(len(hits), func(i int) bool { return hits[i] < minLoc })
	if i >= j {
		return nil
	}
	return hits[i:j:j]
}
