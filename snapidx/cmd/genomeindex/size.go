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
	"sync"

	"github.com/HibberdLab/snap/snapidx/cmd/counter"
	"github.com/HibberdLab/snap/snapidx/cmd/seed"
	"golang.org/x/sync/errgroup"
)

// sizeTable is the result of the sizing pass.
type sizeTable struct {
	Estimates []uint64 // distinct keys of each hash table
	Distinct  uint64
	Exact     bool
	Stats     scanStats
}

// computeSizeTable counts distinct keys of each hash table. Each worker
// scans a chunk with its own counters, which are merged into the shared
// ones under the lock of each table once the chunk is done.
func computeSizeTable(seq []byte, seedLen int, keyBits uint, nTables int, threads int, forceExact bool) (*sizeTable, error) {
	shared := make([]counter.Counter, nTables)
	locks := make([]sync.Mutex, nTables)

	chunks := splitGenome(len(seq)-seedLen+1, threads)
	results := make([]scanStats, len(chunks))

	var eg errgroup.Group
	for i, chunk := range chunks {
		i, chunk := i, chunk
		eg.Go(func() error {
			local := make([]counter.Counter, nTables)

			var err error
			results[i], err = scanRegion(seq, chunk[0], chunk[1], seedLen, func(code uint64, _ int) error {
				t := seed.Prefix(code, keyBits)
				c := local[t]
				if c == nil {
					c = counter.New(forceExact)
					local[t] = c
				}
				c.Observe(seed.Suffix(code, keyBits))
				return nil
			})
			if err != nil {
				return err
			}

			for t, c := range local {
				if c == nil {
					continue
				}
				locks[t].Lock()
				if shared[t] == nil {
					shared[t] = c
				} else {
					err = shared[t].Merge(c)
				}
				locks[t].Unlock()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sz := &sizeTable{
		Estimates: make([]uint64, nTables),
		Exact:     forceExact,
	}
	for _, st := range results {
		sz.Stats.add(st)
	}
	for t, c := range shared {
		if c == nil {
			continue
		}
		sz.Estimates[t] = c.Estimate()
		sz.Distinct += sz.Estimates[t]
	}
	return sz, nil
}

// uniformSizeTable assumes seeds are uniformly distributed over all tables,
// used when the sizing pass is skipped.
func uniformSizeTable(genomeLen int, nTables int) *sizeTable {
	per := uint64((genomeLen + nTables - 1) / nTables)
	sz := &sizeTable{
		Estimates: make([]uint64, nTables),
		Distinct:  per * uint64(nTables),
	}
	for t := range sz.Estimates {
		sz.Estimates[t] = per
	}
	return sz
}

// overflowCapacity returns the number of positions reserved for repeated
// seeds: factor × (estimated duplicates + margin).
// Duplicates are valid seeds minus distinct seeds, and the margin covers the
// error of approximate counting.
func overflowCapacity(sz *sizeTable, factor uint64, genomeLen int) uint64 {
	if sz.Stats.Positions == 0 { // no sizing pass
		return uint64(genomeLen)
	}
	valid := uint64(sz.Stats.ValidSeeds)
	var dups uint64
	if valid > sz.Distinct {
		dups = valid - sz.Distinct
	}
	var margin uint64
	if !sz.Exact {
		margin = sz.Distinct / 50
	}
	return factor * (dups + margin)
}
