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
	"errors"
	"fmt"

	"github.com/HibberdLab/snap/snapidx/cmd/genome"
	"github.com/HibberdLab/snap/snapidx/cmd/hashtable"
	"github.com/HibberdLab/snap/snapidx/cmd/seed"
	"github.com/shenwei356/go-logging"
)

var log = logging.MustGetLogger("snapidx")

// FormatMajorVersion is the major version of the index directory format.
// Indexes with a different major version can not be loaded.
const FormatMajorVersion = 3

// FormatMinorVersion is less important.
const FormatMinorVersion = 0

// LargestSeedLen is the longest seed supported.
const LargestSeedLen = seed.LargestSeedLen

// LargestKeySize is the widest hash table key in bytes.
const LargestKeySize = hashtable.LargestKeySize

// MaxHashTableBits limits the number of hash tables to 2^20.
const MaxHashTableBits = 20

// configuration errors

// ErrInvalidSeedLen means the seed length is out of [1, 32].
var ErrInvalidSeedLen = errors.New("genome index: seed length [1, 32] overflow")

// ErrInvalidKeySize means the hash table key size is out of [1, 8].
var ErrInvalidKeySize = errors.New("genome index: hash table key size [1, 8] overflow")

// ErrTooManyHashTables means the seed length is too long for the key size.
var ErrTooManyHashTables = errors.New("genome index: too many hash tables, please increase the key size")

// ErrInvalidOption means an invalid option value.
var ErrInvalidOption = errors.New("genome index: invalid option")

// ErrGenomeTooLarge means the genome is too long for 32-bit positions.
var ErrGenomeTooLarge = errors.New("genome index: genome too large")

// ErrPaddingMismatch means the padding option differs from the one of the genome.
var ErrPaddingMismatch = errors.New("genome index: chromosome padding mismatch")

// resource errors

// ErrAllocation means a table can not be allocated.
var ErrAllocation = errors.New("genome index: allocation failed")

// ErrHashTableFull means a hash table has no free slots, the slack is too small.
var ErrHashTableFull = errors.New("genome index: hash table full, please increase the slack")

// ErrOutDirExists means the output directory exists.
var ErrOutDirExists = errors.New("genome index: output directory exists")

// capacity errors

// ErrOverflowTableFull means repeated seeds need more room than reserved
// in the overflow table, the overflow table factor is too small.
var ErrOverflowTableFull = errors.New("genome index: overflow table full, please increase the overflow table factor")

// ErrTooManyInstances means a seed occurs more than a slot can count.
var ErrTooManyInstances = errors.New("genome index: too many instances of a seed")

// format errors

// ErrVersionMismatch means the index format version is not supported.
var ErrVersionMismatch = errors.New("genome index: version mismatch")

// ErrBrokenFile means an index file is not complete.
var ErrBrokenFile = errors.New("genome index: broken file")

// ErrInvalidFileFormat means an index file is not valid.
var ErrInvalidFileFormat = errors.New("genome index: invalid file format")

// ErrMissingFile means an index file is missing.
var ErrMissingFile = errors.New("genome index: missing file")

// GenomeIndex maps every seed of a genome to all its positions.
//
// Seeds are split into the hash table index (the high bits) and the key
// (the low bits). A seed occurring once is stored directly in the table,
// positions of repeated seeds are kept in a run of the overflow table,
// in descending order.
//
// A GenomeIndex is read-only and safe for concurrent lookups.
type GenomeIndex struct {
	seedLen  int
	keySize  int
	keyBits  uint
	tables   []*hashtable.Table
	overflow []uint32
	genome   *genome.Genome

	info *Info
}

func (idx *GenomeIndex) String() string {
	return fmt.Sprintf("genome index: seedLen=%d, keySize=%d, hashTables=%d, overflowTableSize=%d",
		idx.seedLen, idx.keySize, len(idx.tables), len(idx.overflow))
}

// SeedLen returns the seed length.
func (idx *GenomeIndex) SeedLen() int { return idx.seedLen }

// HashTableKeySize returns the key size in bytes.
func (idx *GenomeIndex) HashTableKeySize() int { return idx.keySize }

// NumHashTables returns the number of hash tables.
func (idx *GenomeIndex) NumHashTables() int { return len(idx.tables) }

// OverflowTableSize returns the number of positions in the overflow table.
func (idx *GenomeIndex) OverflowTableSize() int { return len(idx.overflow) }

// Genome returns the genome. It's nil if the genome has been destroyed
// after building the index.
func (idx *GenomeIndex) Genome() *genome.Genome {
	if idx.genome == nil || idx.genome.Destroyed() {
		return nil
	}
	return idx.genome
}

// PrefetchGenomeData hints that bases around the offset will be read soon.
// It has no effect for an in-memory genome, see genome.Genome.Prefetch.
func (idx *GenomeIndex) PrefetchGenomeData(offset int) {
	if g := idx.Genome(); g != nil {
		g.Prefetch(offset)
	}
}

// Info returns the metadata.
func (idx *GenomeIndex) Info() *Info { return idx.info }

// splitBits returns bits of keys and hash table indexes for a seed length and key size.
func splitBits(seedLen, keySize int) (keyBits, tableBits uint) {
	keyBits = uint(keySize) << 3
	if seedBits := uint(seedLen) << 1; seedBits < keyBits {
		keyBits = seedBits
	}
	tableBits = uint(seedLen)<<1 - keyBits
	return
}

// TableStats is the occupancy of a hash table.
type TableStats struct {
	Keys     int // used slots
	Slots    int // capacity
	Direct   int // seeds occurring once
	Repeated int // seeds occurring more than once
}

// Stats returns occupancy of all hash tables.
func (idx *GenomeIndex) Stats() []TableStats {
	stats := make([]TableStats, len(idx.tables))
	for i, t := range idx.tables {
		s := &stats[i]
		s.Keys = t.Len()
		s.Slots = t.Cap()
		t.Walk(func(_ int, _, v uint64) bool {
			if Slot(v).Kind() == Direct {
				s.Direct++
			} else {
				s.Repeated++
			}
			return true
		})
	}
	return stats
}
