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
	"context"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HibberdLab/snap/snapidx/cmd/genome"
	"github.com/HibberdLab/snap/snapidx/cmd/hashtable"
	"github.com/HibberdLab/snap/snapidx/cmd/seed"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"
)

// minTableSlots is added to the capacity of every hash table.
const minTableSlots = 16

// BuildOptions are options for building an index.
type BuildOptions struct {
	SeedLen          int
	HashTableKeySize int // bytes

	Slack               float64 // extra room of hash tables
	ComputeBias         bool    // count distinct seeds of each table before allocating
	ForceExact          bool    // count exactly rather than approximately
	OverflowTableFactor uint64

	ChromosomePadding int

	MaxThreads int

	HistogramFile string // optional
	Compress      bool   // gzip index files
	Force         bool   // overwrite an existing output directory
	Verbose       bool
}

// DefaultBuildOptions returns the default options.
func DefaultBuildOptions() *BuildOptions {
	return &BuildOptions{
		SeedLen:             20,
		HashTableKeySize:    4,
		Slack:               0.3,
		ComputeBias:         true,
		OverflowTableFactor: 2,
		ChromosomePadding:   genome.DefaultPadding,
		MaxThreads:          1,
	}
}

// CheckBuildOptions checks the options, and then checks them against the
// genome if it is not nil.
func CheckBuildOptions(g *genome.Genome, opt *BuildOptions) error {
	if opt.SeedLen < 1 || opt.SeedLen > LargestSeedLen {
		return errors.Wrapf(ErrInvalidSeedLen, "seed length: %d", opt.SeedLen)
	}
	if opt.HashTableKeySize < 1 || opt.HashTableKeySize > LargestKeySize {
		return errors.Wrapf(ErrInvalidKeySize, "key size: %d", opt.HashTableKeySize)
	}
	if _, tableBits := splitBits(opt.SeedLen, opt.HashTableKeySize); tableBits > MaxHashTableBits {
		return errors.Wrapf(ErrTooManyHashTables, "2^%d tables for seed length %d and key size %d",
			tableBits, opt.SeedLen, opt.HashTableKeySize)
	}
	if opt.Slack < 0 || math.IsNaN(opt.Slack) || math.IsInf(opt.Slack, 0) {
		return errors.Wrapf(ErrInvalidOption, "slack: %f, should be >= 0", opt.Slack)
	}
	if opt.OverflowTableFactor < 1 {
		return errors.Wrapf(ErrInvalidOption, "overflow table factor: %d, should be >= 1", opt.OverflowTableFactor)
	}
	if opt.MaxThreads < 1 {
		return errors.Wrapf(ErrInvalidOption, "threads: %d, should be >= 1", opt.MaxThreads)
	}
	if opt.ChromosomePadding < 0 {
		return errors.Wrapf(ErrInvalidOption, "chromosome padding: %d, should be >= 0", opt.ChromosomePadding)
	}

	if g == nil {
		return nil
	}
	if opt.ChromosomePadding != g.Padding() {
		return errors.Wrapf(ErrPaddingMismatch, "option: %d, genome: %d", opt.ChromosomePadding, g.Padding())
	}
	if uint64(g.Len()) > genome.MaxLen {
		return errors.Wrapf(ErrGenomeTooLarge, "%d bases", g.Len())
	}
	return nil
}

// BuildIndex builds an index in memory. The genome is kept.
func BuildIndex(g *genome.Genome, opt *BuildOptions) (*GenomeIndex, error) {
	if g == nil || g.Destroyed() {
		return nil, errors.Wrap(ErrInvalidOption, "no genome given")
	}
	err := CheckBuildOptions(g, opt)
	if err != nil {
		return nil, err
	}

	timeStart := time.Now()
	seq := g.Bases(0, g.Len())
	keyBits, tableBits := splitBits(opt.SeedLen, opt.HashTableKeySize)
	nTables := 1 << tableBits

	// ---------------------------------------------------------------
	// sizing

	var sz *sizeTable
	if opt.ComputeBias {
		if opt.Verbose {
			log.Infof("  counting distinct seeds of %d hash table(s) with %d threads ...", nTables, opt.MaxThreads)
		}
		sz, err = computeSizeTable(seq, opt.SeedLen, keyBits, nTables, opt.MaxThreads, opt.ForceExact)
		if err != nil {
			return nil, err
		}
		if opt.Verbose {
			log.Infof("    %s valid seeds, %s distinct (exact: %v), %s positions without a seed",
				humanize.Comma(int64(sz.Stats.ValidSeeds)), humanize.Comma(int64(sz.Distinct)),
				sz.Exact, humanize.Comma(int64(sz.Stats.NoBase)))
		}
	} else {
		sz = uniformSizeTable(g.Len(), nTables)
	}

	// ---------------------------------------------------------------
	// allocating

	tables, err := allocateHashTables(sz.Estimates, opt.Slack, opt.HashTableKeySize)
	if err != nil {
		return nil, err
	}

	capacity := overflowCapacity(sz, opt.OverflowTableFactor, g.Len())
	ob, err := newOverflowBuilder(capacity)
	if err != nil {
		return nil, err
	}
	if opt.Verbose {
		log.Infof("  %d hash table(s) allocated, overflow capacity: %s", nTables, humanize.Comma(int64(capacity)))
	}

	// ---------------------------------------------------------------
	// building

	st, err := buildHashTables(seq, tables, ob, opt.SeedLen, keyBits, opt.MaxThreads, opt.Verbose)
	if err != nil {
		return nil, err
	}

	overflow, err := ob.finalize(tables)
	if err != nil {
		return nil, err
	}

	idx := &GenomeIndex{
		seedLen:  opt.SeedLen,
		keySize:  opt.HashTableKeySize,
		keyBits:  keyBits,
		tables:   tables,
		overflow: overflow,
		genome:   g,
	}
	idx.info = newInfo(idx, opt)

	if opt.Verbose {
		log.Infof("  %s seeds indexed, %s in %s overflow positions, %s repeated occurrences beyond the second",
			humanize.Comma(int64(st.ValidSeeds)), humanize.Comma(int64(idx.info.NumOverflowSeeds)),
			humanize.Comma(int64(len(overflow))), humanize.Comma(int64(ob.duplicates)))
		log.Infof("  index built in %s", time.Since(timeStart))
	}
	return idx, nil
}

// allocateHashTables allocates tables with capacity estimate*(1+slack) plus minTableSlots.
// Tables never grow.
func allocateHashTables(estimates []uint64, slack float64, keySize int) (tables []*hashtable.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			tables, err = nil, errors.Wrapf(ErrAllocation, "%v", r)
		}
	}()

	tables = make([]*hashtable.Table, len(estimates))
	for i, e := range estimates {
		tables[i], err = hashtable.New(int(tableCapacity(e, slack)), keySize, uint64(emptySlot))
		if err != nil {
			return nil, errors.Wrapf(ErrAllocation, "hash table %d: %s", i, err)
		}
	}
	return tables, nil
}

// tableCapacity returns the number of slots of a table for n distinct seeds.
func tableCapacity(n uint64, slack float64) uint64 {
	return uint64(math.Ceil(float64(n)*(1+slack))) + minTableSlots
}

// buildHashTables scans the genome in chunks, one worker per chunk.
//
// A table is locked while a worker inserts a seed, or turns a direct slot into
// an overflow entry on the second occurrence. Later occurrences only read the
// entry index under the lock, and are linked to the entry without it.
func buildHashTables(seq []byte, tables []*hashtable.Table, ob *overflowBuilder,
	seedLen int, keyBits uint, threads int, verbose bool) (scanStats, error) {

	locks := make([]sync.Mutex, len(tables))
	chunks := splitGenome(len(seq)-seedLen+1, threads)
	results := make([]scanStats, len(chunks))

	// progress, updated by workers every progressStep positions
	const progressStep = 1 << 16
	var processed int64
	var pbs *mpb.Progress
	var bar *mpb.Bar
	done := make(chan int)
	if verbose && len(chunks) > 0 {
		total := int64(len(seq) - seedLen + 1)
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(total,
			mpb.PrependDecorators(
				decor.Name("indexed positions: ", decor.WC{W: len("indexed positions: "), C: decor.DindentRight}),
				decor.Name("", decor.WCSyncSpaceR),
				decor.Percentage(decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 10),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
		go func() {
			ticker := time.NewTicker(200 * time.Millisecond)
			defer ticker.Stop()
			var last, cur int64
			for {
				select {
				case <-done:
					bar.SetCurrent(total)
					return
				case <-ticker.C:
					cur = atomic.LoadInt64(&processed)
					bar.EwmaIncrInt64(cur-last, 200*time.Millisecond)
					last = cur
				}
			}
		}()
	}

	eg, ctx := errgroup.WithContext(context.Background())
	for i, chunk := range chunks {
		i, chunk := i, chunk
		eg.Go(func() error {
			var err error
			results[i], err = scanRegion(seq, chunk[0], chunk[1], seedLen, func(code uint64, pos int) error {
				if pos&(progressStep-1) == 0 {
					atomic.AddInt64(&processed, progressStep)
					if ctx.Err() != nil {
						return ctx.Err()
					}
				}
				return insertSeed(tables, locks, ob, code, uint32(pos), keyBits)
			})
			return err
		})
	}
	err := eg.Wait()

	if pbs != nil {
		close(done)
		pbs.Wait()
	}
	if err != nil {
		return scanStats{}, err
	}

	var st scanStats
	for _, r := range results {
		st.add(r)
	}
	return st, nil
}

// insertSeed records one position of a seed.
func insertSeed(tables []*hashtable.Table, locks []sync.Mutex, ob *overflowBuilder,
	code uint64, p uint32, keyBits uint) error {

	t := uint32(seed.Prefix(code, keyBits))
	key := seed.Suffix(code, keyBits)
	tbl := tables[t]
	mu := &locks[t]

	mu.Lock()
	slot, inserted, err := tbl.GetOrInsert(key, uint64(DirectSlot(p)))
	if err != nil {
		mu.Unlock()
		if err == hashtable.ErrTableFull {
			return errors.Wrapf(ErrHashTableFull, "hash table %d with %d slots", t, tbl.Cap())
		}
		return err
	}
	if inserted {
		mu.Unlock()
		return nil
	}

	v := Slot(tbl.Value(slot))
	switch v.Kind() {
	case Direct: // the second occurrence
		var entry uint32
		entry, err = ob.newEntry(t, slot, v.Position(), p)
		if err == nil {
			err = tbl.SetValue(slot, uint64(pendingSlot(entry)))
		}
		mu.Unlock()
		return err
	case Pending:
		mu.Unlock()
		return ob.add(v.entry(), p)
	}
	mu.Unlock()
	return errors.Errorf("genome index: unexpected slot value during building: %s", v)
}
