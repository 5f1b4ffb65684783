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
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/HibberdLab/snap/snapidx/cmd/genome"
	"github.com/HibberdLab/snap/snapidx/cmd/hashtable"
	"github.com/klauspost/pgzip"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
	"golang.org/x/sync/errgroup"
)

// FileInfo is the metadata file.
const FileInfo = "info.toml"

// FileGenome is the genome file.
const FileGenome = "Genome"

// DirTables is the directory of hash table files.
const DirTables = "tables"

// FileOverflow is the overflow table file.
const FileOverflow = "overflow.bin"

// prefixes of the staging and backup directories, created next to the output directory
const (
	tmpDirPrefix    = ".snapidx-tmp-"
	backupDirPrefix = ".snapidx-old-"
)

// Info is the metadata of an index.
type Info struct {
	MajorVersion uint8 `toml:"major-version" comment:"Index format"`
	MinorVersion uint8 `toml:"minor-version"`

	SeedLen           int `toml:"seed-length" comment:"Seeds"`
	HashTableKeySize  int `toml:"hash-table-key-size"`
	NumHashTables     int `toml:"hash-tables"`
	OverflowTableSize int `toml:"overflow-table-size"`

	ChromosomePadding int `toml:"chromosome-padding" comment:"Genome"`
	GenomeLength      int `toml:"genome-length"`
	NumContigs        int `toml:"contigs"`

	Compressed          bool    `toml:"compressed" comment:"Building options"`
	Slack               float64 `toml:"slack"`
	OverflowTableFactor uint64  `toml:"overflow-table-factor"`
	ForceExact          bool    `toml:"force-exact"`
	ComputeBias         bool    `toml:"compute-bias"`

	NumDirectSeeds   int `toml:"direct-seeds" comment:"Statistics"`
	NumOverflowSeeds int `toml:"overflow-seeds"`

	CreatedAt time.Time `toml:"created-at"`
}

func newInfo(idx *GenomeIndex, opt *BuildOptions) *Info {
	info := &Info{
		MajorVersion:        FormatMajorVersion,
		MinorVersion:        FormatMinorVersion,
		SeedLen:             idx.seedLen,
		HashTableKeySize:    idx.keySize,
		NumHashTables:       len(idx.tables),
		OverflowTableSize:   len(idx.overflow),
		ChromosomePadding:   idx.genome.Padding(),
		GenomeLength:        idx.genome.Len(),
		NumContigs:          idx.genome.NumContigs(),
		Compressed:          opt.Compress,
		Slack:               opt.Slack,
		OverflowTableFactor: opt.OverflowTableFactor,
		ForceExact:          opt.ForceExact,
		ComputeBias:         opt.ComputeBias,
		CreatedAt:           time.Now().Truncate(time.Second),
	}
	for _, s := range idx.Stats() {
		info.NumDirectSeeds += s.Direct
		info.NumOverflowSeeds += s.Repeated
	}
	return info
}

// ReadInfo reads the metadata file.
func ReadInfo(file string) (*Info, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrMissingFile, file)
		}
		return nil, errors.Wrapf(err, "reading info file: %s", file)
	}
	info := &Info{}
	err = toml.Unmarshal(data, info)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidFileFormat, "info file %s: %s", file, err)
	}
	return info, nil
}

// WriteInfo writes the metadata file.
func WriteInfo(file string, info *Info) error {
	data, err := toml.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "marshal index info")
	}
	return os.WriteFile(file, data, 0644)
}

func tableFile(dir string, i int) string {
	return filepath.Join(dir, DirTables, fmt.Sprintf("table_%06d.bin", i))
}

// BuildIndexToDirectory builds an index and saves it to a directory.
// The genome is destroyed when it returns, so it should not be used by the
// caller anymore.
//
// Files are written to a new staging directory next to the output
// directory first, which replaces the output directory only after all
// files are written. On failure, an existing output directory is left
// untouched.
func BuildIndexToDirectory(g *genome.Genome, dir string, opt *BuildOptions) error {
	dir = filepath.Clean(dir)
	defer func() {
		if g != nil {
			g.Destroy()
		}
	}()

	if !opt.Force {
		existed, err := pathutil.DirExists(dir)
		if err != nil {
			return errors.Wrapf(err, "check output directory: %s", dir)
		}
		if existed {
			empty, err := pathutil.IsEmpty(dir)
			if err != nil {
				return errors.Wrapf(err, "check output directory: %s", dir)
			}
			if !empty {
				return errors.Wrap(ErrOutDirExists, dir)
			}
		}
	}

	idx, err := BuildIndex(g, opt)
	if err != nil {
		return err
	}

	parent := filepath.Dir(dir)
	err = os.MkdirAll(parent, 0755)
	if err != nil {
		return errors.Wrapf(err, "create directory: %s", parent)
	}
	tmpDir, err := os.MkdirTemp(parent, tmpDirPrefix)
	if err != nil {
		return errors.Wrapf(err, "create staging directory in %s", parent)
	}
	// it's gone after a successful replacement
	defer os.RemoveAll(tmpDir)

	err = idx.writeFiles(tmpDir, opt.Compress, opt.MaxThreads)
	if err != nil {
		return err
	}

	if opt.HistogramFile != "" {
		err = idx.WriteHistogram(opt.HistogramFile)
		if err != nil {
			return err
		}
	}

	// the genome is saved, and not needed anymore
	g.Destroy()
	idx.genome = nil
	runtime.GC()

	err = replaceDir(tmpDir, dir)
	if err != nil {
		return err
	}

	if opt.Verbose {
		log.Infof("  index saved to %s", dir)
	}
	return nil
}

// replaceDir renames src to dst. An existing dst is moved aside first, and
// moved back if src can not be renamed, so dst is either the old or the
// new directory.
func replaceDir(src, dst string) error {
	_, err := os.Lstat(dst)
	if os.IsNotExist(err) {
		return errors.Wrapf(os.Rename(src, dst), "rename %s to %s", src, dst)
	}
	if err != nil {
		return errors.Wrapf(err, "check output directory: %s", dst)
	}

	backup, err := os.MkdirTemp(filepath.Dir(dst), backupDirPrefix)
	if err != nil {
		return errors.Wrapf(err, "create backup directory for %s", dst)
	}
	old := filepath.Join(backup, filepath.Base(dst))
	err = os.Rename(dst, old)
	if err != nil {
		os.RemoveAll(backup)
		return errors.Wrapf(err, "move old index directory: %s", dst)
	}

	err = os.Rename(src, dst)
	if err != nil {
		if err2 := os.Rename(old, dst); err2 != nil {
			return errors.Wrapf(err, "rename %s to %s, and the old index is kept in %s", src, dst, old)
		}
		os.RemoveAll(backup)
		return errors.Wrapf(err, "rename %s to %s", src, dst)
	}

	return errors.Wrapf(os.RemoveAll(backup), "remove old index directory: %s", backup)
}

// WriteToDirectory saves the index to a directory, which should not exist
// or be empty. Use BuildIndexToDirectory for replacing an index safely.
func (idx *GenomeIndex) WriteToDirectory(dir string, compress bool, threads int) error {
	return idx.writeFiles(filepath.Clean(dir), compress, threads)
}

func (idx *GenomeIndex) writeFiles(dir string, compress bool, threads int) error {
	if idx.Genome() == nil {
		return errors.Wrap(genome.ErrDestroyed, "saving index")
	}
	if threads < 1 {
		threads = 1
	}

	err := os.MkdirAll(filepath.Join(dir, DirTables), 0755)
	if err != nil {
		return errors.Wrapf(err, "create directory: %s", dir)
	}

	info := *idx.info
	info.Compressed = compress
	err = WriteInfo(filepath.Join(dir, FileInfo), &info)
	if err != nil {
		return err
	}

	err = writeFile(filepath.Join(dir, FileGenome), compress, idx.genome.WriteTo)
	if err != nil {
		return errors.Wrap(err, "write genome")
	}

	err = writeFile(filepath.Join(dir, FileOverflow), compress, func(w io.Writer) (int64, error) {
		return writeOverflowTable(w, idx.overflow)
	})
	if err != nil {
		return errors.Wrap(err, "write overflow table")
	}

	var eg errgroup.Group
	eg.SetLimit(threads)
	for i, t := range idx.tables {
		i, t := i, t
		eg.Go(func() error {
			err := writeFile(tableFile(dir, i), compress, t.WriteTo)
			if err != nil {
				return errors.Wrapf(err, "write hash table %d", i)
			}
			return nil
		})
	}
	return eg.Wait()
}

// writeFile creates a file and writes data with fn, optionally gzipped.
func writeFile(file string, compress bool, fn func(io.Writer) (int64, error)) error {
	fh, err := os.Create(file)
	if err != nil {
		return err
	}

	var w io.Writer = fh
	var gw *pgzip.Writer
	if compress {
		gw, err = pgzip.NewWriterLevel(fh, pgzip.DefaultCompression)
		if err != nil {
			fh.Close()
			return err
		}
		w = gw
	}

	_, err = fn(w)
	if err != nil {
		if gw != nil {
			gw.Close()
		}
		fh.Close()
		return err
	}

	if gw != nil {
		err = gw.Close()
		if err != nil {
			fh.Close()
			return err
		}
	}
	return fh.Close()
}

// readFile opens a file and reads data with fn, optionally gzipped.
func readFile(file string, compressed bool, fn func(io.Reader) error) error {
	fh, err := os.Open(file)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(ErrMissingFile, file)
		}
		return err
	}
	defer fh.Close()

	var r io.Reader = bufio.NewReaderSize(fh, bufferSize)
	if compressed {
		gr, err := pgzip.NewReader(r)
		if err != nil {
			return errors.Wrapf(ErrInvalidFileFormat, "%s: %s", file, err)
		}
		defer gr.Close()
		r = gr
	}
	return fn(r)
}

// LoadFromDirectory loads an index saved by BuildIndexToDirectory.
// Any missing, truncated or invalid file fails the whole load.
func LoadFromDirectory(dir string) (*GenomeIndex, error) {
	dir = filepath.Clean(dir)

	info, err := ReadInfo(filepath.Join(dir, FileInfo))
	if err != nil {
		return nil, err
	}
	if info.MajorVersion != FormatMajorVersion {
		return nil, errors.Wrapf(ErrVersionMismatch, "index format v%d.%d, supported: v%d",
			info.MajorVersion, info.MinorVersion, FormatMajorVersion)
	}
	if info.SeedLen < 1 || info.SeedLen > LargestSeedLen ||
		info.HashTableKeySize < 1 || info.HashTableKeySize > LargestKeySize {
		return nil, errors.Wrapf(ErrInvalidFileFormat, "seed length %d, key size %d", info.SeedLen, info.HashTableKeySize)
	}
	keyBits, tableBits := splitBits(info.SeedLen, info.HashTableKeySize)
	if tableBits > MaxHashTableBits || info.NumHashTables != 1<<tableBits {
		return nil, errors.Wrapf(ErrInvalidFileFormat, "%d hash tables", info.NumHashTables)
	}

	if info.GenomeLength < 0 || uint64(info.GenomeLength) > genome.MaxLen ||
		info.OverflowTableSize < 0 || info.OverflowTableSize > info.GenomeLength {
		return nil, errors.Wrapf(ErrInvalidFileFormat, "genome length %d, overflow table size %d",
			info.GenomeLength, info.OverflowTableSize)
	}
	if info.Slack < 0 || math.IsNaN(info.Slack) || math.IsInf(info.Slack, 0) {
		return nil, errors.Wrapf(ErrInvalidFileFormat, "slack: %f", info.Slack)
	}
	// no table is larger than the one allocated for all seeds
	maxSlots := tableCapacity(uint64(info.GenomeLength), info.Slack)

	idx := &GenomeIndex{
		seedLen: info.SeedLen,
		keySize: info.HashTableKeySize,
		keyBits: keyBits,
		tables:  make([]*hashtable.Table, info.NumHashTables),
		info:    info,
	}

	// genome
	err = readFile(filepath.Join(dir, FileGenome), info.Compressed, func(r io.Reader) (err error) {
		idx.genome, err = genome.ReadWithMaxLen(r, uint64(info.GenomeLength))
		return mapGenomeError(err)
	})
	if err != nil {
		return nil, errors.Wrap(err, "read genome")
	}
	if idx.genome.Len() != info.GenomeLength || idx.genome.Padding() != info.ChromosomePadding {
		return nil, errors.Wrapf(ErrInvalidFileFormat, "genome of %d bases, %d expected", idx.genome.Len(), info.GenomeLength)
	}

	// overflow table
	err = readFile(filepath.Join(dir, FileOverflow), info.Compressed, func(r io.Reader) (err error) {
		idx.overflow, err = readOverflowTable(r, info.OverflowTableSize)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "read overflow table")
	}
	if len(idx.overflow) != info.OverflowTableSize {
		return nil, errors.Wrapf(ErrBrokenFile, "overflow table of %d positions, %d expected",
			len(idx.overflow), info.OverflowTableSize)
	}

	// hash tables
	var eg errgroup.Group
	eg.SetLimit(runtime.NumCPU())
	for i := range idx.tables {
		i := i
		eg.Go(func() error {
			return readFile(tableFile(dir, i), info.Compressed, func(r io.Reader) error {
				t, err := hashtable.ReadWithMaxCapacity(r, maxSlots)
				if err != nil {
					return errors.Wrapf(mapTableError(err), "read hash table %d", i)
				}
				if t.KeySize() != info.HashTableKeySize || t.Invalid() != uint64(emptySlot) {
					return errors.Wrapf(ErrInvalidFileFormat, "hash table %d", i)
				}
				if err = checkTable(t, len(idx.overflow), info.GenomeLength); err != nil {
					return errors.Wrapf(err, "hash table %d", i)
				}
				idx.tables[i] = t
				return nil
			})
		})
	}
	if err = eg.Wait(); err != nil {
		return nil, err
	}

	return idx, nil
}

// checkTable makes sure all slots point into the genome or the overflow table.
func checkTable(t *hashtable.Table, overflowSize, genomeLen int) error {
	var err error
	t.Walk(func(_ int, _, v uint64) bool {
		s := Slot(v)
		switch s.Kind() {
		case Direct:
			if int(s.Position()) >= genomeLen {
				err = ErrInvalidFileFormat
			}
		case Overflow:
			start, count := s.Run()
			if count == 0 || int(start)+int(count) > overflowSize {
				err = ErrInvalidFileFormat
			}
		default:
			err = ErrInvalidFileFormat
		}
		return err == nil
	})
	return err
}

func mapGenomeError(err error) error {
	switch err {
	case genome.ErrBrokenFile:
		return ErrBrokenFile
	case genome.ErrInvalidFileFormat, genome.ErrInvalidTwoBitData:
		return ErrInvalidFileFormat
	case genome.ErrVersionMismatch:
		return ErrVersionMismatch
	}
	return err
}

func mapTableError(err error) error {
	switch err {
	case hashtable.ErrBrokenFile:
		return ErrBrokenFile
	case hashtable.ErrInvalidFileFormat:
		return ErrInvalidFileFormat
	case hashtable.ErrVersionMismatch:
		return ErrVersionMismatch
	}
	return err
}
