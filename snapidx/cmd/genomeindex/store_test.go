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
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HibberdLab/snap/snapidx/cmd/genome"
	"github.com/pkg/errors"
)

func TestStoreAndLoad(t *testing.T) {
	for _, compress := range []bool{false, true} {
		dir := filepath.Join(t.TempDir(), "index")

		// the genome is destroyed after saving, so the in-memory index uses another one
		g := randomGenome(5, 4, 3000, 7)
		opt := testOptions(g, 12, 2, 4)
		opt.Compress = compress
		opt.HistogramFile = filepath.Join(t.TempDir(), "hist.tsv.gz")
		err := BuildIndexToDirectory(g, dir, opt)
		if err != nil {
			t.Error(err)
			return
		}
		if !g.Destroyed() {
			t.Errorf("the genome should be destroyed")
		}
		if n := countEntries(t, filepath.Dir(dir)); n != 1 {
			t.Errorf("the staging directory should be removed, %d entries found", n)
		}
		if _, err = os.Stat(opt.HistogramFile); err != nil {
			t.Errorf("histogram file missing: %s", err)
		}

		g2 := randomGenome(5, 4, 3000, 7)
		idx, err := BuildIndex(g2, testOptions(g2, 12, 2, 1))
		if err != nil {
			t.Error(err)
			return
		}

		idx2, err := LoadFromDirectory(dir)
		if err != nil {
			t.Error(err)
			return
		}

		if idx2.SeedLen() != idx.SeedLen() || idx2.HashTableKeySize() != idx.HashTableKeySize() ||
			idx2.NumHashTables() != idx.NumHashTables() || idx2.OverflowTableSize() != idx.OverflowTableSize() {
			t.Errorf("index mismatch: %s vs %s", idx, idx2)
			return
		}
		if idx2.Info().Compressed != compress || idx2.Info().MajorVersion != FormatMajorVersion {
			t.Errorf("unexpected info: %+v", idx2.Info())
		}
		if !bytes.Equal(idx2.Genome().Bases(0, g2.Len()), g2.Bases(0, g2.Len())) {
			t.Errorf("genome mismatch")
		}

		for s := range linearScan(g2, 12) {
			h1, rc1 := idx.LookupSeed(s)
			h2, rc2 := idx2.LookupSeed(s)
			if !equalUint32s(h1, h2) || !equalUint32s(rc1, rc2) {
				t.Errorf("%s: expected %v %v, result %v %v", s, h1, rc1, h2, rc2)
				return
			}
		}
	}
}

func countEntries(t *testing.T, dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Error(err)
		return -1
	}
	return len(entries)
}

func buildTestDir(t *testing.T) string {
	dir := filepath.Join(t.TempDir(), "index")
	g := randomGenome(6, 2, 2000, 3)
	if err := BuildIndexToDirectory(g, dir, testOptions(g, 10, 1, 2)); err != nil {
		t.Error(err)
		return ""
	}
	return dir
}

func TestVersionMismatch(t *testing.T) {
	dir := buildTestDir(t)
	if dir == "" {
		return
	}

	file := filepath.Join(dir, FileInfo)
	info, err := ReadInfo(file)
	if err != nil {
		t.Error(err)
		return
	}
	info.MajorVersion = 2
	if err = WriteInfo(file, info); err != nil {
		t.Error(err)
		return
	}

	for i := 0; i < 2; i++ {
		if _, err = LoadFromDirectory(dir); !errors.Is(err, ErrVersionMismatch) {
			t.Errorf("expected ErrVersionMismatch, got %v", err)
		}
	}
}

func TestBrokenFiles(t *testing.T) {
	dir := buildTestDir(t)
	if dir == "" {
		return
	}

	// truncated overflow table
	file := filepath.Join(dir, FileOverflow)
	data, err := os.ReadFile(file)
	if err != nil {
		t.Error(err)
		return
	}
	if err = os.WriteFile(file, data[:len(data)-1], 0644); err != nil {
		t.Error(err)
		return
	}
	if _, err = LoadFromDirectory(dir); !errors.Is(err, ErrBrokenFile) {
		t.Errorf("expected ErrBrokenFile, got %v", err)
	}
	if err = os.WriteFile(file, data, 0644); err != nil {
		t.Error(err)
		return
	}
	if _, err = LoadFromDirectory(dir); err != nil {
		t.Errorf("restored index should be loaded: %s", err)
	}

	// truncated hash table
	file = tableFile(dir, 0)
	data, err = os.ReadFile(file)
	if err != nil {
		t.Error(err)
		return
	}
	if err = os.WriteFile(file, data[:len(data)/2], 0644); err != nil {
		t.Error(err)
		return
	}
	if _, err = LoadFromDirectory(dir); !errors.Is(err, ErrBrokenFile) {
		t.Errorf("expected ErrBrokenFile, got %v", err)
	}

	if err = os.WriteFile(file, data, 0644); err != nil {
		t.Error(err)
		return
	}

	// huge sizes in headers are rejected before allocating
	tests := []struct {
		file   string
		offset int
		value  uint64
		err    error
	}{
		{tableFile(dir, 0), 16, 1 << 39, ErrInvalidFileFormat},                // capacity
		{tableFile(dir, 0), 16, 1 << 62, ErrInvalidFileFormat},                // capacity
		{filepath.Join(dir, FileOverflow), 16, 1 << 39, ErrInvalidFileFormat}, // positions
		{filepath.Join(dir, FileOverflow), 16, 1 << 31, ErrBrokenFile},        // positions
		{filepath.Join(dir, FileGenome), 24, 1 << 39, ErrInvalidFileFormat},   // bases
		{filepath.Join(dir, FileGenome), 24, 1 << 30, ErrInvalidFileFormat},   // bases
	}
	for i, test := range tests {
		data, err := os.ReadFile(test.file)
		if err != nil {
			t.Error(err)
			return
		}
		broken := append([]byte{}, data...)
		binary.BigEndian.PutUint64(broken[test.offset:], test.value)
		if err = os.WriteFile(test.file, broken, 0644); err != nil {
			t.Error(err)
			return
		}
		if _, err = LoadFromDirectory(dir); !errors.Is(err, test.err) {
			t.Errorf("#%d: expected %v, got %v", i, test.err, err)
		}
		if err = os.WriteFile(test.file, data, 0644); err != nil {
			t.Error(err)
			return
		}
	}
	if _, err = LoadFromDirectory(dir); err != nil {
		t.Errorf("restored index should be loaded: %s", err)
	}

	// missing hash table
	if err = os.Remove(file); err != nil {
		t.Error(err)
		return
	}
	if _, err = LoadFromDirectory(dir); !errors.Is(err, ErrMissingFile) {
		t.Errorf("expected ErrMissingFile, got %v", err)
	}

	// missing info
	if _, err = LoadFromDirectory(t.TempDir()); !errors.Is(err, ErrMissingFile) {
		t.Errorf("expected ErrMissingFile, got %v", err)
	}
}

func TestFailedBuildKeepsOldIndex(t *testing.T) {
	dir := buildTestDir(t)
	if dir == "" {
		return
	}

	polyA := []byte(strings.Repeat("A", 200))
	g, _ := genome.FromSeq(polyA, 3)
	opt := testOptions(g, 10, 1, 2)
	opt.ForceExact = true
	opt.OverflowTableFactor = 1

	// not forced
	err := BuildIndexToDirectory(g, dir, opt)
	if !errors.Is(err, ErrOutDirExists) {
		t.Errorf("expected ErrOutDirExists, got %v", err)
	}

	// forced, but failed
	g, _ = genome.FromSeq(polyA, 3)
	opt.Force = true
	err = BuildIndexToDirectory(g, dir, opt)
	if !errors.Is(err, ErrOverflowTableFull) {
		t.Errorf("expected ErrOverflowTableFull, got %v", err)
	}
	if !g.Destroyed() {
		t.Errorf("the genome should be destroyed even if the building failed")
	}

	if n := countEntries(t, filepath.Dir(dir)); n != 1 {
		t.Errorf("the staging directory should be removed, %d entries found", n)
	}
	idx, err := LoadFromDirectory(dir)
	if err != nil {
		t.Errorf("the old index should be kept: %s", err)
		return
	}
	if idx.Genome().Len() == 3+len(polyA) {
		t.Errorf("the old index should not be replaced")
	}

	// forced and succeeded
	g, _ = genome.FromSeq(polyA, 3)
	opt.OverflowTableFactor = 2
	if err = BuildIndexToDirectory(g, dir, opt); err != nil {
		t.Error(err)
		return
	}
	idx, err = LoadFromDirectory(dir)
	if err != nil {
		t.Error(err)
		return
	}
	if idx.Genome().Len() != 3+len(polyA) || idx.OverflowTableSize() != len(polyA)-10+1 {
		t.Errorf("the index should be replaced: %s", idx)
	}
}

func TestReplaceDir(t *testing.T) {
	parent := t.TempDir()
	dst := filepath.Join(parent, "index")
	src := filepath.Join(parent, "new")
	for _, d := range []string{dst, src} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Error(err)
			return
		}
	}
	if err := os.WriteFile(filepath.Join(dst, "old.txt"), []byte("old"), 0644); err != nil {
		t.Error(err)
		return
	}
	if err := os.WriteFile(filepath.Join(src, "new.txt"), []byte("new"), 0644); err != nil {
		t.Error(err)
		return
	}

	if err := replaceDir(src, dst); err != nil {
		t.Error(err)
		return
	}
	if _, err := os.Stat(filepath.Join(dst, "new.txt")); err != nil {
		t.Errorf("the new directory should be in place: %s", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "old.txt")); !os.IsNotExist(err) {
		t.Errorf("the old directory should be replaced")
	}
	if n := countEntries(t, parent); n != 1 {
		t.Errorf("only the output directory should be left, %d entries found", n)
	}

	// a failed rename keeps the old directory
	err := replaceDir(filepath.Join(parent, "missing"), dst)
	if err == nil {
		t.Errorf("renaming a missing directory should fail")
	}
	if _, err = os.Stat(filepath.Join(dst, "new.txt")); err != nil {
		t.Errorf("the old directory should be restored: %s", err)
	}
	if n := countEntries(t, parent); n != 1 {
		t.Errorf("the backup directory should be removed, %d entries found", n)
	}

	// no existing directory
	dst2 := filepath.Join(parent, "index2")
	if err = replaceDir(dst, dst2); err != nil {
		t.Error(err)
		return
	}
	if _, err = os.Stat(filepath.Join(dst2, "new.txt")); err != nil {
		t.Errorf("the directory should be renamed: %s", err)
	}
}

func TestWriteToDirectory(t *testing.T) {
	g := randomGenome(8, 3, 1500, 5)
	idx, err := BuildIndex(g, testOptions(g, 11, 2, 2))
	if err != nil {
		t.Error(err)
		return
	}

	dir := filepath.Join(t.TempDir(), "index")
	if err = idx.WriteToDirectory(dir, true, 2); err != nil {
		t.Error(err)
		return
	}
	idx2, err := LoadFromDirectory(dir)
	if err != nil {
		t.Error(err)
		return
	}
	if !idx2.Info().Compressed {
		t.Errorf("the index should be compressed")
	}
	for s := range linearScan(g, 11) {
		h1, rc1 := idx.LookupSeed(s)
		h2, rc2 := idx2.LookupSeed(s)
		if !equalUint32s(h1, h2) || !equalUint32s(rc1, rc2) {
			t.Errorf("%s: expected %v %v, result %v %v", s, h1, rc1, h2, rc2)
			return
		}
	}

	g.Destroy()
	err = idx.WriteToDirectory(filepath.Join(t.TempDir(), "index"), false, 1)
	if !errors.Is(err, genome.ErrDestroyed) {
		t.Errorf("expected genome.ErrDestroyed, got %v", err)
	}
}

func TestOverflowTableIO(t *testing.T) {
	tests := [][]uint32{
		{},
		{1},
		{9, 5},
		{100, 99, 98, 4000000000, 3, 2, 1},
		{1 << 31, 0, 1<<32 - 1, 7, 6},
	}
	for _, test := range tests {
		var buf bytes.Buffer
		if _, err := writeOverflowTable(&buf, test); err != nil {
			t.Error(err)
			return
		}
		result, err := readOverflowTable(&buf, len(test))
		if err != nil {
			t.Error(err)
			return
		}
		if !equalUint32s(result, test) {
			t.Errorf("expected %v, result %v", test, result)
		}
	}
}

func TestHistogram(t *testing.T) {
	g := randomGenome(7, 2, 2000, 0)
	idx, err := BuildIndex(g, testOptions(g, 9, 1, 2))
	if err != nil {
		t.Error(err)
		return
	}

	var seeds, positions int
	for _, h := range idx.OccurrenceHistogram() {
		seeds += h[1]
		if h[0] > 1 {
			positions += h[0] * h[1]
		}
	}
	expected := linearScan(g, 9)
	if seeds != len(expected) || positions != idx.OverflowTableSize() {
		t.Errorf("histogram mismatch: %d seeds, %d overflow positions", seeds, positions)
	}

	s := idx.Summary()
	if s.Tables != idx.NumHashTables() || s.Keys != len(expected) || s.MaxLoad > 1 {
		t.Errorf("unexpected summary: %+v", s)
	}

	for _, name := range []string{"hist.tsv", "hist.svg"} {
		file := filepath.Join(t.TempDir(), name)
		if err = idx.WriteHistogram(file); err != nil {
			t.Error(err)
			return
		}
		if fi, err := os.Stat(file); err != nil || fi.Size() == 0 {
			t.Errorf("empty histogram file: %s", file)
		}
	}
}
