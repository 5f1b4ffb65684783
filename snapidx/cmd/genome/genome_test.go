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

package genome

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestTwoBit(t *testing.T) {
	_seq := []byte("ACTAGACGACGTACGCGTACGTAGTACGATGCTCGA")
	var s, s2 []byte
	var err error
	for n := 1; n < len(_seq); n++ {
		s = _seq[:n]
		s2, err = TwoBit2Seq(Seq2TwoBit(s), n)
		if err != nil {
			t.Error(err)
			return
		}
		if !bytes.Equal(s, s2) {
			t.Errorf("expected: %s, results: %s\n", s, s2)
			return
		}
	}

	if _, err = TwoBit2Seq([]byte{0, 0}, 9); err != ErrInvalidTwoBitData {
		t.Errorf("expected ErrInvalidTwoBitData, got %v", err)
	}
}

func TestAddContig(t *testing.T) {
	g, err := New(3)
	if err != nil {
		t.Error(err)
		return
	}
	if err = g.AddContig("a", []byte("acgtRY")); err != nil {
		t.Error(err)
		return
	}
	if err = g.AddContig("b", []byte("GGNT")); err != nil {
		t.Error(err)
		return
	}
	if err = g.AddContig("c", nil); err != ErrEmptySeq {
		t.Errorf("empty contig should be rejected")
	}

	expected := "NNNACGTNNNNNGGNT"
	if s := string(g.Bases(0, g.Len())); s != expected {
		t.Errorf("expected: %s, result: %s", expected, s)
	}
	if g.NumContigs() != 2 || g.Padding() != 3 {
		t.Errorf("unexpected genome: %s", g)
	}

	tests := []struct {
		pos    int
		name   string
		offset int
		ok     bool
	}{
		{0, "", 0, false},
		{3, "a", 0, true},
		{8, "a", 5, true},
		{9, "", 0, false},
		{12, "b", 0, true},
		{15, "b", 3, true},
		{16, "", 0, false},
	}
	for _, test := range tests {
		c, offset, ok := g.ContigAt(test.pos)
		if ok != test.ok {
			t.Errorf("pos %d: expected found=%v", test.pos, test.ok)
			continue
		}
		if ok && (c.Name != test.name || offset != test.offset) {
			t.Errorf("pos %d: expected %s:%d, result %s:%d", test.pos, test.name, test.offset, c.Name, offset)
		}
	}

	g.Destroy()
	if !g.Destroyed() || g.Len() != 0 {
		t.Errorf("genome should be destroyed")
	}
	if err = g.AddContig("d", []byte("ACGT")); err != ErrDestroyed {
		t.Errorf("adding to a destroyed genome should fail")
	}

	if _, err = New(-1); err != ErrInvalidPadding {
		t.Errorf("negative padding should be rejected")
	}
}

func TestReadAndWrite(t *testing.T) {
	g, err := New(2)
	if err != nil {
		t.Error(err)
		return
	}
	contigs := [][2]string{
		{"chr1", "ACTAGACGACGTACGCGTNNNNNACGTAGTACGATGCTCGA"},
		{"chr2", "A"},
		{"chr3 with a long name", "nnACGTTGCAnn"},
	}
	for _, c := range contigs {
		if err = g.AddContig(c[0], []byte(c[1])); err != nil {
			t.Error(err)
			return
		}
	}

	var buf bytes.Buffer
	if _, err = g.WriteTo(&buf); err != nil {
		t.Error(err)
		return
	}
	data := buf.Bytes()

	g2, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Error(err)
		return
	}
	if !bytes.Equal(g.Bases(0, g.Len()), g2.Bases(0, g2.Len())) {
		t.Errorf("sequence mismatch:\n%s\n%s", g.Bases(0, g.Len()), g2.Bases(0, g2.Len()))
	}
	if g2.Padding() != g.Padding() || g2.NumContigs() != g.NumContigs() {
		t.Errorf("genome mismatch: %s vs %s", g, g2)
		return
	}
	for i, c := range g.Contigs() {
		if g2.Contigs()[i] != c {
			t.Errorf("contig mismatch: %s vs %s", c, g2.Contigs()[i])
		}
	}
	for pos := 0; pos < g.Len(); pos++ {
		c1, o1, ok1 := g.ContigAt(pos)
		c2, o2, ok2 := g2.ContigAt(pos)
		if c1 != c2 || o1 != o2 || ok1 != ok2 {
			t.Errorf("pos %d: contig mismatch", pos)
			return
		}
	}

	for _, n := range []int{0, 5, 20, len(data) - 1} {
		if _, err = Read(bytes.NewReader(data[:n])); err != ErrBrokenFile {
			t.Errorf("data truncated to %d bytes: expected ErrBrokenFile, got %v", n, err)
		}
	}
	if _, err = Read(bytes.NewReader([]byte("not a genome file"))); err != ErrInvalidFileFormat {
		t.Errorf("expected ErrInvalidFileFormat, got %v", err)
	}

	// length limits, checked before allocating
	if _, err = ReadWithMaxLen(bytes.NewReader(data), uint64(g.Len())); err != nil {
		t.Error(err)
	}
	if _, err = ReadWithMaxLen(bytes.NewReader(data), uint64(g.Len()-1)); err != ErrInvalidFileFormat {
		t.Errorf("a long genome should be rejected, got %v", err)
	}

	// a broken count of N runs
	offset := 32
	for _, c := range contigs {
		offset += 2 + len(c[0]) + 16
	}
	for _, n := range []uint64{1 << 60, uint64(g.Len())} {
		broken := append([]byte{}, data...)
		be.PutUint64(broken[offset:], n)
		if _, err = Read(bytes.NewReader(broken)); err != ErrInvalidFileFormat && err != ErrBrokenFile {
			t.Errorf("%d N runs: expected ErrInvalidFileFormat or ErrBrokenFile, got %v", n, err)
		}
	}
}

func TestFromFastxFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ref.fa")
	err := os.WriteFile(file, []byte(">s1 desc\nACGT\nacgt\n>empty\n\n>s2\nGGCC\n"), 0644)
	if err != nil {
		t.Error(err)
		return
	}

	g, err := FromFastxFiles([]string{file}, 1)
	if err != nil {
		t.Error(err)
		return
	}
	if g.NumContigs() != 2 {
		t.Errorf("expected 2 contigs, got %d", g.NumContigs())
		return
	}
	if g.Contigs()[0].Name != "s1" || g.Contigs()[1].Name != "s2" {
		t.Errorf("unexpected contig names: %v", g.Contigs())
	}
	if s := string(g.Bases(0, g.Len())); s != "NACGTACGTNGGCC" {
		t.Errorf("unexpected sequence: %s", s)
	}
}
