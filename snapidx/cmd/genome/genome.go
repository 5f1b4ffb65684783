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
	"errors"
	"fmt"
	"math"

	"github.com/rdleal/intervalst/interval"
)

// MaxLen is the maximum number of bases of a genome, including padding,
// so that every position fits in an uint32.
const MaxLen = math.MaxUint32

// DefaultPadding is the default number of N bases between two contigs.
const DefaultPadding = 500

// ErrEmptySeq means the sequence is empty
var ErrEmptySeq = errors.New("genome data: empty seq")

// ErrInvalidPadding means the padding is negative.
var ErrInvalidPadding = errors.New("genome data: invalid padding")

// ErrGenomeTooLarge means the genome has more bases than an uint32 can address.
var ErrGenomeTooLarge = errors.New("genome data: genome too large")

// ErrDestroyed means the genome has been destroyed.
var ErrDestroyed = errors.New("genome data: genome destroyed")

// Contig is a sequence in the genome.
type Contig struct {
	Name  string
	Start int // offset of the first base in the genome
	Len   int
}

// End returns the offset after the last base.
func (c Contig) End() int { return c.Start + c.Len }

func (c Contig) String() string {
	return fmt.Sprintf("%s:%d-%d", c.Name, c.Start, c.End())
}

// Genome is a reference genome held in memory. All contigs are concatenated
// into one sequence, and every contig is preceded by padding N bases, so no
// seed spans two contigs.
//
// Bases other than A, C, G and T are stored as N, lower case bases are
// converted to upper case.
//
// A Genome is read-only after it is built, and safe for concurrent reads.
type Genome struct {
	seq     []byte
	padding int
	contigs []Contig

	tree *interval.SearchTree[int, int] // position -> index of contig

	destroyed bool
}

// New creates an empty genome.
func New(padding int) (*Genome, error) {
	if padding < 0 {
		return nil, ErrInvalidPadding
	}
	return &Genome{
		seq:     make([]byte, 0, 1<<20),
		padding: padding,
		contigs: make([]Contig, 0, 8),
		tree:    interval.NewSearchTree[int, int](func(x, y int) int { return x - y }),
	}, nil
}

// FromSeq creates a genome with a single unnamed contig, mainly for tests.
func FromSeq(seq []byte, padding int) (*Genome, error) {
	g, err := New(padding)
	if err != nil {
		return nil, err
	}
	err = g.AddContig("seq", seq)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// AddContig appends a contig after padding N bases.
func (g *Genome) AddContig(name string, s []byte) error {
	if g.destroyed {
		return ErrDestroyed
	}
	if len(s) == 0 {
		return ErrEmptySeq
	}
	if uint64(len(g.seq))+uint64(g.padding)+uint64(len(s)) > MaxLen {
		return ErrGenomeTooLarge
	}

	for i := 0; i < g.padding; i++ {
		g.seq = append(g.seq, 'N')
	}

	start := len(g.seq)
	for _, b := range s {
		g.seq = append(g.seq, normBase[b])
	}

	g.addContig(Contig{Name: name, Start: start, Len: len(s)})
	return nil
}

func (g *Genome) addContig(c Contig) {
	g.tree.Insert(c.Start, c.End()-1, len(g.contigs))
	g.contigs = append(g.contigs, c)
}

// normBase maps A/C/G/T (either case) to upper case and others to N.
var normBase = func() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = 'N'
	}
	t['A'], t['a'] = 'A', 'A'
	t['C'], t['c'] = 'C', 'C'
	t['G'], t['g'] = 'G', 'G'
	t['T'], t['t'] = 'T', 'T'
	return t
}()

func (g *Genome) String() string {
	return fmt.Sprintf("genome, len:%d, contigs:%d, padding:%d", len(g.seq), len(g.contigs), g.padding)
}

// Len returns the number of bases, including padding.
func (g *Genome) Len() int { return len(g.seq) }

// Padding returns the number of N bases before each contig.
func (g *Genome) Padding() int { return g.padding }

// NumContigs returns the number of contigs.
func (g *Genome) NumContigs() int { return len(g.contigs) }

// Contigs returns all contigs. The slice should not be modified.
func (g *Genome) Contigs() []Contig { return g.contigs }

// BaseAt returns the base at a position.
func (g *Genome) BaseAt(pos int) byte { return g.seq[pos] }

// Bases returns bases in [start, end). The slice should not be modified.
func (g *Genome) Bases(start, end int) []byte {
	if start < 0 {
		start = 0
	}
	if end > len(g.seq) {
		end = len(g.seq)
	}
	if start >= end {
		return nil
	}
	return g.seq[start:end:end]
}

// Prefetch is only a hint that bases around the position will be read
// soon. The sequence is held in memory, so it has no effect besides
// ignoring positions out of the genome.
func (g *Genome) Prefetch(pos int) {
	if pos >= 0 && pos < len(g.seq) {
		_ = g.seq[pos]
	}
}

// ContigAt returns the contig holding a position and the offset in it.
// ok is false for positions in padding or out of the genome.
func (g *Genome) ContigAt(pos int) (c Contig, offset int, ok bool) {
	if pos < 0 || pos >= len(g.seq) {
		return Contig{}, 0, false
	}
	i, ok := g.tree.AnyIntersection(pos, pos)
	if !ok {
		return Contig{}, 0, false
	}
	c = g.contigs[i]
	return c, pos - c.Start, true
}

// Destroy releases the sequence. The genome can not be used after it.
func (g *Genome) Destroy() {
	g.seq = nil
	g.destroyed = true
}

// Destroyed tells whether Destroy has been called.
func (g *Genome) Destroyed() bool { return g.destroyed }
