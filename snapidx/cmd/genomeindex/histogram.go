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
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// OccupancySummary summarizes the number of keys of all hash tables.
type OccupancySummary struct {
	Tables   int
	Keys     int
	Slots    int
	MeanKeys float64
	SDKeys   float64
	MaxLoad  float64 // the largest keys/slots of a table
}

// Summary summarizes occupancy of hash tables.
func (idx *GenomeIndex) Summary() OccupancySummary {
	stats := idx.Stats()
	keys := make([]float64, len(stats))
	var s OccupancySummary
	s.Tables = len(stats)
	var load float64
	for i, t := range stats {
		keys[i] = float64(t.Keys)
		s.Keys += t.Keys
		s.Slots += t.Slots
		if load = float64(t.Keys) / float64(t.Slots); load > s.MaxLoad {
			s.MaxLoad = load
		}
	}
	if len(keys) > 0 {
		s.MeanKeys, s.SDKeys = stat.MeanStdDev(keys, nil)
	}
	return s
}

// OccurrenceHistogram returns the number of seeds for each number of
// occurrences, sorted by occurrences.
func (idx *GenomeIndex) OccurrenceHistogram() [][2]int {
	m := make(map[int]int, 64)
	for _, t := range idx.tables {
		t.Walk(func(_ int, _, v uint64) bool {
			s := Slot(v)
			if s.Kind() == Overflow {
				_, count := s.Run()
				m[int(count)]++
			} else {
				m[1]++
			}
			return true
		})
	}
	hist := make([][2]int, 0, len(m))
	for n, c := range m {
		hist = append(hist, [2]int{n, c})
	}
	sort.Slice(hist, func(i, j int) bool { return hist[i][0] < hist[j][0] })
	return hist
}

var plotExts = map[string]struct{}{".png": {}, ".svg": {}, ".pdf": {}, ".jpg": {}, ".jpeg": {}}

// WriteHistogram writes the histogram of seed occurrences and per-table
// occupancy as plain text (gzipped for .gz files), or plots the number
// of keys of hash tables if the file is an image.
func (idx *GenomeIndex) WriteHistogram(file string) error {
	if _, ok := plotExts[strings.ToLower(filepath.Ext(file))]; ok {
		return idx.plotOccupancy(file)
	}

	outfh, err := xopen.Wopen(file)
	if err != nil {
		return errors.Wrapf(err, "write histogram: %s", file)
	}

	s := idx.Summary()
	fmt.Fprintf(outfh, "# hash tables: %d, keys: %d, slots: %d\n", s.Tables, s.Keys, s.Slots)
	fmt.Fprintf(outfh, "# keys per table: mean %.2f, sd %.2f, max load %.4f\n", s.MeanKeys, s.SDKeys, s.MaxLoad)
	fmt.Fprintf(outfh, "occurrences\tseeds\n")
	for _, h := range idx.OccurrenceHistogram() {
		fmt.Fprintf(outfh, "%d\t%d\n", h[0], h[1])
	}

	fmt.Fprintf(outfh, "\ntable\tkeys\tslots\tdirect\trepeated\n")
	for i, t := range idx.Stats() {
		fmt.Fprintf(outfh, "%d\t%d\t%d\t%d\t%d\n", i, t.Keys, t.Slots, t.Direct, t.Repeated)
	}

	return outfh.Close()
}

func (idx *GenomeIndex) plotOccupancy(file string) error {
	stats := idx.Stats()
	values := make(plotter.Values, len(stats))
	for i, t := range stats {
		values[i] = float64(t.Keys)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("keys of %d hash tables", len(stats))
	p.X.Label.Text = "keys"
	p.Y.Label.Text = "tables"

	bins := 50
	if len(values) < bins {
		bins = len(values)
	}
	h, err := plotter.NewHist(values, bins)
	if err != nil {
		return errors.Wrap(err, "plot histogram")
	}
	p.Add(h)

	err = p.Save(6*vg.Inch, 4*vg.Inch, file)
	if err != nil {
		return errors.Wrapf(err, "save histogram plot: %s", file)
	}
	return nil
}
