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

import "github.com/HibberdLab/snap/snapidx/cmd/seed"

// scanStats are counted by each worker and summed after all workers finish.
type scanStats struct {
	Positions  int // seed start positions scanned
	ValidSeeds int
	NoBase     int // windows with unresolved bases
}

func (s *scanStats) add(o scanStats) {
	s.Positions += o.Positions
	s.ValidSeeds += o.ValidSeeds
	s.NoBase += o.NoBase
}

// scanRegion calls fn for every seed starting in [start, end) whose bases
// are all A, C, G or T. Each base is read once, the code is rolled and
// the number of resolved bases since the last unresolved one is tracked.
// It stops at the first error of fn.
func scanRegion(seq []byte, start, end, k int, fn func(code uint64, pos int) error) (scanStats, error) {
	var st scanStats
	if last := len(seq) - k + 1; end > last {
		end = last
	}
	if start < 0 {
		start = 0
	}
	if start >= end {
		return st, nil
	}

	var mask uint64 = 1<<64 - 1
	if k < 32 {
		mask = 1<<(uint(k)<<1) - 1
	}

	var code, c uint64
	var ok bool
	var resolved, pos int
	var err error
	for j := start; j < end+k-1; j++ {
		c, ok = seed.Base2Bit(seq[j])
		if ok {
			code = (code<<2 | c) & mask
			resolved++
		} else {
			code = 0
			resolved = 0
		}

		pos = j - k + 1
		if pos < start {
			continue
		}
		st.Positions++
		if resolved < k {
			st.NoBase++
			continue
		}
		st.ValidSeeds++
		if err = fn(code, pos); err != nil {
			return st, err
		}
	}
	return st, nil
}

// splitGenome splits n seed positions into at most threads contiguous chunks.
func splitGenome(n, threads int) [][2]int {
	if n <= 0 {
		return nil
	}
	if threads < 1 {
		threads = 1
	}
	if threads > n {
		threads = n
	}
	size := (n + threads - 1) / threads
	chunks := make([][2]int, 0, threads)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		chunks = append(chunks, [2]int{start, end})
	}
	return chunks
}
