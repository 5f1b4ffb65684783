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
	"io"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

func init() {
	seq.ValidateSeq = false
}

// FromFastxFiles reads all FASTA/Q records of the files, in order,
// into a genome. Gzip-, xz-, zstd- and bzip2-compressed files are supported.
// Empty records are skipped.
func FromFastxFiles(files []string, padding int) (*Genome, error) {
	g, err := New(padding)
	if err != nil {
		return nil, err
	}

	var record *fastx.Record
	for _, file := range files {
		fastxReader, err := fastx.NewReader(nil, file, "")
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read seq file: %s", file)
		}

		var i int
		for {
			record, err = fastxReader.Read()
			if err != nil {
				if err == io.EOF {
					break
				}
				fastxReader.Close()
				return nil, errors.Wrapf(err, "read seq %d in %s", i, file)
			}
			i++

			if len(record.Seq.Seq) == 0 {
				continue
			}

			err = g.AddContig(string(record.ID), record.Seq.Seq)
			if err != nil {
				fastxReader.Close()
				return nil, errors.Wrapf(err, "add seq %s in %s", record.ID, file)
			}
		}
		fastxReader.Close()
	}

	if g.NumContigs() == 0 {
		return nil, ErrEmptySeq
	}

	return g, nil
}
