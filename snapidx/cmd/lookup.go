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

package cmd

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HibberdLab/snap/snapidx/cmd/genomeindex"
	"github.com/HibberdLab/snap/snapidx/cmd/seed"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Look up positions of seeds in an index",
	Long: `Look up positions of seeds in an index

Input:
  Seeds can be given via positional arguments, or a file with one seed
  per line via the flag -f/--seed-file. Seeds should have the same length
  as the index, and contain only A, C, G, and T (case ignored).

Output (TSV format):
  1. seed,     the query seed.
  2. strand,   "+" for the seed, "-" for its reverse complement.
  3. pos,      0-based position in the concatenated genome.
  4. contig,   the contig containing the position.
  5. offset,   0-based position in the contig.

  Positions of a seed are listed in descending order.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}
		verbose := opt.Verbose || opt.Log2File
		timeStart := time.Now()
		defer func() {
			if verbose {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		// ---------------------------------------------------------------
		// flags

		dbDir := expandPath(getFlagString(cmd, "index"))
		if dbDir == "" {
			checkError(fmt.Errorf("flag -d/--index needed"))
		}
		outFile := expandPath(getFlagString(cmd, "out-file"))
		seedFile := expandPath(getFlagString(cmd, "seed-file"))
		noRC := getFlagBool(cmd, "no-rc")

		ranged := cmd.Flags().Changed("min-loc") || cmd.Flags().Changed("max-loc")
		minLoc := getFlagUint32(cmd, "min-loc")
		maxLoc := getFlagUint32(cmd, "max-loc")
		if minLoc > maxLoc {
			checkError(fmt.Errorf("value of --min-loc (%d) should not be greater than --max-loc (%d)", minLoc, maxLoc))
		}

		queries := make([]string, 0, len(args))
		queries = append(queries, args...)
		if seedFile != "" {
			lines, err := readLines(seedFile)
			checkError(errors.Wrapf(err, "read seed file: %s", seedFile))
			queries = append(queries, lines...)
		}
		if len(queries) == 0 {
			checkError(fmt.Errorf("no seeds given"))
		}

		// ---------------------------------------------------------------
		// index

		if verbose {
			log.Infof("loading index: %s", dbDir)
		}
		timeStart1 := time.Now()
		idx, err := genomeindex.LoadFromDirectory(filepath.Clean(dbDir))
		checkError(err)
		if verbose {
			log.Infof("  index loaded in %s: %s", time.Since(timeStart1), idx)
			log.Info()
		}
		g := idx.Genome()

		// ---------------------------------------------------------------
		// lookup

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		fmt.Fprintln(outfh, "seed\tstrand\tpos\tcontig\toffset")

		output := func(query string, strand byte, hits []uint32) {
			for _, pos := range hits {
				c, offset, ok := g.ContigAt(int(pos))
				if ok {
					fmt.Fprintf(outfh, "%s\t%c\t%d\t%s\t%d\n", query, strand, pos, c.Name, offset)
				} else {
					fmt.Fprintf(outfh, "%s\t%c\t%d\t\t\n", query, strand, pos)
				}
			}
		}

		var nHits, nMatched int
		var hits, rcHits []uint32
		for _, query := range queries {
			s, err := seed.FromBytes([]byte(query))
			if err != nil {
				log.Warningf("skip invalid seed %s: %s", query, err)
				continue
			}
			if s.Len() != idx.SeedLen() {
				log.Warningf("skip seed %s: length %d != %d", query, s.Len(), idx.SeedLen())
				continue
			}
			query = s.String()

			switch {
			case noRC && ranged:
				hits, rcHits = idx.LookupSeedForwardInRange(s, minLoc, maxLoc), nil
			case noRC:
				hits, rcHits = idx.LookupSeedForward(s), nil
			case ranged:
				hits, rcHits = idx.LookupSeedInRange(s, minLoc, maxLoc)
			default:
				hits, rcHits = idx.LookupSeed(s)
			}

			output(query, '+', hits)
			output(query, '-', rcHits)

			if len(hits)+len(rcHits) > 0 {
				nMatched++
				nHits += len(hits) + len(rcHits)
			}
		}

		if verbose {
			log.Infof("%s of %s seeds matched, %s hits in total",
				humanize.Comma(int64(nMatched)), humanize.Comma(int64(len(queries))), humanize.Comma(int64(nHits)))
			if outFile != "-" {
				log.Infof("results saved to: %s", outFile)
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().StringP("index", "d", "",
		formatFlagUsage(`Index directory created by "snapidx index".`))

	lookupCmd.Flags().StringP("seed-file", "f", "",
		formatFlagUsage(`File of seeds, one seed per line.`))

	lookupCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports and recommends a ".gz" suffix ("-" for stdout).`))

	lookupCmd.Flags().BoolP("no-rc", "", false,
		formatFlagUsage(`Do not look up the reverse complement of seeds.`))

	lookupCmd.Flags().Uint32P("min-loc", "", 0,
		formatFlagUsage(`Only output positions >= this value.`))

	lookupCmd.Flags().Uint32P("max-loc", "", math.MaxUint32,
		formatFlagUsage(`Only output positions <= this value.`))

	lookupCmd.SetUsageTemplate(usageTemplate("{ -d <index dir> } [-f <seed file>] [seeds ...]"))
}
