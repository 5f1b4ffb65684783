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
	"os"
	"path/filepath"
	"time"

	"github.com/HibberdLab/snap/snapidx/cmd/genomeindex"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print information of an index",
	Long: `Print information of an index

By default, the whole index is loaded for summarizing occupancy of
hash tables. Use -b/--basic for printing the metadata only.

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

		dbDir := expandPath(getFlagString(cmd, "index"))
		if dbDir == "" {
			checkError(fmt.Errorf("flag -d/--index needed"))
		}
		dbDir = filepath.Clean(dbDir)
		basic := getFlagBool(cmd, "basic")
		histFile := expandPath(getFlagString(cmd, "histogram"))

		info, err := genomeindex.ReadInfo(filepath.Join(dbDir, genomeindex.FileInfo))
		checkError(err)

		fmt.Printf("index format:          v%d.%d\n", info.MajorVersion, info.MinorVersion)
		fmt.Printf("created at:            %s\n", info.CreatedAt.Format(time.RFC3339))
		fmt.Printf("seed length:           %d\n", info.SeedLen)
		fmt.Printf("hash table key size:   %d bytes\n", info.HashTableKeySize)
		fmt.Printf("hash tables:           %s\n", humanize.Comma(int64(info.NumHashTables)))
		fmt.Printf("overflow table size:   %s\n", humanize.Comma(int64(info.OverflowTableSize)))
		fmt.Printf("genome length:         %s\n", humanize.Comma(int64(info.GenomeLength)))
		fmt.Printf("contigs:               %s\n", humanize.Comma(int64(info.NumContigs)))
		fmt.Printf("chromosome padding:    %d\n", info.ChromosomePadding)
		fmt.Printf("seeds occurring once:  %s\n", humanize.Comma(int64(info.NumDirectSeeds)))
		fmt.Printf("repeated seeds:        %s\n", humanize.Comma(int64(info.NumOverflowSeeds)))
		fmt.Printf("compressed:            %v\n", info.Compressed)
		fmt.Printf("slack:                 %.2f\n", info.Slack)
		fmt.Printf("overflow table factor: %d\n", info.OverflowTableFactor)
		fmt.Printf("per-table sizing:      %v (exact: %v)\n", info.ComputeBias, info.ForceExact)

		if basic && histFile == "" {
			return
		}

		if verbose {
			log.Infof("loading index: %s", dbDir)
		}
		idx, err := genomeindex.LoadFromDirectory(dbDir)
		checkError(err)

		if !basic {
			s := idx.Summary()
			fmt.Println()
			fmt.Printf("hash table slots:      %s\n", humanize.Comma(int64(s.Slots)))
			fmt.Printf("keys per table:        mean %.2f, sd %.2f\n", s.MeanKeys, s.SDKeys)
			fmt.Printf("max load factor:       %.4f\n", s.MaxLoad)
		}

		if histFile != "" {
			checkError(idx.WriteHistogram(histFile))
			if verbose {
				log.Infof("histogram saved: %s", histFile)
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringP("index", "d", "",
		formatFlagUsage(`Index directory created by "snapidx index".`))

	infoCmd.Flags().BoolP("basic", "b", false,
		formatFlagUsage(`Only print the metadata, without loading the index.`))

	infoCmd.Flags().StringP("histogram", "", "",
		formatFlagUsage(`Write the histogram of seed occurrences and hash table occupancy to a file `+
			`(plain text, or an image for .png/.svg/.pdf/.jpg files).`))

	infoCmd.SetUsageTemplate(usageTemplate("{ -d <index dir> }"))
}
