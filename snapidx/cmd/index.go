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
	"regexp"
	"time"

	"github.com/HibberdLab/snap/snapidx/cmd/genome"
	"github.com/HibberdLab/snap/snapidx/cmd/genomeindex"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Generate a seed index from FASTA/Q sequences",
	Long: `Generate a seed index from FASTA/Q sequences

Input:
  1. Input plain or gzipped FASTA/Q files can be given via positional
     arguments or the flag -X/--infile-list with the list of input files,
  2. Or a directory containing sequence files via the flag -I/--in-dir,
     with multiple-level sub-directories allowed. A regular expression
     for matching sequencing files is available via the flag -r/--file-regexp.

  All sequences are concatenated into one reference genome, in the order
  of files and then sequences, with --padding Ns before every sequence.
  Bases other than A, C, G, and T are saved as N, and seeds containing
  Ns are not indexed.

Index size:
  Seeds are split into 2^(2*seed-len - 8*key-size) hash tables, which
  should not exceed 2^20. Each distinct seed takes one slot of
  (key-size + 8) bytes, and every position of a repeated seed takes
  4 bytes in the overflow table.

Attentions:
  1. The overflow table is allocated with an estimated capacity,
     i.e., --overflow-factor * (#repeated positions + a small margin).
     Increase --overflow-factor if the building fails with
     "overflow table full", which might happen with --exact and
     highly repetitive genomes.
  2. An existing output directory is only replaced after the new index
     is completely written.

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
		// basic flags

		seedLen := getFlagPositiveInt(cmd, "seed-len")
		keySize := getFlagPositiveInt(cmd, "key-size")
		slack := getFlagNonNegativeFloat64(cmd, "slack")
		noBias := getFlagBool(cmd, "no-bias")
		exact := getFlagBool(cmd, "exact")
		factor := getFlagPositiveInt(cmd, "overflow-factor")
		padding := getFlagNonNegativeInt(cmd, "padding")

		outDir := expandPath(getFlagString(cmd, "out-dir"))
		force := getFlagBool(cmd, "force")
		compress := getFlagBool(cmd, "compress")
		histFile := expandPath(getFlagString(cmd, "histogram"))
		skipFileCheck := getFlagBool(cmd, "skip-file-check")

		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir is needed"))
		}

		var err error

		inDir := expandPath(getFlagString(cmd, "in-dir"))

		outDir = filepath.Clean(outDir)

		if filepath.Clean(inDir) == outDir {
			checkError(fmt.Errorf("intput and output paths should not be the same: %s", outDir))
		}

		readFromDir := inDir != ""
		if readFromDir {
			var isDir bool
			isDir, err = pathutil.IsDir(inDir)
			if err != nil {
				checkError(errors.Wrapf(err, "checking -I/--in-dir"))
			}
			if !isDir {
				checkError(fmt.Errorf("value of -I/--in-dir should be a directory: %s", inDir))
			}
		}

		reFileStr := getFlagString(cmd, "file-regexp")
		var reFile *regexp.Regexp
		if reFileStr != "" {
			if !reIgnoreCase.MatchString(reFileStr) {
				reFileStr = reIgnoreCaseStr + reFileStr
			}
			reFile, err = regexp.Compile(reFileStr)
			checkError(errors.Wrapf(err, "failed to parse regular expression for matching file: %s", reFileStr))
		} else if readFromDir {
			checkError(fmt.Errorf("flag -r/--file-regexp needed for -I/--in-dir"))
		}

		// ---------------------------------------------------------------
		// options for building index

		bopt := &genomeindex.BuildOptions{
			SeedLen:             seedLen,
			HashTableKeySize:    keySize,
			Slack:               slack,
			ComputeBias:         !noBias,
			ForceExact:          exact,
			OverflowTableFactor: uint64(factor),
			ChromosomePadding:   padding,
			MaxThreads:          opt.NumCPUs,
			HistogramFile:       histFile,
			Compress:            compress,
			Force:               force,
			Verbose:             verbose,
		}
		// the genome is checked after being loaded
		checkError(genomeindex.CheckBuildOptions(nil, bopt))

		if !force {
			existed, err := pathutil.DirExists(outDir)
			checkError(errors.Wrap(err, outDir))
			if existed {
				empty, err := pathutil.IsEmpty(outDir)
				checkError(errors.Wrap(err, outDir))
				if !empty {
					checkError(fmt.Errorf("output directory not empty: %s, use --force to overwrite", outDir))
				}
			}
		}

		// ---------------------------------------------------------------
		// input files

		if verbose {
			log.Infof("snapidx v%s", VERSION)
			log.Info()

			log.Info("checking input files ...")
		}

		var files []string
		if readFromDir {
			files, err = getFileListFromDir(inDir, reFile, opt.NumCPUs)
			if err != nil {
				checkError(errors.Wrapf(err, "walking dir: %s", inDir))
			}
			if len(files) == 0 {
				log.Warningf("  no files matching regular expression: %s", reFileStr)
			}
		} else {
			files = getFileListFromArgsAndFile(cmd, args, !skipFileCheck, "infile-list")
			if verbose {
				if len(files) == 1 && isStdin(files[0]) {
					log.Info("  no files given, reading from stdin")
				}
			}
		}
		if len(files) < 1 {
			checkError(fmt.Errorf("FASTA/Q files needed"))
		} else if verbose {
			log.Infof("  %d input file(s) given", len(files))
		}

		// ---------------------------------------------------------------
		// log

		if verbose {
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
			log.Info("input and output:")
			log.Infof("  input directory: %s", inDir)
			log.Infof("    regular expression of input files: %s", reFileStr)
			log.Infof("  output directory: %s", outDir)
			log.Infof("  compress index files: %v", compress)
			log.Info()
			log.Infof("seed length: %d", seedLen)
			log.Infof("hash table key size: %d bytes", keySize)
			log.Infof("hash table slack: %.2f", slack)
			log.Infof("computing per-table sizes: %v (exact counting: %v)", !noBias, exact)
			log.Infof("overflow table factor: %d", factor)
			log.Infof("chromosome padding: %d", padding)
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
			log.Infof("reading sequences ...")
		}

		// ---------------------------------------------------------------
		// genome

		timeStart1 := time.Now()
		g, err := genome.FromFastxFiles(files, padding)
		checkError(err)
		if verbose {
			log.Infof("  %s contigs with %s bases (padding included) loaded in %s",
				humanize.Comma(int64(g.NumContigs())), humanize.Comma(int64(g.Len())), time.Since(timeStart1))
			log.Info()
			log.Infof("building index ...")
		}

		// ---------------------------------------------------------------
		// index

		err = genomeindex.BuildIndexToDirectory(g, outDir, bopt)
		if err != nil {
			checkError(fmt.Errorf("failed to create a new index: %s", err))
		}

		if verbose {
			log.Infof("finished building the index in %s from %d files", time.Since(timeStart), len(files))
			log.Info()
			log.Infof("index saved: %s", outDir)
			if histFile != "" {
				log.Infof("histogram saved: %s", histFile)
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(indexCmd)

	// -----------------------------  input  -----------------------------

	indexCmd.Flags().StringP("in-dir", "I", "",
		formatFlagUsage(`Directory containing FASTA/Q files. Directory symlinks are followed.`))

	indexCmd.Flags().StringP("file-regexp", "r", `\.(f[aq](st[aq])?|fna)(.gz)?$`,
		formatFlagUsage(`Regular expression for matching sequence files in -I/--in-dir, case ignored.`))

	indexCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of input file list (one file per line). If given, they are appended to files from CLI arguments.`))

	indexCmd.Flags().BoolP("skip-file-check", "S", false,
		formatFlagUsage(`Skip input file checking when given files or a file list.`))

	// -----------------------------  output  -----------------------------

	indexCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory.`))

	indexCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existed output directory.`))

	indexCmd.Flags().BoolP("compress", "", false,
		formatFlagUsage(`Gzip the hash tables, overflow table, and genome files.`))

	indexCmd.Flags().StringP("histogram", "", "",
		formatFlagUsage(`Write the histogram of seed occurrences and hash table occupancy to a file `+
			`(plain text, or an image for .png/.svg/.pdf/.jpg files).`))

	// -----------------------------  seeds   -----------------------------

	indexCmd.Flags().IntP("seed-len", "s", 20,
		formatFlagUsage(`Seed length, in range of [1, 32].`))

	indexCmd.Flags().IntP("key-size", "", 4,
		formatFlagUsage(`Key size (bytes) of hash tables, in range of [1, 8].`))

	indexCmd.Flags().Float64P("slack", "", 0.3,
		formatFlagUsage(`Extra room of hash tables, relative to the number of distinct seeds.`))

	indexCmd.Flags().BoolP("no-bias", "B", false,
		formatFlagUsage(`Do not count seeds of each hash table before allocating, assuming seeds are uniformly distributed.`))

	indexCmd.Flags().BoolP("exact", "", false,
		formatFlagUsage(`Count distinct seeds exactly rather than with HyperLogLog, which needs more memory.`))

	indexCmd.Flags().IntP("overflow-factor", "", 2,
		formatFlagUsage(`Multiplier of the estimated capacity of the overflow table.`))

	indexCmd.Flags().IntP("padding", "", genome.DefaultPadding,
		formatFlagUsage(`Number of Ns added before every sequence.`))

	indexCmd.SetUsageTemplate(usageTemplate("{ -O <out dir> } [-I <seqs dir>] | <seq files> | -X <file list>"))
}
