package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/yamitzky/xlstream/biff"
	"github.com/yamitzky/xlstream/xlrd"
)

var version = "dev"

type options struct {
	sheet          int
	format         string
	delimiter      rune
	lineTerminator string
	dateFormat     string
	floatFormat    string
	formulas       bool
	formulaStrings bool
	ignoreEmpty    bool
	escape         bool
	sheetDelimiter string
	quoting        quotingMode
	encoding       string
	outputEncoding encoding.Encoding
	verbose        int
}

// flagValues holds the raw flag strings parsed into options.
type flagValues struct {
	delimiter      string
	lineTerminator string
	quoting        string
	sheetDelimiter string
	outputEncoding string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdin)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "xls2csv:", err)
		return 1
	}
	return 0
}

func newRootCmd(stdin io.Reader) *cobra.Command {
	var opts options
	var raw flagValues

	rootCmd := &cobra.Command{
		Use:   "xls2csv [flags] <input.xls> [output]",
		Short: "Stream the sheets of a legacy Excel workbook to CSV, JSON lines or Parquet",
		Long: `xls2csv reads a BIFF (.xls) workbook in a single forward pass and writes
its rows as they are decoded. Use '-' as input to read from STDIN; the output
defaults to STDOUT. A directory input converts every .xls file it holds.`,
		Args:          cobra.RangeArgs(1, 2),
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.parse(raw); err != nil {
				return err
			}
			output := ""
			if len(args) > 1 && args[1] != "-" {
				output = args[1]
			}
			return convert(args[0], output, opts, stdin, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.Flags()
	flags.IntVarP(&opts.sheet, "sheet", "s", 1, "sheet number to convert, 0 for all")
	flags.StringVarP(&opts.format, "format", "f", "csv", "output format: csv, jsonl or parquet")
	flags.StringVarP(&raw.delimiter, "delimiter", "d", ",", "column delimiter, 'tab' or 'x09' for a tab")
	flags.StringVarP(&raw.quoting, "quoting", "q", "minimal", "field quoting: none, minimal, nonnumeric or all")
	flags.StringVarP(&raw.lineTerminator, "lineterminator", "l", "", `line terminator, '\n' '\r\n' or '\r' (default: os line separator)`)
	flags.StringVar(&opts.dateFormat, "dateformat", "", "override date/time format (ex. %Y/%m/%d)")
	flags.StringVar(&opts.floatFormat, "floatformat", "", "override float format (ex. %.15f)")
	flags.BoolVar(&opts.formulas, "formulas", false, "write formula text instead of formula results")
	flags.BoolVar(&opts.formulaStrings, "formula-strings", false, "write string results of formulas")
	flags.BoolVarP(&opts.ignoreEmpty, "ignoreempty", "i", false, "skip empty lines")
	flags.BoolVarP(&opts.escape, "escape", "e", false, `escape \r\n\t characters`)
	flags.StringVarP(&raw.sheetDelimiter, "sheetdelimiter", "p", defaultSheetDelimiter, "prefix of the line naming each sheet when all sheets are converted, '' for none")
	flags.StringVar(&opts.encoding, "encoding", "", "codepage override for BIFF5/7 files (ex. cp1252)")
	flags.StringVarP(&raw.outputEncoding, "outputencoding", "c", "utf-8", "text output encoding (ex. cp1252)")
	flags.CountVarP(&opts.verbose, "verbose", "v", "log decoding diagnostics to stderr, repeat for more")

	rootCmd.AddCommand(newInfoCmd(), newDumpCmd(), newRefsCmd())
	return rootCmd
}

func (o *options) parse(raw flagValues) error {
	var err error
	if o.sheet < 0 {
		return fmt.Errorf("invalid sheet number %d", o.sheet)
	}
	switch o.format {
	case "csv", "jsonl", "parquet":
	default:
		return fmt.Errorf("unsupported format: %s", o.format)
	}
	if o.formulas && o.formulaStrings {
		return fmt.Errorf("cannot combine --formulas with --formula-strings")
	}
	if o.delimiter, err = parseDelimiter(raw.delimiter); err != nil {
		return fmt.Errorf("invalid delimiter: %w", err)
	}
	if o.quoting, err = parseQuoting(raw.quoting); err != nil {
		return fmt.Errorf("invalid quoting: %w", err)
	}
	o.lineTerminator = osLineSep()
	if raw.lineTerminator != "" {
		if o.lineTerminator, err = parseEscapedString(raw.lineTerminator); err != nil {
			return fmt.Errorf("invalid line terminator: %w", err)
		}
	}
	if o.sheetDelimiter, err = parseSheetDelimiter(raw.sheetDelimiter); err != nil {
		return fmt.Errorf("invalid sheet delimiter: %w", err)
	}
	switch name := strings.ToLower(raw.outputEncoding); name {
	case "", "utf-8", "utf8":
		o.outputEncoding = nil
	default:
		enc, ok := biff.LookupEncoding(name)
		if !ok {
			return fmt.Errorf("unsupported output encoding: %s", raw.outputEncoding)
		}
		o.outputEncoding = enc
	}
	return nil
}

func (o options) decodeOptions(logfile io.Writer) *xlrd.Options {
	sheet := xlrd.AllSheets
	if o.sheet > 0 {
		sheet = o.sheet - 1
	}
	return &xlrd.Options{
		SheetIndex:           sheet,
		FormulaText:          o.formulas,
		FormulaStringResults: o.formulaStrings,
		EncodingOverride:     o.encoding,
		Logfile:              logfile,
		Verbosity:            o.verbose,
	}
}

func convert(input, output string, opts options, stdin io.Reader, stdout, stderr io.Writer) error {
	if input == "-" {
		content, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		f, err := biff.NewFile(bytes.NewReader(content), int64(len(content)))
		if err != nil {
			return err
		}
		defer f.Close()
		return convertFile(f, output, opts, stdout, stderr)
	}

	info, err := os.Stat(input)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return convertDir(input, output, opts, stderr)
	}
	f, err := biff.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()
	return convertFile(f, output, opts, stdout, stderr)
}

func convertDir(inputDir, outputDir string, opts options, stderr io.Writer) error {
	if outputDir == "" {
		outputDir = inputDir
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return err
	}
	found := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		inputPath := filepath.Join(inputDir, entry.Name())
		f, err := biff.Open(inputPath)
		if err != nil {
			// Not a workbook this tool reads.
			continue
		}
		found = true
		outputPath := filepath.Join(outputDir, changeExt(entry.Name(), "."+opts.format))
		err = convertFile(f, outputPath, opts, nil, stderr)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", inputPath, err)
		}
	}
	if !found {
		return fmt.Errorf("no xls files found in %s", inputDir)
	}
	return nil
}

func convertFile(f *biff.File, output string, opts options, stdout, stderr io.Writer) error {
	if opts.format == "parquet" && output == "" {
		return fmt.Errorf("parquet output needs an output path")
	}

	w := stdout
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	bw := bufio.NewWriter(w)

	var out io.Writer = bw
	var tw *transform.Writer
	if opts.outputEncoding != nil && opts.format != "parquet" {
		tw = transform.NewWriter(bw, encoding.ReplaceUnsupported(opts.outputEncoding.NewEncoder()))
		out = tw
	}
	s := newSink(out, opts)
	if err := decode(f, s, opts, stderr); err != nil {
		return err
	}
	if err := s.Close(); err != nil {
		return err
	}
	if tw != nil {
		if err := tw.Close(); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func decode(f *biff.File, s sink, opts options, stderr io.Writer) error {
	decodeOpts := opts.decodeOptions(stderr)
	if err := decodeOpts.Validate(); err != nil {
		return err
	}
	tok, err := biff.NewTokenizer(f.Workbook(), biff.Options{
		EncodingOverride: opts.encoding,
		Logfile:          stderr,
		Verbosity:        opts.verbose,
	})
	if err != nil {
		return err
	}
	dec := xlrd.NewDecoder(s, decodeOpts)
	s.attach(dec)
	return dec.Decode(tok)
}

func changeExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}
