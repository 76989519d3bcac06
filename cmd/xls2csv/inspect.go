package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yamitzky/xlstream/biff"
	"github.com/yamitzky/xlstream/xlrd"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <input.xls>",
		Short: "Print the sheet names and document properties of a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printInfo(args[0], cmd.OutOrStdout())
		},
	}
}

func printInfo(path string, w io.Writer) error {
	names, err := xlrd.SheetNames(path)
	if err != nil {
		return err
	}
	f, err := biff.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(w, "format: %s\n", biff.FileFormatDescriptions[f.Format])
	if f.StreamName != "" {
		fmt.Fprintf(w, "stream: %s\n", f.StreamName)
	}
	for i, name := range names {
		fmt.Fprintf(w, "sheet %d: %s\n", i+1, name)
	}
	props, err := f.Summary()
	if err != nil {
		return err
	}
	for _, p := range props {
		fmt.Fprintf(w, "%s/%s: %s\n", strings.TrimLeft(p.Set, "\x05"), p.Name, p.Value)
	}
	return nil
}

func newDumpCmd() *cobra.Command {
	var count, unnumbered bool
	cmd := &cobra.Command{
		Use:   "dump <input.xls>",
		Short: "Print the raw BIFF records of the workbook stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := biff.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			w := bufio.NewWriter(cmd.OutOrStdout())
			if count {
				err = biff.CountRecords(f.Workbook(), w)
			} else {
				err = biff.Dump(f.Workbook(), w, unnumbered)
			}
			if err != nil {
				return err
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVarP(&count, "count", "c", false, "count records by opcode instead of dumping them")
	cmd.Flags().BoolVarP(&unnumbered, "unnumbered", "u", false, "omit offsets in the hex dump")
	return cmd
}

func newRefsCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "refs <input.xls>",
		Short: "List every formula with the cells and ranges it references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := biff.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			opts.formulas = true
			w := bufio.NewWriter(cmd.OutOrStdout())
			s := &refsSink{w: w}
			if err := decode(f, s, opts, cmd.ErrOrStderr()); err != nil {
				return err
			}
			if err := s.Close(); err != nil {
				return err
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&opts.encoding, "encoding", "", "codepage override for BIFF5/7 files (ex. cp1252)")
	cmd.Flags().CountVarP(&opts.verbose, "verbose", "v", "log decoding diagnostics to stderr, repeat for more")
	return cmd
}

// refsSink writes one tab separated line per formula cell.
type refsSink struct {
	sinkBase
	w io.Writer
}

func (s *refsSink) HandleCell(sheet, row, col int, v xlrd.Value, f *biff.Format) {
	if s.err != nil || v.Type != xlrd.XL_CELL_FORMULA {
		return
	}
	cell := xlrd.QuotedSheetName(s.sheetName()) + "!" + xlrd.CellName(row, col)
	refs := strings.Join(xlrd.FormulaRefs(v.Text), " ")
	_, s.err = fmt.Fprintf(s.w, "%s\t=%s\t%s\n", cell, v.Text, refs)
}

func (s *refsSink) HandleRow(sheet, row int, values []xlrd.Value) {}

func (s *refsSink) Close() error { return s.err }
