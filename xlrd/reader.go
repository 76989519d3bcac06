package xlrd

import (
	"io"

	"github.com/yamitzky/xlstream/biff"
)

// ReadFile decodes the workbook at path, an OLE2 .xls file or a bare BIFF
// stream, notifying h. Nil options mean DefaultOptions.
func ReadFile(path string, h RowHandler, options *Options) error {
	if options == nil {
		options = DefaultOptions()
	}
	if err := options.Validate(); err != nil {
		return err
	}
	f, err := biff.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return decodeFile(f, h, options)
}

// Read is ReadFile for a workbook held in r.
func Read(r io.ReaderAt, size int64, h RowHandler, options *Options) error {
	if options == nil {
		options = DefaultOptions()
	}
	if err := options.Validate(); err != nil {
		return err
	}
	f, err := biff.NewFile(r, size)
	if err != nil {
		return err
	}
	defer f.Close()
	return decodeFile(f, h, options)
}

func newTokenizer(f *biff.File, options *Options) (*biff.Tokenizer, error) {
	return biff.NewTokenizer(f.Workbook(), biff.Options{
		EncodingOverride: options.EncodingOverride,
		Logfile:          options.Logfile,
		Verbosity:        options.Verbosity,
	})
}

func decodeFile(f *biff.File, h RowHandler, options *Options) error {
	tok, err := newTokenizer(f, options)
	if err != nil {
		return err
	}
	return NewDecoder(h, options).Decode(tok)
}

// SheetNames returns the worksheet names of the workbook at path. Only the
// workbook globals are read.
func SheetNames(path string) ([]string, error) {
	f, err := biff.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok, err := newTokenizer(f, &Options{})
	if err != nil {
		return nil, err
	}

	names := []string{}
	for {
		rec, err := tok.Next()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return names, &SourceError{Err: err}
		}
		switch r := rec.(type) {
		case biff.SheetBoundary:
			names = append(names, r.Name)
		case biff.SheetStart, biff.EndOfStream:
			return names, nil
		}
	}
}
