package biff

import (
	"fmt"
	"io"
	"os"

	"github.com/richardlehane/mscfb"
	"github.com/richardlehane/msoleps"
)

// File is an opened workbook container: either an OLE2 compound document
// holding a Workbook (BIFF8) or Book (BIFF5/7) stream, or a bare BIFF stream.
type File struct {
	// Format is the InspectFormat result, "xls" or "biff".
	Format string
	// StreamName is the compound document stream holding the workbook.
	StreamName string

	ra       io.ReaderAt
	size     int64
	workbook io.Reader
	closer   io.Closer
}

// Open opens the workbook file at path. The caller must Close it.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	file, err := NewFile(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	file.closer = f
	return file, nil
}

// NewFile opens a workbook container over ra.
func NewFile(ra io.ReaderAt, size int64) (*File, error) {
	format, err := InspectFormat(ra, size)
	if err != nil {
		return nil, err
	}
	file := &File{Format: format, ra: ra, size: size}
	switch format {
	case "xls":
		doc, err := mscfb.New(ra)
		if err != nil {
			return nil, &CompDocError{Message: "reading compound document", Err: err}
		}
		entry, err := locateWorkbook(doc)
		if err != nil {
			return nil, err
		}
		file.StreamName = entry.Name
		file.workbook = entry
	case "biff":
		file.workbook = io.NewSectionReader(ra, 0, size)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, FileFormatDescriptions[format])
	}
	return file, nil
}

// locateWorkbook prefers the BIFF8 "Workbook" stream over a BIFF5 "Book" one.
func locateWorkbook(doc *mscfb.Reader) (*mscfb.File, error) {
	var book *mscfb.File
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "Workbook":
			return entry, nil
		case "Book":
			if book == nil {
				book = entry
			}
		}
	}
	if book == nil {
		return nil, ErrNoWorkbookStream
	}
	return book, nil
}

// Workbook returns the BIFF record stream. It can be read once.
func (f *File) Workbook() io.Reader {
	return f.workbook
}

// Close releases the file opened by Open. Files from NewFile have nothing to release.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// Property is one entry of a document property set.
type Property struct {
	Set   string
	Name  string
	Value string
}

// Summary reads the SummaryInformation and DocumentSummaryInformation
// property sets of a compound document. Bare BIFF streams have none.
func (f *File) Summary() ([]Property, error) {
	if f.Format != "xls" {
		return nil, nil
	}
	doc, err := mscfb.New(f.ra)
	if err != nil {
		return nil, &CompDocError{Message: "reading compound document", Err: err}
	}
	var out []Property
	props := msoleps.New()
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if !msoleps.IsMSOLEPS(entry.Initial) {
			continue
		}
		if err := props.Reset(doc); err != nil {
			return out, &CompDocError{Message: "reading property set " + entry.Name, Err: err}
		}
		for _, p := range props.Property {
			out = append(out, Property{Set: entry.Name, Name: p.Name, Value: p.String()})
		}
	}
	return out, nil
}
