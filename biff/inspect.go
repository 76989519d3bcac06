package biff

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"io"
	"strings"
)

// FileFormatDescriptions provides descriptions of the file types that can be inspected.
var FileFormatDescriptions = map[string]string{
	"xls":  "Excel xls",
	"biff": "bare BIFF stream",
	"xlsb": "Excel 2007 xlsb file",
	"xlsx": "Excel xlsx file",
	"ods":  "Openoffice.org ODS file",
	"zip":  "Unknown ZIP file",
	"":     "Unknown file type",
}

// XLS_SIGNATURE is the magic cookie that should appear in the first 8 bytes of an XLS file.
var XLS_SIGNATURE = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// ZIP_SIGNATURE is the magic cookie for ZIP files.
var ZIP_SIGNATURE = []byte("PK\x03\x04")

// PEEK_SIZE is the maximum size needed to peek at file signatures.
const PEEK_SIZE = 8

var bofcodes = map[uint16]bool{0x0809: true, 0x0409: true, 0x0209: true, 0x0009: true}

// InspectFormat reports the type of the content readable from r, as a key
// of FileFormatDescriptions. Zip containers are opened to tell the modern
// formats apart; anything else only needs the first PEEK_SIZE bytes.
func InspectFormat(r io.ReaderAt, size int64) (string, error) {
	peek := make([]byte, PEEK_SIZE)
	n, err := r.ReadAt(peek, 0)
	if err != nil && err != io.EOF {
		return "", err
	}
	peek = peek[:n]

	switch {
	case bytes.HasPrefix(peek, XLS_SIGNATURE):
		return "xls", nil
	case bytes.HasPrefix(peek, ZIP_SIGNATURE):
		return inspectZip(r, size)
	case len(peek) >= 4 && bofcodes[binary.LittleEndian.Uint16(peek)]:
		return "biff", nil
	}
	return "", nil
}

func inspectZip(r io.ReaderAt, size int64) (string, error) {
	zf, err := zip.NewReader(r, size)
	if err != nil {
		return "", err
	}
	// Some third party files use backslashes and odd casing in member names.
	names := make(map[string]bool, len(zf.File))
	for _, f := range zf.File {
		names[strings.ToLower(strings.ReplaceAll(f.Name, "\\", "/"))] = true
	}
	switch {
	case names["xl/workbook.xml"]:
		return "xlsx", nil
	case names["xl/workbook.bin"]:
		return "xlsb", nil
	case names["content.xml"]:
		return "ods", nil
	}
	return "zip", nil
}
