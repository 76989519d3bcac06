package biff

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// RawRecord is one undecoded record of a BIFF stream.
type RawRecord struct {
	Offset int64
	Code   uint16
	Data   []byte
}

// Reader splits a BIFF stream into raw records. It never seeks.
type Reader struct {
	r      *bufio.Reader
	offset int64
	hdr    [4]byte
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next record, or io.EOF once the stream is exhausted.
// A zero header is treated as the end of data: compound file streams are
// padded with zeros up to the sector size.
func (r *Reader) Next() (RawRecord, error) {
	offset := r.offset
	n, err := io.ReadFull(r.r, r.hdr[:])
	r.offset += int64(n)
	if err == io.EOF {
		return RawRecord{}, io.EOF
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return RawRecord{}, &RecordError{Offset: offset, Err: ErrTruncatedRecord}
	}
	if err != nil {
		return RawRecord{}, &RecordError{Offset: offset, Err: err}
	}

	code := binary.LittleEndian.Uint16(r.hdr[0:2])
	length := int(binary.LittleEndian.Uint16(r.hdr[2:4]))
	if code == 0 && length == 0 {
		return RawRecord{}, io.EOF
	}

	data := make([]byte, length)
	n, err = io.ReadFull(r.r, data)
	r.offset += int64(n)
	if err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncatedRecord
		}
		return RawRecord{}, &RecordError{Offset: offset, Code: code, Err: err}
	}
	return RawRecord{Offset: offset, Code: code, Data: data}, nil
}
