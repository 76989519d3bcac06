package biff

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

func readLength(data []byte, pos, lenlen int) (int, int, error) {
	if pos+lenlen > len(data) {
		return 0, pos, fmt.Errorf("insufficient data for string length at %d: %w", pos, ErrTruncatedRecord)
	}
	if lenlen == 1 {
		return int(data[pos]), pos + 1, nil
	}
	return int(binary.LittleEndian.Uint16(data[pos : pos+2])), pos + 2, nil
}

func decodeUTF16(raw []byte) string {
	words := make([]uint16, len(raw)/2)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return string(utf16.Decode(words))
}

func decodeLatin1(raw []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

func decodeBytes(raw []byte, enc encoding.Encoding) string {
	if enc == nil {
		return decodeLatin1(raw)
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return decodeLatin1(raw)
	}
	return string(out)
}

// UnpackString unpacks a BIFF5/7 byte string prefixed by a lenlen-byte
// length, decoding it with enc (Latin-1 when nil).
func UnpackString(data []byte, pos int, enc encoding.Encoding, lenlen int) (string, error) {
	s, _, err := UnpackStringUpdatePos(data, pos, enc, lenlen)
	return s, err
}

// UnpackStringUpdatePos is UnpackString returning the position after the string.
func UnpackStringUpdatePos(data []byte, pos int, enc encoding.Encoding, lenlen int) (string, int, error) {
	nchars, pos, err := readLength(data, pos, lenlen)
	if err != nil {
		return "", pos, err
	}
	if pos+nchars > len(data) {
		return "", pos, fmt.Errorf("insufficient data for string: %w", ErrTruncatedRecord)
	}
	return decodeBytes(data[pos:pos+nchars], enc), pos + nchars, nil
}

// UnpackUnicode unpacks a BIFF8 unicode string: length, option flags, then
// either compressed (one byte per char) or UTF-16LE characters.
func UnpackUnicode(data []byte, pos int, lenlen int) (string, error) {
	s, _, err := UnpackUnicodeUpdatePos(data, pos, lenlen)
	return s, err
}

// UnpackUnicodeUpdatePos is UnpackUnicode returning the position after the
// string and any rich-text or phonetic trailer.
func UnpackUnicodeUpdatePos(data []byte, pos int, lenlen int) (string, int, error) {
	nchars, pos, err := readLength(data, pos, lenlen)
	if err != nil {
		return "", pos, err
	}
	return UnpackUnicodeN(data, pos, nchars)
}

// UnpackUnicodeN unpacks a BIFF8 unicode string whose character count is
// stored elsewhere in the record, starting at its option byte.
func UnpackUnicodeN(data []byte, pos int, nchars int) (string, int, error) {
	if nchars == 0 && pos >= len(data) {
		// Some writers drop the option byte of empty strings.
		return "", pos, nil
	}
	if pos >= len(data) {
		return "", pos, fmt.Errorf("insufficient data for unicode options: %w", ErrTruncatedRecord)
	}

	options := data[pos]
	pos++

	var runs, phoneticSize int
	if options&0x08 != 0 {
		if pos+2 > len(data) {
			return "", pos, fmt.Errorf("insufficient data for richtext: %w", ErrTruncatedRecord)
		}
		runs = int(binary.LittleEndian.Uint16(data[pos:]))
		pos += 2
	}
	if options&0x04 != 0 {
		if pos+4 > len(data) {
			return "", pos, fmt.Errorf("insufficient data for phonetic: %w", ErrTruncatedRecord)
		}
		phoneticSize = int(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4
	}

	var s string
	if options&0x01 != 0 {
		if pos+2*nchars > len(data) {
			return "", pos, fmt.Errorf("insufficient data for UTF-16 string: %w", ErrTruncatedRecord)
		}
		s = decodeUTF16(data[pos : pos+2*nchars])
		pos += 2 * nchars
	} else {
		if pos+nchars > len(data) {
			return "", pos, fmt.Errorf("insufficient data for compressed string: %w", ErrTruncatedRecord)
		}
		s = decodeLatin1(data[pos : pos+nchars])
		pos += nchars
	}

	pos += 4*runs + phoneticSize
	if pos > len(data) {
		pos = len(data)
	}
	return s, pos, nil
}
