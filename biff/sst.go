package biff

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"
)

// continuedReader walks a record body split over CONTINUE records.
type continuedReader struct {
	segs [][]byte
	seg  int
	pos  int
}

func (c *continuedReader) next() bool {
	if c.seg+1 >= len(c.segs) {
		return false
	}
	c.seg++
	c.pos = 0
	return true
}

func (c *continuedReader) readByte() (byte, error) {
	for c.pos >= len(c.segs[c.seg]) {
		if !c.next() {
			return 0, ErrTruncatedRecord
		}
	}
	b := c.segs[c.seg][c.pos]
	c.pos++
	return b, nil
}

func (c *continuedReader) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	for i := range buf {
		b, err := c.readByte()
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}

func (c *continuedReader) uint16() (int, error) {
	b, err := c.read(2)
	if err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint16(b)), nil
}

func (c *continuedReader) uint32() (int, error) {
	b, err := c.read(4)
	if err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint32(b)), nil
}

func (c *continuedReader) skip(n int) error {
	for n > 0 {
		avail := len(c.segs[c.seg]) - c.pos
		if avail <= 0 {
			if !c.next() {
				return ErrTruncatedRecord
			}
			continue
		}
		k := min(n, avail)
		c.pos += k
		n -= k
	}
	return nil
}

// chars reads n characters. When the characters run into the next CONTINUE
// record, that record starts with a fresh option byte whose low bit selects
// compressed or UTF-16 storage for the remainder.
func (c *continuedReader) chars(n int, wide bool) (string, error) {
	var b strings.Builder
	var units []uint16
	flush := func() {
		b.WriteString(string(utf16.Decode(units)))
		units = units[:0]
	}
	for n > 0 {
		seg := c.segs[c.seg]
		if c.pos >= len(seg) {
			if !c.next() {
				return "", ErrTruncatedRecord
			}
			seg = c.segs[c.seg]
			if len(seg) == 0 {
				continue
			}
			wide = seg[0]&0x01 != 0
			c.pos = 1
			continue
		}
		if wide {
			k := min(n, (len(seg)-c.pos)/2)
			if k == 0 {
				return "", fmt.Errorf("UTF-16 character split across records: %w", ErrTruncatedRecord)
			}
			for i := 0; i < k; i++ {
				units = append(units, binary.LittleEndian.Uint16(seg[c.pos+2*i:]))
			}
			c.pos += 2 * k
			n -= k
		} else {
			k := min(n, len(seg)-c.pos)
			flush()
			b.WriteString(decodeLatin1(seg[c.pos : c.pos+k]))
			c.pos += k
			n -= k
		}
	}
	flush()
	return b.String(), nil
}

// parseSST decodes an SST record body and its CONTINUE segments. Strings
// decoded before a truncation are returned along with the error.
func parseSST(segs [][]byte) ([]string, error) {
	if len(segs) == 0 || len(segs[0]) < 8 {
		return nil, ErrTruncatedRecord
	}
	unique := int(binary.LittleEndian.Uint32(segs[0][4:8]))
	c := &continuedReader{segs: segs, pos: 8}

	table := make([]string, 0, min(unique, 1<<16))
	for i := 0; i < unique; i++ {
		nchars, err := c.uint16()
		if err != nil {
			return table, fmt.Errorf("sst string %d of %d: %w", i, unique, err)
		}
		options, err := c.readByte()
		if err != nil {
			return table, fmt.Errorf("sst string %d of %d: %w", i, unique, err)
		}
		var runs, extSize int
		if options&0x08 != 0 {
			if runs, err = c.uint16(); err != nil {
				return table, err
			}
		}
		if options&0x04 != 0 {
			if extSize, err = c.uint32(); err != nil {
				return table, err
			}
		}
		s, err := c.chars(nchars, options&0x01 != 0)
		if err != nil {
			return table, fmt.Errorf("sst string %d of %d: %w", i, unique, err)
		}
		table = append(table, s)
		if err := c.skip(4*runs + extSize); err != nil {
			if i == unique-1 {
				break
			}
			return table, err
		}
	}
	return table, nil
}
