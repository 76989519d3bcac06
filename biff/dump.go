package biff

import (
	"fmt"
	"io"
	"sort"
)

// HexCharDump writes dlen bytes of data starting at ofs as rows of hex and
// printable characters. NUL prints as '~', other non-printables as '?'.
func HexCharDump(data []byte, ofs, dlen, base int, w io.Writer, unnumbered bool) {
	endpos := min(ofs+dlen, len(data))
	for pos := ofs; pos < endpos; {
		endsub := min(pos+16, endpos)
		var hexd, chard []byte
		for _, c := range data[pos:endsub] {
			hexd = fmt.Appendf(hexd, "%02x ", c)
			switch {
			case c == 0:
				chard = append(chard, '~')
			case c < ' ' || c > '~':
				chard = append(chard, '?')
			default:
				chard = append(chard, c)
			}
		}
		prefix := ""
		if !unnumbered {
			prefix = fmt.Sprintf("%5x: ", base+pos-ofs)
		}
		fmt.Fprintf(w, "%s     %-48s %s\n", prefix, hexd, chard)
		pos = endsub
	}
}

// Dump writes every record of a BIFF stream in char & hex format for debugging.
//
// unnumbered: If true, omit offsets (for meaningful diffs).
func Dump(r io.Reader, w io.Writer, unnumbered bool) error {
	rd := NewReader(r)
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if unnumbered {
			fmt.Fprintf(w, "%04x %s len = %04x (%d)\n", rec.Code, RecordName(rec.Code), len(rec.Data), len(rec.Data))
		} else {
			fmt.Fprintf(w, "%8d: %04x %s len = %04x (%d)\n", rec.Offset, rec.Code, RecordName(rec.Code), len(rec.Data), len(rec.Data))
		}
		HexCharDump(rec.Data, 0, len(rec.Data), int(rec.Offset)+4, w, unnumbered)
	}
}

// CountRecords summarises a BIFF stream as sorted (record name, count) lines.
func CountRecords(r io.Reader, w io.Writer) error {
	counts := make(map[string]int)
	rd := NewReader(r)
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		counts[RecordName(rec.Code)]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%8d %s\n", counts[name], name)
	}
	return nil
}
