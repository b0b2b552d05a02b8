package decoder

import (
	"bytes"
	"iter"
)

// RawLine is one framed input line.
type RawLine struct {
	Number int    // 1-based
	Text   string // trailing line ending and blanks removed
	Raw    []byte // bytes as read, line ending included
}

// Lines frames data into non-blank lines. Lines starting with a banner
// character ('-' or '=') are skipped unless they are timestamp lines. The
// returned sequence can be iterated more than once.
func (g *Grammar) Lines(data []byte) iter.Seq[RawLine] {
	return func(yield func(RawLine) bool) {
		rest := data
		number := 0
		for len(rest) > 0 {
			number++
			raw := rest
			if i := bytes.IndexByte(rest, '\n'); i >= 0 {
				raw, rest = rest[:i+1], rest[i+1:]
			} else {
				rest = nil
			}
			text := string(bytes.TrimRight(raw, " \t\r\n"))
			if text == "" {
				continue
			}
			if (text[0] == '-' || text[0] == '=') && !g.Timestamps.IsBannerTimestamp(text) {
				continue
			}
			if !yield(RawLine{Number: number, Text: text, Raw: raw}) {
				return
			}
		}
	}
}
