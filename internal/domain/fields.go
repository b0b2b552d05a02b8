package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrField reports a fixed-width field that does not hold its expected encoding.
var ErrField = errors.New("invalid field")

// isPlaceholder reports whether s holds only the not-applicable marker
// ('/') and padding.
func isPlaceholder(s string) bool {
	return strings.Trim(s, "/ ") == ""
}

// ParseInt decodes a decimal field. Placeholder-only input is missing.
func ParseInt(s string) (Field[int64], error) {
	if isPlaceholder(s) {
		return Missing[int64](), nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return Field[int64]{}, fmt.Errorf("%w: integer %q", ErrField, s)
	}
	return Value(v), nil
}

// ParseHex decodes an unsigned hex field such as a status bitmask.
func ParseHex(s string) (Field[int64], error) {
	if isPlaceholder(s) {
		return Missing[int64](), nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 16, 63)
	if err != nil {
		return Field[int64]{}, fmt.Errorf("%w: hex %q", ErrField, s)
	}
	return Value(int64(v)), nil
}

// ParseHexArray splits s into groups of k hex digits and decodes each group
// as a two's-complement number over 4k bits. A trailing short group is
// decoded with the same width.
func ParseHexArray(s string, k int) ([]Field[int64], error) {
	if k <= 0 || k > 15 {
		return nil, fmt.Errorf("%w: hex group width %d", ErrField, k)
	}
	out := make([]Field[int64], 0, (len(s)+k-1)/k)
	half := int64(1) << (4*k - 1)
	for i := 0; i < len(s); i += k {
		group := s[i:min(i+k, len(s))]
		if isPlaceholder(group) {
			out = append(out, Missing[int64]())
			continue
		}
		u, err := strconv.ParseUint(group, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: hex sample %q at offset %d", ErrField, group, i)
		}
		v := int64(u)
		if v >= half {
			v -= half << 1
		}
		out = append(out, Value(v))
	}
	return out, nil
}

// EncodeHexArray is the inverse of ParseHexArray for values representable
// in 4k bits.
func EncodeHexArray(values []int64, k int) string {
	var b strings.Builder
	b.Grow(len(values) * k)
	mask := uint64(1)<<(4*k) - 1
	for _, v := range values {
		fmt.Fprintf(&b, "%0*X", k, uint64(v)&mask)
	}
	return b.String()
}

// ParseCode passes a single-letter status or flag code through unchanged.
func ParseCode(s string) Field[string] {
	return Value(s)
}
