package bits

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrShortBuffer is returned when a bit range runs past the end of the buffer.
var ErrShortBuffer = errors.New("bit range exceeds buffer")

// byteBits holds the MSB-first rendering of every byte value.
var byteBits [256]string

func init() {
	for i := range byteBits {
		byteBits[i] = fmt.Sprintf("%08b", i)
	}
}

// Len returns the number of bits held by buf.
func Len(buf []byte) int {
	return len(buf) * 8
}

// Extract renders n bits starting at bit position pos as a string of '0' and
// '1' characters. Bits are numbered most significant first inside each byte.
func Extract(buf []byte, pos, n int) (string, error) {
	if pos < 0 || n < 0 {
		return "", fmt.Errorf("invalid bit range %d+%d", pos, n)
	}
	if n == 0 {
		return "", nil
	}
	if pos+n > Len(buf) {
		return "", fmt.Errorf("%w: need bits %d..%d, have %d", ErrShortBuffer, pos, pos+n-1, Len(buf))
	}
	first := pos / 8
	last := (pos + n - 1) / 8
	var b strings.Builder
	b.Grow((last - first + 1) * 8)
	for _, by := range buf[first : last+1] {
		b.WriteString(byteBits[by])
	}
	offset := pos % 8
	return b.String()[offset : offset+n], nil
}

// Uint reads n bits starting at pos as an unsigned big-endian integer.
func Uint(buf []byte, pos, n int) (uint64, error) {
	if n > 64 {
		return 0, fmt.Errorf("cannot read %d bits into uint64", n)
	}
	s, err := Extract(buf, pos, n)
	if err != nil {
		return 0, err
	}
	return ParseUint(s)
}

// ParseUint interprets a bit string as an unsigned binary integer.
func ParseUint(s string) (uint64, error) {
	if s == "" {
		return 0, errors.New("empty bit string")
	}
	return strconv.ParseUint(s, 2, 64)
}

// Put writes the low n bits of v into buf at bit position pos, most
// significant bit first.
func Put(buf []byte, pos, n int, v uint64) error {
	if n < 0 || n > 64 {
		return fmt.Errorf("cannot write %d bits from uint64", n)
	}
	if pos < 0 || pos+n > Len(buf) {
		return fmt.Errorf("%w: need bits %d..%d, have %d", ErrShortBuffer, pos, pos+n-1, Len(buf))
	}
	for i := 0; i < n; i++ {
		bit := (v >> uint(n-1-i)) & 1
		p := pos + i
		if bit == 1 {
			buf[p/8] |= 1 << (7 - p%8)
		} else {
			buf[p/8] &^= 1 << (7 - p%8)
		}
	}
	return nil
}
