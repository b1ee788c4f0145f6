package options

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

type loggerKey struct{}

// WithLogger stores the logger inside the context.
func WithLogger(ctx context.Context, log logrus.FieldLogger) context.Context {
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, log)
}

// Logger retrieves the logger from context, falling back to the standard
// logrus logger.
func Logger(ctx context.Context) logrus.FieldLogger {
	if v := ctx.Value(loggerKey{}); v != nil {
		if log, ok := v.(logrus.FieldLogger); ok {
			return log
		}
	}
	return logrus.StandardLogger()
}

// ParsePayloadHex decodes a payload written as hex digits, optionally
// separated by whitespace ("14 09 00 ...") and prefixed with 0x.
func ParsePayloadHex(input string) ([]byte, error) {
	clean := StripWhitespace(input)
	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		clean = clean[2:]
	}
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex payload must contain an even number of digits, got %d", len(clean))
	}
	dst := make([]byte, len(clean)/2)
	if _, err := hex.Decode(dst, []byte(clean)); err != nil {
		return nil, fmt.Errorf("invalid payload hex: %w", err)
	}
	return dst, nil
}

// StripWhitespace removes every Unicode space from s.
func StripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
