package support

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"support-chat/internal/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// EncodeCursor renders a position as an opaque URL-safe token.
func EncodeCursor(c models.Cursor) string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "." + strconv.FormatInt(c.Seq, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token from EncodeCursor. The empty token means
// "start from the newest message" and decodes to nil.
func DecodeCursor(token string) (*models.Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, invalid("malformed cursor")
	}
	nanos, seq, ok := strings.Cut(string(raw), ".")
	if !ok {
		return nil, invalid("malformed cursor")
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, invalid("malformed cursor")
	}
	s, err := strconv.ParseInt(seq, 10, 64)
	if err != nil {
		return nil, invalid("malformed cursor")
	}
	return &models.Cursor{CreatedAt: time.Unix(0, n).UTC(), Seq: s}, nil
}

func clampPageSize(size int) int {
	switch {
	case size <= 0:
		return DefaultPageSize
	case size > MaxPageSize:
		return MaxPageSize
	default:
		return size
	}
}
