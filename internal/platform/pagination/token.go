package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Cursor is the decoded form of an opaque page token. Firestore-backed listings resume after
// a document id; listings filtered in memory resume at an offset.
type Cursor struct {
	After  string `json:"a,omitempty"`
	Offset int    `json:"o,omitempty"`
}

// IsZero reports whether the cursor points at the first page.
func (c Cursor) IsZero() bool {
	return c.After == "" && c.Offset <= 0
}

// EncodeToken serialises cursor into a URL-safe token. The first page encodes to "".
func EncodeToken(cursor Cursor) string {
	if cursor.IsZero() {
		return ""
	}
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeToken parses a token produced by EncodeToken.
func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor Cursor
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if cursor.Offset < 0 {
		return Cursor{}, fmt.Errorf("%w: negative offset", ErrInvalidPageToken)
	}
	return cursor, nil
}

// Window slices items for the page described by token, returning the next token.
func Window[T any](items []T, size int, token string) ([]T, string, error) {
	cursor, err := DecodeToken(token)
	if err != nil {
		return nil, "", err
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	start := cursor.Offset
	if start >= len(items) {
		return []T{}, "", nil
	}
	end := start + size
	if end >= len(items) {
		return items[start:], "", nil
	}
	return items[start:end], EncodeToken(Cursor{Offset: end}), nil
}
