package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
)

const (
	// DefaultPageSize is used when the client omits page_size.
	DefaultPageSize = 20
	// DefaultMaxPageSize caps page_size.
	DefaultMaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid page_size")
	ErrInvalidPageToken = errors.New("pagination: invalid page_token")
)

// Options tune Parse per endpoint.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Parse reads page_size/page_token (camelCase accepted) from the query. Oversized pages are
// clamped; malformed values are rejected.
func Parse(values url.Values, opts Options) (domain.Pagination, error) {
	maxSize := opts.MaxPageSize
	if maxSize <= 0 {
		maxSize = DefaultMaxPageSize
	}
	size := opts.DefaultPageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > maxSize {
		size = maxSize
	}

	if raw := first(values, "page_size", "pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Pagination{}, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
		}
		if n <= 0 {
			return domain.Pagination{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
		}
		size = min(n, maxSize)
	}

	token := first(values, "page_token", "pageToken")
	if _, err := DecodeToken(token); err != nil {
		return domain.Pagination{}, err
	}
	return domain.Pagination{PageSize: size, PageToken: token}, nil
}

func first(values url.Values, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(values.Get(key)); v != "" {
			return v
		}
	}
	return ""
}
