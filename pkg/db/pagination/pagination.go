// Package pagination implements keyset (created_at, id) cursors for list endpoints.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

var ErrInvalidCursor = errors.New("invalid_cursor")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Cursor points just past the last row of a page.
type Cursor struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

// EncodeCursor returns an opaque, URL-safe page token.
func EncodeCursor(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(token string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, ErrInvalidCursor
	}
	if c.ID == "" || c.CreatedAt == "" {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}

// Page trims rows fetched with limit+1 down to limit and derives the next token
// from the last row kept.
func Page[T any](rows []T, limit int, cursorOf func(T) Cursor) ([]T, PageInfo, error) {
	if limit <= 0 || len(rows) <= limit {
		return rows, PageInfo{}, nil
	}
	rows = rows[:limit]
	token, err := EncodeCursor(cursorOf(rows[len(rows)-1]))
	if err != nil {
		return nil, PageInfo{}, err
	}
	return rows, PageInfo{NextPageToken: token, HasMore: true}, nil
}
