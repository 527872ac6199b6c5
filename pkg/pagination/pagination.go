// Package pagination implements newest-first keyset paging over
// (created_at, id). Cursors are opaque URL-safe tokens.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

const cursorSeparator = "~"

var errMalformedCursor = errors.New("malformed cursor")

// Params holds the limit and cursor read from a list request.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the sort key of the last row on the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit applies DefaultLimit to non-positive values and caps at MaxLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// LimitWithBuffer is the normalized limit plus one look-ahead row.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

func EncodeCursor(c Cursor) string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + cursorSeparator + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor decodes a cursor token. A blank token means the first page and
// yields a nil cursor.
func ParseCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedCursor, err)
	}
	ts, id, ok := strings.Cut(string(raw), cursorSeparator)
	if !ok {
		return nil, errMalformedCursor
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", errMalformedCursor, err)
	}
	rowID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: id: %v", errMalformedCursor, err)
	}
	return &Cursor{CreatedAt: createdAt, ID: rowID}, nil
}

// Newest is a gorm scope that orders by (created_at, id) descending, seeks
// past cursor and fetches one look-ahead row. table qualifies the columns for
// joined queries and may be empty.
func Newest(table string, cursor *Cursor, limit int) func(*gorm.DB) *gorm.DB {
	created, id := "created_at", "id"
	if table != "" {
		created, id = table+".created_at", table+".id"
	}
	return func(db *gorm.DB) *gorm.DB {
		if cursor != nil {
			db = db.Where(
				fmt.Sprintf("(%s < ? OR (%s = ? AND %s < ?))", created, created, id),
				cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
			)
		}
		return db.Order(created + " DESC").Order(id + " DESC").Limit(LimitWithBuffer(limit))
	}
}

// Trim drops the look-ahead row fetched by Newest and returns the cursor of
// the last kept row when another page exists.
func Trim[T any](rows []T, limit int, cursorOf func(T) Cursor) ([]T, string) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, ""
	}
	rows = rows[:limit]
	return rows, EncodeCursor(cursorOf(rows[len(rows)-1]))
}
