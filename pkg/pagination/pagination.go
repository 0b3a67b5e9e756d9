// Package pagination implements keyset paging over (created_at DESC, id DESC).
// Cursors are opaque to clients: 8 bytes of unix nanos followed by the 16
// byte row id, base64url encoded.
package pagination

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxLimit caps how many rows any cursor query can request.
const MaxLimit = 100

const cursorSize = 8 + 16

var ErrMalformedCursor = errors.New("malformed cursor")

// Params holds cursor pagination inputs from controllers or services.
// A zero Limit means the caller wants every row.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor points at the last row of the previous page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Condition returns the keyset predicate selecting rows strictly after c.
// table qualifies the columns when the query joins.
func (c Cursor) Condition(table string) (string, []any) {
	col := func(name string) string {
		if table == "" {
			return name
		}
		return table + "." + name
	}
	query := fmt.Sprintf("(%[1]s < ? OR (%[1]s = ? AND %[2]s < ?))", col("created_at"), col("id"))
	return query, []any{c.CreatedAt, c.CreatedAt, c.ID}
}

// NormalizeLimit clamps the limit to [0, MaxLimit].
func NormalizeLimit(limit int) int {
	return min(max(limit, 0), MaxLimit)
}

func EncodeCursor(c Cursor) string {
	buf := make([]byte, cursorSize)
	binary.BigEndian.PutUint64(buf, uint64(c.CreatedAt.UnixNano()))
	copy(buf[8:], c.ID[:])
	return base64.RawURLEncoding.EncodeToString(buf)
}

// ParseCursor decodes a cursor produced by EncodeCursor. Blank input yields
// a nil cursor, meaning the first page.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCursor, err)
	}
	if len(raw) != cursorSize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrMalformedCursor, cursorSize, len(raw))
	}
	id, err := uuid.FromBytes(raw[8:])
	if err != nil || id == uuid.Nil {
		return nil, fmt.Errorf("%w: bad row id", ErrMalformedCursor)
	}
	nanos := int64(binary.BigEndian.Uint64(raw[:8]))
	return &Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: id}, nil
}

// Trim drops the look-ahead row fetched with limit+1 and returns the cursor of
// the next page, or "" when there is none.
func Trim[T any](rows []T, limit int, key func(T) Cursor) ([]T, string) {
	if limit <= 0 || len(rows) <= limit {
		return rows, ""
	}
	rows = rows[:limit]
	return rows, EncodeCursor(key(rows[len(rows)-1]))
}
