// Package cursor implements opaque keyset pagination cursors for listings
// ordered by one or more columns plus a numeric row id.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Cursor represents a pagination cursor with sort fields and last seen values
type Cursor struct {
	SortFields []string `json:"sort_fields"`
	LastValues []any    `json:"last_values"`
	LastID     int64    `json:"last_id"`
}

// New creates a cursor from the last row of a page.
func New(sortFields []string, lastValues []any, lastID int64) (*Cursor, error) {
	if len(sortFields) != len(lastValues) {
		return nil, fmt.Errorf("sort fields and last values length mismatch")
	}
	if lastID <= 0 {
		return nil, fmt.Errorf("last ID required")
	}
	return &Cursor{SortFields: sortFields, LastValues: lastValues, LastID: lastID}, nil
}

// Encode serializes the cursor to an opaque base64 string
func (c *Cursor) Encode() (string, error) {
	if len(c.SortFields) != len(c.LastValues) {
		return "", fmt.Errorf("sort fields and last values length mismatch")
	}
	jsonData, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(jsonData), nil
}

// Decode deserializes a cursor and checks it was made for the given sort
// fields.
func Decode(encoded string, sortFields ...string) (*Cursor, error) {
	if encoded == "" {
		return nil, fmt.Errorf("empty cursor string")
	}
	jsonData, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(jsonData, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor format: %w", err)
	}
	if len(c.SortFields) != len(c.LastValues) {
		return nil, fmt.Errorf("cursor sort fields and values length mismatch")
	}
	if c.LastID <= 0 {
		return nil, fmt.Errorf("cursor missing last ID")
	}
	if strings.Join(c.SortFields, ",") != strings.Join(sortFields, ",") {
		return nil, fmt.Errorf("cursor was created for a different listing")
	}
	return &c, nil
}

// Where builds the condition selecting the rows after the cursor in
// ascending order. For ORDER BY a, b, id it generates:
//
//	((a > ?) OR (a = ? AND b > ?) OR (a = ? AND b = ? AND id > ?))
func (c *Cursor) Where() (string, []any) {
	var (
		params []any
		ors    []string
	)
	// level i: equality on fields 0..i-1, comparison on field i
	for i := 0; i <= len(c.SortFields); i++ {
		var ands []string
		for j := 0; j < i; j++ {
			ands = append(ands, c.SortFields[j]+" = ?")
			params = append(params, c.LastValues[j])
		}
		if i < len(c.SortFields) {
			ands = append(ands, c.SortFields[i]+" > ?")
			params = append(params, c.LastValues[i])
		} else {
			ands = append(ands, "id > ?")
			params = append(params, c.LastID)
		}
		ors = append(ors, "("+strings.Join(ands, " AND ")+")")
	}
	return "(" + strings.Join(ors, " OR ") + ")", params
}
