package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest is wrapped by every request parsing failure.
var ErrInvalidRequest = errors.New("invalid request")

// Payload is the inbound request body.
type Payload struct {
	Table string      `json:"table"`
	UUIDs Identifiers `json:"uuids"`
	Clone *bool       `json:"clone,omitempty"`
	Safe  *bool       `json:"safe,omitempty"`
}

// Identifiers accepts either a comma-separated string or an array of strings.
type Identifiers []string

func (ids *Identifiers) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*ids = SplitIdentifiers(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("uuids must be a comma-separated string or a list of strings")
	}
	*ids = list
	return nil
}

// SplitIdentifiers splits a comma-separated identifier list.
func SplitIdentifiers(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// ParseRequest decodes a JSON body into a MigrationRequest.
// clone and safe default to true when absent.
func ParseRequest(body []byte) (MigrationRequest, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return MigrationRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return p.Request()
}

// Request validates the payload and applies defaults.
func (p Payload) Request() (MigrationRequest, error) {
	clone, safe := true, true
	if p.Clone != nil {
		clone = *p.Clone
	}
	if p.Safe != nil {
		safe = *p.Safe
	}
	return NewMigrationRequest(p.Table, p.UUIDs, clone, safe)
}

// NewMigrationRequest trims and deduplicates identifiers, keeping first occurrences.
// The table name is used as given.
func NewMigrationRequest(table string, identifiers []string, clone, safe bool) (MigrationRequest, error) {
	if strings.TrimSpace(table) == "" {
		return MigrationRequest{}, fmt.Errorf("%w: table is required", ErrInvalidRequest)
	}
	if table != strings.TrimSpace(table) {
		return MigrationRequest{}, fmt.Errorf("%w: table %q has surrounding whitespace", ErrInvalidRequest, table)
	}

	seen := make(map[string]struct{}, len(identifiers))
	ids := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return MigrationRequest{}, fmt.Errorf("%w: at least one uuid is required", ErrInvalidRequest)
	}

	return MigrationRequest{table: table, identifiers: ids, clone: clone, safe: safe}, nil
}
