package migration

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies migration failures.
type Kind string

const (
	KindRequest       Kind = "RequestError"
	KindConnection    Kind = "ConnectionError"
	KindTableMissing  Kind = "TableMissingError"
	KindCountMismatch Kind = "CountMismatchError"
	KindConflict      Kind = "ConflictError"
	KindMove          Kind = "MoveError"
)

// Error is the failure returned by every migration step.
type Error struct {
	Kind     Kind
	Table    string
	Endpoint string
	Message  string
	// Missing is the number of requested identifiers absent from the source.
	Missing int
	// Identifiers names the offending identifiers, when known.
	Identifiers []string
	// DestinationAhead is set when rows were committed at the destination but
	// could not be removed from the source.
	DestinationAhead bool
	Err              error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("Migration Error [%s]: %s", e.Kind, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Changed reports whether either database may have been modified.
func (e *Error) Changed() bool {
	return e.DestinationAhead
}

// KindOf returns the Kind of err, or "" when err is not a migration Error.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

// IsKind reports whether err is a migration Error of kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

func requestError(err error) *Error {
	return &Error{Kind: KindRequest, Message: "invalid migration request", Err: err}
}

func connectionError(endpoint string, err error) *Error {
	return &Error{
		Kind:     KindConnection,
		Endpoint: endpoint,
		Message:  fmt.Sprintf("cannot reach %s database", endpoint),
		Err:      err,
	}
}

// queryError is a ConnectionError for a reachable endpoint that rejected a query.
func queryError(endpoint string, err error) *Error {
	return &Error{
		Kind:     KindConnection,
		Endpoint: endpoint,
		Message:  fmt.Sprintf("query on %s database failed", endpoint),
		Err:      err,
	}
}

func tableMissingError(endpoint, table string) *Error {
	return &Error{
		Kind:     KindTableMissing,
		Table:    table,
		Endpoint: endpoint,
		Message:  fmt.Sprintf("%s missing table: %s", endpoint, table),
	}
}

func countMismatchError(table string, missing int) *Error {
	msg := fmt.Sprintf("%d uuids could not be found in %s", missing, table)
	if missing < 0 {
		msg = fmt.Sprintf("%d more rows than requested uuids matched in %s", -missing, table)
	}
	return &Error{
		Kind:    KindCountMismatch,
		Table:   table,
		Missing: missing,
		Message: msg,
	}
}

func conflictError(table string, existing []string) *Error {
	return &Error{
		Kind:        KindConflict,
		Table:       table,
		Identifiers: existing,
		Message: fmt.Sprintf("%d rows already exist in destination table %s: %s",
			len(existing), table, strings.Join(existing, ",")),
	}
}

func moveError(table, message string, err error) *Error {
	return &Error{Kind: KindMove, Table: table, Message: message, Err: err}
}
