// Package codec converts row values into PostgreSQL literals.
package codec

import (
	"fmt"
	"time"
)

// Kind enumerates the value shapes a migrated column can hold.
type Kind int

const (
	Null Kind = iota
	Int
	Float
	Bool
	Timestamp
	Text
	Array
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Timestamp:
		return "timestamp"
	case Text:
		return "text"
	case Array:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a tagged variant over Kind. Only the field matching Kind is meaningful.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Bool  bool
	Time  time.Time
	Text  string
	Elems []Value
}

func NullValue() Value { return Value{Kind: Null} }
func IntValue(v int64) Value { return Value{Kind: Int, Int: v} }
func FloatValue(v float64) Value { return Value{Kind: Float, Float: v} }
func BoolValue(v bool) Value { return Value{Kind: Bool, Bool: v} }
func TimeValue(v time.Time) Value { return Value{Kind: Timestamp, Time: v} }
func TextValue(v string) Value { return Value{Kind: Text, Text: v} }
func ArrayValue(vs ...Value) Value { return Value{Kind: Array, Elems: vs} }

// IsNull reports whether v is the SQL null.
func (v Value) IsNull() bool {
	return v.Kind == Null
}
