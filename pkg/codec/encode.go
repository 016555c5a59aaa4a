package codec

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// TimeLayout is the ISO-8601 layout used for timestamp literals.
const TimeLayout = time.RFC3339Nano

// Encode renders v as a literal usable inside an SQL statement.
// Strings are always escaped; numbers are the only values emitted unquoted.
func Encode(v Value) string {
	switch v.Kind {
	case Null:
		return "NULL"
	case Int:
		return strconv.FormatInt(v.Int, 10)
	case Float:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return pq.QuoteLiteral(formatFloat(v.Float))
		}
		return formatFloat(v.Float)
	case Bool:
		return pq.QuoteLiteral(strconv.FormatBool(v.Bool))
	case Timestamp:
		return pq.QuoteLiteral(v.Time.UTC().Format(TimeLayout))
	case Text:
		return pq.QuoteLiteral(v.Text)
	case Array:
		return pq.QuoteLiteral(ArrayLiteral(v.Elems))
	default:
		// Kinds outside the enumeration never reach a statement as raw text.
		return pq.QuoteLiteral(v.Text)
	}
}

// EncodeAll encodes each value in order.
func EncodeAll(vs []Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = Encode(v)
	}
	return out
}

// ArrayLiteral renders elems in PostgreSQL's curly-brace array syntax, unquoted.
func ArrayLiteral(elems []Value) string {
	var b strings.Builder
	writeArray(&b, elems)
	return b.String()
}

func writeArray(b *strings.Builder, elems []Value) {
	b.WriteByte('{')
	for i, e := range elems {
		if i > 0 {
			b.WriteByte(',')
		}
		switch e.Kind {
		case Null:
			b.WriteString("NULL")
		case Array:
			writeArray(b, e.Elems)
		default:
			b.WriteByte('"')
			b.WriteString(escapeElement(elementText(e)))
			b.WriteByte('"')
		}
	}
	b.WriteByte('}')
}

var elementEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeElement(s string) string {
	return elementEscaper.Replace(s)
}

// elementText is the unquoted text form of a scalar value.
func elementText(v Value) string {
	switch v.Kind {
	case Int:
		return strconv.FormatInt(v.Int, 10)
	case Float:
		return formatFloat(v.Float)
	case Bool:
		return strconv.FormatBool(v.Bool)
	case Timestamp:
		return v.Time.UTC().Format(TimeLayout)
	default:
		return v.Text
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Display returns the unquoted text of v, the form used by archives and logs.
// Null yields the empty string.
func Display(v Value) string {
	switch v.Kind {
	case Null:
		return ""
	case Array:
		return ArrayLiteral(v.Elems)
	default:
		return elementText(v)
	}
}
