package codec

import (
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// FromAny maps a value decoded by the database driver onto a Value.
// Anything without a natural kind is carried as Text in its PostgreSQL input form,
// which the destination column casts back to its own type.
func FromAny(src any) (Value, error) {
	switch v := src.(type) {
	case nil:
		return NullValue(), nil
	case int:
		return IntValue(int64(v)), nil
	case int8:
		return IntValue(int64(v)), nil
	case int16:
		return IntValue(int64(v)), nil
	case int32:
		return IntValue(int64(v)), nil
	case int64:
		return IntValue(v), nil
	case uint8:
		return IntValue(int64(v)), nil
	case uint16:
		return IntValue(int64(v)), nil
	case uint32:
		return IntValue(int64(v)), nil
	case float32:
		return FloatValue(float64(v)), nil
	case float64:
		return FloatValue(v), nil
	case bool:
		return BoolValue(v), nil
	case time.Time:
		return TimeValue(v), nil
	case string:
		return TextValue(v), nil
	case []byte:
		return TextValue(`\x` + hex.EncodeToString(v)), nil
	case [16]byte:
		return TextValue(uuid.UUID(v).String()), nil
	case uuid.UUID:
		return TextValue(v.String()), nil
	case json.RawMessage:
		return TextValue(string(v)), nil
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return Value{}, fmt.Errorf("encode json object: %w", err)
		}
		return TextValue(string(b)), nil
	case []any:
		return fromSlice(reflect.ValueOf(v))
	case driver.Valuer:
		dv, err := v.Value()
		if err != nil {
			return Value{}, fmt.Errorf("read %T: %w", src, err)
		}
		if _, same := dv.(driver.Valuer); same {
			return Value{}, fmt.Errorf("unsupported value %T", src)
		}
		return FromAny(dv)
	case fmt.Stringer:
		return TextValue(v.String()), nil
	}

	rv := reflect.ValueOf(src)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return fromSlice(rv)
	}
	return Value{}, fmt.Errorf("unsupported value %T", src)
}

func fromSlice(rv reflect.Value) (Value, error) {
	elems := make([]Value, rv.Len())
	for i := range elems {
		e, err := FromAny(rv.Index(i).Interface())
		if err != nil {
			return Value{}, fmt.Errorf("array element %d: %w", i, err)
		}
		elems[i] = e
	}
	return ArrayValue(elems...), nil
}

// FromRow converts a driver row into Values, column by column.
func FromRow(src []any) ([]Value, error) {
	out := make([]Value, len(src))
	for i, s := range src {
		v, err := FromAny(s)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
