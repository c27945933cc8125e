package field

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// A Type represents an attribute type.
type Type uint8

// List of attribute types.
const (
	TypeInvalid Type = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeList
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeString:  "string",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeBool:    "bool",
	TypeList:    "list",
}

// String returns the canonical name of the type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", t)
}

// Valid reports if the given type is known.
func (t Type) Valid() bool {
	return t > TypeInvalid && t <= TypeList
}

// Scalar reports if the type maps to a single column.
func (t Type) Scalar() bool {
	return t.Valid() && t != TypeList
}

// SQLType returns the SQLite column type. Lists have none: they are
// stored in a linked table.
func (t Type) SQLType() string {
	switch t {
	case TypeString:
		return "TEXT"
	case TypeInt:
		return "INTEGER"
	case TypeFloat:
		return "REAL"
	case TypeBool:
		return "BOOLEAN"
	default:
		return ""
	}
}

// ParseScalar parses a scalar type name. Both the canonical names and the
// common SQL spellings are accepted, case-insensitively.
func ParseScalar(s string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "str", "text", "varchar", "char", "clob":
		return TypeString, true
	case "int", "integer", "int64", "bigint", "smallint":
		return TypeInt, true
	case "float", "float64", "real", "double", "numeric":
		return TypeFloat, true
	case "bool", "boolean":
		return TypeBool, true
	default:
		return TypeInvalid, false
	}
}

// Convert normalizes v to the Go type of t: string, int64, float64 or
// bool. A nil value stays nil.
func Convert(t Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeString:
		switch v := v.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case fmt.Stringer:
			return v.String(), nil
		}
	case TypeInt:
		switch v := v.(type) {
		case int:
			return int64(v), nil
		case int8:
			return int64(v), nil
		case int16:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case uint:
			return int64(v), nil
		case uint8:
			return int64(v), nil
		case uint16:
			return int64(v), nil
		case uint32:
			return int64(v), nil
		case uint64:
			if v <= math.MaxInt64 {
				return int64(v), nil
			}
		case float64:
			if v == math.Trunc(v) {
				return int64(v), nil
			}
		case bool:
			if v {
				return int64(1), nil
			}
			return int64(0), nil
		case []byte:
			return strconv.ParseInt(string(v), 10, 64)
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n, nil
			}
		}
	case TypeFloat:
		switch v := v.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case int32:
			return float64(v), nil
		case []byte:
			return strconv.ParseFloat(string(v), 64)
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, nil
			}
		}
	case TypeBool:
		switch v := v.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case int:
			return v != 0, nil
		case []byte:
			return strconv.ParseBool(string(v))
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return b, nil
			}
		}
	}
	return nil, fmt.Errorf("field: cannot convert %T to %s", v, t)
}
