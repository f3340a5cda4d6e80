package resolve

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// TransformKind identifies a normalization applied after resolution. Every
// transform is total: it never fails for any input and degrades unexpected
// values to nil rather than aborting the row.
type TransformKind uint8

const (
	TransformNone TransformKind = iota
	TransformTrim
	TransformUpper
	TransformLower
	TransformNullIfBlank
	TransformBool01
	TransformNumber
	TransformText
)

// String returns the configuration name of the transform.
func (k TransformKind) String() string {
	switch k {
	case TransformNone:
		return "none"
	case TransformTrim:
		return "trim"
	case TransformUpper:
		return "upper"
	case TransformLower:
		return "lower"
	case TransformNullIfBlank:
		return "null_if_blank"
	case TransformBool01:
		return "bool01"
	case TransformNumber:
		return "number"
	case TransformText:
		return "text"
	default:
		return fmt.Sprintf("transform(%d)", uint8(k))
	}
}

// ParseTransform parses a configuration value into a TransformKind.
// Unknown values are rejected rather than defaulted.
func ParseTransform(s string) (TransformKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TransformNone, nil
	case "trim":
		return TransformTrim, nil
	case "upper", "uppercase":
		return TransformUpper, nil
	case "lower", "lowercase":
		return TransformLower, nil
	case "null_if_blank", "null-if-blank", "nullifblank":
		return TransformNullIfBlank, nil
	case "bool01", "bool-to-01":
		return TransformBool01, nil
	case "number", "numeric":
		return TransformNumber, nil
	case "text", "string":
		return TransformText, nil
	default:
		return TransformNone, fmt.Errorf("unknown transform: %q", s)
	}
}

// Apply runs one transform over a resolved value.
func Apply(kind TransformKind, v interface{}) interface{} {
	switch kind {
	case TransformTrim:
		if v == nil {
			return nil
		}
		return strings.TrimSpace(cast.ToString(v))
	case TransformUpper:
		if v == nil {
			return nil
		}
		return strings.ToUpper(cast.ToString(v))
	case TransformLower:
		if v == nil {
			return nil
		}
		return strings.ToLower(cast.ToString(v))
	case TransformNullIfBlank:
		return nullIfBlank(v)
	case TransformBool01:
		return boolTo01(v)
	case TransformNumber:
		return toNumber(v)
	case TransformText:
		if v == nil {
			return nil
		}
		return cast.ToString(v)
	default:
		return v
	}
}

func nullIfBlank(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(cast.ToString(v))
	if s == "" || strings.EqualFold(s, "NA") || strings.EqualFold(s, "N/A") {
		return nil
	}
	return v
}

func boolTo01(v interface{}) int64 {
	switch t := v.(type) {
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		if strings.EqualFold(strings.TrimSpace(t), "true") {
			return 1
		}
		if n, err := cast.ToFloat64E(strings.TrimSpace(t)); err == nil && n == 1 {
			return 1
		}
		return 0
	case nil:
		return 0
	default:
		if n, err := cast.ToFloat64E(v); err == nil && n == 1 {
			return 1
		}
		return 0
	}
}

func toNumber(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return cast.ToInt64(t)
	case float32, float64:
		return cast.ToFloat64(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if n, err := cast.ToInt64E(s); err == nil {
			return n
		}
		if n, err := cast.ToFloat64E(s); err == nil {
			return n
		}
		return nil
	default:
		if n, err := cast.ToFloat64E(v); err == nil {
			return n
		}
		return nil
	}
}
