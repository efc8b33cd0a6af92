package table

import (
	"fmt"
	"strconv"
)

// Flatten converts a decoded JSON record into a flat map of stringified
// values. Nested objects contribute dot-joined column names
// (e.g. "meter.location.zone"); arrays and other non-object values are
// stringified in place. Null values become empty strings so the landing
// table's NOT NULL columns stay loadable.
func Flatten(record map[string]interface{}) map[string]string {
	flat := make(map[string]string, len(record))
	flattenInto(flat, "", record)
	return flat
}

func flattenInto(flat map[string]string, prefix string, record map[string]interface{}) {
	for key, value := range record {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			flattenInto(flat, name, nested)
			continue
		}
		flat[name] = stringify(value)
	}
}

// stringify renders a JSON scalar the way the upstream files expect:
// integral floats without a decimal point, null as empty string.
func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
