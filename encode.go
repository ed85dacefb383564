package axiom

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// dateLayout is the UTC date-time string format the default date encoder
// emits: "YYYY-MM-DD HH:MM:SS.mmm", no trailing zone marker.
const dateLayout = "2006-01-02 15:04:05.000"

// Encode converts an app-level value to its DB-level representation for
// field f, honouring the priority order:
//  1. field's custom encoder, if any
//  2. driver's dialect-specific encoding for the field's declared type
//  3. defaults (JSON, date, passthrough)
func Encode(f Field, v any, drv Driver) (any, error) {
	if f.Encode != nil {
		return f.Encode(v)
	}
	if enc, ok := drv.(ValueEncoder); ok {
		if out, err, handled := enc.EncodeValue(v, f.Type); handled {
			return out, err
		}
	}
	return defaultEncode(v)
}

func defaultEncode(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(dateLayout), nil
	case uuid.UUID:
		return t.String(), nil
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Ptr:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return v, nil
	}
}
