package axiom

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Decode converts a DB-level value to field f's app-level representation,
// mirroring Encode's priority order:
//  1. field's custom decoder, if any
//  2. driver's dialect-specific decoding for the field's declared type
//  3. defaults (JSON parse, date parse, bool-from-int, passthrough)
func Decode(f Field, v any, drv Driver) (any, error) {
	if f.Decode != nil {
		return f.Decode(v)
	}
	if dec, ok := drv.(ValueDecoder); ok {
		if out, err, handled := dec.DecodeValue(v, f.Type); handled {
			return out, err
		}
	}
	return defaultDecode(f, v)
}

func defaultDecode(f Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	if f.Type == TypeJSON {
		s, ok := asString(v)
		if ok {
			var out any
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				return nil, NewDecodingError(f.Name, s, "invalid JSON", err)
			}
			return out, nil
		}
	}

	if f.Type == TypeDatetime {
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			parsed, err := parseDatetime(t)
			if err != nil {
				return nil, NewDecodingError(f.Name, t, "invalid date", err)
			}
			return parsed, nil
		}
	}

	if f.Type == TypeUUID {
		if s, ok := asString(v); ok {
			parsed, err := uuid.Parse(s)
			if err != nil {
				return nil, NewDecodingError(f.Name, s, "invalid UUID", err)
			}
			return parsed, nil
		}
	}

	if f.Type == TypeBoolean {
		switch n := v.(type) {
		case int64:
			return n != 0, nil
		case int:
			return n != 0, nil
		case float64:
			return n != 0, nil
		}
	}

	return v, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// parseDatetime accepts the layout Encode emits, plus RFC3339 as a fallback
// for drivers that hand back a timezone-qualified string.
func parseDatetime(s string) (time.Time, error) {
	for _, layout := range []string{dateLayout, time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("axiom: unrecognised date format: %q", s)
}
