package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONSlice is a typed jsonb column. gorm has no first-party typed-JSON
// helper without pulling in the separate gorm.io/datatypes module (not
// part of this stack's dependency set), so this is a minimal
// Scanner/Valuer pair over encoding/json — the smallest stdlib surface
// that does the job.
type JSONSlice[T any] []T

func (s JSONSlice[T]) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal([]T(s))
}

func (s *JSONSlice[T]) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("JSONSlice: unsupported scan type %T", src)
	}
	if len(b) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(b, (*[]T)(s))
}

// JSONDoc is a typed jsonb column for a single object, used for the
// tagged-union Alert.Data column.
type JSONDoc struct {
	Raw []byte
}

func (d JSONDoc) Value() (driver.Value, error) {
	if len(d.Raw) == 0 {
		return "{}", nil
	}
	return d.Raw, nil
}

func (d *JSONDoc) Scan(src interface{}) error {
	if src == nil {
		d.Raw = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		d.Raw = append([]byte(nil), v...)
	case string:
		d.Raw = []byte(v)
	default:
		return fmt.Errorf("JSONDoc: unsupported scan type %T", src)
	}
	return nil
}

// MarshalJSON lets JSONDoc serialize transparently in API responses.
func (d JSONDoc) MarshalJSON() ([]byte, error) {
	if len(d.Raw) == 0 {
		return []byte("{}"), nil
	}
	return d.Raw, nil
}

// UnmarshalJSON stores the raw bytes as-is.
func (d *JSONDoc) UnmarshalJSON(b []byte) error {
	d.Raw = append([]byte(nil), b...)
	return nil
}

// GormDataType tells gorm to use jsonb for this column on postgres.
func (JSONDoc) GormDataType() string { return "jsonb" }
func (s JSONSlice[T]) GormDataType() string { return "jsonb" }
