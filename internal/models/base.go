package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

func init() {
	// Quantities go over the wire as JSON numbers, the same way counts do.
	decimal.MarshalJSONWithoutQuotes = true
}

// Base replaces gorm.Model so records carry UUID identifiers instead of
// auto-increment integers.
type Base struct {
	ID        string     `gorm:"primary_key;type:varchar(36)" json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `sql:"index" json:"-"`
}

// BeforeCreate assigns a fresh UUID when the caller did not supply one.
func (b *Base) BeforeCreate(scope *gorm.Scope) error {
	if b.ID == "" {
		return scope.SetColumn("ID", uuid.NewString())
	}
	return nil
}

// StringSlice represents a slice of strings that can be stored in the database
type StringSlice []string

// Value converts the slice to a JSON string for storage
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan converts the database value back to a slice
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("unsupported type for StringSlice")
	}
}

// Status is the activation flag shared by nodes, item types and batches.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}
