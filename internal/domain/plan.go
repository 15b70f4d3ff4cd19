// Package domain — Plan variant.
//
// Plans were historically stored either as structured objects
// ({name, price, days}) or as bare strings, and both shapes still exist in
// production rows. Plan models that union as a tagged variant: exactly one of
// the structured fields or Freeform is populated. PlanList carries the whole
// column through GORM as a JSON text blob.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Plan is a purchasable offering presented on the inline keyboard. It is
// either structured (Name/Price/DurationDays) or a freeform label kept for
// backward compatibility with old rows.
type Plan struct {
	Name         string  `json:"name,omitempty"`
	Price        float64 `json:"price,omitempty"`
	DurationDays int     `json:"days,omitempty"`

	// Freeform holds the legacy bare-string representation. When non-empty
	// the structured fields are ignored.
	Freeform string `json:"-"`
}

// IsFreeform reports whether the plan is the legacy bare-string shape.
func (p Plan) IsFreeform() bool { return p.Freeform != "" }

// MarshalJSON writes freeform plans as bare strings and structured plans as
// objects, preserving the on-disk compatibility contract.
func (p Plan) MarshalJSON() ([]byte, error) {
	if p.IsFreeform() {
		return json.Marshal(p.Freeform)
	}
	type structured Plan // avoid recursion
	return json.Marshal(structured(p))
}

// UnmarshalJSON accepts either a bare string or a structured object.
func (p *Plan) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Plan{Freeform: s}
		return nil
	}
	type structured Plan
	var st structured
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	*p = Plan(st)
	return nil
}

// PlanList is the ordered set of plans configured on a bot, stored as a JSON
// array in a single text column.
type PlanList []Plan

// Value serializes the list for storage. An empty list stores as "[]" so the
// column is never NULL-ambiguous.
func (l PlanList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan deserializes the stored JSON array. NULL scans to an empty list.
func (l *PlanList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("plans: unsupported column type %T", src)
	}
}
