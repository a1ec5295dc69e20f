package rps

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"

	"github.com/pkg/errors"
)

type (
	// Content is the learning plan body of an RPS.
	Content struct {
		Description string       `json:"description" validate:"max=10000"`
		References  []string     `json:"references,omitempty" validate:"dive,max=500"`
		WeeklyPlans []WeeklyPlan `json:"weekly_plans,omitempty" validate:"dive"`
	}

	WeeklyPlan struct {
		Week       int      `json:"week" validate:"gte=1,lte=16"`
		Topic      string   `json:"topic" validate:"required,max=500"`
		SubCPMK    string   `json:"sub_cpmk,omitempty"` // code of the Sub-CPMK targeted that week
		Materials  ItemList `json:"materials"`
		Methods    ItemList `json:"methods"`
		Activities ItemList `json:"activities"`
	}

	ItemListKind int

	// ItemList is stored either as a plain list of strings or as an object
	// {"items": [...], "notes": "..."}; Kind records which form was read.
	ItemList struct {
		Kind  ItemListKind
		Items []string
		Notes string
	}
)

const (
	ListPlain ItemListKind = iota
	ListStructured
)

func PlainList(items ...string) ItemList {
	return ItemList{Kind: ListPlain, Items: items}
}

func StructuredList(notes string, items ...string) ItemList {
	return ItemList{Kind: ListStructured, Items: items, Notes: notes}
}

func (l ItemList) IsEmpty() bool {
	return len(l.Items) == 0 && l.Notes == ""
}

type structuredList struct {
	Items []string `json:"items"`
	Notes string   `json:"notes,omitempty"`
}

func (l ItemList) MarshalJSON() ([]byte, error) {
	items := l.Items
	if items == nil {
		items = []string{}
	}
	if l.Kind == ListStructured {
		return json.Marshal(structuredList{Items: items, Notes: l.Notes})
	}
	return json.Marshal(items)
}

func (l *ItemList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*l = ItemList{}
		return nil
	case data[0] == '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return errors.Wrap(err, "item list must only contain strings")
		}
		*l = ItemList{Kind: ListPlain, Items: trimAll(items)}
		return nil
	case data[0] == '{':
		var sl structuredList
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&sl); err != nil {
			return errors.Wrap(err, "decoding structured item list")
		}
		*l = ItemList{Kind: ListStructured, Items: trimAll(sl.Items), Notes: sl.Notes}
		return nil
	default:
		return errors.Errorf("item list must be a list of strings or an object, got %s", data)
	}
}

// Scan implements sql.Scanner for the JSON content column.
func (c *Content) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*c = Content{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("rps: cannot scan %T into Content", src)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		*c = Content{}
		return nil
	}
	return json.Unmarshal(data, c)
}

// Value implements driver.Valuer for the JSON content column.
func (c Content) Value() (driver.Value, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "encoding rps content")
	}
	return string(data), nil
}
