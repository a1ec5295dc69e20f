package rps

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemList_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    ItemList
		wantErr bool
	}{
		{name: "null", data: `null`, want: ItemList{}},
		{name: "plain list", data: `[" Ceramah ", "Diskusi"]`, want: PlainList("Ceramah", "Diskusi")},
		{name: "structured", data: `{"items": ["Studi kasus"], "notes": "kelompok 3 orang"}`, want: StructuredList("kelompok 3 orang", "Studi kasus")},
		{name: "structured unknown field", data: `{"items": [], "extra": 1}`, wantErr: true},
		{name: "list of numbers", data: `[1, 2]`, wantErr: true},
		{name: "scalar", data: `"Ceramah"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ItemList
			err := json.Unmarshal([]byte(tt.data), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestItemList_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(PlainList())
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(b))

	b, err = json.Marshal(StructuredList("n", "a"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"items": ["a"], "notes": "n"}`, string(b))
}

func TestContent_ScanValue(t *testing.T) {
	c := Content{
		Description: "Pemrograman Go",
		References:  []string{"The Go Programming Language"},
		WeeklyPlans: []WeeklyPlan{{
			Week:       1,
			Topic:      "Pengenalan",
			Materials:  PlainList("slide 1"),
			Methods:    StructuredList("tatap muka", "ceramah"),
			Activities: PlainList(),
		}},
	}
	v, err := c.Value()
	require.NoError(t, err)

	var got Content
	require.NoError(t, got.Scan(v))
	assert.Equal(t, c.Description, got.Description)
	assert.Equal(t, c.WeeklyPlans[0].Methods, got.WeeklyPlans[0].Methods)
	assert.Equal(t, c.WeeklyPlans[0].Materials, got.WeeklyPlans[0].Materials)

	require.NoError(t, got.Scan(nil))
	assert.Equal(t, Content{}, got)
}
