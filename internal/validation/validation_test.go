package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID    string   `validate:"required"`
	Name  string   `validate:"max=5"`
	Count int      `validate:"gte=0"`
	Day   string   `validate:"omitempty,datetime=2006-01-02"`
	Tags  []string `validate:"min=1,dive,required"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(sample{ID: "a", Tags: []string{"x"}}))

	err := Struct(sample{Name: "toolong", Count: -1, Day: "12/01/2026"})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "id is required")
	assert.Contains(t, msg, "name must be at most 5 characters")
	assert.Contains(t, msg, "count must be at least 0")
	assert.Contains(t, msg, "day must match 2006-01-02")
	assert.Contains(t, msg, "tags must have at least 1")
}
