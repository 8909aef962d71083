package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, []any) (any, error) { return nil, nil }

func TestNewSetRejectsBadEntries(t *testing.T) {
	_, err := NewSet(Tool{Name: "", Fn: noop})
	assert.True(t, errors.Is(err, ErrEmptyName))

	_, err = NewSet(Tool{Name: "a", Fn: noop}, Tool{Name: "a", Fn: noop})
	assert.True(t, errors.Is(err, ErrDuplicateTool))

	_, err = NewSet(Tool{Name: "a"})
	assert.True(t, errors.Is(err, ErrNilFunc))
}

func TestMetadataKeepsDeclarationOrder(t *testing.T) {
	s := MustSet(
		Tool{
			Name:        "reverseString",
			Description: "Reverse a text string",
			Params:      []Param{{Name: "text", Type: "string", Description: "The text to reverse"}},
			Fn:          noop,
		},
		Tool{
			Name:        "add",
			Description: "Adds two numbers",
			Params: []Param{
				{Name: "b", Type: "number", Description: "second"},
				{Name: "a", Type: "number", Description: "first"},
			},
			Fn: noop,
		},
	)
	b, err := json.Marshal(s.Metadata())
	require.NoError(t, err)
	assert.Equal(t,
		`{"reverseString":{"description":"Reverse a text string","parameters":{"text":{"type":"string","description":"The text to reverse"}}},`+
			`"add":{"description":"Adds two numbers","parameters":{"b":{"type":"number","description":"second"},"a":{"type":"number","description":"first"}}}}`,
		string(b))
	assert.Equal(t, []string{"add", "reverseString"}, s.Names())
}

func TestEmptyMetadata(t *testing.T) {
	var s *Set
	b, err := json.Marshal(s.Metadata())
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(b))
}

func TestWithReturnsNewSet(t *testing.T) {
	base := MustSet(Tool{Name: "a", Fn: noop})
	more, err := base.With(Tool{Name: "b", Fn: noop})
	require.NoError(t, err)
	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, more.Len())
	_, ok := base.Lookup("b")
	assert.False(t, ok)

	_, err = base.With(Tool{Name: "a", Fn: noop})
	assert.True(t, errors.Is(err, ErrDuplicateTool))
}
