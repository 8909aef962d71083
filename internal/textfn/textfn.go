// Package textfn provides the built-in string tools offered to the agent.
package textfn

import (
	"context"

	"github.com/gaspardpetit/agentbridge/internal/tools"
)

// Length returns the length of s in bytes.
func Length(s string) int { return len(s) }

// CountWords counts runs of ASCII letters, apostrophes and hyphens. A
// leading apostrophe or hyphen and a trailing hyphen of the whole text are
// ignored, so "-" alone is not a word.
func CountWords(s string) int {
	b := []byte(s)
	p, e := 0, len(b)
	if p < e && (b[p] == '\'' || b[p] == '-') {
		p++
	}
	if e > p && b[e-1] == '-' {
		e--
	}
	n := 0
	for p < e {
		start := p
		for p < e && isWordByte(b[p]) {
			p++
		}
		if p > start {
			n++
		}
		p++
	}
	return n
}

func isWordByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '\'' || c == '-'
}

// Reverse reverses s by code point.
func Reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func textParam(desc string) []tools.Param {
	return []tools.Param{{Name: "text", Type: "string", Description: desc}}
}

// Tools returns the built-in registration entries in advertised order.
func Tools() []tools.Tool {
	return []tools.Tool{
		{
			Name:        "getStringLength",
			Description: "Get the length of a text string",
			Params:      textParam("The text to measure"),
			Fn: func(_ context.Context, args []any) (any, error) {
				s, err := tools.String(args, 0)
				if err != nil {
					return nil, err
				}
				return Length(s), nil
			},
		},
		{
			Name:        "countWords",
			Description: "Count the number of words in a text",
			Params:      textParam("The text to analyze"),
			Fn: func(_ context.Context, args []any) (any, error) {
				s, err := tools.String(args, 0)
				if err != nil {
					return nil, err
				}
				return CountWords(s), nil
			},
		},
		{
			Name:        "reverseString",
			Description: "Reverse a text string (supports UTF-8 characters)",
			Params:      textParam("The text to reverse"),
			Fn: func(_ context.Context, args []any) (any, error) {
				s, err := tools.String(args, 0)
				if err != nil {
					return nil, err
				}
				return Reverse(s), nil
			},
		},
	}
}

// Set returns the built-in tools as a registration snapshot.
func Set() *tools.Set { return tools.MustSet(Tools()...) }
