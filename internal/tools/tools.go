package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	ErrEmptyName     = errors.New("tools: empty tool name")
	ErrDuplicateTool = errors.New("tools: duplicate tool name")
	ErrNilFunc       = errors.New("tools: tool has no function")
)

// Func is the fixed signature every tool implements. Arguments arrive in the
// tool's declared parameter order.
type Func func(ctx context.Context, args []any) (any, error)

// Param describes one declared parameter. Only Name and Optional affect
// dispatch; Type and Description are advertised to the agent.
type Param struct {
	Name        string `json:"-" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Optional    bool   `json:"-" yaml:"optional"`
}

// Tool is one registration entry.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Fn          Func
}

func (t Tool) required() int {
	n := 0
	for _, p := range t.Params {
		if !p.Optional {
			n++
		}
	}
	return n
}

// Set is an immutable snapshot of registered tools.
type Set struct {
	byName map[string]Tool
	order  []string
}

// NewSet validates ts and returns a snapshot. Declaration order is preserved
// for metadata rendering.
func NewSet(ts ...Tool) (*Set, error) {
	s := &Set{byName: make(map[string]Tool, len(ts)), order: make([]string, 0, len(ts))}
	for _, t := range ts {
		if t.Name == "" {
			return nil, ErrEmptyName
		}
		if t.Fn == nil {
			return nil, fmt.Errorf("%w: %s", ErrNilFunc, t.Name)
		}
		if _, ok := s.byName[t.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
		}
		t.Params = append([]Param(nil), t.Params...)
		s.byName[t.Name] = t
		s.order = append(s.order, t.Name)
	}
	return s, nil
}

// MustSet is NewSet for static tool tables.
func MustSet(ts ...Tool) *Set {
	s, err := NewSet(ts...)
	if err != nil {
		panic(err)
	}
	return s
}

// With returns a new Set holding s's tools followed by more.
func (s *Set) With(more ...Tool) (*Set, error) {
	all := make([]Tool, 0, s.Len()+len(more))
	if s != nil {
		for _, name := range s.order {
			all = append(all, s.byName[name])
		}
	}
	all = append(all, more...)
	return NewSet(all...)
}

// Lookup returns the tool registered under name.
func (s *Set) Lookup(name string) (Tool, bool) {
	if s == nil {
		return Tool{}, false
	}
	t, ok := s.byName[name]
	return t, ok
}

// Len reports the number of tools.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Names returns tool names sorted alphabetically.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := append([]string(nil), s.order...)
	sort.Strings(names)
	return names
}

// Metadata is the advertised description of every tool, keyed by name:
// {"name": {"description": ..., "parameters": {"p": {"type","description"}}}}.
type Metadata struct {
	set *Set
}

// Metadata returns the advertisement for s.
func (s *Set) Metadata() Metadata { return Metadata{set: s} }

// MarshalJSON renders tools and their parameters in declaration order.
func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if m.set != nil {
		for i, name := range m.set.order {
			t := m.set.byName[name]
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, name); err != nil {
				return nil, err
			}
			buf.WriteString(`{"description":`)
			desc, err := json.Marshal(t.Description)
			if err != nil {
				return nil, err
			}
			buf.Write(desc)
			buf.WriteString(`,"parameters":{`)
			for j, p := range t.Params {
				if j > 0 {
					buf.WriteByte(',')
				}
				if err := writeKey(&buf, p.Name); err != nil {
					return nil, err
				}
				pb, err := json.Marshal(p)
				if err != nil {
					return nil, err
				}
				buf.Write(pb)
			}
			buf.WriteString("}}")
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, k string) error {
	b, err := json.Marshal(k)
	if err != nil {
		return err
	}
	buf.Write(b)
	buf.WriteByte(':')
	return nil
}
