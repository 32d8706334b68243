// Package schema describes the board's columns. Columns are resolved once at startup and
// addressed by index; names are only used at the edges (wire format, config files).
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

type Kind int

const (
	Repeatable Kind = iota
	Singleton
)

func (k Kind) String() string {
	if k == Singleton {
		return "singleton"
	}
	return "repeatable"
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "singleton":
		*k = Singleton
	case "repeatable", "":
		*k = Repeatable
	default:
		return fmt.Errorf("unknown column kind: %s", s)
	}
	return nil
}

func (k Kind) MarshalJSON() ([]byte, error) { return json.Marshal(k.String()) }

type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldDate     FieldType = "date"
	FieldOption   FieldType = "option"
	FieldBool     FieldType = "bool"
)

type Field struct {
	Name  string    `json:"name"`
	Label string    `json:"label,omitempty"`
	Type  FieldType `json:"type,omitempty"`
	// Options names an option list for FieldOption fields.
	Options string `json:"options,omitempty"`
}

func (f Field) Title() string {
	if strings.TrimSpace(f.Label) != "" {
		return f.Label
	}
	return humanize(f.Name)
}

type Column struct {
	Name   string  `json:"name"`
	Title  string  `json:"title,omitempty"`
	Kind   Kind    `json:"kind"`
	Fields []Field `json:"fields"`
	// ListHidden columns exist in the data but are not shown on the list board.
	ListHidden bool `json:"listHidden,omitempty"`
	// Summary lists the fields shown in a cell, in order. Defaults to the first field.
	Summary []string `json:"summary,omitempty"`
}

func (c Column) Singleton() bool { return c.Kind == Singleton }

func (c Column) Label() string {
	if strings.TrimSpace(c.Title) != "" {
		return c.Title
	}
	return humanize(c.Name)
}

func (c Column) SummaryFields() []string {
	if len(c.Summary) > 0 {
		return c.Summary
	}
	if len(c.Fields) > 0 {
		return []string{c.Fields[0].Name}
	}
	return nil
}

type Schema struct {
	Columns       []Column                     `json:"columns"`
	DetailColumns []Column                     `json:"detailColumns,omitempty"`
	OptionLists   map[string][]string          `json:"optionLists,omitempty"`
	Synonyms      map[string]map[string]string `json:"synonyms,omitempty"`
}

//go:embed default_schema.json
var defaultSchemaJSON []byte

// Default returns the embedded schema.
func Default() (*Schema, error) {
	return Parse(defaultSchemaJSON)
}

func Parse(b []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if len(s.Columns) == 0 {
		return nil, fmt.Errorf("parse schema: no columns")
	}
	if len(s.DetailColumns) == 0 {
		s.DetailColumns = append([]Column(nil), s.Columns...)
	}
	seen := map[string]bool{}
	for _, c := range s.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("parse schema: column without name")
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("parse schema: duplicate column %s", c.Name)
		}
		seen[c.Name] = true
	}
	return &s, nil
}

// Load reads a schema file, or the embedded default when path is empty.
func Load(path string) (*Schema, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func (s *Schema) ColumnCount() int { return len(s.Columns) }

func (s *Schema) ColumnName(i int) string {
	if i < 0 || i >= len(s.Columns) {
		return ""
	}
	return s.Columns[i].Name
}

func (s *Schema) IsSingleton(i int) bool {
	if i < 0 || i >= len(s.Columns) {
		return false
	}
	return s.Columns[i].Singleton()
}

// Index returns the position of the named column, or -1.
func (s *Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (s *Schema) Column(name string) (Column, bool) {
	if i := s.Index(name); i >= 0 {
		return s.Columns[i], true
	}
	return Column{}, false
}

// ListColumns are the columns shown on the list board.
func (s *Schema) ListColumns() []Column {
	out := make([]Column, 0, len(s.Columns))
	for _, c := range s.Columns {
		if !c.ListHidden {
			out = append(out, c)
		}
	}
	return out
}

// OptionList returns the named option list. All micro_test* lists are served merged under
// "microbiology_test".
func (s *Schema) OptionList(name string) []string {
	if name != "microbiology_test" {
		return s.OptionLists[name]
	}
	keys := make([]string, 0)
	for k := range s.OptionLists {
		if strings.HasPrefix(k, "micro_test") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		out = append(out, s.OptionLists[k]...)
	}
	return out
}

// Canonical applies each known synonym in term in turn, rewriting its first occurrence to the
// canonical form. Longer synonyms go first so "MRSA bacteraemia" is rewritten before "MRSA".
func (s *Schema) Canonical(option, term string) string {
	if term == "" {
		return term
	}
	syn := s.Synonyms[option]
	if len(syn) == 0 {
		return term
	}
	keys := make([]string, 0, len(syn))
	for k := range syn {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		term = strings.Replace(term, k, syn[k], 1)
	}
	return term
}

func humanize(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "_", " ")
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
