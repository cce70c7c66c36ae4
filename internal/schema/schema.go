// Package schema describes and validates the field mappings of an index.
package schema

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

// Field types.
const (
	TypeText    = "text"
	TypeKeyword = "keyword"
)

// FieldMapping declares how one field is analyzed.
type FieldMapping struct {
	Name     string
	Type     string
	Analyzer string
}

// Field is a validated mapping bound to its analyzer.
type Field struct {
	Mapping  FieldMapping
	Analyzer analysis.Analyzer
}

// Schema is the immutable set of fields of an index.
type Schema struct {
	Index  string
	fields map[string]*Field
	order  []string
}

// New validates mappings and resolves every analyzer through reg. A text
// field without an analyzer uses the standard analyzer; keyword fields always
// use the keyword analyzer.
func New(index string, mappings []FieldMapping, reg *analysis.Registry) (*Schema, error) {
	if strings.TrimSpace(index) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "index name is required")
	}
	if len(mappings) == 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "index %q: at least one field mapping is required", index)
	}
	s := &Schema{
		Index:  index,
		fields: make(map[string]*Field, len(mappings)),
		order:  make([]string, 0, len(mappings)),
	}
	for _, m := range mappings {
		if strings.TrimSpace(m.Name) == "" {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "index %q: field name is required", index)
		}
		if _, dup := s.fields[m.Name]; dup {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "index %q: duplicate field %q", index, m.Name)
		}
		switch m.Type {
		case TypeText, "":
			m.Type = TypeText
			if m.Analyzer == "" {
				m.Analyzer = analysis.Standard
			}
		case TypeKeyword:
			if m.Analyzer != "" && m.Analyzer != analysis.Keyword {
				return nil, apperrors.Newf(apperrors.ErrInvalidInput,
					"index %q: keyword field %q cannot use analyzer %q", index, m.Name, m.Analyzer)
			}
			m.Analyzer = analysis.Keyword
		default:
			return nil, apperrors.Newf(apperrors.ErrInvalidInput,
				"index %q: field %q has unsupported type %q", index, m.Name, m.Type)
		}
		a, err := reg.Get(m.Analyzer)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrUnknownAnalyzer,
				"index %q: field %q: %q", index, m.Name, m.Analyzer)
		}
		s.fields[m.Name] = &Field{Mapping: m, Analyzer: a}
		s.order = append(s.order, m.Name)
	}
	return s, nil
}

// FromConfig converts YAML field definitions into mappings.
func FromConfig(fields []config.FieldConfig) []FieldMapping {
	out := make([]FieldMapping, len(fields))
	for i, f := range fields {
		out[i] = FieldMapping{Name: f.Name, Type: f.Type, Analyzer: f.Analyzer}
	}
	return out
}

// Field returns the mapping of name or ErrUnmappedField.
func (s *Schema) Field(name string) (*Field, error) {
	f, ok := s.fields[name]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnmappedField, "index %q: %q", s.Index, name)
	}
	return f, nil
}

// Fields returns the field names in declaration order.
func (s *Schema) Fields() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Mappings returns a copy of the resolved mappings in declaration order.
func (s *Schema) Mappings() []FieldMapping {
	out := make([]FieldMapping, len(s.order))
	for i, name := range s.order {
		out[i] = s.fields[name].Mapping
	}
	return out
}
