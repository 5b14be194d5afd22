// Package registry resolves record type names to their base kind and
// ordered field definitions. sessions and dailies are built in; every
// other type lives as a row in the sequences table so user-defined types
// survive restarts.
package registry

import (
	"fmt"
	"regexp"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
)

// Base is the closed set of structural categories a type can have.
type Base string

const (
	BaseTasks     Base = "tasks"
	BaseDocuments Base = "documents"
	BaseSessions  Base = "sessions"
	BaseDailies   Base = "dailies"
)

// FieldDef is one ordered front-matter field with its default value.
type FieldDef struct {
	Name    string
	Default string
}

// TypeInfo describes one resolvable record type.
type TypeInfo struct {
	Name   string
	Base   Base
	Fields []FieldDef
}

// DatePartitioned reports whether records of this type live under date
// sub-directories and carry a date-derived id.
func (ti TypeInfo) DatePartitioned() bool {
	return ti.Base == BaseSessions || ti.Base == BaseDailies
}

var (
	taskFields = []FieldDef{
		{Name: "base"},
		{Name: "title"},
		{Name: "description"},
		{Name: "priority", Default: "medium"},
		{Name: "status_id", Default: "1"},
		{Name: "start_date"},
		{Name: "end_date"},
		{Name: "related"},
		{Name: "tags"},
		{Name: "created_at"},
		{Name: "updated_at"},
	}

	documentFields = []FieldDef{
		{Name: "base"},
		{Name: "title"},
		{Name: "description"},
		{Name: "priority", Default: "medium"},
		{Name: "status_id", Default: "1"},
		{Name: "related"},
		{Name: "tags"},
		{Name: "created_at"},
		{Name: "updated_at"},
	}

	sessionFields = []FieldDef{
		{Name: "title"},
		{Name: "description"},
		{Name: "start_date"},
		{Name: "start_time"},
		{Name: "related"},
		{Name: "tags"},
		{Name: "created_at"},
		{Name: "updated_at"},
	}

	dailyFields = []FieldDef{
		{Name: "title"},
		{Name: "description"},
		{Name: "start_date"},
		{Name: "related"},
		{Name: "tags"},
		{Name: "created_at"},
		{Name: "updated_at"},
	}
)

// FieldsFor returns the ordered field list for a base kind. All
// serialization is driven by this list; there is no per-type code path.
func FieldsFor(base Base) []FieldDef {
	switch base {
	case BaseDocuments:
		return documentFields
	case BaseSessions:
		return sessionFields
	case BaseDailies:
		return dailyFields
	default:
		return taskFields
	}
}

var typeNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Registry resolves type names against the built-ins and the dynamic table.
type Registry struct {
	db *index.DB
}

// New creates a Registry backed by the given index database.
func New(db *index.DB) *Registry {
	return &Registry{db: db}
}

// Resolve returns the TypeInfo for a type name, or apperr.ErrUnknownType.
// The built-in date-keyed kinds never hit the dynamic table.
func (r *Registry) Resolve(name string) (TypeInfo, error) {
	switch name {
	case string(BaseSessions):
		return TypeInfo{Name: name, Base: BaseSessions, Fields: sessionFields}, nil
	case string(BaseDailies):
		return TypeInfo{Name: name, Base: BaseDailies, Fields: dailyFields}, nil
	}

	base, ok, err := r.db.BaseTypeOf(name)
	if err != nil {
		return TypeInfo{}, err
	}
	if !ok {
		return TypeInfo{}, fmt.Errorf("type %q: %w", name, apperr.ErrUnknownType)
	}
	b := Base(base)
	return TypeInfo{Name: name, Base: b, Fields: FieldsFor(b)}, nil
}

// CreateType registers a new user-defined type with a zeroed sequence
// counter. base must be tasks or documents.
func (r *Registry) CreateType(name string, base Base) error {
	if !typeNameRe.MatchString(name) {
		return apperr.Validationf("type name %q must match %s", name, typeNameRe.String())
	}
	if base != BaseTasks && base != BaseDocuments {
		return apperr.Validationf("base type must be %q or %q, got %q", BaseTasks, BaseDocuments, base)
	}
	if name == string(BaseSessions) || name == string(BaseDailies) {
		return fmt.Errorf("type %q: %w", name, apperr.ErrDuplicate)
	}
	return r.db.InsertTypeRow(name, string(base))
}

// DeleteType removes a user-defined type registration. The caller is
// responsible for checking that no record files remain.
func (r *Registry) DeleteType(name string) error {
	if name == string(BaseSessions) || name == string(BaseDailies) {
		return apperr.Validationf("built-in type %q cannot be deleted", name)
	}
	ok, err := r.db.DeleteTypeRow(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("type %q: %w", name, apperr.ErrUnknownType)
	}
	return nil
}

// ListTypes returns every resolvable type: the dynamic table plus the two
// built-in date-keyed kinds.
func (r *Registry) ListTypes() ([]TypeInfo, error) {
	rows, err := r.db.TypeRows()
	if err != nil {
		return nil, err
	}
	out := make([]TypeInfo, 0, len(rows)+2)
	for _, tr := range rows {
		b := Base(tr.Base)
		out = append(out, TypeInfo{Name: tr.Name, Base: b, Fields: FieldsFor(b)})
	}
	out = append(out,
		TypeInfo{Name: string(BaseSessions), Base: BaseSessions, Fields: sessionFields},
		TypeInfo{Name: string(BaseDailies), Base: BaseDailies, Fields: dailyFields},
	)
	return out, nil
}
