package registry

import (
	"errors"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/testutil"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(testutil.TestDB(t))
}

func TestResolve_SeededTypes(t *testing.T) {
	r := testRegistry(t)
	cases := []struct {
		name string
		base Base
	}{
		{"issues", BaseTasks},
		{"plans", BaseTasks},
		{"docs", BaseDocuments},
		{"knowledge", BaseDocuments},
		{"sessions", BaseSessions},
		{"dailies", BaseDailies},
	}
	for _, c := range cases {
		ti, err := r.Resolve(c.name)
		if err != nil {
			t.Fatalf("Resolve(%s): %v", c.name, err)
		}
		if ti.Base != c.base {
			t.Errorf("%s base = %s, want %s", c.name, ti.Base, c.base)
		}
		if len(ti.Fields) == 0 {
			t.Errorf("%s has no field definitions", c.name)
		}
	}
}

func TestResolve_Unknown(t *testing.T) {
	r := testRegistry(t)
	if _, err := r.Resolve("nope"); !errors.Is(err, apperr.ErrUnknownType) {
		t.Errorf("err = %v, want unknown type", err)
	}
}

func TestCreateType(t *testing.T) {
	r := testRegistry(t)
	if err := r.CreateType("recipes", BaseDocuments); err != nil {
		t.Fatalf("CreateType: %v", err)
	}
	ti, err := r.Resolve("recipes")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ti.Base != BaseDocuments {
		t.Errorf("base = %s", ti.Base)
	}

	if err := r.CreateType("recipes", BaseDocuments); !errors.Is(err, apperr.ErrDuplicate) {
		t.Errorf("duplicate err = %v", err)
	}
	if err := r.CreateType("Bad Name", BaseTasks); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad name err = %v", err)
	}
	if err := r.CreateType("things", Base("widgets")); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad base err = %v", err)
	}
	if err := r.CreateType("sessions", BaseTasks); !errors.Is(err, apperr.ErrDuplicate) {
		t.Errorf("builtin clash err = %v", err)
	}
}

func TestDeleteType(t *testing.T) {
	r := testRegistry(t)
	_ = r.CreateType("recipes", BaseTasks)
	if err := r.DeleteType("recipes"); err != nil {
		t.Fatalf("DeleteType: %v", err)
	}
	if _, err := r.Resolve("recipes"); !errors.Is(err, apperr.ErrUnknownType) {
		t.Errorf("resolve after delete err = %v", err)
	}
	if err := r.DeleteType("sessions"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("builtin delete err = %v", err)
	}
	if err := r.DeleteType("ghost"); !errors.Is(err, apperr.ErrUnknownType) {
		t.Errorf("missing delete err = %v", err)
	}
}

func TestListTypes_IncludesBuiltins(t *testing.T) {
	r := testRegistry(t)
	types, err := r.ListTypes()
	if err != nil {
		t.Fatalf("ListTypes: %v", err)
	}
	names := make(map[string]Base, len(types))
	for _, ti := range types {
		names[ti.Name] = ti.Base
	}
	if names["sessions"] != BaseSessions || names["dailies"] != BaseDailies {
		t.Errorf("builtins missing from %v", names)
	}
	if names["issues"] != BaseTasks {
		t.Errorf("seeded types missing from %v", names)
	}
}
