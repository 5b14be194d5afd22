package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
)

func validItem() *Item {
	return &Item{
		Type:     "issues",
		ID:       "1",
		Title:    "Fix bug",
		Priority: PriorityMedium,
		StatusID: 1,
	}
}

func TestCleanTags(t *testing.T) {
	got := CleanTags([]string{"a", "a", " a ", ""})
	if len(got) != 1 || got[0] != "a" {
		t.Errorf("CleanTags = %v, want [a]", got)
	}
}

func TestSplitRef(t *testing.T) {
	cases := []struct {
		ref     string
		typ, id string
		ok      bool
	}{
		{"issues-3", "issues", "3", true},
		{"sessions-2025-01-02-03.04.05.678", "sessions", "2025-01-02-03.04.05.678", true},
		{"noseparator", "", "", false},
		{"-3", "", "", false},
		{"issues-", "", "", false},
	}
	for _, c := range cases {
		typ, id, ok := SplitRef(c.ref)
		if typ != c.typ || id != c.id || ok != c.ok {
			t.Errorf("SplitRef(%q) = (%q, %q, %v), want (%q, %q, %v)", c.ref, typ, id, ok, c.typ, c.id, c.ok)
		}
	}
}

func TestValidate_TitleRules(t *testing.T) {
	it := validItem()
	it.Title = "   "
	it.Normalize()
	if err := it.Validate(); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("whitespace title: err = %v, want validation error", err)
	}

	it = validItem()
	it.Title = strings.Repeat("x", 501)
	it.Normalize()
	if err := it.Validate(); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("501-char title: err = %v, want validation error", err)
	}

	it = validItem()
	it.Title = "  trimmed  "
	it.Normalize()
	if err := it.Validate(); err != nil {
		t.Errorf("trimmed title: unexpected error %v", err)
	}
	if it.Title != "trimmed" {
		t.Errorf("title = %q, want %q", it.Title, "trimmed")
	}
}

func TestValidate_Dates(t *testing.T) {
	cases := []struct {
		date string
		ok   bool
	}{
		{"2024-02-29", true}, // leap year
		{"2024-02-30", false},
		{"2024-13-01", false},
		{"not-a-date", false},
		{"", true},
	}
	for _, c := range cases {
		it := validItem()
		it.StartDate = c.date
		it.Normalize()
		err := it.Validate()
		if c.ok && err != nil {
			t.Errorf("start_date %q: unexpected error %v", c.date, err)
		}
		if !c.ok && !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("start_date %q: err = %v, want validation error", c.date, err)
		}
	}
}

func TestValidate_SelfReference(t *testing.T) {
	it := validItem()
	it.Related = []string{"issues-1"}
	it.Normalize()
	if err := it.Validate(); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("self reference: err = %v, want validation error", err)
	}
}

func TestValidate_RelatedMembers(t *testing.T) {
	it := validItem()
	it.Related = []string{""}
	it.Normalize()
	if err := it.Validate(); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty related member: err = %v, want validation error", err)
	}

	it = validItem()
	it.Related = []string{"plans-2", "plans-2", "docs-1"}
	it.Normalize()
	if err := it.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(it.Related) != 2 {
		t.Errorf("related = %v, want deduplicated 2 entries", it.Related)
	}
}

func TestMergeLegacyRelated(t *testing.T) {
	got := MergeLegacyRelated(nil, []string{"issues-1", "issues-1"}, []string{"docs-2"})
	if len(got) != 2 || got[0] != "issues-1" || got[1] != "docs-2" {
		t.Errorf("merged = %v, want [issues-1 docs-2]", got)
	}

	// related wins over the legacy split.
	got = MergeLegacyRelated([]string{"plans-9"}, []string{"issues-1"}, nil)
	if len(got) != 1 || got[0] != "plans-9" {
		t.Errorf("merged = %v, want [plans-9]", got)
	}
}
