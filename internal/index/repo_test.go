package index

import (
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testItem(typ, id, title string) *models.Item {
	now := time.Now()
	return &models.Item{
		Type:      typ,
		ID:        id,
		Title:     title,
		Priority:  models.PriorityMedium,
		StatusID:  1,
		Tags:      []string{},
		Related:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSchemaSeeds(t *testing.T) {
	db := testDB(t)
	statuses, err := db.Statuses()
	if err != nil {
		t.Fatalf("Statuses: %v", err)
	}
	if len(statuses) != 7 {
		t.Fatalf("expected 7 seeded statuses, got %d", len(statuses))
	}
	id, ok, err := db.StatusID("Open")
	if err != nil || !ok || id != 1 {
		t.Errorf("StatusID(Open) = (%d, %v, %v)", id, ok, err)
	}
	if _, ok, _ := db.StatusID("Bogus"); ok {
		t.Error("unknown status resolved")
	}

	rows, err := db.TypeRows()
	if err != nil {
		t.Fatalf("TypeRows: %v", err)
	}
	if len(rows) != 4 {
		t.Errorf("expected 4 seeded types, got %d", len(rows))
	}
}

func TestUpsertAndList(t *testing.T) {
	db := testDB(t)
	it := testItem("issues", "1", "Fix bug")
	it.Tags = []string{"bug"}
	if err := db.UpsertItem(it); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}

	items, err := db.ListItems("issues", ListOptions{})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len = %d, want 1", len(items))
	}
	got := items[0]
	if got.Title != "Fix bug" || got.Status != "Open" || got.Priority != models.PriorityMedium {
		t.Errorf("row = %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "bug" {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestList_ClosedStatusFiltering(t *testing.T) {
	db := testDB(t)
	open := testItem("issues", "1", "open one")
	closed := testItem("issues", "2", "closed one")
	closed.StatusID = 5 // Closed
	_ = db.UpsertItem(open)
	_ = db.UpsertItem(closed)

	items, _ := db.ListItems("issues", ListOptions{})
	if len(items) != 1 || items[0].ID != "1" {
		t.Errorf("default list = %v, want only open record", ids(items))
	}

	items, _ = db.ListItems("issues", ListOptions{IncludeClosed: true})
	if len(items) != 2 {
		t.Errorf("include closed: len = %d, want 2", len(items))
	}

	items, _ = db.ListItems("issues", ListOptions{Statuses: []string{"Closed"}})
	if len(items) != 1 || items[0].ID != "2" {
		t.Errorf("status set = %v, want only closed record", ids(items))
	}

	// A non-nil empty set means empty result, not "no filter".
	items, _ = db.ListItems("issues", ListOptions{Statuses: []string{}})
	if len(items) != 0 {
		t.Errorf("empty status set = %v, want empty", ids(items))
	}
}

func TestList_DateRange(t *testing.T) {
	db := testDB(t)
	a := testItem("sessions", "2025-01-02-03.04.05.678", "early")
	a.StartDate = "2025-01-02"
	b := testItem("sessions", "2025-02-10-10.00.00.000", "late")
	b.StartDate = "2025-02-10"
	_ = db.UpsertItem(a)
	_ = db.UpsertItem(b)

	items, err := db.ListItems("sessions", ListOptions{
		UseStartDate: true, StartDate: "2025-01-01", EndDate: "2025-01-31",
	})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 || items[0].ID != a.ID {
		t.Errorf("range list = %v, want only the January session", ids(items))
	}

	// Inclusive bounds.
	items, _ = db.ListItems("sessions", ListOptions{
		UseStartDate: true, StartDate: "2025-01-02", EndDate: "2025-02-10",
	})
	if len(items) != 2 {
		t.Errorf("inclusive range: len = %d, want 2", len(items))
	}
}

func TestList_LimitClamp(t *testing.T) {
	db := testDB(t)
	base := time.Now()
	for i := 0; i < 3; i++ {
		it := testItem("issues", strconv.Itoa(i+1), "t")
		it.CreatedAt = base.Add(time.Duration(i) * time.Second)
		_ = db.UpsertItem(it)
	}

	items, _ := db.ListItems("issues", ListOptions{Limit: 2})
	if len(items) != 2 {
		t.Errorf("limit 2: len = %d", len(items))
	}
	// Newest-created-first ordering.
	if items[0].ID != "3" {
		t.Errorf("first = %s, want newest", items[0].ID)
	}

	items, _ = db.ListItems("issues", ListOptions{Limit: 0})
	if len(items) != 3 {
		t.Errorf("limit 0 means no limit: len = %d", len(items))
	}

	items, _ = db.ListItems("issues", ListOptions{Limit: MaxListLimit + 5})
	if len(items) != 3 {
		t.Errorf("clamped limit: len = %d", len(items))
	}
}

func TestTagEdges(t *testing.T) {
	db := testDB(t)
	it := testItem("issues", "1", "tagged")
	it.Tags = []string{"bug", "x"}
	_ = db.UpsertItem(it)

	tags, err := db.Tags()
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("tags = %v", tags)
	}
	for _, tag := range tags {
		if tag.UsageCount != 1 {
			t.Errorf("tag %s usage = %d, want 1", tag.Name, tag.UsageCount)
		}
	}

	// Re-sync with a smaller tag set rewrites edges and usage counts.
	it.Tags = []string{"bug"}
	_ = db.UpsertItem(it)
	tags, _ = db.Tags()
	for _, tag := range tags {
		want := 0
		if tag.Name == "bug" {
			want = 1
		}
		if tag.UsageCount != want {
			t.Errorf("tag %s usage = %d, want %d", tag.Name, tag.UsageCount, want)
		}
	}

	byTag, err := db.SearchByTag("bug")
	if err != nil {
		t.Fatalf("SearchByTag: %v", err)
	}
	if len(byTag) != 1 || byTag[0].ID != "1" {
		t.Errorf("byTag = %v", ids(byTag))
	}
}

func TestRelationEdges_DedupAndBidirectionalDelete(t *testing.T) {
	db := testDB(t)
	x := testItem("issues", "1", "X")
	x.Related = []string{"plans-1", "plans-1"}
	_ = db.UpsertItem(x)

	edges, _ := db.RelationEdges()
	if len(edges) != 1 {
		t.Fatalf("edges = %v, want 1 deduplicated edge", edges)
	}

	y := testItem("plans", "1", "Y")
	y.Related = []string{"issues-1"}
	_ = db.UpsertItem(y)
	edges, _ = db.RelationEdges()
	if len(edges) != 2 {
		t.Fatalf("edges = %v, want 2 directed edges", edges)
	}

	// Deleting X removes edges where X is source or target.
	if err := db.DeleteItem("issues", "1"); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	edges, _ = db.RelationEdges()
	if len(edges) != 0 {
		t.Errorf("edges after delete = %v, want none", edges)
	}
}

func TestNextSequence(t *testing.T) {
	db := testDB(t)
	for want := int64(1); want <= 3; want++ {
		got, err := db.NextSequence("issues")
		if err != nil {
			t.Fatalf("NextSequence: %v", err)
		}
		if got != want {
			t.Errorf("sequence = %d, want %d", got, want)
		}
	}
	if _, err := db.NextSequence("nope"); !errors.Is(err, apperr.ErrUnknownType) {
		t.Errorf("unknown type err = %v", err)
	}
}

func TestTypeRows_InsertAndDelete(t *testing.T) {
	db := testDB(t)
	if err := db.InsertTypeRow("recipes", "documents"); err != nil {
		t.Fatalf("InsertTypeRow: %v", err)
	}
	if err := db.InsertTypeRow("recipes", "documents"); !errors.Is(err, apperr.ErrDuplicate) {
		t.Errorf("duplicate err = %v", err)
	}
	base, ok, err := db.BaseTypeOf("recipes")
	if err != nil || !ok || base != "documents" {
		t.Errorf("BaseTypeOf = (%q, %v, %v)", base, ok, err)
	}
	removed, err := db.DeleteTypeRow("recipes")
	if err != nil || !removed {
		t.Errorf("DeleteTypeRow = (%v, %v)", removed, err)
	}
}

func TestSearch_Fallback(t *testing.T) {
	db := testDB(t)
	it := testItem("docs", "1", "Search Me")
	it.Content = "uniqueword appears here"
	_ = db.UpsertItem(it)

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Type != "docs" || results[0].ID != "1" {
		t.Errorf("results = %+v, want 1 hit for docs-1", results)
	}
}

func ids(items []models.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
