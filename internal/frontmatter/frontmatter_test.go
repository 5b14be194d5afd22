package frontmatter

import (
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	fields := []Field{
		{Key: "base", Value: "tasks"},
		{Key: "title", Value: "Fix bug"},
		{Key: "status_id", Value: 1},
		{Key: "tags", Value: []string{"bug", "x"}},
		{Key: "related", Value: []string{}},
	}
	data, err := Encode(fields, "Some body text.\n")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	meta, body, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body != "Some body text.\n" {
		t.Errorf("body = %q", body)
	}
	if StringValue(meta["title"]) != "Fix bug" {
		t.Errorf("title = %v", meta["title"])
	}
	if n, ok := IntValue(meta["status_id"]); !ok || n != 1 {
		t.Errorf("status_id = %v", meta["status_id"])
	}
	tags := StringSliceValue(meta["tags"])
	if len(tags) != 2 || tags[0] != "bug" || tags[1] != "x" {
		t.Errorf("tags = %v", tags)
	}
	if got := StringSliceValue(meta["related"]); len(got) != 0 {
		t.Errorf("related = %v, want empty", got)
	}
}

func TestEncode_PreservesFieldOrder(t *testing.T) {
	fields := []Field{
		{Key: "zeta", Value: "1"},
		{Key: "alpha", Value: "2"},
		{Key: "mid", Value: "3"},
	}
	data, err := Encode(fields, "")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s := string(data)
	if !(strings.Index(s, "zeta:") < strings.Index(s, "alpha:") && strings.Index(s, "alpha:") < strings.Index(s, "mid:")) {
		t.Errorf("field order not preserved:\n%s", s)
	}
}

func TestDecode_NoBlock(t *testing.T) {
	meta, body, err := Decode([]byte("just a body\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if meta != nil {
		t.Errorf("meta = %v, want nil", meta)
	}
	if body != "just a body\n" {
		t.Errorf("body = %q", body)
	}
}

func TestDecode_MissingClosingDelimiter(t *testing.T) {
	raw := "---\ntitle: oops\nno closing"
	meta, body, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if meta != nil {
		t.Errorf("meta = %v, want nil", meta)
	}
	if body != raw {
		t.Errorf("body = %q, want full content", body)
	}
}

func TestDecode_LegacyKeysVisible(t *testing.T) {
	raw := "---\ntitle: Old record\nrelated_tasks: [issues-1]\nrelated_documents: [docs-2]\n---\n\nbody\n"
	meta, _, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := StringSliceValue(meta["related_tasks"]); len(got) != 1 || got[0] != "issues-1" {
		t.Errorf("related_tasks = %v", got)
	}
	if got := StringSliceValue(meta["related_documents"]); len(got) != 1 || got[0] != "docs-2" {
		t.Errorf("related_documents = %v", got)
	}
}
