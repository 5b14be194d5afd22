// Package models defines the record types stored by the engine.
package models

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/apperr"
)

// Priorities a record may carry.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// DateLayout is the calendar-date form used by start/end dates and daily ids.
const DateLayout = "2006-01-02"

// Item is one knowledge-base record. The markdown file is the sole
// authority for its existence and content; the relational index only
// projects it.
type Item struct {
	Type        string    `json:"type"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content,omitempty"`
	Priority    string    `json:"priority"`
	StatusID    int       `json:"status_id"`
	Status      string    `json:"status,omitempty"` // resolved from the status vocabulary, never persisted
	StartDate   string    `json:"start_date,omitempty"`
	EndDate     string    `json:"end_date,omitempty"`
	StartTime   string    `json:"start_time,omitempty"`
	Tags        []string  `json:"tags"`
	Related     []string  `json:"related"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Ref renders a (type, id) pair in the "type-id" reference form.
func Ref(typ, id string) string {
	return typ + "-" + id
}

// SplitRef splits a "type-id" reference on the first separator. The id part
// may itself contain separators (session ids do).
func SplitRef(ref string) (typ, id string, ok bool) {
	i := strings.Index(ref, "-")
	if i <= 0 || i == len(ref)-1 {
		return "", "", false
	}
	return ref[:i], ref[i+1:], true
}

// SelfRef reports the record's own reference form.
func (it *Item) SelfRef() string { return Ref(it.Type, it.ID) }

// Normalize trims the title, cleans tags (trim, drop empties, dedupe) and
// deduplicates related references. Must run before Validate.
func (it *Item) Normalize() {
	it.Title = strings.TrimSpace(it.Title)
	if it.Priority == "" {
		it.Priority = PriorityMedium
	}
	it.Tags = CleanTags(it.Tags)
	it.Related = dedupe(it.Related)
}

// Validate applies the shared create/update rules. The caller is expected
// to have called Normalize first.
func (it *Item) Validate() error {
	err := validation.ValidateStruct(it,
		validation.Field(&it.Title, validation.Required, validation.RuneLength(1, 500)),
		validation.Field(&it.Priority, validation.In(PriorityHigh, PriorityMedium, PriorityLow)),
		validation.Field(&it.StartDate, validation.Date(DateLayout)),
		validation.Field(&it.EndDate, validation.Date(DateLayout)),
		validation.Field(&it.Related, validation.Each(validation.Required)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	for _, ref := range it.Related {
		if _, _, ok := SplitRef(ref); !ok {
			return apperr.Validationf("related entry %q is not a type-id reference", ref)
		}
	}
	return it.ValidateSelfRef()
}

// ValidateSelfRef rejects a related entry pointing at the record itself.
// Callers that assign the id after the other rules run re-check this one
// separately.
func (it *Item) ValidateSelfRef() error {
	self := it.SelfRef()
	for _, ref := range it.Related {
		if ref == self {
			return apperr.Validationf("related must not reference the record itself (%s)", self)
		}
	}
	return nil
}

// CleanTags trims each tag, drops empty results, and deduplicates while
// preserving first-seen order.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// MergeLegacyRelated folds the pre-migration related_tasks and
// related_documents lists into a single related set. A no-op when related
// is already populated, so it is safe to run on every load.
func MergeLegacyRelated(related, legacyTasks, legacyDocs []string) []string {
	if len(related) > 0 {
		return dedupe(related)
	}
	merged := make([]string, 0, len(legacyTasks)+len(legacyDocs))
	merged = append(merged, legacyTasks...)
	merged = append(merged, legacyDocs...)
	return dedupe(merged)
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
