// Package itemservice coordinates the file store, the identifier
// allocator, and the index for every record operation. It is the boundary
// consumed by whatever protocol layer fronts the engine.
package itemservice

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/idgen"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/registry"
	"github.com/starford/ansuz/internal/storage"
)

// DefaultStatus is assigned when a create request names no status.
const DefaultStatus = "Open"

// Service is the engine facade.
type Service struct {
	root   string
	db     *index.DB
	reg    *registry.Registry
	alloc  *idgen.Allocator
	logger *slog.Logger
}

// New creates a Service rooted at the given data directory.
func New(root string, db *index.DB, reg *registry.Registry, alloc *idgen.Allocator, logger *slog.Logger) *Service {
	return &Service{root: root, db: db, reg: reg, alloc: alloc, logger: logger}
}

// Allocator exposes the identifier allocator, mainly for tests that pin
// the clock.
func (s *Service) Allocator() *idgen.Allocator { return s.alloc }

func (s *Service) storeFor(ti registry.TypeInfo) *storage.FileStore {
	return storage.NewFileStore(storage.ConfigFor(s.root, ti, s.alloc.DateOf), s.logger)
}

// CreateParams carries the input of CreateItem.
type CreateParams struct {
	Type        string
	Title       string
	Description string
	Content     string
	Priority    string
	Status      string
	StartDate   string
	EndDate     string
	Tags        []string
	Related     []string
	// RelatedTasks and RelatedDocuments are the legacy split; they merge
	// into Related when Related is empty.
	RelatedTasks     []string
	RelatedDocuments []string
	// ID optionally pins a time-series id; Datetime optionally pins the
	// instant it is derived from. Date pins the daily id.
	ID       string
	Datetime time.Time
	Date     string
}

// CreateItem validates, allocates an id, writes the file, and syncs the
// index. Validation failures happen before any mutation; an index failure
// after the file write surfaces as a SyncError with the file intact.
func (s *Service) CreateItem(p CreateParams) (*models.Item, error) {
	ti, err := s.reg.Resolve(p.Type)
	if err != nil {
		return nil, err
	}

	now := s.alloc.Now()
	it := &models.Item{
		Type:        ti.Name,
		Title:       p.Title,
		Description: p.Description,
		Content:     p.Content,
		Priority:    p.Priority,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Tags:        p.Tags,
		Related:     models.MergeLegacyRelated(p.Related, p.RelatedTasks, p.RelatedDocuments),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if (ti.Base == registry.BaseTasks || ti.Base == registry.BaseDocuments) && p.Content == "" {
		return nil, apperr.Validationf("content is required for %s types", ti.Base)
	}

	status := p.Status
	if status == "" {
		status = DefaultStatus
	}
	statusID, ok, err := s.db.StatusID(status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Validationf("unknown status %q", status)
	}
	it.StatusID = statusID
	it.Status = status

	// All validation runs before assignID so a rejected request never
	// consumes a sequence number or touches the index.
	it.Normalize()
	if err := it.Validate(); err != nil {
		return nil, err
	}

	store := s.storeFor(ti)
	if err := s.assignID(it, ti, store, p); err != nil {
		return nil, err
	}
	if err := it.ValidateSelfRef(); err != nil {
		return nil, err
	}

	if err := store.Save(it); err != nil {
		return nil, err
	}
	if err := s.db.UpsertItem(it); err != nil {
		return it, &apperr.SyncError{Type: it.Type, ID: it.ID, Err: err}
	}
	return it, nil
}

// assignID picks the identifier strategy for the type's base kind.
func (s *Service) assignID(it *models.Item, ti registry.TypeInfo, store *storage.FileStore, p CreateParams) error {
	switch ti.Base {
	case registry.BaseSessions:
		at := p.Datetime
		if at.IsZero() {
			at = it.CreatedAt
		}
		it.ID = s.alloc.TimeSeriesID(p.ID, at)
		it.StartDate = s.alloc.DateOf(it.ID)
		if it.StartTime == "" && p.ID == "" {
			it.StartTime = at.Format("15:04:05")
		}
		if store.Exists(it.ID) {
			return fmt.Errorf("%s %q: %w", ti.Name, it.ID, apperr.ErrDuplicate)
		}

	case registry.BaseDailies:
		date := p.Date
		if date == "" {
			date = it.CreatedAt.Format(models.DateLayout)
		}
		if err := idgen.ValidateDateID(date); err != nil {
			return err
		}
		it.ID = date
		it.StartDate = date
		if store.Exists(it.ID) {
			return fmt.Errorf("%s for %s %w, update it instead", ti.Name, date, apperr.ErrDuplicate)
		}

	default:
		id, err := s.alloc.NextSequential(ti.Name)
		if err != nil {
			return err
		}
		it.ID = id
	}
	return nil
}

// GetItem reads the record from its file; files are authoritative, so the
// index is only consulted to resolve the status name.
func (s *Service) GetItem(typ, id string) (*models.Item, error) {
	ti, err := s.reg.Resolve(typ)
	if err != nil {
		return nil, err
	}
	it, err := s.storeFor(ti).Load(id)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, fmt.Errorf("%s-%s: %w", typ, id, apperr.ErrNotFound)
	}
	if it.Status, err = s.db.StatusName(it.StatusID); err != nil {
		return nil, err
	}
	return it, nil
}

// UpdateParams carries the mutable fields of UpdateItem; nil pointers
// leave the stored value untouched.
type UpdateParams struct {
	Title            *string
	Description      *string
	Content          *string
	Priority         *string
	Status           *string
	StartDate        *string
	EndDate          *string
	Tags             *[]string
	Related          *[]string
	RelatedTasks     *[]string
	RelatedDocuments *[]string
}

// UpdateItem rewrites the file in full and re-syncs the index. An absent
// record yields apperr.ErrNotFound.
func (s *Service) UpdateItem(typ, id string, p UpdateParams) (*models.Item, error) {
	ti, err := s.reg.Resolve(typ)
	if err != nil {
		return nil, err
	}
	store := s.storeFor(ti)
	it, err := store.Load(id)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, fmt.Errorf("%s-%s: %w", typ, id, apperr.ErrNotFound)
	}

	if p.Title != nil {
		it.Title = *p.Title
	}
	if p.Description != nil {
		it.Description = *p.Description
	}
	if p.Content != nil {
		it.Content = *p.Content
	}
	if p.Priority != nil {
		it.Priority = *p.Priority
	}
	if p.StartDate != nil {
		it.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		it.EndDate = *p.EndDate
	}
	if p.Tags != nil {
		it.Tags = *p.Tags
	}
	if p.Related != nil || p.RelatedTasks != nil || p.RelatedDocuments != nil {
		it.Related = models.MergeLegacyRelated(deref(p.Related), deref(p.RelatedTasks), deref(p.RelatedDocuments))
	}
	if p.Status != nil {
		statusID, ok, err := s.db.StatusID(*p.Status)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Validationf("unknown status %q", *p.Status)
		}
		it.StatusID = statusID
	}
	if (ti.Base == registry.BaseTasks || ti.Base == registry.BaseDocuments) && it.Content == "" {
		return nil, apperr.Validationf("content is required for %s types", ti.Base)
	}

	it.Normalize()
	if err := it.Validate(); err != nil {
		return nil, err
	}
	it.UpdatedAt = s.alloc.Now()

	if err := store.Save(it); err != nil {
		return nil, err
	}
	if err := s.db.UpsertItem(it); err != nil {
		return it, &apperr.SyncError{Type: it.Type, ID: it.ID, Err: err}
	}
	if it.Status, err = s.db.StatusName(it.StatusID); err != nil {
		return nil, err
	}
	return it, nil
}

// DeleteItem removes the file, then the index rows. Returns false when no
// file exists.
func (s *Service) DeleteItem(typ, id string) (bool, error) {
	ti, err := s.reg.Resolve(typ)
	if err != nil {
		return false, err
	}
	removed, err := s.storeFor(ti).Delete(id)
	if err != nil || !removed {
		return false, err
	}
	if err := s.db.DeleteItem(typ, id); err != nil {
		return true, &apperr.SyncError{Type: typ, ID: id, Err: err}
	}
	return true, nil
}

// ListOptions mirrors the index-side filters for GetItems.
type ListOptions struct {
	IncludeClosed bool
	Statuses      []string
	StartDate     string
	EndDate       string
	Limit         int
}

// GetItems lists records of a type from the index only. Date-partitioned
// types filter on the record's own date; others on updated_at.
func (s *Service) GetItems(typ string, opt ListOptions) ([]models.Item, error) {
	ti, err := s.reg.Resolve(typ)
	if err != nil {
		return nil, err
	}
	return s.db.ListItems(ti.Name, index.ListOptions{
		IncludeClosed: opt.IncludeClosed,
		Statuses:      opt.Statuses,
		StartDate:     opt.StartDate,
		EndDate:       opt.EndDate,
		UseStartDate:  ti.DatePartitioned(),
		Limit:         opt.Limit,
	})
}

// SearchItems delegates full-text search to the index.
func (s *Service) SearchItems(query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// SearchItemsByTag returns every record carrying the tag.
func (s *Service) SearchItemsByTag(tag string) ([]models.Item, error) {
	return s.db.SearchByTag(tag)
}

// GetStatuses returns the status vocabulary.
func (s *Service) GetStatuses() ([]index.Status, error) {
	return s.db.Statuses()
}

// GetTags returns the tag vocabulary with usage counts.
func (s *Service) GetTags() ([]index.Tag, error) {
	return s.db.Tags()
}

// CreateType registers a new user-defined type.
func (s *Service) CreateType(name string, base registry.Base) error {
	return s.reg.CreateType(name, base)
}

// ListTypes returns every registered type.
func (s *Service) ListTypes() ([]registry.TypeInfo, error) {
	return s.reg.ListTypes()
}

// DeleteType removes a user-defined type. It refuses while record files
// remain on disk.
func (s *Service) DeleteType(name string) error {
	ti, err := s.reg.Resolve(name)
	if err != nil {
		return err
	}
	ids, err := s.storeFor(ti).List("")
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return apperr.Validationf("type %q still has %d records", name, len(ids))
	}
	return s.reg.DeleteType(name)
}

func deref(p *[]string) []string {
	if p == nil {
		return nil
	}
	return *p
}
