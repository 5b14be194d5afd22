package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/frontmatter"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/registry"
)

// Config parameterizes a FileStore for one record type.
type Config struct {
	// TypeName is the record type served by this store.
	TypeName string
	// Dir is the absolute directory holding the type's files.
	Dir string
	// Prefix is prepended to the id in the filename.
	Prefix string
	// DateSubdir nests files under a per-date sub-directory.
	DateSubdir bool
	// DateOf derives the sub-directory date from an id.
	DateOf func(id string) string
	// Base is recorded in the front-matter base marker for dynamic kinds.
	Base registry.Base
	// Fields is the ordered field list driving serialization.
	Fields []registry.FieldDef
}

// ConfigFor derives the storage layout for a type: {root}/{type}/{type}-{id}.md,
// with a {date}/ level for time-series types.
func ConfigFor(root string, ti registry.TypeInfo, dateOf func(id string) string) Config {
	return Config{
		TypeName:   ti.Name,
		Dir:        filepath.Join(root, ti.Name),
		Prefix:     ti.Name + "-",
		DateSubdir: ti.Base == registry.BaseSessions,
		DateOf:     dateOf,
		Base:       ti.Base,
		Fields:     ti.Fields,
	}
}

// FileStore implements Store backed by the local file system.
type FileStore struct {
	cfg    Config
	logger *slog.Logger
}

// NewFileStore creates a FileStore for one type. The directory is created
// on the first write.
func NewFileStore(cfg Config, logger *slog.Logger) *FileStore {
	return &FileStore{cfg: cfg, logger: logger}
}

func (s *FileStore) fileName(id string) string {
	return s.cfg.Prefix + id + ".md"
}

func (s *FileStore) path(id string) string {
	if s.cfg.DateSubdir {
		return filepath.Join(s.cfg.Dir, s.cfg.DateOf(id), s.fileName(id))
	}
	return filepath.Join(s.cfg.Dir, s.fileName(id))
}

// locate returns the file path for an id, falling back to a scan of the
// date sub-directories when the id's derived date does not match the
// directory it actually lives in.
func (s *FileStore) locate(id string) (string, bool) {
	p := s.path(id)
	if _, err := os.Stat(p); err == nil {
		return p, true
	}
	if !s.cfg.DateSubdir {
		return "", false
	}
	dates, err := s.ListDateDirs()
	if err != nil {
		return "", false
	}
	for _, d := range dates {
		p := filepath.Join(s.cfg.Dir, d, s.fileName(id))
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// Save serializes the record as an ordered metadata block plus body and
// writes it atomically: temp file, fsync, rename.
func (s *FileStore) Save(it *models.Item) error {
	data, err := frontmatter.Encode(s.buildFields(it), it.Content)
	if err != nil {
		return err
	}

	abs := s.path(it.ID)
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ansuz-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Load reads and materializes a record. Returns (nil, nil) when no file
// exists; the file's absence is the record's absence.
func (s *FileStore) Load(id string) (*models.Item, error) {
	abs, ok := s.locate(id)
	if !ok {
		return nil, nil
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", abs, err)
	}
	meta, body, err := frontmatter.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", abs, err)
	}
	it := &models.Item{Type: s.cfg.TypeName, ID: id, Content: body}
	s.applyMeta(it, meta)
	return it, nil
}

// Exists reports whether a file exists for the id.
func (s *FileStore) Exists(id string) bool {
	_, ok := s.locate(id)
	return ok
}

// Delete removes the record's file. Returns false if it was absent.
func (s *FileStore) Delete(id string) (bool, error) {
	abs, ok := s.locate(id)
	if !ok {
		return false, nil
	}
	if err := os.Remove(abs); err != nil {
		return false, fmt.Errorf("storage: delete %s: %w", abs, err)
	}
	return true, nil
}

// List enumerates ids in the type directory, or in one date sub-directory
// when dateDir is non-empty. Files whose metadata has no title are
// malformed partial writes; they are skipped and logged, never fatal.
func (s *FileStore) List(dateDir string) ([]string, error) {
	if s.cfg.DateSubdir && dateDir == "" {
		dates, err := s.ListDateDirs()
		if err != nil {
			return nil, err
		}
		var out []string
		for _, d := range dates {
			ids, err := s.listDir(filepath.Join(s.cfg.Dir, d))
			if err != nil {
				return nil, err
			}
			out = append(out, ids...)
		}
		return out, nil
	}

	dir := s.cfg.Dir
	if dateDir != "" {
		dir = filepath.Join(dir, dateDir)
	}
	return s.listDir(dir)
}

func (s *FileStore) listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, s.cfg.Prefix) || !strings.HasSuffix(name, ".md") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, s.cfg.Prefix), ".md")
		if id == "" {
			continue
		}
		if !s.hasTitle(filepath.Join(dir, name)) {
			s.logger.Warn("skipping record with no title",
				slog.String("type", s.cfg.TypeName), slog.String("file", name))
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *FileStore) hasTitle(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	meta, _, err := frontmatter.Decode(data)
	if err != nil || meta == nil {
		return false
	}
	title, ok := meta["title"]
	return ok && strings.TrimSpace(frontmatter.StringValue(title)) != ""
}

// ListDateDirs enumerates the date sub-directories of a date-partitioned
// type, sorted ascending.
func (s *FileStore) ListDateDirs() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: list date dirs: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// buildFields walks the type's field definitions in order and pulls each
// value from the record. This single walk is the only serialization path.
func (s *FileStore) buildFields(it *models.Item) []frontmatter.Field {
	fields := make([]frontmatter.Field, 0, len(s.cfg.Fields))
	for _, fd := range s.cfg.Fields {
		var v any
		switch fd.Name {
		case "base":
			v = string(s.cfg.Base)
		case "title":
			v = it.Title
		case "description":
			v = it.Description
		case "priority":
			v = it.Priority
		case "status_id":
			v = it.StatusID
		case "start_date":
			v = it.StartDate
		case "end_date":
			v = it.EndDate
		case "start_time":
			v = it.StartTime
		case "related":
			v = nonNil(it.Related)
		case "tags":
			v = nonNil(it.Tags)
		case "created_at":
			v = it.CreatedAt.Format(time.RFC3339)
		case "updated_at":
			v = it.UpdatedAt.Format(time.RFC3339)
		default:
			v = fd.Default
		}
		fields = append(fields, frontmatter.Field{Key: fd.Name, Value: v})
	}
	return fields
}

// applyMeta walks the same field definitions to populate the record from
// decoded metadata, applying defaults for absent keys and folding the
// legacy related_tasks/related_documents split into related.
func (s *FileStore) applyMeta(it *models.Item, meta map[string]any) {
	get := func(name, def string) (any, bool) {
		if v, ok := meta[name]; ok {
			return v, true
		}
		if def != "" {
			return def, false
		}
		return nil, false
	}

	for _, fd := range s.cfg.Fields {
		v, _ := get(fd.Name, fd.Default)
		if v == nil {
			continue
		}
		switch fd.Name {
		case "title":
			it.Title = frontmatter.StringValue(v)
		case "description":
			it.Description = frontmatter.StringValue(v)
		case "priority":
			it.Priority = frontmatter.StringValue(v)
		case "status_id":
			if n, ok := frontmatter.IntValue(v); ok {
				it.StatusID = n
			}
		case "start_date":
			it.StartDate = frontmatter.StringValue(v)
		case "end_date":
			it.EndDate = frontmatter.StringValue(v)
		case "start_time":
			it.StartTime = frontmatter.StringValue(v)
		case "related":
			it.Related = frontmatter.StringSliceValue(v)
		case "tags":
			it.Tags = frontmatter.StringSliceValue(v)
		case "created_at":
			it.CreatedAt = parseTime(frontmatter.StringValue(v))
		case "updated_at":
			it.UpdatedAt = parseTime(frontmatter.StringValue(v))
		}
	}

	if it.Priority == "" {
		it.Priority = models.PriorityMedium
	}
	if it.StatusID == 0 {
		it.StatusID = 1
	}

	// One-time migration of the legacy related split, idempotent on
	// every load. Files are rewritten in the new shape on the next save.
	it.Related = models.MergeLegacyRelated(it.Related,
		frontmatter.StringSliceValue(meta["related_tasks"]),
		frontmatter.StringSliceValue(meta["related_documents"]))
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", models.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
