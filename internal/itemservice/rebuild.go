package itemservice

import (
	"log/slog"
)

// RebuildFromMarkdown walks every record file of a type, re-derives each
// record, and re-runs the index synchronizer for it, then sweeps index
// rows whose files are gone. Files with no title are skipped and logged so
// one bad file never blocks the rest. Running it twice yields the same
// index state. Returns the number of records synced.
func (s *Service) RebuildFromMarkdown(typ string) (int, error) {
	ti, err := s.reg.Resolve(typ)
	if err != nil {
		return 0, err
	}
	store := s.storeFor(ti)

	ids, err := store.List("")
	if err != nil {
		return 0, err
	}

	count := 0
	present := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		it, err := store.Load(id)
		if err != nil {
			s.logger.Warn("rebuild: load failed",
				slog.String("type", typ), slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		if it == nil || it.Title == "" {
			s.logger.Warn("rebuild: skipping record with no title",
				slog.String("type", typ), slog.String("id", id))
			continue
		}
		it.Normalize()
		if err := s.db.UpsertItem(it); err != nil {
			s.logger.Warn("rebuild: sync failed",
				slog.String("type", typ), slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		present[id] = struct{}{}
		count++
	}

	// The index must never hold a row with no corresponding file.
	indexed, err := s.db.AllIDs(typ)
	if err != nil {
		return count, err
	}
	for id := range indexed {
		if _, ok := present[id]; ok {
			continue
		}
		if err := s.db.DeleteItem(typ, id); err != nil {
			s.logger.Warn("rebuild: stale row removal failed",
				slog.String("type", typ), slog.String("id", id), slog.String("error", err.Error()))
		} else {
			s.logger.Debug("rebuild: removed stale row",
				slog.String("type", typ), slog.String("id", id))
		}
	}

	return count, nil
}

// RebuildAll rebuilds every registered type and returns the total count.
func (s *Service) RebuildAll() (int, error) {
	types, err := s.reg.ListTypes()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, ti := range types {
		n, err := s.RebuildFromMarkdown(ti.Name)
		if err != nil {
			s.logger.Warn("rebuild: type failed",
				slog.String("type", ti.Name), slog.String("error", err.Error()))
			continue
		}
		total += n
	}
	return total, nil
}
