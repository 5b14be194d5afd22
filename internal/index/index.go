package index

import "github.com/starford/ansuz/internal/models"

// ItemIndex defines the interface for index operations. Consumers should
// depend on this interface rather than the concrete *DB type to facilitate
// testing with mocks.
type ItemIndex interface {
	UpsertItem(it *models.Item) error
	DeleteItem(typ, id string) error
	ListItems(typ string, opt ListOptions) ([]models.Item, error)
	Search(query string, limit int) ([]SearchResult, error)
	SearchByTag(tag string) ([]models.Item, error)
	AllIDs(typ string) (map[string]struct{}, error)
	Statuses() ([]Status, error)
	StatusID(name string) (int, bool, error)
	StatusName(id int) (string, error)
	Tags() ([]Tag, error)
	NextSequence(typ string) (int64, error)
	Close() error
}

// Verify *DB satisfies ItemIndex at compile time.
var _ ItemIndex = (*DB)(nil)
