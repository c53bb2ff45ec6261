package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory lazily builds one Repositories set per database handle.
type Factory struct {
	db    *gorm.DB
	once  sync.Once
	repos *Repositories
}

func NewFactory(db *gorm.DB) *Factory {
	return &Factory{db: db}
}

func (f *Factory) Repositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

var (
	global     *Factory
	globalOnce sync.Once
)

// InitializeFactory binds the process-wide factory to db. Later calls are no-ops.
func InitializeFactory(db *gorm.DB) {
	globalOnce.Do(func() {
		global = NewFactory(db)
	})
}

// GetGlobalRepositories panics when InitializeFactory was never called.
func GetGlobalRepositories() *Repositories {
	if global == nil {
		panic("repository: InitializeFactory must run before GetGlobalRepositories")
	}
	return global.Repositories()
}
