package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// GetVaultRepository returns the vault repository instance
func (f *Factory) GetVaultRepository() VaultRepository {
	return f.GetRepositories().Vault
}

// GetTriggerRepository returns the trigger repository instance
func (f *Factory) GetTriggerRepository() TriggerRepository {
	return f.GetRepositories().Trigger
}

// GetProofOfLifeRepository returns the proof-of-life repository instance
func (f *Factory) GetProofOfLifeRepository() ProofOfLifeRepository {
	return f.GetRepositories().ProofOfLife
}

// GetExecutorRepository returns the executor repository instance
func (f *Factory) GetExecutorRepository() ExecutorRepository {
	return f.GetRepositories().Executor
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
