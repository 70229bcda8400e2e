package badger

import "github.com/poiesic/docpipe/storage"

// NewMemoryRepository creates an in-memory result repository for testing.
// Closing the repository closes its backend.
func NewMemoryRepository() (storage.ResultRepository, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return ownRepository(backend)
}
