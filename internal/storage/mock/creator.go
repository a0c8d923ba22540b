package mock

import (
	"projectstore/internal/storage"
)

// NewMockProvider returns a descriptor whose factory always hands out ops and
// records the dependencies it was given.
func NewMockProvider(internalName string, ops storage.Operations, seen *[]storage.Dependencies) storage.Provider {
	return storage.Provider{
		InternalName: internalName,
		Name:         "Mock " + internalName,
		CreateOperations: func(deps storage.Dependencies) storage.Operations {
			if seen != nil {
				*seen = append(*seen, deps)
			}
			return ops
		},
	}
}
