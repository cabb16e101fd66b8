package storage

import "fmt"

// NewStore builds the named backend. location is the database file for
// sqlite and the connection string for postgres.
func NewStore(kind, location string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(location)
	case "postgres":
		if location == "" {
			return nil, fmt.Errorf("postgres store requires a connection string")
		}
		return NewPostgresStore(location), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
