package auth

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrUnknownBackend is returned by OpenBackend for an unsupported kind.
var ErrUnknownBackend = errors.New("unknown storage backend")

// OpenBackend opens the registry backend named kind ("json" or "sqlite")
// inside dataDir.
func OpenBackend(kind, dataDir string) (Backend, error) {
	switch kind {
	case "", "json":
		return NewJSONFile(filepath.Join(dataDir, "users.json")), nil
	case "sqlite":
		return OpenSQLite(filepath.Join(dataDir, "users.db"))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
}
