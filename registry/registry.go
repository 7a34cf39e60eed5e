package registry

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rediwo/redi-migrate/types"
)

// OpenFunc opens a database connection and the matching dialect from a URI
type OpenFunc func(uri string) (*sql.DB, types.Dialect, error)

var (
	drivers = make(map[string]OpenFunc)
	mu      sync.RWMutex
)

// Register registers a driver factory under a URI scheme. Drivers call this
// from init(); registering the same scheme twice is a programming error.
func Register(scheme string, open OpenFunc) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := drivers[scheme]; exists {
		panic(fmt.Sprintf("driver %s already registered", scheme))
	}
	drivers[scheme] = open
}

// Get retrieves a registered driver factory
func Get(scheme string) (OpenFunc, error) {
	mu.RLock()
	defer mu.RUnlock()

	open, exists := drivers[scheme]
	if !exists {
		return nil, fmt.Errorf("driver %s not registered", scheme)
	}
	return open, nil
}

// Open resolves the URI's scheme and opens the database through the
// registered driver
func Open(uri string) (*sql.DB, types.Dialect, error) {
	scheme, _, found := strings.Cut(uri, "://")
	if !found {
		return nil, nil, fmt.Errorf("invalid database URI %q: missing scheme", uri)
	}

	open, err := Get(scheme)
	if err != nil {
		return nil, nil, err
	}
	return open(uri)
}

// Schemes returns the registered URI schemes in sorted order
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()

	schemes := make([]string, 0, len(drivers))
	for scheme := range drivers {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}
