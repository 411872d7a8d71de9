// Package source loads Python modules and exposes the pieces the splitter
// works on: classes, their methods, function bodies and the module's
// top-level namespace.
package source

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/l3aro/go-forward-split/internal/log"
	"github.com/l3aro/go-forward-split/pkg/pysyntax"
)

// ErrNotFound is returned when a class or function does not exist.
var ErrNotFound = errors.New("not found")

type cacheEntry struct {
	hash   [sha256.Size]byte
	module *Module
}

// Loader parses Python files and keeps the most recently used modules.
// A cached module is reused only while the file content is unchanged.
// Loader is safe for concurrent use.
type Loader struct {
	cache  *lru.Cache[string, cacheEntry]
	logger log.Logger
}

// NewLoader creates a loader caching up to size modules. A size of zero
// disables caching.
func NewLoader(size int, logger log.Logger) (*Loader, error) {
	if size < 0 {
		return nil, fmt.Errorf("cache size must be non-negative, got %d", size)
	}
	if logger == nil {
		logger = log.Nop()
	}

	l := &Loader{logger: logger}
	if size > 0 {
		cache, err := lru.New[string, cacheEntry](size)
		if err != nil {
			return nil, fmt.Errorf("creating module cache: %w", err)
		}
		l.cache = cache
	}
	return l, nil
}

// Load reads and parses the file at path.
func (l *Loader) Load(path string) (*Module, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return l.LoadBytes(abs, src)
}

// LoadBytes parses src, caching the result under name.
func (l *Loader) LoadBytes(name string, src []byte) (*Module, error) {
	hash := sha256.Sum256(src)

	if l.cache != nil {
		if entry, ok := l.cache.Get(name); ok {
			if entry.hash == hash {
				l.logger.Debug("module cache hit", "module", name)
				return entry.module, nil
			}
			l.logger.Debug("module changed, reparsing", "module", name)
		}
	}

	tree, err := pysyntax.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	m := &Module{Path: name, tree: tree}
	if l.cache != nil {
		l.cache.Add(name, cacheEntry{hash: hash, module: m})
	}
	l.logger.Debug("module parsed", "module", name, "bytes", len(src), "cached", l.Cached())
	return m, nil
}

// Cached returns the number of cached modules.
func (l *Loader) Cached() int {
	if l.cache == nil {
		return 0
	}
	return l.cache.Len()
}

