// Package loader resolves template names against include paths and compiles
// them through a Syntax, caching the result by absolute path.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/lemonberrylabs/kolon/pkg/ast"
	"github.com/lemonberrylabs/kolon/pkg/kolon"
	"github.com/lemonberrylabs/kolon/pkg/source"
	"github.com/lemonberrylabs/kolon/pkg/store"
	"github.com/lemonberrylabs/kolon/pkg/types"
)

// TemplateExtensions are the file extensions picked up by Preload.
var TemplateExtensions = []string{".tx", ".kolon"}

// Loader compiles templates found under an ordered list of include paths.
// It is safe for concurrent use; each path is compiled at most once.
type Loader struct {
	includePaths []string
	cache        *store.Store
	syntax       kolon.Syntax
	group        singleflight.Group
}

// New creates a loader. Include paths are made absolute so cache keys do not
// depend on the working directory.
func New(includePaths []string, cache *store.Store, syntax kolon.Syntax) (*Loader, error) {
	abs := make([]string, 0, len(includePaths))
	for _, p := range includePaths {
		a, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("include path %q: %w", p, err)
		}
		abs = append(abs, a)
	}
	return &Loader{includePaths: abs, cache: cache, syntax: syntax}, nil
}

// IncludePaths returns the absolute include paths in search order.
func (l *Loader) IncludePaths() []string {
	return append([]string(nil), l.includePaths...)
}

// Compile returns the compiled template for name. Include paths are tried in
// order: a cached entry is returned directly, otherwise the first existing
// file is compiled and cached.
func (l *Loader) Compile(name string) (*ast.OpcodeSequence, error) {
	e, err := l.CompileEntry(name)
	if err != nil {
		return nil, err
	}
	return e.Opcodes, nil
}

// CompileEntry is like Compile but returns the cache entry.
func (l *Loader) CompileEntry(name string) (store.Entry, error) {
	for _, dir := range l.includePaths {
		path, ok := candidate(dir, name)
		if !ok {
			continue
		}

		if e, ok := l.cache.Get(path); ok {
			return e, nil
		}

		if !fileExists(path) {
			continue
		}
		return l.compileFile(name, path)
	}
	return store.Entry{}, types.NewTemplateNotFound(name, l.includePaths)
}

// Resolve returns the path name resolves to without compiling it.
func (l *Loader) Resolve(name string) (string, error) {
	for _, dir := range l.includePaths {
		path, ok := candidate(dir, name)
		if ok && fileExists(path) {
			return path, nil
		}
	}
	return "", types.NewTemplateNotFound(name, l.includePaths)
}

// compileFile compiles the template at path. Concurrent calls for the same
// path share one compilation.
func (l *Loader) compileFile(name, path string) (store.Entry, error) {
	v, err, _ := l.group.Do(path, func() (interface{}, error) {
		if e, ok := l.cache.Get(path); ok {
			return e, nil
		}
		opcodes, err := kolon.Run(l.syntax, source.FromFile(path))
		if err != nil {
			return nil, err
		}
		return l.cache.Set(path, name, opcodes), nil
	})
	if err != nil {
		return store.Entry{}, err
	}
	return v.(store.Entry), nil
}

// Preload compiles every template file below the first include path. Files
// that fail to compile are logged and skipped. It returns the number of
// templates compiled.
func (l *Loader) Preload() (int, error) {
	if len(l.includePaths) == 0 {
		return 0, nil
	}
	root := l.includePaths[0]

	loaded := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isTemplateFile(path) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if _, err := l.CompileEntry(rel); err != nil {
			var te *types.TemplateError
			if errors.As(err, &te) {
				log.Printf("Warning: could not compile %q: %s", rel, te.Diagnostic())
			} else {
				log.Printf("Warning: could not compile %q: %v", rel, err)
			}
			return nil
		}
		loaded++
		log.Printf("Compiled template %q", rel)
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("preloading %s: %w", root, err)
	}

	log.Printf("Compiled %d template(s) from %s", loaded, root)
	return loaded, nil
}

// candidate joins name onto dir. ok is false when the result lies outside
// dir, so names like "../x" never leave the include paths.
func candidate(dir, name string) (path string, ok bool) {
	path = filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}

func isTemplateFile(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range TemplateExtensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
