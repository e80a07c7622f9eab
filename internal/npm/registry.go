package npm

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dgraph-io/ristretto"
	syncx "github.com/ije/gox/sync"
)

// Package is a loaded manifest descriptor: the manifest directory, the
// normalized manifest, and a per-subpath resolution cache.
type Package struct {
	Dir  string
	JSON PackageJSON

	// resolved subpaths keyed by (subpath, condition-signature); entries are
	// only valid for the condition signature they were computed under, so
	// the signature is part of the key
	resolved sync.Map
}

// CachedResolve returns the cached resolution of a subpath for the given
// condition signature.
func (p *Package) CachedResolve(subpath string, signature string) (string, bool) {
	v, ok := p.resolved.Load(subpath + "\x00" + signature)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// SetResolved caches the resolution of a subpath for the given condition
// signature. Last write wins; concurrent recomputation is idempotent.
func (p *Package) SetResolved(subpath string, signature string, resolvedPath string) {
	p.resolved.Store(subpath+"\x00"+signature, resolvedPath)
}

// HasSideEffects reports whether the resolved path may carry side effects
// according to the manifest `sideEffects` declaration. Paths outside the
// package directory and undeclared manifests default to true.
func (p *Package) HasSideEffects(resolvedPath string) bool {
	if p.JSON.SideEffects == nil {
		return true
	}
	rel, err := filepath.Rel(p.Dir, resolvedPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	return p.JSON.SideEffects.Match(filepath.ToSlash(rel))
}

// Registry loads and caches package manifests. All methods are safe for
// concurrent use; a cache miss may be computed more than once under
// contention for distinct keys, which is harmless since parsing is
// idempotent.
type Registry struct {
	cache *ristretto.Cache
	mutex syncx.KeyedMutex
}

// NewRegistry creates a manifest registry with an in-memory descriptor
// cache.
func NewRegistry() *Registry {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 14,
		MaxCost:     32 << 20, // manifests are small; 32MB fits thousands
		BufferItems: 64,
	})
	if err != nil {
		panic(fmt.Errorf("init manifest cache: %v", err))
	}
	return &Registry{cache: cache}
}

// Load parses the manifest at the given path. A missing file is a normal
// negative result (nil, nil); any other I/O or parse failure is returned as
// an error.
func (r *Registry) Load(manifestPath string) (*Package, error) {
	manifestPath = toSlash(manifestPath)
	if v, ok := r.cache.Get(manifestPath); ok {
		return v.(*Package), nil
	}

	unlock := r.mutex.Lock(manifestPath)
	defer unlock()

	if v, ok := r.cache.Get(manifestPath); ok {
		return v.(*Package), nil
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	pkgJson, err := ParsePackageJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %v", manifestPath, err)
	}
	pkg := &Package{
		Dir:  path.Dir(manifestPath),
		JSON: *pkgJson,
	}
	r.cache.Set(manifestPath, pkg, int64(len(data)))
	return pkg, nil
}

// FindNearest walks up from dir looking for the closest manifest.
func (r *Registry) FindNearest(dir string) (*Package, error) {
	for d := toSlash(dir); ; {
		pkg, err := r.Load(path.Join(d, "package.json"))
		if err != nil {
			return nil, err
		}
		if pkg != nil {
			return pkg, nil
		}
		parent := path.Dir(d)
		if parent == d {
			return nil, nil
		}
		d = parent
	}
}

// FindNearestMain walks up from dir looking for the closest manifest that
// declares a package name, skipping anonymous manifests used only to mark a
// module type boundary.
func (r *Registry) FindNearestMain(dir string) (*Package, error) {
	for d := toSlash(dir); ; {
		pkg, err := r.Load(path.Join(d, "package.json"))
		if err != nil {
			return nil, err
		}
		if pkg != nil && pkg.JSON.Name != "" {
			return pkg, nil
		}
		parent := path.Dir(d)
		if parent == d {
			return nil, nil
		}
		d = parent
	}
}

// ResolveForPackage locates the manifest of the named package by walking the
// node_modules chain upward from basedir. When preserveSymlinks is false the
// manifest path is canonicalized first, so symlinked packages (pnpm and
// monorepo link layouts) dedupe onto a single descriptor.
func (r *Registry) ResolveForPackage(name string, basedir string, preserveSymlinks bool) (*Package, error) {
	if !ValidatePackageName(name) {
		return nil, nil
	}
	for d := toSlash(basedir); ; {
		manifestPath := path.Join(d, "node_modules", name, "package.json")
		if fi, err := os.Stat(manifestPath); err == nil && !fi.IsDir() {
			if !preserveSymlinks {
				if real, err := filepath.EvalSymlinks(manifestPath); err == nil {
					manifestPath = real
				}
			}
			return r.Load(manifestPath)
		}
		parent := path.Dir(d)
		if parent == d {
			return nil, nil
		}
		d = parent
	}
}

func toSlash(p string) string {
	if os.PathSeparator == '\\' {
		return strings.ReplaceAll(p, "\\", "/")
	}
	return p
}
