package optimizer

import (
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/cespare/xxhash/v2"

	"resolve.sh/internal/npm"
	"resolve.sh/resolver"
)

// Options configures the dependency pre-optimizer.
type Options struct {
	// CacheDir is the directory pre-bundled modules are addressed under. The
	// modules themselves are produced by the bundling pipeline; this
	// subsystem only assigns stable addresses.
	CacheDir string

	// NoDiscovery disables registration of dependencies found after the
	// initial scan.
	NoDiscovery bool

	// Exclude lists dependencies never pre-bundled: package names, deep
	// specifiers, or "name@range" entries that only apply when the installed
	// version satisfies the semver range.
	Exclude []string
}

// DepsOptimizer assigns pre-bundled addresses to discovered dependencies and
// maintains the content hash used for browser cache busting. It implements
// resolver.Optimizer.
type DepsOptimizer struct {
	opts     Options
	registry *npm.Registry

	plainExclude []string
	rangeExclude []rangeRule

	mu          sync.Mutex
	discovered  map[string]resolver.OptimizedDep
	browserHash string
}

type rangeRule struct {
	name       string
	constraint *semver.Constraints
}

func New(opts Options, registry *npm.Registry) *DepsOptimizer {
	o := &DepsOptimizer{
		opts:       opts,
		registry:   registry,
		discovered: map[string]resolver.OptimizedDep{},
	}
	for _, entry := range opts.Exclude {
		if name, rang, ok := splitExcludeRange(entry); ok {
			if c, err := semver.NewConstraint(rang); err == nil {
				o.rangeExclude = append(o.rangeExclude, rangeRule{name: name, constraint: c})
				continue
			}
		}
		o.plainExclude = append(o.plainExclude, entry)
	}
	return o
}

// splitExcludeRange splits a "name@range" exclude entry. The '@' of a scope
// prefix does not count.
func splitExcludeRange(entry string) (name string, rang string, ok bool) {
	if i := strings.LastIndexByte(entry, '@'); i > 0 {
		return entry[:i], entry[i+1:], true
	}
	return entry, "", false
}

func (o *DepsOptimizer) Options() resolver.OptimizerOptions {
	return resolver.OptimizerOptions{
		NoDiscovery: o.opts.NoDiscovery,
		Exclude:     o.plainExclude,
	}
}

// IsOptimizable reports whether the resolved file is a script module the
// optimizer can pre-bundle.
func (o *DepsOptimizer) IsOptimizable(resolvedPath string) bool {
	switch path.Ext(resolvedPath) {
	case ".js", ".mjs", ".cjs", ".ts", ".mts", ".cts":
		return true
	}
	return false
}

// RegisterMissingImport records a dependency discovered after the initial
// scan. Dependencies excluded by a versioned rule keep their on-disk path;
// everything else gets an address under the cache directory. Registration is
// idempotent per specifier.
func (o *DepsOptimizer) RegisterMissingImport(specifier string, resolvedPath string) resolver.OptimizedDep {
	o.mu.Lock()
	defer o.mu.Unlock()
	if dep, ok := o.discovered[specifier]; ok {
		return dep
	}
	dep := resolver.OptimizedDep{ID: specifier, File: resolvedPath}
	if !o.excludedByRange(resolvedPath) {
		flatName := strings.ReplaceAll(strings.TrimPrefix(specifier, "@"), "/", "_")
		dep.File = o.opts.CacheDir + "/" + flatName + ".js"
	}
	o.discovered[specifier] = dep
	o.rehashLocked()
	return dep
}

// excludedByRange checks the "name@range" exclude rules against the
// installed version of the package owning the resolved path.
func (o *DepsOptimizer) excludedByRange(resolvedPath string) bool {
	if len(o.rangeExclude) == 0 {
		return false
	}
	pkg, err := o.registry.FindNearestMain(path.Dir(resolvedPath))
	if err != nil || pkg == nil || pkg.JSON.Version == "" {
		return false
	}
	version, err := semver.NewVersion(pkg.JSON.Version)
	if err != nil {
		return false
	}
	for _, rule := range o.rangeExclude {
		if rule.name == pkg.JSON.Name && rule.constraint.Check(version) {
			return true
		}
	}
	return false
}

// rehashLocked recomputes the browser hash over the sorted discovery set.
func (o *DepsOptimizer) rehashLocked() {
	ids := make([]string, 0, len(o.discovered))
	for id := range o.discovered {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	h := xxhash.New()
	for _, id := range ids {
		h.WriteString(id)
		h.WriteString("\x00")
		h.WriteString(o.discovered[id].File)
		h.WriteString("\x00")
	}
	o.browserHash = strconv.FormatUint(h.Sum64(), 36)
}

// BrowserHash is the current content hash; empty until the first discovery.
func (o *DepsOptimizer) BrowserHash() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.browserHash
}

// OptimizedAddress returns the importable address of a registered
// dependency, version-tagged with the current browser hash.
func (o *DepsOptimizer) OptimizedAddress(dep resolver.OptimizedDep) string {
	hash := o.BrowserHash()
	if hash == "" {
		return dep.File
	}
	return dep.File + "?v=" + hash
}
