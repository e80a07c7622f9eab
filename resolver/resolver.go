package resolver

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/ije/gox/log"

	"resolve.sh/internal/npm"
)

const (
	// BrowserExternalID marks a module the package's browser field maps to
	// false. Downstream tooling serves it as an empty module.
	BrowserExternalID = "virtual:browser-external"

	// OptionalPeerDepID prefixes the sentinel produced for an unresolvable
	// optional peer dependency. The full form is
	// "virtual:optional-peer-dep:<specifier>:<consumer>", so downstream
	// tooling can report which package wanted the missing peer.
	OptionalPeerDepID = "virtual:optional-peer-dep"
)

// SideEffectsFlag is the tri-state side-effect verdict attached to build-time
// resolutions.
type SideEffectsFlag uint8

const (
	SideEffectsUnknown SideEffectsFlag = iota
	SideEffectsTrue
	SideEffectsFalse
)

// Resolved is the outcome of a successful resolution.
type Resolved struct {
	// ID is the resolved module identifier: an absolute file path (postfix
	// preserved), a virtual sentinel, a pre-bundled address, or the bare form
	// of an externalized module.
	ID string

	// External marks a module left to the importing runtime instead of being
	// bundled.
	External bool

	SideEffects SideEffectsFlag
}

// OptimizedDep is a dependency known to the pre-optimizer.
type OptimizedDep struct {
	// ID is the bare specifier the dependency was discovered under.
	ID string

	// File is the address of its pre-bundled module.
	File string
}

// OptimizerOptions is the slice of pre-optimizer configuration the resolver
// consults on every dependency import.
type OptimizerOptions struct {
	// NoDiscovery disables registration of newly found dependencies.
	NoDiscovery bool

	// Exclude lists specifiers that are never routed through pre-bundled
	// modules.
	Exclude []string
}

// Optimizer is the dependency pre-optimization collaborator. The resolver
// routes dependency imports through it during serve-mode resolution.
type Optimizer interface {
	Options() OptimizerOptions

	// IsOptimizable reports whether the resolved file is of a kind the
	// optimizer can pre-bundle.
	IsOptimizable(resolvedPath string) bool

	// BrowserHash is the current content hash used for cache busting;
	// empty when nothing has been discovered yet.
	BrowserHash() string

	// RegisterMissingImport records a dependency found after the initial
	// scan and returns its descriptor.
	RegisterMissingImport(specifier string, resolvedPath string) OptimizedDep

	// OptimizedAddress is the importable address of a registered dependency.
	OptimizedAddress(dep OptimizedDep) string
}

// Externalizer decides whether a resolved dependency path may be excluded
// from bundling.
type Externalizer interface {
	CanExternalize(resolvedPath string) bool
}

// Resolver resolves module specifiers against the filesystem and package
// manifests. Optimizer and Externalizer are optional collaborators; Logger
// is optional debug logging.
type Resolver struct {
	Manifests    *npm.Registry
	Optimizer    Optimizer
	Externalizer Externalizer
	Logger       *log.Logger
}

func New(manifests *npm.Registry) *Resolver {
	return &Resolver{Manifests: manifests}
}

func (r *Resolver) debugf(format string, v ...any) {
	if r.Logger != nil {
		r.Logger.Debugf(format, v...)
	}
}

// Resolve resolves a specifier of any supported form - relative, absolute,
// subpath import ("#..."), or bare - against the importing file. importer may
// be empty for root-level resolution. A (nil, nil) return means not found.
func (r *Resolver) Resolve(specifier string, importer string, opts *Options) (*Resolved, error) {
	if specifier == "" {
		return nil, nil
	}

	if isRelativeSpecifier(specifier) {
		basedir := opts.Root
		if importer != "" {
			importerFile, _ := splitPostfix(importer)
			basedir = path.Dir(importerFile)
		}
		file, postfix := splitPostfix(specifier)
		resolved, err := r.tryFsResolve(path.Join(basedir, file)+postfix, opts, true, false)
		if err != nil || resolved == "" {
			return nil, err
		}
		return &Resolved{ID: resolved}, nil
	}

	if file, postfix := splitPostfix(specifier); filepath.IsAbs(file) {
		resolved, err := r.tryFsResolve(makePathOsAgnostic(file)+postfix, opts, true, false)
		if err != nil || resolved == "" {
			return nil, err
		}
		return &Resolved{ID: resolved}, nil
	}

	if strings.HasPrefix(specifier, "#") {
		return r.resolveSubpathImport(specifier, importer, opts)
	}

	if isBareSpecifier(specifier) {
		return r.ResolveBareImport(specifier, importer, opts)
	}

	return nil, nil
}

// resolveSubpathImport maps a "#"-prefixed specifier through the imports map
// of the importer's nearest package. Relative targets resolve inside that
// package; anything else restarts resolution as a fresh specifier.
func (r *Resolver) resolveSubpathImport(specifier string, importer string, opts *Options) (*Resolved, error) {
	if importer == "" {
		return nil, nil
	}
	importerFile, _ := splitPostfix(importer)
	pkg, err := r.Manifests.FindNearest(path.Dir(importerFile))
	if err != nil || pkg == nil {
		return nil, err
	}
	// the leading '#' is part of the imports-map key, not a postfix delimiter
	file, postfix := splitPostfix(specifier[1:])
	target, ok := r.ResolveImports(pkg, "#"+file, opts)
	if !ok {
		return nil, nil
	}
	if isRelativeSpecifier(target) {
		resolved, err := r.tryFsResolve(path.Join(pkg.Dir, target)+postfix, opts, true, false)
		if err != nil || resolved == "" {
			return nil, err
		}
		return &Resolved{ID: resolved}, nil
	}
	return r.Resolve(target+postfix, importer, opts)
}

// ResolveBareImport resolves a bare package specifier ("pkg", "pkg/sub",
// "@scope/pkg", possibly with a postfix) from the importing file.
func (r *Resolver) ResolveBareImport(specifier string, importer string, opts *Options) (*Resolved, error) {
	pkgName, deep := parsePackageSpecifier(specifier)

	// base directory: deduplicated packages always resolve from the project
	// root; otherwise the importer's directory when the importer is a real
	// path, with the root as fallback
	basedir := opts.Root
	if opts.Dedupe.Has(pkgName) {
		r.debugf("dedupe %s to %s", specifier, opts.Root)
	} else if importer != "" && filepath.IsAbs(importer) {
		importerFile, _ := splitPostfix(importer)
		// stylesheet wildcard importers end with '*' and never exist on disk
		if strings.HasSuffix(importer, "*") || existsPath(importerFile) {
			basedir = path.Dir(importerFile)
		}
	}

	selfReferencing := isBareSpecifier(specifier) && !opts.isBuiltin(specifier) && !strings.ContainsRune(specifier, 0)

	var pkg *npm.Package
	if selfReferencing {
		// a package may import itself by name through its own export map
		near, err := r.Manifests.FindNearest(basedir)
		if err != nil {
			return nil, err
		}
		if near != nil && near.JSON.Name == pkgName && near.JSON.Exports.Len() > 0 {
			pkg = near
		}
	}
	if pkg == nil {
		var err error
		pkg, err = r.Manifests.ResolveForPackage(pkgName, basedir, opts.PreserveSymlinks)
		if err != nil {
			return nil, err
		}
	}
	if pkg == nil {
		if basedir != opts.Root && selfReferencing {
			// the nearest named package may declare the missing module as an
			// optional peer dependency; surface that instead of a plain miss
			mainPkg, err := r.Manifests.FindNearestMain(basedir)
			if err != nil {
				return nil, err
			}
			if mainPkg != nil {
				if _, declared := mainPkg.JSON.PeerDependencies[specifier]; declared && mainPkg.JSON.PeerDependenciesMeta[specifier].Optional {
					return &Resolved{ID: OptionalPeerDepID + ":" + specifier + ":" + mainPkg.JSON.Name}, nil
				}
			}
		}
		return nil, nil
	}

	var resolved string
	var err error
	if deep {
		resolved, err = r.ResolveDeepImport("."+specifier[len(pkgName):], pkg, opts)
	} else {
		resolved, err = r.ResolvePackageEntry(specifier, pkg, opts)
	}
	if err != nil {
		return nil, err
	}
	if resolved == "" {
		return nil, nil
	}
	if resolved == BrowserExternalID {
		return &Resolved{ID: BrowserExternalID}, nil
	}

	return r.processResult(specifier, importer, pkgName, deep, pkg, resolved, opts), nil
}

// processResult applies the build-time and serve-time post-processing to a
// resolved dependency path: side-effect metadata and externalization during
// builds, pre-optimizer routing during serve.
func (r *Resolver) processResult(specifier string, importer string, pkgName string, deep bool, pkg *npm.Package, resolved string, opts *Options) *Resolved {
	file, _ := splitPostfix(resolved)
	externalize := opts.Externalize && r.Externalizer != nil

	if (opts.IsBuild && !opts.Scan && r.Optimizer == nil) || externalize {
		res := &Resolved{ID: resolved}
		// IdOnly skips the computed metadata, never the branch itself
		if !opts.IdOnly {
			if pkg.HasSideEffects(file) {
				res.SideEffects = SideEffectsTrue
			} else {
				res.SideEffects = SideEffectsFalse
			}
		}
		if externalize {
			res = r.externalizeResult(specifier, deep, pkg, res)
		}
		return res
	}

	if r.Optimizer == nil || opts.Scan || !isInNodeModules(file) {
		return &Resolved{ID: resolved}
	}

	optimizable := r.Optimizer.IsOptimizable(file)
	optOpts := r.Optimizer.Options()
	importerFile, _ := splitPostfix(importer)
	skip := optOpts.NoDiscovery ||
		!optimizable ||
		(importer != "" && isInNodeModules(importerFile)) ||
		containsString(optOpts.Exclude, pkgName) ||
		containsString(optOpts.Exclude, specifier) ||
		specialQueryRE.MatchString(resolved)
	if skip {
		// excluded from pre-bundling, but still tagged with the current
		// content hash so the browser cache follows optimizer re-runs
		if optimizable {
			if hash := r.Optimizer.BrowserHash(); hash != "" {
				resolved = injectQuery(resolved, "v="+hash)
			}
		}
		return &Resolved{ID: resolved}
	}

	dep := r.Optimizer.RegisterMissingImport(specifier, resolved)
	address := r.Optimizer.OptimizedAddress(dep)
	r.debugf("registered late-discovered dependency %s -> %s", specifier, address)
	return &Resolved{ID: address}
}

// externalizeResult marks an externalizable resolution external and rewrites
// its identifier back to the shortest bare form other tooling still
// recognizes.
func (r *Resolver) externalizeResult(specifier string, deep bool, pkg *npm.Package, res *Resolved) *Resolved {
	file, _ := splitPostfix(res.ID)
	if !r.Externalizer.CanExternalize(file) {
		return res
	}
	// only plain script modules can be left to the importing runtime
	if ext := path.Ext(file); ext != "" && ext != ".js" && ext != ".mjs" && ext != ".cjs" {
		return res
	}
	id := specifier
	if deep && pkg.JSON.Exports.Len() == 0 && path.Ext(specifier) != path.Ext(file) {
		// a deep import into an exports-less package can land on a longer
		// internal path; the tail starting at the original specifier is the
		// shortest form the runtime can still resolve
		if idx := strings.Index(file, specifier); idx >= 0 {
			id = file[idx:]
		}
	}
	r.debugf("externalized %s as %s", specifier, id)
	return &Resolved{ID: id, External: true, SideEffects: res.SideEffects}
}
