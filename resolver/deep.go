package resolver

import (
	"path"

	"resolve.sh/internal/npm"
)

// ResolveDeepImport resolves a subpath import into a package. The id is the
// package-relative form ("./sub/path", postfix included). A declared export
// map is authoritative: the subpath must be exposed by it and the directory
// index fallback is disabled. Without one, the object-form browser field may
// remap or exclude the subpath before the filesystem probe.
func (r *Resolver) ResolveDeepImport(id string, pkg *npm.Package, opts *Options) (string, error) {
	if cached, ok := pkg.CachedResolve(id, opts.signature()); ok {
		return cached, nil
	}

	file, postfix := splitPostfix(id)
	relative := file
	hasExports := pkg.JSON.Exports.Len() > 0
	if hasExports {
		target, ok := lookupExports(&pkg.JSON.Exports, file, opts)
		if !ok {
			return "", &SubpathNotExportedError{Subpath: file, PkgDir: pkg.Dir}
		}
		relative = target
	} else if opts.browserField() && pkg.JSON.Browser.Len() > 0 {
		mapped, found := mapWithBrowserField(file, &pkg.JSON.Browser)
		if found {
			if mapped == "" {
				pkg.SetResolved(id, opts.signature(), BrowserExternalID)
				return BrowserExternalID, nil
			}
			relative = mapped
		}
	}

	resolved, err := r.tryFsResolve(path.Join(pkg.Dir, relative)+postfix, opts, !hasExports, false)
	if err != nil {
		return "", err
	}
	if resolved != "" {
		r.debugf("deep import %s in %s -> %s", id, pkg.JSON.Name, resolved)
		pkg.SetResolved(id, opts.signature(), resolved)
		return resolved, nil
	}
	return "", nil
}
