package resolver

import (
	"fmt"
	"path"
)

// SubpathNotExportedError is raised when a package declares an export map
// that does not expose the requested subpath. It is deliberately distinct
// from a plain not-found: the manifest promises an export surface and the
// requested subpath is outside it.
type SubpathNotExportedError struct {
	Subpath string
	PkgDir  string
}

func (e *SubpathNotExportedError) Error() string {
	return fmt.Sprintf("package subpath %q is not defined by \"exports\" in %s", e.Subpath, path.Join(e.PkgDir, "package.json"))
}

// EntryResolutionError is raised when none of a package's entry candidates
// resolved to a real file.
type EntryResolutionError struct {
	Specifier string
	Detail    string
}

func (e *EntryResolutionError) Error() string {
	msg := fmt.Sprintf("failed to resolve entry for package %q", e.Specifier)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}
