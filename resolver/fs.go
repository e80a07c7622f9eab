package resolver

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

func existsFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

func existsDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

func existsPath(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// realPath canonicalizes a path that is known to exist. It is the identity
// (modulo separators) when preserveSymlinks is set, the OS-resolved path
// otherwise.
func realPath(p string, preserveSymlinks bool) string {
	if !preserveSymlinks {
		if real, err := filepath.EvalSymlinks(p); err == nil {
			p = real
		}
	}
	return makePathOsAgnostic(p)
}

// makePathOsAgnostic makes the given path OS agnostic by replacing
// backslashes with forward slashes.
func makePathOsAgnostic(p string) string {
	if os.PathSeparator == '\\' {
		return strings.ReplaceAll(p, "\\", "/")
	}
	return p
}

// knownCompiledExts maps compiled-output script extensions to the typed
// source extension that may sit next to them on disk.
var knownCompiledExts = map[string]string{
	".js":  ".ts",
	".mjs": ".mts",
	".cjs": ".cts",
	".jsx": ".tsx",
}

// tryFsResolve resolves a path that may lack an extension and may carry a
// query/hash postfix. The postfix is stripped for the filesystem walk and
// reattached to the result; if the stripped path fails, the raw path is
// retried once since '?' and '#' are legal filename characters.
// A ("", nil) return means not found; errors are fatal entry-resolution or
// I/O failures.
func (r *Resolver) tryFsResolve(fsPath string, opts *Options, tryIndex bool, skipPackageJSON bool) (string, error) {
	file, postfix := splitPostfix(fsPath)
	resolved, err := r.tryCleanFsResolve(file, opts, tryIndex, skipPackageJSON)
	if err != nil {
		return "", err
	}
	if resolved != "" {
		return resolved + postfix, nil
	}
	if postfix != "" {
		resolved, err = r.tryCleanFsResolve(fsPath, opts, tryIndex, skipPackageJSON)
		if err != nil {
			return "", err
		}
		if resolved != "" {
			return resolved, nil
		}
	}
	return "", nil
}

func (r *Resolver) tryCleanFsResolve(file string, opts *Options, tryIndex bool, skipPackageJSON bool) (string, error) {
	if existsFile(file) {
		return realPath(file, opts.PreserveSymlinks), nil
	}

	// extension probing only makes sense under an existing parent directory
	if dirPath := path.Dir(file); existsDir(dirPath) {
		// a compiled-output path may refer to the typed source next to it;
		// the swap takes priority over plain extension probing
		if ext := path.Ext(file); ext != "" {
			if srcExt, ok := knownCompiledExts[ext]; ok {
				base := strings.TrimSuffix(file, ext)
				if existsFile(base + srcExt) {
					return realPath(base+srcExt, opts.PreserveSymlinks), nil
				}
				if ext == ".js" && existsFile(base+".tsx") {
					return realPath(base+".tsx", opts.PreserveSymlinks), nil
				}
			}
		}

		for _, ext := range opts.Extensions {
			if existsFile(file + ext) {
				return realPath(file+ext, opts.PreserveSymlinks), nil
			}
		}

		if opts.TryPrefix != "" {
			prefixed := dirPath + "/" + opts.TryPrefix + path.Base(file)
			if existsFile(prefixed) {
				return realPath(prefixed, opts.PreserveSymlinks), nil
			}
			for _, ext := range opts.Extensions {
				if existsFile(prefixed + ext) {
					return realPath(prefixed+ext, opts.PreserveSymlinks), nil
				}
			}
		}
	}

	if tryIndex && opts.TryIndex && existsDir(file) {
		if !skipPackageJSON {
			pkg, err := r.Manifests.Load(file + "/package.json")
			if err != nil {
				return "", err
			}
			if pkg != nil {
				return r.ResolvePackageEntry(file, pkg, opts)
			}
		}
		for _, ext := range opts.Extensions {
			if index := file + "/index" + ext; existsFile(index) {
				return realPath(index, opts.PreserveSymlinks), nil
			}
		}
	}

	return "", nil
}
