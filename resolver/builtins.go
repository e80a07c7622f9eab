package resolver

import (
	"regexp"
	"strings"
)

// nodeBuiltinModules is the set of Node.js core modules, including the
// commonly imported subpath exports.
var nodeBuiltinModules = map[string]bool{
	"assert":              true,
	"assert/strict":       true,
	"async_hooks":         true,
	"buffer":              true,
	"child_process":       true,
	"cluster":             true,
	"console":             true,
	"constants":           true,
	"crypto":              true,
	"dgram":               true,
	"diagnostics_channel": true,
	"dns":                 true,
	"dns/promises":        true,
	"domain":              true,
	"events":              true,
	"fs":                  true,
	"fs/promises":         true,
	"http":                true,
	"http2":               true,
	"https":               true,
	"inspector":           true,
	"module":              true,
	"net":                 true,
	"os":                  true,
	"path":                true,
	"path/posix":          true,
	"path/win32":          true,
	"perf_hooks":          true,
	"process":             true,
	"punycode":            true,
	"querystring":         true,
	"readline":            true,
	"readline/promises":   true,
	"repl":                true,
	"stream":              true,
	"stream/consumers":    true,
	"stream/promises":     true,
	"stream/web":          true,
	"string_decoder":      true,
	"sys":                 true,
	"timers":              true,
	"timers/promises":     true,
	"tls":                 true,
	"trace_events":        true,
	"tty":                 true,
	"url":                 true,
	"util":                true,
	"util/types":          true,
	"v8":                  true,
	"vm":                  true,
	"wasi":                true,
	"worker_threads":      true,
	"zlib":                true,
}

// isNodeBuiltin reports whether the specifier names a Node.js core module,
// with or without the "node:" scheme.
func isNodeBuiltin(specifier string) bool {
	if strings.HasPrefix(specifier, "node:") {
		return true
	}
	return nodeBuiltinModules[specifier]
}

// isBuiltin classifies the specifier against the Node builtins and the extra
// patterns configured in the options. A pattern ending with '*' matches as a
// prefix.
func (o *Options) isBuiltin(specifier string) bool {
	clean, _ := splitPostfix(specifier)
	for _, pattern := range o.Builtins {
		if strings.HasSuffix(pattern, "*") {
			if strings.HasPrefix(clean, pattern[:len(pattern)-1]) {
				return true
			}
		} else if clean == pattern {
			return true
		}
	}
	return isNodeBuiltin(clean)
}

var (
	// deep imports look like "pkg/sub/path" or "@scope/pkg/sub/path"
	deepImportRE = regexp.MustCompile(`^(?:([^@][^/]*)/|(@[^/]+/[^/]+)/)`)

	// queries that address a transformed flavor of a module, never the
	// module itself
	specialQueryRE = regexp.MustCompile(`[?&](?:worker|sharedworker|raw|url)\b`)
)

// parsePackageSpecifier extracts the package name from a bare specifier and
// reports whether the specifier addresses a subpath inside the package. The
// postfix is stripped for name extraction only.
func parsePackageSpecifier(specifier string) (pkgName string, deep bool) {
	if m := deepImportRE.FindStringSubmatch(specifier); m != nil {
		if m[1] != "" {
			return m[1], true
		}
		return m[2], true
	}
	clean, _ := splitPostfix(specifier)
	return clean, false
}
