package resolver

import (
	"strings"

	"resolve.sh/internal/npm"
)

// lookupExports resolves a subpath key (".", "./sub", or a "#name" import)
// against a conditional export/import map. It returns the mapped target and
// whether the subpath is exposed at all. An exact key wins over wildcard
// patterns; among wildcard patterns the longest static prefix wins and the
// matched middle replaces every '*' in the target.
func lookupExports(m *npm.JSONObject, key string, opts *Options) (string, bool) {
	conditions := opts.conditionList()
	if v, ok := m.Get(key); ok {
		return resolveConditionTarget(v, conditions)
	}

	var (
		bestValue  any
		bestPrefix string
		bestSuffix string
		found      bool
	)
	for _, name := range m.Keys() {
		star := strings.IndexByte(name, '*')
		if star < 0 {
			continue
		}
		prefix, suffix := name[:star], name[star+1:]
		if len(key) >= len(prefix)+len(suffix) && strings.HasPrefix(key, prefix) && strings.HasSuffix(key, suffix) {
			if !found || len(prefix) > len(bestPrefix) {
				v, _ := m.Get(name)
				bestValue, bestPrefix, bestSuffix, found = v, prefix, suffix, true
			}
		}
	}
	if found {
		if target, ok := resolveConditionTarget(bestValue, conditions); ok {
			middle := key[len(bestPrefix) : len(key)-len(bestSuffix)]
			return strings.ReplaceAll(target, "*", middle), true
		}
	}
	return "", false
}

// resolveConditionTarget walks a map target: strings resolve directly, arrays
// are ordered fallback chains, and objects branch on the first declared
// condition that is configured (or "default"). Maps without a matching branch
// are tolerated and simply do not resolve.
// see https://nodejs.org/api/packages.html#conditional-exports
func resolveConditionTarget(value any, conditions []string) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []any:
		for _, item := range v {
			if s, ok := resolveConditionTarget(item, conditions); ok {
				return s, true
			}
		}
	case npm.JSONObject:
		for _, name := range v.Keys() {
			if name == "default" || containsString(conditions, name) {
				target, _ := v.Get(name)
				if s, ok := resolveConditionTarget(target, conditions); ok {
					return s, true
				}
			}
		}
	}
	return "", false
}

// ResolveImports maps a "#"-prefixed specifier through the package's imports
// map. The returned target may be a relative path into the package or another
// specifier to resolve from scratch.
func (r *Resolver) ResolveImports(pkg *npm.Package, specifier string, opts *Options) (string, bool) {
	if pkg.JSON.Imports.Len() == 0 {
		return "", false
	}
	return lookupExports(&pkg.JSON.Imports, specifier, opts)
}
