package resolver

import (
	"path"
	"strings"

	"resolve.sh/internal/npm"
)

// mapWithBrowserField remaps a package-relative path through the object form
// of the "browser" field. A key matches on cleaned equality, or equality
// after dropping a trailing ".js" or "/index.js" from the key; the first
// declared key wins. found with an empty mapped value means the manifest maps
// the path to false: intentionally absent for browser targets.
func mapWithBrowserField(relativePath string, browserMap *npm.JSONObject) (mapped string, found bool) {
	cleaned := path.Clean(relativePath)
	for _, key := range browserMap.Keys() {
		cleanedKey := path.Clean(key)
		if cleaned == cleanedKey ||
			equalWithoutSuffix(cleaned, cleanedKey, ".js") ||
			equalWithoutSuffix(cleaned, cleanedKey, "/index.js") {
			v, _ := browserMap.Get(key)
			if s, ok := v.(string); ok {
				return s, true
			}
			return "", true
		}
	}
	return "", false
}

func equalWithoutSuffix(p string, key string, suffix string) bool {
	return strings.HasSuffix(key, suffix) && strings.TrimSuffix(key, suffix) == p
}
