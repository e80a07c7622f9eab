package resolver

import (
	"strings"
)

// splitPostfix splits a specifier into its filesystem-meaningful part and the
// trailing query/hash postfix. The postfix (including its leading '?' or '#')
// is carried along by the resolvers and reattached to whatever path is
// finally produced.
func splitPostfix(specifier string) (file string, postfix string) {
	for i := 0; i < len(specifier); i++ {
		if c := specifier[i]; c == '?' || c == '#' {
			return specifier[:i], specifier[i:]
		}
	}
	return specifier, ""
}

func endsWith(s string, suffixs ...string) bool {
	for _, suffix := range suffixs {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

// isInNodeModules reports whether the path lives inside dependency storage.
func isInNodeModules(p string) bool {
	return strings.Contains(p, "/node_modules/")
}

// injectQuery inserts a query parameter ahead of any existing postfix.
func injectQuery(specifier string, query string) string {
	file, postfix := splitPostfix(specifier)
	if strings.HasPrefix(postfix, "?") {
		return file + "?" + query + "&" + postfix[1:]
	}
	return file + "?" + query + postfix
}

// isRelativeSpecifier returns true if the specifier is a local relative path.
func isRelativeSpecifier(specifier string) bool {
	return specifier == "." || specifier == ".." || strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// isBareSpecifier returns true if the specifier addresses a package by name
// rather than by path or URL.
func isBareSpecifier(specifier string) bool {
	if specifier == "" {
		return false
	}
	c := specifier[0]
	ok := c == '@' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
	return ok && !strings.Contains(specifier, "://")
}

func containsString(a []string, s string) bool {
	for _, v := range a {
		if v == s {
			return true
		}
	}
	return false
}
