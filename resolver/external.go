package resolver

import (
	"strings"

	"github.com/gobwas/glob"
)

// ExternalPolicy implements Externalizer over allow/deny package-name rules.
// Deny rules (no-external) always win; otherwise a path is externalizable
// when ExternalAll is set or an allow rule matches its package name. Entries
// are exact names or glob patterns.
type ExternalPolicy struct {
	all   bool
	allow []rule
	deny  []rule
}

type rule struct {
	name    string
	pattern glob.Glob
}

func compileRules(entries []string) []rule {
	rules := make([]rule, 0, len(entries))
	for _, entry := range entries {
		if strings.ContainsAny(entry, "*?[{") {
			if g, err := glob.Compile(entry); err == nil {
				rules = append(rules, rule{pattern: g})
				continue
			}
		}
		rules = append(rules, rule{name: entry})
	}
	return rules
}

func (r *rule) match(name string) bool {
	if r.pattern != nil {
		return r.pattern.Match(name)
	}
	return r.name == name
}

// NewExternalPolicy builds the policy from the external/no-external entries
// of the options.
func NewExternalPolicy(opts *Options) *ExternalPolicy {
	return &ExternalPolicy{
		all:   opts.ExternalAll,
		allow: compileRules(opts.External),
		deny:  compileRules(opts.NoExternal),
	}
}

// CanExternalize reports whether the resolved path's package may be excluded
// from bundling. Paths outside dependency storage never qualify.
func (p *ExternalPolicy) CanExternalize(resolvedPath string) bool {
	name := packageNameFromPath(resolvedPath)
	if name == "" {
		return false
	}
	for i := range p.deny {
		if p.deny[i].match(name) {
			return false
		}
	}
	if p.all {
		return true
	}
	for i := range p.allow {
		if p.allow[i].match(name) {
			return true
		}
	}
	return false
}

// packageNameFromPath extracts the package name from the last node_modules
// segment of an absolute path.
func packageNameFromPath(p string) string {
	idx := strings.LastIndex(p, "/node_modules/")
	if idx < 0 {
		return ""
	}
	rest := p[idx+len("/node_modules/"):]
	parts := strings.SplitN(rest, "/", 3)
	if parts[0] == "" {
		return ""
	}
	if strings.HasPrefix(parts[0], "@") {
		if len(parts) < 2 {
			return ""
		}
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}
