package resolver

import (
	"strconv"
	"strings"
	"sync"

	"github.com/ije/gox/set"
)

// DevProdCondition is a placeholder entry in Options.Conditions that is
// substituted with "production" or "development" per call depending on
// Options.IsProduction.
const DevProdCondition = "development|production"

var (
	// DefaultMainFields is the ordered entry-field list for browser-first
	// resolution.
	DefaultMainFields = []string{"browser", "module", "jsnext:main", "jsnext"}

	// DefaultExtensions is the ordered extension probe list.
	DefaultExtensions = []string{".mjs", ".js", ".mts", ".ts", ".jsx", ".tsx", ".json"}

	// DefaultConditions only carries the dev/prod placeholder; "import" or
	// "require" is appended per call.
	DefaultConditions = []string{DevProdCondition}
)

// Options is the immutable configuration of one resolution environment.
// Construct one per environment (client, server, ...) and reuse it across
// calls; it must not be mutated after first use.
type Options struct {
	// Root is the project root, the fallback base directory for bare
	// imports and the base for deduplicated packages.
	Root string

	// MainFields is the ordered list of manifest entry fields consulted for
	// a package root import. The presence of "browser" enables browser-field
	// remapping throughout.
	MainFields []string

	// Conditions feed the conditional export/import resolver, in order.
	// DevProdCondition entries are substituted per call.
	Conditions []string

	// ExternalConditions overrides Conditions while Externalize is set, so
	// export maps are evaluated under the conditions the external runtime
	// will resolve with. Empty means no override.
	ExternalConditions []string

	// Extensions is the ordered extension probe list.
	Extensions []string

	// Dedupe lists package names that always resolve from the project root
	// regardless of the importer's position.
	Dedupe set.ReadOnlySet[string]

	// External/NoExternal/ExternalAll configure the externalization policy
	// built with NewExternalPolicy. Entries are exact names or glob
	// patterns.
	External    []string
	NoExternal  []string
	ExternalAll bool

	// Builtins lists extra builtin-module patterns (exact names or
	// trailing-asterisk prefixes) on top of the Node builtins.
	Builtins []string

	PreserveSymlinks bool

	IsBuild      bool
	IsProduction bool
	IsRequire    bool
	Scan         bool

	// TryPrefix is an optional filename prefix probed after the plain
	// candidates fail (stylesheet-style "_partial" lookups).
	TryPrefix string

	// TryIndex enables the directory "index" fallback.
	TryIndex bool

	// IdOnly skips computed metadata (side effects) on results.
	IdOnly bool

	// Externalize allows the post-resolution externalization rewrite.
	Externalize bool

	sigOnce sync.Once
	sig     string
}

// NewOptions returns an Options with the default probe lists for the given
// project root.
func NewOptions(root string) *Options {
	return &Options{
		Root:       root,
		MainFields: DefaultMainFields,
		Conditions: DefaultConditions,
		Extensions: DefaultExtensions,
		Dedupe:     *set.New[string]().ReadOnly(),
		TryIndex:   true,
	}
}

// conditionList builds the per-call condition list: configured conditions
// with the dev/prod placeholder substituted, then exactly one of "require"
// or "import" appended last. Order decides which conditional export branch
// wins on ties and must not be changed.
func (o *Options) conditionList() []string {
	configured := o.Conditions
	if o.Externalize && len(o.ExternalConditions) > 0 {
		configured = o.ExternalConditions
	}
	conditions := make([]string, 0, len(configured)+1)
	for _, c := range configured {
		if c == DevProdCondition {
			if o.IsProduction {
				c = "production"
			} else {
				c = "development"
			}
		}
		conditions = append(conditions, c)
	}
	if o.IsRequire {
		conditions = append(conditions, "require")
	} else {
		conditions = append(conditions, "import")
	}
	return conditions
}

// browserField reports whether browser-field remapping is enabled.
func (o *Options) browserField() bool {
	return containsString(o.MainFields, "browser")
}

// signature is a stable digest of everything that can change a resolution
// outcome for the same subpath. Per-subpath caches key on it so entries
// computed under different option sets never leak across.
func (o *Options) signature() string {
	o.sigOnce.Do(func() {
		parts := make([]string, 0, 8)
		parts = append(parts, strings.Join(o.conditionList(), ","))
		parts = append(parts, strings.Join(o.MainFields, ","))
		parts = append(parts, strings.Join(o.Extensions, ","))
		parts = append(parts, o.TryPrefix)
		parts = append(parts, strconv.FormatBool(o.PreserveSymlinks))
		parts = append(parts, strconv.FormatBool(o.TryIndex))
		o.sig = strings.Join(parts, "\x00")
	})
	return o.sig
}
