package resolver

import (
	"os"
	"path"

	esbuild_config "github.com/ije/esbuild-internal/config"
	"github.com/ije/esbuild-internal/js_ast"
	"github.com/ije/esbuild-internal/js_parser"
	"github.com/ije/esbuild-internal/logger"

	"resolve.sh/internal/npm"
)

// ResolvePackageEntry resolves the root entry point of a package: the "."
// key of the export map when one is declared, otherwise the ordered
// main-field candidates, then "main", then the conventional index files.
// Successful resolutions are cached on the package descriptor.
func (r *Resolver) ResolvePackageEntry(specifier string, pkg *npm.Package, opts *Options) (string, error) {
	_, postfix := splitPostfix(specifier)
	if cached, ok := pkg.CachedResolve(".", opts.signature()); ok {
		return cached + postfix, nil
	}

	var entryPoint string
	if pkg.JSON.Exports.Len() > 0 {
		if target, ok := lookupExports(&pkg.JSON.Exports, ".", opts); ok {
			entryPoint = target
		}
	}

	if entryPoint == "" {
		for _, field := range opts.MainFields {
			if field == "browser" {
				if opts.browserField() {
					entryPoint = r.tryResolveBrowserEntry(pkg, opts)
				}
			} else {
				entryPoint = pkg.JSON.StringField(field)
			}
			if entryPoint != "" {
				break
			}
		}
	}
	if entryPoint == "" {
		entryPoint = pkg.JSON.Main
	}

	// entry fields are literal paths; the index fallbacks are literal
	// filenames too, not extension-probed
	entryPoints := []string{entryPoint}
	if entryPoint == "" {
		entryPoints = []string{"index.js", "index.json", "index.node"}
	}

	var detail string
	for _, entry := range entryPoints {
		skipPackageJSON := false
		if len(opts.MainFields) > 0 && opts.MainFields[0] == "sass" && !containsString(opts.Extensions, path.Ext(entry)) {
			// a stylesheet-first environment never takes the script entry;
			// fall through to the package directory itself
			entry = ""
			skipPackageJSON = true
		} else if opts.browserField() && pkg.JSON.Browser.Len() > 0 {
			if mapped, found := mapWithBrowserField(entry, &pkg.JSON.Browser); found && mapped != "" {
				entry = mapped
			}
		}
		if entry == "." || entry == "./" {
			// "main": "." points back at the package directory itself
			entry = ""
			skipPackageJSON = true
		}
		resolved, err := r.tryFsResolve(path.Join(pkg.Dir, entry), opts, true, skipPackageJSON)
		if err != nil {
			detail = err.Error()
			continue
		}
		if resolved != "" {
			pkg.SetResolved(".", opts.signature(), resolved)
			return resolved + postfix, nil
		}
	}
	return "", &EntryResolutionError{Specifier: specifier, Detail: detail}
}

// tryResolveBrowserEntry picks the entry for the "browser" main field. Some
// packages point "browser" at a UMD bundle and "module" at real ESM, others
// ship ESM in both; when "module" is also a candidate and names a different
// file, the browser entry is parsed and only kept if it already carries
// module syntax.
func (r *Resolver) tryResolveBrowserEntry(pkg *npm.Package, opts *Options) string {
	browserEntry := pkg.JSON.BrowserEntry
	if browserEntry == "" {
		if v, ok := pkg.JSON.Browser.Get("."); ok {
			if s, isStr := v.(string); isStr {
				browserEntry = s
			}
		}
	}
	if browserEntry == "" {
		return ""
	}

	moduleEntry := pkg.JSON.Module
	if !opts.IsRequire && moduleEntry != "" && moduleEntry != browserEntry && containsString(opts.MainFields, "module") {
		resolvedBrowser, err := r.tryFsResolve(path.Join(pkg.Dir, browserEntry), opts, true, false)
		if err != nil || resolvedBrowser == "" {
			return browserEntry
		}
		file, _ := splitPostfix(resolvedBrowser)
		data, err := os.ReadFile(file)
		if err != nil || !hasModuleSyntax(file, data) {
			r.debugf("picked module entry of %s over non-ESM browser entry %s", pkg.JSON.Name, browserEntry)
			return moduleEntry
		}
	}
	return browserEntry
}

// hasModuleSyntax parses the file and reports whether it uses import/export
// syntax.
func hasModuleSyntax(filename string, data []byte) bool {
	log := logger.NewDeferLog(logger.DeferLogNoVerboseOrDebug, nil)
	parserOpts := js_parser.OptionsFromConfig(&esbuild_config.Options{
		JSX: esbuild_config.JSXOptions{Parse: endsWith(filename, ".jsx", ".tsx")},
		TS:  esbuild_config.TSOptions{Parse: endsWith(filename, ".ts", ".mts", ".cts", ".tsx")},
	})
	ast, pass := js_parser.Parse(log, logger.Source{
		Index:          0,
		KeyPath:        logger.Path{Text: filename},
		PrettyPath:     filename,
		IdentifierName: "entry",
		Contents:       string(data),
	}, parserOpts)
	if !pass {
		return false
	}
	return ast.ExportsKind == js_ast.ExportsESM
}
