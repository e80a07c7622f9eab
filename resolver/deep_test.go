package resolver

import (
	"errors"
	"testing"
)

func TestDeepImportThroughExports(t *testing.T) {
	r, opts, root := newTestEnv(t, map[string]string{
		"main.js": "",
		"node_modules/pkg/package.json": `{
			"name": "pkg",
			"exports": {
				".": "./index.js",
				"./utils": "./src/utils.js",
				"./components/*": "./src/components/*.mjs"
			}
		}`,
		"node_modules/pkg/index.js":                  "",
		"node_modules/pkg/src/utils.js":              "",
		"node_modules/pkg/src/components/button.mjs": "",
	})
	importer := root + "/main.js"

	resolved := mustResolve(t, r, "pkg/utils", importer, opts)
	if resolved.ID != root+"/node_modules/pkg/src/utils.js" {
		t.Fatalf("unexpected id: %s", resolved.ID)
	}
	resolved = mustResolve(t, r, "pkg/components/button", importer, opts)
	if resolved.ID != root+"/node_modules/pkg/src/components/button.mjs" {
		t.Fatalf("unexpected id: %s", resolved.ID)
	}
}

func TestDeepImportSubpathNotExported(t *testing.T) {
	r, opts, root := newTestEnv(t, map[string]string{
		"main.js": "",
		"node_modules/pkg/package.json": `{
			"name": "pkg",
			"exports": {".": "./index.js"}
		}`,
		"node_modules/pkg/index.js":        "",
		"node_modules/pkg/internal.js":     "",
		"node_modules/pkg/lib/index.js":    "",
	})
	importer := root + "/main.js"

	_, err := r.Resolve("pkg/internal", importer, opts)
	var notExported *SubpathNotExportedError
	if !errors.As(err, &notExported) {
		t.Fatalf("expected SubpathNotExportedError, got %v", err)
	}
	if notExported.Subpath != "./internal" {
		t.Fatalf("unexpected subpath: %s", notExported.Subpath)
	}

	// an export map also disables the directory index fallback
	_, err = r.Resolve("pkg/lib", importer, opts)
	if !errors.As(err, &notExported) {
		t.Fatalf("expected SubpathNotExportedError, got %v", err)
	}
}

func TestDeepImportWithoutExports(t *testing.T) {
	r, opts, root := newTestEnv(t, map[string]string{
		"main.js": "",
		"node_modules/pkg/package.json": `{"name":"pkg","main":"index.js"}`,
		"node_modules/pkg/index.js":     "",
		"node_modules/pkg/lib/util.js":  "",
		"node_modules/pkg/lib/index.js": "",
	})
	importer := root + "/main.js"

	resolved := mustResolve(t, r, "pkg/lib/util", importer, opts)
	if resolved.ID != root+"/node_modules/pkg/lib/util.js" {
		t.Fatalf("unexpected id: %s", resolved.ID)
	}
	// no export map, so the directory index fallback applies
	resolved = mustResolve(t, r, "pkg/lib", importer, opts)
	if resolved.ID != root+"/node_modules/pkg/lib/index.js" {
		t.Fatalf("unexpected id: %s", resolved.ID)
	}
}

func TestDeepImportBrowserExclusion(t *testing.T) {
	r, opts, root := newTestEnv(t, map[string]string{
		"main.js": "",
		"node_modules/pkg/package.json": `{
			"name": "pkg",
			"main": "index.js",
			"browser": {"./lib/node-only.js": false, "./lib/net.js": "./lib/net-shim.js"}
		}`,
		"node_modules/pkg/index.js":         "",
		"node_modules/pkg/lib/node-only.js": "",
		"node_modules/pkg/lib/net.js":       "",
		"node_modules/pkg/lib/net-shim.js":  "",
	})
	importer := root + "/main.js"

	resolved := mustResolve(t, r, "pkg/lib/node-only", importer, opts)
	if resolved.ID != BrowserExternalID {
		t.Fatalf("expected browser-external sentinel, got %s", resolved.ID)
	}
	resolved = mustResolve(t, r, "pkg/lib/net", importer, opts)
	if resolved.ID != root+"/node_modules/pkg/lib/net-shim.js" {
		t.Fatalf("unexpected id: %s", resolved.ID)
	}

	// the browser table is ignored without the browser main field
	nodeOpts := NewOptions(root)
	nodeOpts.MainFields = []string{"module", "main"}
	resolved = mustResolve(t, r, "pkg/lib/node-only", importer, nodeOpts)
	if resolved.ID != root+"/node_modules/pkg/lib/node-only.js" {
		t.Fatalf("unexpected id: %s", resolved.ID)
	}
}
