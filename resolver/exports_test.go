package resolver

import (
	"testing"

	"resolve.sh/internal/npm"
)

func parseManifest(t *testing.T, data string) *npm.PackageJSON {
	t.Helper()
	pkgJson, err := npm.ParsePackageJSON([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	return pkgJson
}

func TestLookupExportsExactAndWildcard(t *testing.T) {
	pkgJson := parseManifest(t, `{
		"exports": {
			".": "./index.js",
			"./features/*": "./src/features/*.js",
			"./features/special/*": "./src/special/*.js",
			"./package.json": "./package.json"
		}
	}`)
	opts := NewOptions("/proj")

	target, ok := lookupExports(&pkgJson.Exports, ".", opts)
	if !ok || target != "./index.js" {
		t.Fatalf("unexpected: %q, %v", target, ok)
	}
	target, ok = lookupExports(&pkgJson.Exports, "./features/login", opts)
	if !ok || target != "./src/features/login.js" {
		t.Fatalf("unexpected: %q, %v", target, ok)
	}
	// the longest static prefix wins among wildcard patterns
	target, ok = lookupExports(&pkgJson.Exports, "./features/special/admin", opts)
	if !ok || target != "./src/special/admin.js" {
		t.Fatalf("unexpected: %q, %v", target, ok)
	}
	if _, ok = lookupExports(&pkgJson.Exports, "./internal/secret", opts); ok {
		t.Fatal("unexported subpath should not resolve")
	}
}

func TestLookupExportsConditionOrder(t *testing.T) {
	pkgJson := parseManifest(t, `{
		"exports": {
			".": {
				"import": "./index.mjs",
				"require": "./index.cjs",
				"default": "./index.js"
			}
		}
	}`)

	opts := NewOptions("/proj")
	if target, _ := lookupExports(&pkgJson.Exports, ".", opts); target != "./index.mjs" {
		t.Fatalf("unexpected: %q", target)
	}

	cjs := NewOptions("/proj")
	cjs.IsRequire = true
	if target, _ := lookupExports(&pkgJson.Exports, ".", cjs); target != "./index.cjs" {
		t.Fatalf("unexpected: %q", target)
	}
}

func TestLookupExportsDeclarationOrderWins(t *testing.T) {
	// both conditions match an import resolution; the first declared wins
	pkgJson := parseManifest(t, `{
		"exports": {
			".": {
				"development": "./dev.js",
				"import": "./index.mjs"
			}
		}
	}`)
	opts := NewOptions("/proj")
	if target, _ := lookupExports(&pkgJson.Exports, ".", opts); target != "./dev.js" {
		t.Fatalf("unexpected: %q", target)
	}

	prod := NewOptions("/proj")
	prod.IsProduction = true
	if target, _ := lookupExports(&pkgJson.Exports, ".", prod); target != "./index.mjs" {
		t.Fatalf("unexpected: %q", target)
	}
}

func TestLookupExportsNestedConditions(t *testing.T) {
	pkgJson := parseManifest(t, `{
		"exports": {
			".": {
				"browser": {
					"production": "./dist/prod.js",
					"development": "./dist/dev.js"
				},
				"default": "./index.js"
			}
		}
	}`)

	opts := NewOptions("/proj")
	opts.Conditions = []string{"browser", DevProdCondition}
	if target, _ := lookupExports(&pkgJson.Exports, ".", opts); target != "./dist/dev.js" {
		t.Fatalf("unexpected: %q", target)
	}

	prod := NewOptions("/proj")
	prod.Conditions = []string{"browser", DevProdCondition}
	prod.IsProduction = true
	if target, _ := lookupExports(&pkgJson.Exports, ".", prod); target != "./dist/prod.js" {
		t.Fatalf("unexpected: %q", target)
	}

	plain := NewOptions("/proj")
	if target, _ := lookupExports(&pkgJson.Exports, ".", plain); target != "./index.js" {
		t.Fatalf("unexpected: %q", target)
	}
}

func TestLookupExportsFallbackArray(t *testing.T) {
	pkgJson := parseManifest(t, `{
		"exports": {
			".": [
				{"import": "./index.mjs"},
				"./index.js"
			]
		}
	}`)
	opts := NewOptions("/proj")
	if target, _ := lookupExports(&pkgJson.Exports, ".", opts); target != "./index.mjs" {
		t.Fatalf("unexpected: %q", target)
	}

	cjs := NewOptions("/proj")
	cjs.IsRequire = true
	if target, _ := lookupExports(&pkgJson.Exports, ".", cjs); target != "./index.js" {
		t.Fatalf("unexpected: %q", target)
	}
}

func TestExternalConditionsOverride(t *testing.T) {
	pkgJson := parseManifest(t, `{
		"exports": {
			".": {
				"node": "./node.js",
				"browser": "./browser.js",
				"default": "./index.js"
			}
		}
	}`)

	opts := NewOptions("/proj")
	if target, _ := lookupExports(&pkgJson.Exports, ".", opts); target != "./index.js" {
		t.Fatalf("unexpected: %q", target)
	}

	// while externalizing, the override list stands in for the configured
	// conditions so the export map is read the way the external runtime will
	ext := NewOptions("/proj")
	ext.Externalize = true
	ext.ExternalConditions = []string{"node", DevProdCondition}
	if target, _ := lookupExports(&pkgJson.Exports, ".", ext); target != "./node.js" {
		t.Fatalf("unexpected: %q", target)
	}

	// the override is inert without the externalize flag
	plain := NewOptions("/proj")
	plain.ExternalConditions = []string{"node", DevProdCondition}
	if target, _ := lookupExports(&pkgJson.Exports, ".", plain); target != "./index.js" {
		t.Fatalf("unexpected: %q", target)
	}
}

func TestConditionListOrder(t *testing.T) {
	opts := NewOptions("/proj")
	opts.Conditions = []string{"custom", DevProdCondition}
	got := opts.conditionList()
	want := []string{"custom", "development", "import"}
	if len(got) != len(want) {
		t.Fatalf("unexpected conditions: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected conditions: %v", got)
		}
	}
}
