package npm

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		dir = real
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.ToSlash(dir)
}

func TestRegistryLoad(t *testing.T) {
	root := writeTree(t, map[string]string{
		"ok/package.json":  `{"name":"ok","main":"index.js"}`,
		"bad/package.json": `{"name": }`,
	})
	registry := NewRegistry()

	pkg, err := registry.Load(root + "/ok/package.json")
	if err != nil {
		t.Fatal(err)
	}
	if pkg == nil || pkg.JSON.Name != "ok" || pkg.Dir != root+"/ok" {
		t.Fatalf("invalid package: %v", pkg)
	}

	// missing manifest is a normal negative result
	pkg, err = registry.Load(root + "/missing/package.json")
	if err != nil || pkg != nil {
		t.Fatalf("expected nil, nil; got %v, %v", pkg, err)
	}

	// malformed manifest is an error
	if _, err = registry.Load(root + "/bad/package.json"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRegistryFindNearest(t *testing.T) {
	root := writeTree(t, map[string]string{
		"package.json":         `{"name":"app"}`,
		"src/deep/package.json": `{"type":"module"}`,
		"src/deep/mod.js":      "",
	})
	registry := NewRegistry()

	pkg, err := registry.FindNearest(root + "/src/deep")
	if err != nil {
		t.Fatal(err)
	}
	if pkg == nil || pkg.Dir != root+"/src/deep" {
		t.Fatalf("invalid package: %v", pkg)
	}

	// the anonymous type-boundary manifest is skipped by FindNearestMain
	pkg, err = registry.FindNearestMain(root + "/src/deep")
	if err != nil {
		t.Fatal(err)
	}
	if pkg == nil || pkg.JSON.Name != "app" {
		t.Fatalf("invalid package: %v", pkg)
	}
}

func TestRegistryResolveForPackage(t *testing.T) {
	root := writeTree(t, map[string]string{
		"node_modules/foo/package.json":        `{"name":"foo"}`,
		"node_modules/@scope/bar/package.json": `{"name":"@scope/bar"}`,
		"packages/app/src/mod.js":              "",
	})
	registry := NewRegistry()

	// the node_modules chain is walked upward from the base directory
	pkg, err := registry.ResolveForPackage("foo", root+"/packages/app/src", false)
	if err != nil {
		t.Fatal(err)
	}
	if pkg == nil || pkg.Dir != root+"/node_modules/foo" {
		t.Fatalf("invalid package: %v", pkg)
	}

	pkg, err = registry.ResolveForPackage("@scope/bar", root+"/packages/app/src", false)
	if err != nil {
		t.Fatal(err)
	}
	if pkg == nil || pkg.JSON.Name != "@scope/bar" {
		t.Fatalf("invalid package: %v", pkg)
	}

	pkg, err = registry.ResolveForPackage("nope", root, false)
	if err != nil || pkg != nil {
		t.Fatalf("expected nil, nil; got %v, %v", pkg, err)
	}

	// invalid names never hit the filesystem
	pkg, err = registry.ResolveForPackage("not a package", root, false)
	if err != nil || pkg != nil {
		t.Fatalf("expected nil, nil; got %v, %v", pkg, err)
	}
}

func TestPackageResolvedCache(t *testing.T) {
	pkg := &Package{Dir: "/proj/node_modules/foo"}

	if _, ok := pkg.CachedResolve("./sub", "sig-a"); ok {
		t.Fatal("empty cache should miss")
	}
	pkg.SetResolved("./sub", "sig-a", "/proj/node_modules/foo/sub.js")
	if v, ok := pkg.CachedResolve("./sub", "sig-a"); !ok || v != "/proj/node_modules/foo/sub.js" {
		t.Fatalf("unexpected: %q, %v", v, ok)
	}
	// entries are scoped to the condition signature they were computed under
	if _, ok := pkg.CachedResolve("./sub", "sig-b"); ok {
		t.Fatal("different signature should miss")
	}
}

func TestPackageHasSideEffects(t *testing.T) {
	pkgJson, err := ParsePackageJSON([]byte(`{"name":"foo","sideEffects":["./init.js"]}`))
	if err != nil {
		t.Fatal(err)
	}
	pkg := &Package{Dir: "/proj/node_modules/foo", JSON: *pkgJson}

	if !pkg.HasSideEffects("/proj/node_modules/foo/init.js") {
		t.Fatal("declared path should have side effects")
	}
	if pkg.HasSideEffects("/proj/node_modules/foo/lib/pure.js") {
		t.Fatal("undeclared path should be side-effect free")
	}
	// paths outside the package directory default to true
	if !pkg.HasSideEffects("/proj/node_modules/other/x.js") {
		t.Fatal("outside path should default to true")
	}
}
