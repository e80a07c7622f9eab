package cli

import (
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ije/gox/log"
	"github.com/ije/gox/set"

	"resolve.sh/internal/npm"
	"resolve.sh/internal/optimizer"
	"resolve.sh/resolver"
)

// Resolve implements the `resolve` command: it resolves one specifier against
// an optional importer and prints the resolved module identifier.
func Resolve() {
	flags := flag.NewFlagSet("resolve", flag.ExitOnError)
	root := flags.String("root", "", "project root (default: the current directory)")
	conditions := flags.String("conditions", "", "comma-separated extra resolve conditions")
	externalConditions := flags.String("external-conditions", "", "comma-separated condition overrides used while externalizing")
	mainFields := flags.String("main-fields", "", "comma-separated manifest entry fields, in order")
	extensions := flags.String("extensions", "", "comma-separated extension probe list, in order")
	dedupe := flags.String("dedupe", "", "comma-separated packages that always resolve from the root")
	external := flags.String("external", "", "comma-separated packages eligible for externalization")
	noExternal := flags.String("no-external", "", "comma-separated packages never externalized")
	production := flags.Bool("production", false, "resolve with the \"production\" condition")
	requireMode := flags.Bool("require", false, "resolve with the \"require\" condition instead of \"import\"")
	build := flags.Bool("build", false, "build-mode resolution (attaches side-effect metadata)")
	preserveSymlinks := flags.Bool("preserve-symlinks", false, "do not resolve symlinks to their real path")
	tryPrefix := flags.String("try-prefix", "", "filename prefix probed after the plain candidates")
	optimize := flags.Bool("optimize", false, "route dependency imports through the pre-optimizer")
	cacheDir := flags.String("cache-dir", "node_modules/.cache/deps", "pre-bundled module directory, relative to the root")
	exclude := flags.String("exclude", "", "comma-separated packages excluded from pre-optimization")
	debug := flags.Bool("debug", false, "write debug logs to the terminal")
	flags.Parse(os.Args[2:])

	args := flags.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: resolve.sh resolve [options] <specifier> [importer]")
		os.Exit(1)
	}
	specifier := args[0]
	importer := ""
	if len(args) > 1 {
		abs, err := filepath.Abs(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		importer = filepath.ToSlash(abs)
	}

	if *root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		*root = cwd
	}
	absRoot, err := filepath.Abs(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	opts := resolver.NewOptions(filepath.ToSlash(absRoot))
	if *conditions != "" {
		opts.Conditions = append(opts.Conditions, splitList(*conditions)...)
	}
	if *mainFields != "" {
		opts.MainFields = splitList(*mainFields)
	}
	if *extensions != "" {
		opts.Extensions = splitList(*extensions)
	}
	if *dedupe != "" {
		names := set.New[string]()
		for _, name := range splitList(*dedupe) {
			names.Add(name)
		}
		opts.Dedupe = *names.ReadOnly()
	}
	opts.External = splitList(*external)
	opts.NoExternal = splitList(*noExternal)
	opts.ExternalConditions = splitList(*externalConditions)
	opts.IsProduction = *production
	opts.IsRequire = *requireMode
	opts.IsBuild = *build
	opts.PreserveSymlinks = *preserveSymlinks
	opts.TryPrefix = *tryPrefix
	if len(opts.External) > 0 {
		opts.Externalize = true
	}

	registry := npm.NewRegistry()
	res := resolver.New(registry)
	if opts.Externalize {
		res.Externalizer = resolver.NewExternalPolicy(opts)
	}
	if *optimize {
		res.Optimizer = optimizer.New(optimizer.Options{
			CacheDir: path.Join(opts.Root, *cacheDir),
			Exclude:  splitList(*exclude),
		}, registry)
	}
	if *debug {
		logger, err := log.New("file:dev.log?buffer=0")
		if err == nil {
			logger.SetLevelByName("debug")
			res.Logger = logger
		}
	}

	resolved, err := res.Resolve(specifier, importer, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if resolved == nil {
		fmt.Fprintf(os.Stderr, "cannot resolve %q\n", specifier)
		os.Exit(1)
	}
	if resolved.External {
		fmt.Println(resolved.ID + " (external)")
	} else {
		fmt.Println(resolved.ID)
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	items := make([]string, 0, 4)
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
