package pkg_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const modulePath = "github.com/leapstack-labs/sqlsense"

// layers orders the library packages. A package may import only packages
// from strictly lower layers.
var layers = map[string]int{
	"token":     0,
	"lexer":     1,
	"batch":     1,
	"catalog":   1,
	"fuzzy":     1,
	"typecheck": 1,
	"statement": 2,
	"scope":     3,
	"complete":  4,
	"join":      4,
	"engine":    5,
}

// allowedExternal are the third-party modules library code may use.
// Drivers, CLI and config libraries stay under internal/.
var allowedExternal = []string{
	"gopkg.in/yaml.v3",
	"golang.org/x/text/",
	"github.com/agnivade/levenshtein",
}

// packageImports returns the imports of the non-test files in dir.
func packageImports(t *testing.T, dir string) map[string][]string {
	t.Helper()
	fset := token.NewFileSet()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", dir, err)
	}

	out := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".go") || strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			t.Errorf("Failed to parse %s: %v", path, err)
			continue
		}
		for _, imp := range f.Imports {
			out[entry.Name()] = append(out[entry.Name()], strings.Trim(imp.Path.Value, `"`))
		}
	}
	return out
}

// TestEveryPackageHasALayer keeps the layer table in step with the tree.
func TestEveryPackageHasALayer(t *testing.T) {
	entries, err := os.ReadDir(".")
	if err != nil {
		t.Fatalf("Failed to read pkg: %v", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), "_") {
			continue
		}
		if _, ok := layers[entry.Name()]; !ok {
			t.Errorf("pkg/%s has no layer; add it to the layers table", entry.Name())
		}
	}
}

// TestLayering verifies library packages only import lower layers.
func TestLayering(t *testing.T) {
	for pkg, layer := range layers {
		for file, imports := range packageImports(t, pkg) {
			for _, imp := range imports {
				dep, ok := strings.CutPrefix(imp, modulePath+"/pkg/")
				if !ok {
					continue
				}
				depLayer, known := layers[dep]
				if !known {
					t.Errorf("pkg/%s/%s imports unknown package %s", pkg, file, imp)
					continue
				}
				if depLayer >= layer {
					t.Errorf("pkg/%s/%s imports %s (layer %d may only import layers below it, %s is layer %d)",
						pkg, file, imp, layer, dep, depLayer)
				}
			}
		}
	}
}

// TestLibraryDoesNotImportInternal verifies pkg/ stays usable outside
// this module: no internal packages and no third-party code beyond the
// allowed list.
func TestLibraryDoesNotImportInternal(t *testing.T) {
	for pkg := range layers {
		for file, imports := range packageImports(t, pkg) {
			for _, imp := range imports {
				if strings.Contains(imp, "/internal/") {
					t.Errorf("pkg/%s/%s imports internal package: %s", pkg, file, imp)
					continue
				}
				// stdlib and this module
				if !strings.Contains(imp, ".") || strings.HasPrefix(imp, modulePath+"/") {
					continue
				}
				if !allowed(imp) {
					t.Errorf("pkg/%s/%s imports forbidden package: %s", pkg, file, imp)
				}
			}
		}
	}
}

func allowed(imp string) bool {
	for _, a := range allowedExternal {
		if imp == a || strings.HasSuffix(a, "/") && strings.HasPrefix(imp, a) {
			return true
		}
	}
	return false
}
