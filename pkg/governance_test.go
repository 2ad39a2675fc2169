//go:build governance

package pkg_test

import (
	"go/types"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// =============================================================================
// COHESION TEST - Library packages must have a consumer
// =============================================================================

// TestGovernance_PackageCohesion verifies that every library package is
// imported by at least one other package in the module. Packages nobody
// imports should be folded into their would-be consumer or deleted.
func TestGovernance_PackageCohesion(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, modulePath+"/...")
	if err != nil {
		t.Fatalf("Failed to load packages: %v", err)
	}

	importers := make(map[string]map[string]bool)
	for name := range layers {
		importers[modulePath+"/pkg/"+name] = make(map[string]bool)
	}
	for _, p := range pkgs {
		for path := range p.Imports {
			if users, ok := importers[path]; ok && path != p.PkgPath {
				users[strings.TrimPrefix(p.PkgPath, modulePath+"/")] = true
			}
		}
	}

	for path, users := range importers {
		if len(users) == 0 {
			t.Errorf("COHESION VIOLATION: '%s' is not imported by any package.",
				strings.TrimPrefix(path, modulePath+"/"))
		}
	}
}

// =============================================================================
// PURITY TEST - No type alias re-exports between library packages
// =============================================================================

// TestGovernance_NoTypeAliasReexports ensures packages don't re-export
// another package's types as aliases. Consumers import the owner directly.
func TestGovernance_NoTypeAliasReexports(t *testing.T) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports | packages.NeedTypes,
	}
	pkgs, err := packages.Load(cfg, modulePath+"/pkg/...")
	if err != nil {
		t.Fatalf("Failed to load packages: %v", err)
	}

	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 || pkg.Types == nil {
			continue
		}
		scope := pkg.Types.Scope()
		for _, name := range scope.Names() {
			obj := scope.Lookup(name)
			if !obj.Exported() {
				continue
			}
			typeName, ok := obj.(*types.TypeName)
			if !ok || !typeName.IsAlias() {
				continue
			}
			named, ok := types.Unalias(typeName.Type()).(*types.Named)
			if !ok || named.Obj().Pkg() == nil || named.Obj().Pkg() == pkg.Types {
				continue
			}
			t.Errorf("PURITY VIOLATION: Package '%s' re-exports type alias '%s' from '%s'.\n"+
				"   Fix: Remove the alias. Consumers should use %s.%s directly.",
				strings.TrimPrefix(pkg.PkgPath, modulePath+"/"), name, named.Obj().Pkg().Path(),
				named.Obj().Pkg().Name(), named.Obj().Name())
		}
	}
}
