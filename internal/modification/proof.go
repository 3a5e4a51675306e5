package modification

import (
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ProofStatus is the outcome of checking a proposed change.
type ProofStatus string

const (
	// ProofVerified means the new code parses and passed every structural check.
	ProofVerified ProofStatus = "verified"
	// ProofFailed means a structural check failed.
	ProofFailed ProofStatus = "failed"
	// ProofUnverified means the code is not Go, so nothing could be checked.
	ProofUnverified ProofStatus = "unverified"
	// ProofRejected means the new code imports a forbidden package.
	ProofRejected ProofStatus = "rejected"
)

// forbiddenImports may never be introduced by a self-modification.
var forbiddenImports = map[string]bool{
	"unsafe":  true,
	"os/exec": true,
	"syscall": true,
}

// Proof is the result of Prove.
type Proof struct {
	Status ProofStatus `json:"status"`
	Notes  []string    `json:"notes,omitempty"`
}

// Prove checks a change structurally. Code is accepted as a whole Go file,
// as top-level declarations or as a statement list. Interface modifications
// must additionally keep every exported top-level name of the old code.
func Prove(before, after string, modType Type) Proof {
	if strings.TrimSpace(after) == "" {
		return Proof{Status: ProofFailed, Notes: []string{"code_after is empty"}}
	}

	newFile, err := parseGo(after)
	if err != nil {
		if bad := forbiddenInText(after); len(bad) > 0 {
			return Proof{Status: ProofRejected, Notes: []string{"forbidden imports: " + strings.Join(bad, ", ")}}
		}
		if _, beforeErr := parseGo(before); beforeErr != nil || strings.TrimSpace(before) == "" {
			return Proof{Status: ProofUnverified, Notes: []string{"code is not Go source; no structural checks applied"}}
		}
		return Proof{Status: ProofFailed, Notes: []string{"code_after does not parse: " + err.Error()}}
	}

	if bad := forbidden(newFile); len(bad) > 0 {
		return Proof{Status: ProofRejected, Notes: []string{"forbidden imports: " + strings.Join(bad, ", ")}}
	}

	if modType == TypeInterface {
		if oldFile, err := parseGo(before); err == nil {
			if missing := missingExports(oldFile, newFile); len(missing) > 0 {
				return Proof{Status: ProofFailed, Notes: []string{"removes exported names: " + strings.Join(missing, ", ")}}
			}
		}
	}

	return Proof{Status: ProofVerified}
}

func parseGo(src string) (*ast.File, error) {
	fset := token.NewFileSet()
	if f, err := parser.ParseFile(fset, "", src, parser.SkipObjectResolution); err == nil {
		return f, nil
	}
	if f, err := parser.ParseFile(fset, "", "package p\n"+src, parser.SkipObjectResolution); err == nil {
		return f, nil
	}
	return parser.ParseFile(fset, "", "package p\nfunc _() {\n"+src+"\n}", parser.SkipObjectResolution)
}

func forbidden(f *ast.File) []string {
	var bad []string
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err == nil && forbiddenImports[path] {
			bad = append(bad, path)
		}
	}
	sort.Strings(bad)
	return bad
}

var (
	importClause = regexp.MustCompile(`\bimport\s*(?:\([^)]*\)|[\w.]*\s*"[^"]*")`)
	quotedPath   = regexp.MustCompile(`"([^"]+)"`)
)

// forbiddenInText finds forbidden import paths in source that does not
// parse.
func forbiddenInText(src string) []string {
	seen := map[string]bool{}
	var bad []string
	for _, clause := range importClause.FindAllString(src, -1) {
		for _, m := range quotedPath.FindAllStringSubmatch(clause, -1) {
			if path := m[1]; forbiddenImports[path] && !seen[path] {
				seen[path] = true
				bad = append(bad, path)
			}
		}
	}
	sort.Strings(bad)
	return bad
}

// exports lists the exported top-level names of a file, methods included
// as Recv.Name.
func exports(f *ast.File) map[string]bool {
	names := map[string]bool{}
	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if !d.Name.IsExported() {
				continue
			}
			name := d.Name.Name
			if d.Recv != nil && len(d.Recv.List) > 0 {
				name = recvName(d.Recv.List[0].Type) + "." + name
			}
			names[name] = true
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				switch s := spec.(type) {
				case *ast.TypeSpec:
					if s.Name.IsExported() {
						names[s.Name.Name] = true
					}
				case *ast.ValueSpec:
					for _, n := range s.Names {
						if n.IsExported() {
							names[n.Name] = true
						}
					}
				}
			}
		}
	}
	return names
}

func recvName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return recvName(t.X)
	case *ast.IndexExpr:
		return recvName(t.X)
	case *ast.IndexListExpr:
		return recvName(t.X)
	case *ast.Ident:
		return t.Name
	}
	return "?"
}

func missingExports(before, after *ast.File) []string {
	have := exports(after)
	var missing []string
	for name := range exports(before) {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
