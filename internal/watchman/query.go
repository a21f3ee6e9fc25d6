package watchman

import "encoding/json"

// Expr is a node in the boolean filter algebra the index service
// evaluates against its view of the tree. Expressions serialize to the
// JSON array forms the service expects, e.g.
// ["allof", "exists", ["not", ["dirname", ".git"]]].
type Expr struct {
	term any
}

// MarshalJSON serializes the expression's wire form.
func (e Expr) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.term)
}

// Name match scopes.
const (
	// ScopeWholeName matches against the full relative path.
	ScopeWholeName = "wholename"
	// ScopeBasename matches against the final path component.
	ScopeBasename = "basename"
)

// AllOf is true when every child expression is true.
func AllOf(children ...Expr) Expr {
	return compound("allof", children)
}

// AnyOf is true when at least one child expression is true.
func AnyOf(children ...Expr) Expr {
	return compound("anyof", children)
}

// Not negates its child.
func Not(child Expr) Expr {
	return Expr{term: []any{"not", child.term}}
}

// Dirname is true for entries whose path lies under dir.
func Dirname(dir string) Expr {
	return Expr{term: []any{"dirname", dir}}
}

// Name is true for entries matching name exactly under the given
// scope. With ScopeWholeName the comparison is against the full
// relative path rather than the basename.
func Name(name, scope string) Expr {
	return Expr{term: []any{"name", name, scope}}
}

// Exists is true for entries that currently exist. The index retains
// tombstones for deleted entries internally; audits must not see them.
func Exists() Expr {
	return Expr{term: "exists"}
}

func compound(op string, children []Expr) Expr {
	term := make([]any, 0, len(children)+1)
	term = append(term, op)
	for _, child := range children {
		term = append(term, child.term)
	}
	return Expr{term: term}
}

// AuditExpression builds the primary reconciliation filter: entries
// must exist and must not lie under any ignored directory.
func AuditExpression(ignoreDirs []string) Expr {
	if len(ignoreDirs) == 0 {
		return AllOf(Exists())
	}
	under := make([]Expr, 0, len(ignoreDirs))
	for _, dir := range ignoreDirs {
		under = append(under, Dirname(dir))
	}
	return AllOf(Exists(), Not(AnyOf(under...)))
}

// FollowUpExpression asks about exact literal paths with no ignore or
// existence constraint: any record at all, including one stored under
// different casing, differentiates a rename/case artifact from an
// entry the index never saw.
func FollowUpExpression(paths []string) Expr {
	names := make([]Expr, 0, len(paths))
	for _, p := range paths {
		names = append(names, Name(p, ScopeWholeName))
	}
	return AnyOf(names...)
}

// QueryFields is the field projection for audit queries. The inode
// field is requested only where the platform exposes stable inode
// numbers.
func QueryFields(withInode bool) []string {
	fields := []string{"name", "mode", "size", "mtime_f", "oclock"}
	if withInode {
		fields = append(fields, "ino")
	}
	return fields
}
