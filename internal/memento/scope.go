package memento

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Scope is a named filter over a plural association. Scopes run against
// each element's captured document at serialization time; their results
// are stored as flattened sub-collections next to the full association.
type Scope struct {
	matches func(Document) (bool, error)
}

// NewScope builds a scope from a Go predicate over element documents.
func NewScope(predicate func(Document) bool) *Scope {
	return &Scope{
		matches: func(doc Document) (bool, error) {
			return predicate(doc), nil
		},
	}
}

// NewExprScope compiles an expr-lang expression into a scope. The element
// document's keys are the expression's variables; undefined variables
// evaluate as nil, so expressions stay valid across schema drift.
func NewExprScope(expression string) (*Scope, error) {
	program, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile scope expression %q: %w", expression, err)
	}
	return &Scope{matches: exprMatcher(expression, program)}, nil
}

func exprMatcher(expression string, program *vm.Program) func(Document) (bool, error) {
	return func(doc Document) (bool, error) {
		out, err := expr.Run(program, map[string]any(doc))
		if err != nil {
			return false, fmt.Errorf("run scope expression %q: %w", expression, err)
		}
		matched, ok := out.(bool)
		if !ok {
			return false, fmt.Errorf("scope expression %q returned %T, want bool", expression, out)
		}
		return matched, nil
	}
}

// Matches reports whether an element document belongs to the scope.
func (s *Scope) Matches(doc Document) (bool, error) {
	return s.matches(doc)
}
