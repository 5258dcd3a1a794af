// Package formula owns formula text and its derived variable set.
//
// A formula's variables are never edited directly: every expression write
// re-derives the distinct $identifier tokens and reconciles the stored
// variable set against them (delete stale, insert new) in one transaction.
// Deleting a variable cascades to every binding that references it, so an
// expression edit indirectly clears the bindings of variables that no
// longer appear in the text.
package formula

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/grovekit/grove/pkg/tagstore"
)

// variablePattern matches $ followed by an identifier: a letter or
// underscore, then letters, digits, or underscores.
var variablePattern = regexp.MustCompile(`\$([a-zA-Z_][a-zA-Z0-9_]*)`)

// DeriveVariables returns the distinct variable names referenced by an
// expression, without the $ marker, sorted. Deriving twice from the same
// text yields the same set.
func DeriveVariables(expression string) []string {
	matches := variablePattern.FindAllStringSubmatch(expression, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	sort.Strings(names)
	return names
}

// Registry manages formulas and their variable sets in the tag store.
type Registry struct {
	store *tagstore.Client
}

// NewRegistry creates a registry backed by the given store.
func NewRegistry(store *tagstore.Client) *Registry {
	return &Registry{store: store}
}

// Create stores a new formula and one variable per distinct $token in its
// expression, atomically. Returns the formula and its variables sorted by
// name.
func (r *Registry) Create(ctx context.Context, name, desc, expression string) (*tagstore.Formula, []*tagstore.Variable, error) {
	f := &tagstore.Formula{
		ID:         tagstore.NewID(),
		Name:       name,
		Desc:       desc,
		Expression: expression,
	}
	if err := f.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid formula: %w", err)
	}

	ws := r.store.NewWriteSet()
	ws.PutFormula(f)
	vars := stageVariables(ws, f)
	if err := ws.Apply(ctx); err != nil {
		return nil, nil, err
	}
	return f, vars, nil
}

// SetExpression replaces a formula's text (and optionally name and
// description) and reconciles its variable set: all existing variables are
// deleted, cascading their bindings, and one fresh variable is inserted per
// distinct token in the new text. The replacement is atomic; a failure
// leaves the old formula and variable set intact.
func (r *Registry) SetExpression(ctx context.Context, formulaID, name, desc, expression string) (*tagstore.Formula, []*tagstore.Variable, error) {
	f, err := r.store.GetFormula(ctx, formulaID)
	if err != nil {
		return nil, nil, err
	}
	if name != "" {
		f.Name = name
	}
	f.Desc = desc
	f.Expression = expression
	if err := f.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid formula: %w", err)
	}

	oldVars, err := r.store.ListVariables(ctx, formulaID)
	if err != nil {
		return nil, nil, err
	}

	ws := r.store.NewWriteSet()
	for _, v := range oldVars {
		if err := stageVariableDelete(ctx, r.store, ws, v); err != nil {
			return nil, nil, err
		}
	}
	ws.PutFormula(f)
	vars := stageVariables(ws, f)
	if err := ws.Apply(ctx); err != nil {
		return nil, nil, err
	}
	return f, vars, nil
}

// Delete removes a formula, cascading to its variables and their bindings.
// Returns ErrNotFound if the formula does not exist and ErrConflict while
// templates still hold it as their private copy: cascading here would rip
// the engine out of a live template, so the caller must delete those
// templates first.
func (r *Registry) Delete(ctx context.Context, formulaID string) error {
	f, err := r.store.GetFormula(ctx, formulaID)
	if err != nil {
		return err
	}

	templateIDs, err := r.store.TemplatesReferencingFormula(ctx, formulaID)
	if err != nil {
		return err
	}
	if len(templateIDs) > 0 {
		return fmt.Errorf("formula %s is referenced by %d template(s): %w", formulaID, len(templateIDs), tagstore.ErrConflict)
	}

	vars, err := r.store.ListVariables(ctx, formulaID)
	if err != nil {
		return err
	}

	ws := r.store.NewWriteSet()
	for _, v := range vars {
		if err := stageVariableDelete(ctx, r.store, ws, v); err != nil {
			return err
		}
	}
	ws.DeleteFormula(f)
	return ws.Apply(ctx)
}

// stageVariables stages one variable per derived token and returns them
// sorted by name.
func stageVariables(ws *tagstore.WriteSet, f *tagstore.Formula) []*tagstore.Variable {
	names := DeriveVariables(f.Expression)
	vars := make([]*tagstore.Variable, 0, len(names))
	for _, name := range names {
		v := &tagstore.Variable{ID: tagstore.NewID(), FormulaID: f.ID, Name: name}
		ws.PutVariable(v)
		vars = append(vars, v)
	}
	return vars
}

// stageVariableDelete stages removal of a variable together with every
// binding that references it.
func stageVariableDelete(ctx context.Context, store *tagstore.Client, ws *tagstore.WriteSet, v *tagstore.Variable) error {
	bindings, err := store.ListBindingsForVariable(ctx, v.ID)
	if err != nil {
		return err
	}
	for _, b := range bindings {
		ws.DeleteBinding(b)
	}
	ws.DeleteVariable(v)
	return nil
}
