// Package template implements the propagation engine: capturing a formula,
// its variables, and its default bindings into a reusable template, and
// stamping that template onto a target tag together with a clone of the
// dependent tag sub-tree.
//
// Cloning works by ID remapping, never by shared references: every stamped
// instance gets fresh tag and binding identifiers, so two tags stamped from
// the same template can diverge independently. Editing one clone's bindings
// never affects the other's resolved values.
package template

import (
	"context"
	"fmt"

	"github.com/grovekit/grove/internal/binding"
	"github.com/grovekit/grove/pkg/tagstore"
)

// Engine captures and assigns templates against the tag store.
type Engine struct {
	store    *tagstore.Client
	bindings *binding.Resolver
}

// NewEngine creates an engine backed by the given store.
func NewEngine(store *tagstore.Client) *Engine {
	return &Engine{
		store:    store,
		bindings: binding.NewResolver(store),
	}
}

// AssignResult reports what an assignment produced.
type AssignResult struct {
	TemplateID  string
	TargetTagID string
	FormulaID   string // the formula now in effect on the target
	ClonedTags  int    // dependent tags cloned under the target
}

// Create captures a template from a source formula.
//
// The source formula is deep-copied (new identifier, same text), its
// variables are copied one-to-one onto the clone, and for each variable the
// source binding under scopeContextTagID (or, when no scope is given, the
// variable's binding with the lowest binding ID across all contexts) is
// snapshotted into the template's own context placeholder tag. Each
// variable is processed exactly once, so the placeholder can never
// accumulate duplicate bindings for a pair.
//
// The whole capture applies as one transaction; the source formula and its
// bindings are left untouched.
func (e *Engine) Create(ctx context.Context, name, sourceFormulaID, scopeContextTagID string) (*tagstore.Template, error) {
	src, err := e.store.GetFormula(ctx, sourceFormulaID)
	if err != nil {
		return nil, err
	}
	if scopeContextTagID != "" {
		if _, err := e.store.GetTag(ctx, scopeContextTagID); err != nil {
			return nil, err
		}
	}
	srcVars, err := e.store.ListVariables(ctx, sourceFormulaID)
	if err != nil {
		return nil, err
	}

	clone := &tagstore.Formula{
		ID:         tagstore.NewID(),
		Name:       src.Name,
		Desc:       src.Desc,
		Expression: src.Expression,
	}
	placeholder := &tagstore.Tag{
		ID:   tagstore.NewID(),
		Name: name,
		Kind: tagstore.TagKindTemplateContext,
	}

	ws := e.store.NewWriteSet()
	ws.PutFormula(clone)
	ws.PutTag(placeholder)

	for _, srcVar := range srcVars {
		newVar := &tagstore.Variable{
			ID:        tagstore.NewID(),
			FormulaID: clone.ID,
			Name:      srcVar.Name,
		}
		ws.PutVariable(newVar)

		var (
			snapshot *tagstore.Binding
			found    bool
		)
		if scopeContextTagID != "" {
			snapshot, found, err = e.bindings.Lookup(ctx, srcVar.ID, scopeContextTagID)
		} else {
			snapshot, found, err = e.bindings.AnyForVariable(ctx, srcVar.ID)
		}
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		ws.PutBinding(&tagstore.Binding{
			ID:           tagstore.NewID(),
			VariableID:   newVar.ID,
			TargetTagID:  snapshot.TargetTagID,
			ContextTagID: placeholder.ID,
		})
	}

	tmpl := &tagstore.Template{
		ID:                tagstore.NewID(),
		Name:              name,
		FormulaID:         clone.ID,
		SourceFormulaID:   src.ID,
		ContextTagID:      placeholder.ID,
		CapturedFromTagID: scopeContextTagID,
	}
	if err := tmpl.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	ws.PutTemplate(tmpl)

	if err := ws.Apply(ctx); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// Assign stamps a template onto a target tag: the target takes the
// template's formula, its context gets one binding per template variable
// (honoring any target the caller had already pre-bound there over the
// template's own default), and the dependent tag sub-tree the template was
// captured from is cloned under the target with all internal references
// remapped to fresh identifiers.
//
// Everything applies in one transaction: a failure anywhere leaves the
// target untouched, never partially stamped.
func (e *Engine) Assign(ctx context.Context, templateID, targetTagID string) (*AssignResult, error) {
	tmpl, err := e.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	target, err := e.store.GetTag(ctx, targetTagID)
	if err != nil {
		return nil, err
	}

	ws := e.store.NewWriteSet()

	target.FormulaID = tmpl.FormulaID
	ws.PutTag(target)

	// Association is listing-only metadata and applies to subgroup roots;
	// a child target simply has no subgroup to associate.
	if target.SubgroupID != "" {
		ws.AddSubgroupTemplate(target.SubgroupID, tmpl.ID)
	}

	if err := e.stageContextBindings(ctx, ws, tmpl, target); err != nil {
		return nil, err
	}

	oldToNew, err := e.stageSubtreeClone(ctx, ws, tmpl, target)
	if err != nil {
		return nil, err
	}

	if err := e.stageBindingRewiring(ctx, ws, oldToNew); err != nil {
		return nil, err
	}

	if err := ws.Apply(ctx); err != nil {
		return nil, err
	}
	return &AssignResult{
		TemplateID:  tmpl.ID,
		TargetTagID: target.ID,
		FormulaID:   tmpl.FormulaID,
		ClonedTags:  len(oldToNew),
	}, nil
}

// stageContextBindings gives the target context a clean slate per template
// variable: any existing binding there is deleted, then a fresh one is
// inserted pointing at the caller's pre-bound target when present, else at
// the template placeholder's own default. A variable with neither is
// skipped entirely.
func (e *Engine) stageContextBindings(ctx context.Context, ws *tagstore.WriteSet, tmpl *tagstore.Template, target *tagstore.Tag) error {
	vars, err := e.store.ListVariables(ctx, tmpl.FormulaID)
	if err != nil {
		return err
	}
	for _, v := range vars {
		preBound, hasPreBound, err := e.bindings.Lookup(ctx, v.ID, target.ID)
		if err != nil {
			return err
		}
		if hasPreBound {
			ws.DeleteBinding(preBound)
		}

		var targetTag string
		switch {
		case hasPreBound:
			targetTag = preBound.TargetTagID
		default:
			def, hasDefault, err := e.bindings.Lookup(ctx, v.ID, tmpl.ContextTagID)
			if err != nil {
				return err
			}
			if !hasDefault {
				continue
			}
			targetTag = def.TargetTagID
		}

		ws.PutBinding(&tagstore.Binding{
			ID:           tagstore.NewID(),
			VariableID:   v.ID,
			TargetTagID:  targetTag,
			ContextTagID: target.ID,
		})
	}
	return nil
}

// stageSubtreeClone clones the dependency tree the template was captured
// from: every tag under the captured-from root whose formula is the
// template's source formula, excluding the root itself. Cloning runs in
// two passes to respect parent-before-child ordering: direct children of
// the root become children of the target, then remaining tags attach under
// their already-cloned parents until no more can be mapped. A tag whose
// parent never got mapped is left unprocessed; its branch is structurally
// disconnected from the target.
func (e *Engine) stageSubtreeClone(ctx context.Context, ws *tagstore.WriteSet, tmpl *tagstore.Template, target *tagstore.Tag) (map[string]string, error) {
	oldToNew := make(map[string]string)
	if tmpl.CapturedFromTagID == "" {
		// Captured without a scoping context: no dependency tree to clone.
		return oldToNew, nil
	}

	candidates, err := e.collectDependents(ctx, tmpl)
	if err != nil {
		return nil, err
	}

	cloneUnder := func(old *tagstore.Tag, newParentID string) {
		cloned := &tagstore.Tag{
			ID:          tagstore.NewID(),
			ParentID:    newParentID,
			Name:        old.Name,
			MasterTagID: old.MasterTagID, // shared base type, never cloned
			FormulaID:   old.FormulaID,   // shared formula, never cloned
			Value:       old.Value,
			HasValue:    old.HasValue,
			Kind:        tagstore.TagKindStandard,
		}
		oldToNew[old.ID] = cloned.ID
		ws.PutTag(cloned)
	}

	// First pass: tags hanging directly off the untouched origin root
	// become children of the target.
	remaining := make([]*tagstore.Tag, 0, len(candidates))
	for _, t := range candidates {
		if t.ParentID == tmpl.CapturedFromTagID {
			cloneUnder(t, target.ID)
		} else {
			remaining = append(remaining, t)
		}
	}

	// Second pass: attach under already-cloned parents until a fixpoint.
	for {
		progressed := false
		next := remaining[:0]
		for _, t := range remaining {
			if newParent, ok := oldToNew[t.ParentID]; ok {
				cloneUnder(t, newParent)
				progressed = true
			} else {
				next = append(next, t)
			}
		}
		remaining = next
		if !progressed {
			break
		}
	}

	return oldToNew, nil
}

// collectDependents walks the child chain below the captured-from root and
// returns every tag there whose formula is the template's source formula.
func (e *Engine) collectDependents(ctx context.Context, tmpl *tagstore.Template) ([]*tagstore.Tag, error) {
	var dependents []*tagstore.Tag
	queue := []string{tmpl.CapturedFromTagID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		children, err := e.store.ListChildren(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if child.FormulaID == tmpl.SourceFormulaID {
				dependents = append(dependents, child)
			}
			queue = append(queue, child.ID)
		}
	}
	return dependents, nil
}

// stageBindingRewiring creates an equivalent binding for every binding
// touching a cloned tag in either role, substituting the new tag ID
// wherever an old one appears. A counterpart outside the cloned sub-tree
// (a shared masterlist tag, say) keeps its original ID. When the context
// is not remapped the rewired binding lands at the same (variable,
// context) pair, so the original is deleted first to keep the pair
// unique.
func (e *Engine) stageBindingRewiring(ctx context.Context, ws *tagstore.WriteSet, oldToNew map[string]string) error {
	seen := make(map[string]struct{})
	mapOrKeep := func(id string) string {
		if newID, ok := oldToNew[id]; ok {
			return newID
		}
		return id
	}

	for oldID := range oldToNew {
		asContext, err := e.store.ListBindingsForContext(ctx, oldID)
		if err != nil {
			return err
		}
		asTarget, err := e.store.ListBindingsTargeting(ctx, oldID)
		if err != nil {
			return err
		}
		for _, b := range append(asContext, asTarget...) {
			if _, done := seen[b.ID]; done {
				continue
			}
			seen[b.ID] = struct{}{}
			newContext := mapOrKeep(b.ContextTagID)
			if newContext == b.ContextTagID {
				ws.DeleteBinding(b)
			}
			ws.PutBinding(&tagstore.Binding{
				ID:           tagstore.NewID(),
				VariableID:   b.VariableID,
				TargetTagID:  mapOrKeep(b.TargetTagID),
				ContextTagID: newContext,
			})
		}
	}
	return nil
}

// Delete removes a template: the record itself, its context placeholder
// tag with every default binding anchored there, its private formula copy
// with that formula's variables and their bindings, and both sides of any
// subgroup associations. The source formula is not touched. Nothing is
// left orphaned.
func (e *Engine) Delete(ctx context.Context, templateID string) error {
	tmpl, err := e.store.GetTemplate(ctx, templateID)
	if err != nil {
		return err
	}

	ws := e.store.NewWriteSet()

	vars, err := e.store.ListVariables(ctx, tmpl.FormulaID)
	if err != nil {
		return err
	}
	for _, v := range vars {
		varBindings, err := e.store.ListBindingsForVariable(ctx, v.ID)
		if err != nil {
			return err
		}
		for _, b := range varBindings {
			ws.DeleteBinding(b)
		}
		ws.DeleteVariable(v)
	}
	formula, err := e.store.GetFormula(ctx, tmpl.FormulaID)
	if err != nil {
		return err
	}
	ws.DeleteFormula(formula)

	placeholder, err := e.store.GetTag(ctx, tmpl.ContextTagID)
	if err != nil {
		return err
	}
	ctxBindings, err := e.store.ListBindingsForContext(ctx, placeholder.ID)
	if err != nil {
		return err
	}
	for _, b := range ctxBindings {
		ws.DeleteBinding(b)
	}
	ws.DeleteTag(placeholder)

	subgroupIDs, err := e.store.SubgroupsForTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	for _, sgID := range subgroupIDs {
		ws.RemoveSubgroupTemplate(sgID, templateID)
	}

	ws.DeleteTemplate(tmpl)
	return ws.Apply(ctx)
}
