// Package binding owns the (variable, context) → target-tag mapping table.
//
// A binding means "variable X, evaluated under context tag C, takes the
// value of tag T". The store's per-context hash index guarantees at most
// one binding per (variable, context) pair; writing a second upserts the
// first rather than duplicating it.
package binding

import (
	"context"
	"fmt"

	"github.com/grovekit/grove/pkg/tagstore"
)

// Resolver manages variable-to-tag bindings in the tag store.
type Resolver struct {
	store *tagstore.Client
}

// NewResolver creates a resolver backed by the given store.
func NewResolver(store *tagstore.Client) *Resolver {
	return &Resolver{store: store}
}

// Upsert maps (variable, context) to a target tag. If a binding already
// exists for the pair its target is overwritten in place; otherwise a new
// binding is inserted. Returns the resulting binding.
// Returns ErrNotFound if the variable, context tag, or target tag is absent.
func (r *Resolver) Upsert(ctx context.Context, variableID, contextTagID, targetTagID string) (*tagstore.Binding, error) {
	if _, err := r.store.GetVariable(ctx, variableID); err != nil {
		return nil, err
	}
	if _, err := r.store.GetTag(ctx, contextTagID); err != nil {
		return nil, err
	}
	if _, err := r.store.GetTag(ctx, targetTagID); err != nil {
		return nil, err
	}

	existing, ok, err := r.store.LookupBinding(ctx, variableID, contextTagID)
	if err != nil {
		return nil, err
	}

	ws := r.store.NewWriteSet()
	var result *tagstore.Binding
	if ok {
		// Retarget in place: same binding ID, indexes moved to the new target.
		ws.DeleteBinding(existing)
		result = &tagstore.Binding{
			ID:           existing.ID,
			VariableID:   variableID,
			ContextTagID: contextTagID,
			TargetTagID:  targetTagID,
		}
	} else {
		result = &tagstore.Binding{
			ID:           tagstore.NewID(),
			VariableID:   variableID,
			ContextTagID: contextTagID,
			TargetTagID:  targetTagID,
		}
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("invalid binding: %w", err)
	}
	ws.PutBinding(result)
	if err := ws.Apply(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// Lookup returns the binding for (variable, context) if one exists.
// Absence is not an error: callers branch on ok.
func (r *Resolver) Lookup(ctx context.Context, variableID, contextTagID string) (*tagstore.Binding, bool, error) {
	return r.store.LookupBinding(ctx, variableID, contextTagID)
}

// ListForContext returns all bindings whose context is the given tag.
func (r *Resolver) ListForContext(ctx context.Context, contextTagID string) ([]*tagstore.Binding, error) {
	return r.store.ListBindingsForContext(ctx, contextTagID)
}

// AnyForVariable returns the variable's binding with the lowest binding ID
// across all contexts, used as the deterministic tie-break when a template
// is captured without a scoping context.
func (r *Resolver) AnyForVariable(ctx context.Context, variableID string) (*tagstore.Binding, bool, error) {
	bindings, err := r.store.ListBindingsForVariable(ctx, variableID)
	if err != nil {
		return nil, false, err
	}
	if len(bindings) == 0 {
		return nil, false, nil
	}
	return bindings[0], true, nil
}

// Delete removes a binding by ID.
// Returns ErrNotFound if it does not exist.
func (r *Resolver) Delete(ctx context.Context, bindingID string) error {
	b, err := r.store.GetBinding(ctx, bindingID)
	if err != nil {
		return err
	}
	ws := r.store.NewWriteSet()
	ws.DeleteBinding(b)
	return ws.Apply(ctx)
}
