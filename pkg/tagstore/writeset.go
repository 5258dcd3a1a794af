package tagstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// WriteSet stages entity mutations and applies them in one MULTI/EXEC
// transaction. Multi-step workflows (expression reconciliation, template
// assignment, cascading deletes) read their inputs first, stage every
// mutation, then Apply once: either the whole set lands or none of it does.
//
// Each staging method encapsulates the secondary-index bookkeeping for its
// entity, so callers never touch index keys directly.
type WriteSet struct {
	client *Client
	ops    []func(ctx context.Context, pipe redis.Pipeliner)
}

// NewWriteSet creates an empty write set bound to this client's instance.
func (c *Client) NewWriteSet() *WriteSet {
	return &WriteSet{client: c}
}

// Len returns the number of staged operations.
func (ws *WriteSet) Len() int {
	return len(ws.ops)
}

// Apply executes all staged operations in a single transaction.
// Applying an empty write set is a no-op.
func (ws *WriteSet) Apply(ctx context.Context) error {
	if len(ws.ops) == 0 {
		return nil
	}
	_, err := ws.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ws.ops {
			op(ctx, pipe)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply write set: %w", err)
	}
	return nil
}

func (ws *WriteSet) stage(op func(ctx context.Context, pipe redis.Pipeliner)) {
	ws.ops = append(ws.ops, op)
}

// PutAsset stages an asset write (create or full replace).
func (ws *WriteSet) PutAsset(a *Asset) {
	instance := ws.client.instance
	hash := AssetToHash(a)
	ws.stage(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, AssetKey(instance, a.ID), hash)
		pipe.SAdd(ctx, AssetsKey(instance), a.ID)
	})
}

// PutSubgroup stages a subgroup write and its asset membership.
func (ws *WriteSet) PutSubgroup(s *Subgroup) {
	instance := ws.client.instance
	hash := SubgroupToHash(s)
	ws.stage(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, SubgroupKey(instance, s.ID), hash)
		pipe.SAdd(ctx, AssetSubgroupsKey(instance, s.AssetID), s.ID)
	})
}

// PutMasterlist stages a masterlist write.
func (ws *WriteSet) PutMasterlist(m *Masterlist) {
	instance := ws.client.instance
	hash := MasterlistToHash(m)
	ws.stage(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, MasterlistKey(instance, m.ID), hash)
		pipe.SAdd(ctx, MasterlistsKey(instance), m.ID)
	})
}

// PutMasterTag stages a master tag write and its masterlist membership.
func (ws *WriteSet) PutMasterTag(mt *MasterTag) {
	instance := ws.client.instance
	hash := MasterTagToHash(mt)
	ws.stage(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, MasterTagKey(instance, mt.ID), hash)
		pipe.SAdd(ctx, MasterlistTagsKey(instance, mt.FileID), mt.ID)
	})
}

// PutFormula stages a formula write (create or full replace).
func (ws *WriteSet) PutFormula(f *Formula) {
	instance := ws.client.instance
	hash := FormulaToHash(f)
	ws.stage(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, FormulaKey(instance, f.ID), hash)
		pipe.SAdd(ctx, FormulasKey(instance), f.ID)
	})
}

// DeleteFormula stages removal of a formula record and its index keys.
// The caller is responsible for staging deletion of the formula's variables
// (and their bindings) first; those need reads this method cannot do.
func (ws *WriteSet) DeleteFormula(f *Formula) {
	instance := ws.client.instance
	ws.stage(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Del(ctx, FormulaKey(instance, f.ID))
		pipe.SRem(ctx, FormulasKey(instance), f.ID)
		pipe.Del(ctx, FormulaVariablesKey(instance, f.ID))
		pipe.Del(ctx, FormulaTemplatesKey(instance, f.ID))
	})
}

// PutVariable stages a variable write and its formula membership.
func (ws *WriteSet) PutVariable(v *Variable) {
	instance := ws.client.instance
	hash := VariableToHash(v)
	ws.stage(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, VariableKey(instance, v.ID), hash)
		pipe.SAdd(ctx, FormulaVariablesKey(instance, v.FormulaID), v.ID)
	})
}

// DeleteVariable stages removal of a variable record. The caller stages
// deletion of the variable's bindings separately.
func (ws *WriteSet) DeleteVariable(v *Variable) {
	instance := ws.client.instance
	ws.stage(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Del(ctx, VariableKey(instance, v.ID))
		pipe.SRem(ctx, FormulaVariablesKey(instance, v.FormulaID), v.ID)
		pipe.Del(ctx, VariableBindingsKey(instance, v.ID))
	})
}

// PutTag stages a tag write and its anchor membership (subgroup root set or
// parent children set). Template context tags have no anchor and get no
// membership entry, which is what keeps them out of subgroup listings.
func (ws *WriteSet) PutTag(t *Tag) {
	instance := ws.client.instance
	hash := TagToHash(t)
	ws.stage(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, TagKey(instance, t.ID), hash)
		if t.SubgroupID != "" {
			pipe.SAdd(ctx, SubgroupTagsKey(instance, t.SubgroupID), t.ID)
		}
		if t.ParentID != "" {
			pipe.SAdd(ctx, TagChildrenKey(instance, t.ParentID), t.ID)
		}
	})
}

// DeleteTag stages removal of a tag record and its anchor membership.
// The caller stages deletion of the tag's context bindings first (reads
// required). Children are not touched: they become orphaned unless the
// caller explicitly stages their deletion too.
func (ws *WriteSet) DeleteTag(t *Tag) {
	instance := ws.client.instance
	ws.stage(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Del(ctx, TagKey(instance, t.ID))
		if t.SubgroupID != "" {
			pipe.SRem(ctx, SubgroupTagsKey(instance, t.SubgroupID), t.ID)
		}
		if t.ParentID != "" {
			pipe.SRem(ctx, TagChildrenKey(instance, t.ParentID), t.ID)
		}
		pipe.Del(ctx, TagBindingsKey(instance, t.ID))
		pipe.Del(ctx, TagChildrenKey(instance, t.ID))
	})
}

// PutBinding stages a binding write with all three of its indexes: the
// context hash (variable → binding, the uniqueness guarantee), the
// variable's binding set, and the target tag's bound-by set.
func (ws *WriteSet) PutBinding(b *Binding) {
	instance := ws.client.instance
	hash := BindingToHash(b)
	ws.stage(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, BindingKey(instance, b.ID), hash)
		pipe.HSet(ctx, TagBindingsKey(instance, b.ContextTagID), b.VariableID, b.ID)
		pipe.SAdd(ctx, VariableBindingsKey(instance, b.VariableID), b.ID)
		pipe.SAdd(ctx, TagBoundByKey(instance, b.TargetTagID), b.ID)
	})
}

// DeleteBinding stages removal of a binding and all three of its indexes.
func (ws *WriteSet) DeleteBinding(b *Binding) {
	instance := ws.client.instance
	ws.stage(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Del(ctx, BindingKey(instance, b.ID))
		pipe.HDel(ctx, TagBindingsKey(instance, b.ContextTagID), b.VariableID)
		pipe.SRem(ctx, VariableBindingsKey(instance, b.VariableID), b.ID)
		pipe.SRem(ctx, TagBoundByKey(instance, b.TargetTagID), b.ID)
	})
}

// PutTemplate stages a template write and its formula back-reference.
func (ws *WriteSet) PutTemplate(t *Template) {
	instance := ws.client.instance
	hash := TemplateToHash(t)
	ws.stage(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, TemplateKey(instance, t.ID), hash)
		pipe.SAdd(ctx, TemplatesKey(instance), t.ID)
		pipe.SAdd(ctx, FormulaTemplatesKey(instance, t.FormulaID), t.ID)
	})
}

// DeleteTemplate stages removal of a template record, its formula
// back-reference, and its association index. Placeholder tag cleanup and
// the subgroup-side association entries are staged by the caller.
func (ws *WriteSet) DeleteTemplate(t *Template) {
	instance := ws.client.instance
	ws.stage(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Del(ctx, TemplateKey(instance, t.ID))
		pipe.SRem(ctx, TemplatesKey(instance), t.ID)
		pipe.SRem(ctx, FormulaTemplatesKey(instance, t.FormulaID), t.ID)
		pipe.Del(ctx, TemplateSubgroupsKey(instance, t.ID))
	})
}

// AddSubgroupTemplate stages both sides of a subgroup↔template association.
func (ws *WriteSet) AddSubgroupTemplate(subgroupID, templateID string) {
	instance := ws.client.instance
	ws.stage(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.SAdd(ctx, SubgroupTemplatesKey(instance, subgroupID), templateID)
		pipe.SAdd(ctx, TemplateSubgroupsKey(instance, templateID), subgroupID)
	})
}

// RemoveSubgroupTemplate stages removal of both sides of a
// subgroup↔template association.
func (ws *WriteSet) RemoveSubgroupTemplate(subgroupID, templateID string) {
	instance := ws.client.instance
	ws.stage(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.SRem(ctx, SubgroupTemplatesKey(instance, subgroupID), templateID)
		pipe.SRem(ctx, TemplateSubgroupsKey(instance, templateID), subgroupID)
	})
}
