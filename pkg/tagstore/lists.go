package tagstore

import (
	"context"
	"fmt"
	"sort"
)

// Listing helpers. All listings return an empty slice (never an error) when
// the relation has no members, and sort deterministically so callers and
// tests see stable output.

func (c *Client) setMembers(ctx context.Context, key string) ([]string, error) {
	members, err := c.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	sort.Strings(members)
	return members, nil
}

// ListAssets returns all assets, sorted by name.
func (c *Client) ListAssets(ctx context.Context) ([]*Asset, error) {
	ids, err := c.setMembers(ctx, AssetsKey(c.instance))
	if err != nil {
		return nil, err
	}
	assets := make([]*Asset, 0, len(ids))
	for _, id := range ids {
		a, err := c.GetAsset(ctx, id)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })
	return assets, nil
}

// ListSubgroups returns all subgroups of an asset, sorted by name.
// Returns ErrNotFound if the asset does not exist.
func (c *Client) ListSubgroups(ctx context.Context, assetID string) ([]*Subgroup, error) {
	if _, err := c.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}
	ids, err := c.setMembers(ctx, AssetSubgroupsKey(c.instance, assetID))
	if err != nil {
		return nil, err
	}
	subgroups := make([]*Subgroup, 0, len(ids))
	for _, id := range ids {
		s, err := c.GetSubgroup(ctx, id)
		if err != nil {
			return nil, err
		}
		subgroups = append(subgroups, s)
	}
	sort.Slice(subgroups, func(i, j int) bool { return subgroups[i].Name < subgroups[j].Name })
	return subgroups, nil
}

// ListMasterlists returns all ingested masterlists, newest first.
func (c *Client) ListMasterlists(ctx context.Context) ([]*Masterlist, error) {
	ids, err := c.setMembers(ctx, MasterlistsKey(c.instance))
	if err != nil {
		return nil, err
	}
	lists := make([]*Masterlist, 0, len(ids))
	for _, id := range ids {
		m, err := c.GetMasterlist(ctx, id)
		if err != nil {
			return nil, err
		}
		lists = append(lists, m)
	}
	sort.Slice(lists, func(i, j int) bool { return lists[i].CreatedAtMs > lists[j].CreatedAtMs })
	return lists, nil
}

// LatestMasterlist returns the most recently ingested masterlist.
// Returns ErrNotFound if none exist.
func (c *Client) LatestMasterlist(ctx context.Context) (*Masterlist, error) {
	lists, err := c.ListMasterlists(ctx)
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return nil, fmt.Errorf("no masterlist: %w", ErrNotFound)
	}
	return lists[0], nil
}

// ListMasterTags returns all catalogue tags of a masterlist, sorted by name.
// Returns ErrNotFound if the masterlist does not exist.
func (c *Client) ListMasterTags(ctx context.Context, fileID string) ([]*MasterTag, error) {
	if _, err := c.GetMasterlist(ctx, fileID); err != nil {
		return nil, err
	}
	ids, err := c.setMembers(ctx, MasterlistTagsKey(c.instance, fileID))
	if err != nil {
		return nil, err
	}
	tags := make([]*MasterTag, 0, len(ids))
	for _, id := range ids {
		mt, err := c.GetMasterTag(ctx, id)
		if err != nil {
			return nil, err
		}
		tags = append(tags, mt)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

// ListFormulas returns all formulas, sorted by name.
func (c *Client) ListFormulas(ctx context.Context) ([]*Formula, error) {
	ids, err := c.setMembers(ctx, FormulasKey(c.instance))
	if err != nil {
		return nil, err
	}
	formulas := make([]*Formula, 0, len(ids))
	for _, id := range ids {
		f, err := c.GetFormula(ctx, id)
		if err != nil {
			return nil, err
		}
		formulas = append(formulas, f)
	}
	sort.Slice(formulas, func(i, j int) bool { return formulas[i].Name < formulas[j].Name })
	return formulas, nil
}

// ListVariables returns a formula's variables, sorted by name.
// Returns ErrNotFound if the formula does not exist.
func (c *Client) ListVariables(ctx context.Context, formulaID string) ([]*Variable, error) {
	if _, err := c.GetFormula(ctx, formulaID); err != nil {
		return nil, err
	}
	ids, err := c.setMembers(ctx, FormulaVariablesKey(c.instance, formulaID))
	if err != nil {
		return nil, err
	}
	vars := make([]*Variable, 0, len(ids))
	for _, id := range ids {
		v, err := c.GetVariable(ctx, id)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars, nil
}

// ListRootTags returns a subgroup's root tags, sorted by name. Template
// context tags never appear here: they are not indexed under any subgroup.
// Returns ErrNotFound if the subgroup does not exist.
func (c *Client) ListRootTags(ctx context.Context, subgroupID string) ([]*Tag, error) {
	if _, err := c.GetSubgroup(ctx, subgroupID); err != nil {
		return nil, err
	}
	return c.tagsFromSet(ctx, SubgroupTagsKey(c.instance, subgroupID))
}

// ListChildren returns all tags whose parent is the given tag, sorted by
// name. An empty result is not an error. Returns ErrNotFound if the parent
// itself does not exist.
func (c *Client) ListChildren(ctx context.Context, tagID string) ([]*Tag, error) {
	if _, err := c.GetTag(ctx, tagID); err != nil {
		return nil, err
	}
	return c.tagsFromSet(ctx, TagChildrenKey(c.instance, tagID))
}

func (c *Client) tagsFromSet(ctx context.Context, key string) ([]*Tag, error) {
	ids, err := c.setMembers(ctx, key)
	if err != nil {
		return nil, err
	}
	tags := make([]*Tag, 0, len(ids))
	for _, id := range ids {
		t, err := c.GetTag(ctx, id)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}

// ListBindingsForContext returns all bindings whose context is the given
// tag, sorted by binding ID.
func (c *Client) ListBindingsForContext(ctx context.Context, contextTagID string) ([]*Binding, error) {
	entries, err := c.rdb.HGetAll(ctx, TagBindingsKey(c.instance, contextTagID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read context bindings: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, bindingID := range entries {
		ids = append(ids, bindingID)
	}
	sort.Strings(ids)
	return c.bindingsByID(ctx, ids)
}

// ListBindingsForVariable returns all bindings of a variable across every
// context, sorted by binding ID. The sort order is what makes the
// "first found" tie-break during unscoped template capture deterministic.
func (c *Client) ListBindingsForVariable(ctx context.Context, variableID string) ([]*Binding, error) {
	ids, err := c.setMembers(ctx, VariableBindingsKey(c.instance, variableID))
	if err != nil {
		return nil, err
	}
	return c.bindingsByID(ctx, ids)
}

// ListBindingsTargeting returns all bindings whose target is the given tag,
// sorted by binding ID.
func (c *Client) ListBindingsTargeting(ctx context.Context, targetTagID string) ([]*Binding, error) {
	ids, err := c.setMembers(ctx, TagBoundByKey(c.instance, targetTagID))
	if err != nil {
		return nil, err
	}
	return c.bindingsByID(ctx, ids)
}

func (c *Client) bindingsByID(ctx context.Context, ids []string) ([]*Binding, error) {
	bindings := make([]*Binding, 0, len(ids))
	for _, id := range ids {
		b, err := c.GetBinding(ctx, id)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

// ListTemplates returns all templates, sorted by name.
func (c *Client) ListTemplates(ctx context.Context) ([]*Template, error) {
	ids, err := c.setMembers(ctx, TemplatesKey(c.instance))
	if err != nil {
		return nil, err
	}
	templates := make([]*Template, 0, len(ids))
	for _, id := range ids {
		t, err := c.GetTemplate(ctx, id)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

// ListSubgroupTemplates returns the templates assigned into a subgroup.
// Returns ErrNotFound if the subgroup does not exist.
func (c *Client) ListSubgroupTemplates(ctx context.Context, subgroupID string) ([]*Template, error) {
	if _, err := c.GetSubgroup(ctx, subgroupID); err != nil {
		return nil, err
	}
	ids, err := c.setMembers(ctx, SubgroupTemplatesKey(c.instance, subgroupID))
	if err != nil {
		return nil, err
	}
	templates := make([]*Template, 0, len(ids))
	for _, id := range ids {
		t, err := c.GetTemplate(ctx, id)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

// TemplatesReferencingFormula returns the IDs of templates whose private
// formula copy is the given formula.
func (c *Client) TemplatesReferencingFormula(ctx context.Context, formulaID string) ([]string, error) {
	return c.setMembers(ctx, FormulaTemplatesKey(c.instance, formulaID))
}

// SubgroupsForTemplate returns the IDs of subgroups a template has been
// assigned into.
func (c *Client) SubgroupsForTemplate(ctx context.Context, templateID string) ([]string, error) {
	return c.setMembers(ctx, TemplateSubgroupsKey(c.instance, templateID))
}
