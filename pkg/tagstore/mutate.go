package tagstore

import (
	"context"
	"fmt"
	"time"
)

// Single-entity mutations. Each one validates its referents, stages the
// write set, and applies it. Multi-entity workflows (expression
// reconciliation, template capture and assignment) live in the internal
// packages and use the same WriteSet machinery.

// CreateAsset creates a new asset. An empty type defaults to "default".
func (c *Client) CreateAsset(ctx context.Context, name, assetType string) (*Asset, error) {
	if assetType == "" {
		assetType = "default"
	}
	asset := &Asset{ID: NewID(), Name: name, Type: assetType}
	if err := asset.Validate(); err != nil {
		return nil, fmt.Errorf("invalid asset: %w", err)
	}
	ws := c.NewWriteSet()
	ws.PutAsset(asset)
	if err := ws.Apply(ctx); err != nil {
		return nil, err
	}
	return asset, nil
}

// RenameAsset updates an asset's display name.
// Returns ErrNotFound if the asset does not exist.
func (c *Client) RenameAsset(ctx context.Context, assetID, name string) (*Asset, error) {
	asset, err := c.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	asset.Name = name
	if err := asset.Validate(); err != nil {
		return nil, fmt.Errorf("invalid asset: %w", err)
	}
	ws := c.NewWriteSet()
	ws.PutAsset(asset)
	if err := ws.Apply(ctx); err != nil {
		return nil, err
	}
	return asset, nil
}

// CreateSubgroup creates a new subgroup within an asset.
// Returns ErrNotFound if the asset does not exist.
func (c *Client) CreateSubgroup(ctx context.Context, assetID, name string) (*Subgroup, error) {
	if _, err := c.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}
	subgroup := &Subgroup{ID: NewID(), AssetID: assetID, Name: name}
	if err := subgroup.Validate(); err != nil {
		return nil, fmt.Errorf("invalid subgroup: %w", err)
	}
	ws := c.NewWriteSet()
	ws.PutSubgroup(subgroup)
	if err := ws.Apply(ctx); err != nil {
		return nil, err
	}
	return subgroup, nil
}

// RenameSubgroup updates a subgroup's display name.
// Returns ErrNotFound if the subgroup does not exist.
func (c *Client) RenameSubgroup(ctx context.Context, subgroupID, name string) (*Subgroup, error) {
	subgroup, err := c.GetSubgroup(ctx, subgroupID)
	if err != nil {
		return nil, err
	}
	subgroup.Name = name
	if err := subgroup.Validate(); err != nil {
		return nil, fmt.Errorf("invalid subgroup: %w", err)
	}
	ws := c.NewWriteSet()
	ws.PutSubgroup(subgroup)
	if err := ws.Apply(ctx); err != nil {
		return nil, err
	}
	return subgroup, nil
}

// CreateMasterlist records an ingested file. Catalogue rows are staged by
// the ingest package in the same write set as the list itself.
func (c *Client) CreateMasterlist(ctx context.Context, fileName string) (*Masterlist, error) {
	list := &Masterlist{ID: NewID(), FileName: fileName, CreatedAtMs: time.Now().UnixMilli()}
	if err := list.Validate(); err != nil {
		return nil, fmt.Errorf("invalid masterlist: %w", err)
	}
	ws := c.NewWriteSet()
	ws.PutMasterlist(list)
	if err := ws.Apply(ctx); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateRootTag creates a tag anchored to a subgroup.
// Returns ErrNotFound if the subgroup (or master tag, when given) is absent.
func (c *Client) CreateRootTag(ctx context.Context, subgroupID, name, masterTagID string) (*Tag, error) {
	if _, err := c.GetSubgroup(ctx, subgroupID); err != nil {
		return nil, err
	}
	return c.createTag(ctx, &Tag{
		ID:          NewID(),
		SubgroupID:  subgroupID,
		Name:        name,
		MasterTagID: masterTagID,
		Kind:        TagKindStandard,
	})
}

// CreateChildTag creates a tag anchored to a parent tag.
// Returns ErrNotFound if the parent (or master tag, when given) is absent.
func (c *Client) CreateChildTag(ctx context.Context, parentID, name, masterTagID string) (*Tag, error) {
	if _, err := c.GetTag(ctx, parentID); err != nil {
		return nil, err
	}
	return c.createTag(ctx, &Tag{
		ID:          NewID(),
		ParentID:    parentID,
		Name:        name,
		MasterTagID: masterTagID,
		Kind:        TagKindStandard,
	})
}

func (c *Client) createTag(ctx context.Context, tag *Tag) (*Tag, error) {
	if tag.MasterTagID != "" {
		if _, err := c.GetMasterTag(ctx, tag.MasterTagID); err != nil {
			return nil, err
		}
	}
	if err := tag.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tag: %w", err)
	}
	ws := c.NewWriteSet()
	ws.PutTag(tag)
	if err := ws.Apply(ctx); err != nil {
		return nil, err
	}
	return tag, nil
}

// SetTagFormula assigns or clears (empty ID) the computed formula for a
// tag. No validation beyond formula existence.
func (c *Client) SetTagFormula(ctx context.Context, tagID, formulaID string) (*Tag, error) {
	tag, err := c.GetTag(ctx, tagID)
	if err != nil {
		return nil, err
	}
	if formulaID != "" {
		if _, err := c.GetFormula(ctx, formulaID); err != nil {
			return nil, err
		}
	}
	tag.FormulaID = formulaID
	ws := c.NewWriteSet()
	ws.PutTag(tag)
	if err := ws.Apply(ctx); err != nil {
		return nil, err
	}
	return tag, nil
}

// SetTagValue sets a tag's scalar value.
// Returns ErrNotFound if the tag does not exist.
func (c *Client) SetTagValue(ctx context.Context, tagID, value string) (*Tag, error) {
	tag, err := c.GetTag(ctx, tagID)
	if err != nil {
		return nil, err
	}
	tag.Value = value
	tag.HasValue = true
	ws := c.NewWriteSet()
	ws.PutTag(tag)
	if err := ws.Apply(ctx); err != nil {
		return nil, err
	}
	return tag, nil
}

// DeleteTag removes a tag and every binding whose context is that tag.
// With recursive false, children are left in place (orphaned); with
// recursive true the whole child sub-tree is deleted, each node with its
// own context bindings. Bindings that merely target the tag are kept:
// evaluation treats an unresolvable target as unbound.
//
// The whole cascade applies as one transaction.
func (c *Client) DeleteTag(ctx context.Context, tagID string, recursive bool) error {
	tag, err := c.GetTag(ctx, tagID)
	if err != nil {
		return err
	}

	doomed := []*Tag{tag}
	if recursive {
		// Breadth-first so the write set deletes parents and children in
		// one pass without ordering concerns.
		queue := []string{tagID}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			children, err := c.ListChildren(ctx, id)
			if err != nil {
				return err
			}
			for _, child := range children {
				doomed = append(doomed, child)
				queue = append(queue, child.ID)
			}
		}
	}

	ws := c.NewWriteSet()
	for _, t := range doomed {
		bindings, err := c.ListBindingsForContext(ctx, t.ID)
		if err != nil {
			return err
		}
		for _, b := range bindings {
			ws.DeleteBinding(b)
		}
		ws.DeleteTag(t)
	}
	return ws.Apply(ctx)
}
