package tagstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.Instance())
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	err := client.Ping(ctx)
	assert.NoError(t, err)
}

func TestAssetLifecycle(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		asset, err := client.CreateAsset(ctx, "compressor-7", "compressor")
		require.NoError(t, err)

		got, err := client.GetAsset(ctx, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, "compressor-7", got.Name)
		assert.Equal(t, "compressor", got.Type)
	})

	t.Run("empty type defaults", func(t *testing.T) {
		asset, err := client.CreateAsset(ctx, "pump-1", "")
		require.NoError(t, err)
		assert.Equal(t, "default", asset.Type)
	})

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		_, err := client.GetAsset(ctx, NewID())
		assert.True(t, IsNotFound(err))
	})

	t.Run("rename", func(t *testing.T) {
		asset, err := client.CreateAsset(ctx, "old-name", "pump")
		require.NoError(t, err)

		renamed, err := client.RenameAsset(ctx, asset.ID, "new-name")
		require.NoError(t, err)
		assert.Equal(t, "new-name", renamed.Name)

		got, err := client.GetAsset(ctx, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-name", got.Name)
	})

	t.Run("list sorted by name", func(t *testing.T) {
		fresh, _ := setupTestClient(t)
		_, err := fresh.CreateAsset(ctx, "zeta", "x")
		require.NoError(t, err)
		_, err = fresh.CreateAsset(ctx, "alpha", "x")
		require.NoError(t, err)

		assets, err := fresh.ListAssets(ctx)
		require.NoError(t, err)
		require.Len(t, assets, 2)
		assert.Equal(t, "alpha", assets[0].Name)
		assert.Equal(t, "zeta", assets[1].Name)
	})
}

func TestSubgroupLifecycle(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	asset, err := client.CreateAsset(ctx, "asset", "x")
	require.NoError(t, err)

	t.Run("create requires existing asset", func(t *testing.T) {
		_, err := client.CreateSubgroup(ctx, NewID(), "orphan")
		assert.True(t, IsNotFound(err))
	})

	t.Run("create and list", func(t *testing.T) {
		sg, err := client.CreateSubgroup(ctx, asset.ID, "stage-1")
		require.NoError(t, err)
		assert.Equal(t, asset.ID, sg.AssetID)

		subgroups, err := client.ListSubgroups(ctx, asset.ID)
		require.NoError(t, err)
		require.Len(t, subgroups, 1)
		assert.Equal(t, "stage-1", subgroups[0].Name)
	})
}

func TestTagHierarchy(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	asset, err := client.CreateAsset(ctx, "asset", "x")
	require.NoError(t, err)
	sg, err := client.CreateSubgroup(ctx, asset.ID, "sg")
	require.NoError(t, err)

	t.Run("root tag anchored to subgroup", func(t *testing.T) {
		tag, err := client.CreateRootTag(ctx, sg.ID, "flow", "")
		require.NoError(t, err)
		assert.Equal(t, sg.ID, tag.SubgroupID)
		assert.Empty(t, tag.ParentID)
		assert.Equal(t, TagKindStandard, tag.Kind)

		roots, err := client.ListRootTags(ctx, sg.ID)
		require.NoError(t, err)
		require.Len(t, roots, 1)
		assert.Equal(t, tag.ID, roots[0].ID)
	})

	t.Run("child tag anchored to parent", func(t *testing.T) {
		parent, err := client.CreateRootTag(ctx, sg.ID, "parent", "")
		require.NoError(t, err)
		child, err := client.CreateChildTag(ctx, parent.ID, "child", "")
		require.NoError(t, err)
		assert.Equal(t, parent.ID, child.ParentID)
		assert.Empty(t, child.SubgroupID)

		children, err := client.ListChildren(ctx, parent.ID)
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, child.ID, children[0].ID)
	})

	t.Run("child of missing parent fails", func(t *testing.T) {
		_, err := client.CreateChildTag(ctx, NewID(), "orphan", "")
		assert.True(t, IsNotFound(err))
	})

	t.Run("master tag reference must exist", func(t *testing.T) {
		_, err := client.CreateRootTag(ctx, sg.ID, "typed", NewID())
		assert.True(t, IsNotFound(err))
	})

	t.Run("set value distinguishes unset from empty", func(t *testing.T) {
		tag, err := client.CreateRootTag(ctx, sg.ID, "pressure", "")
		require.NoError(t, err)
		assert.False(t, tag.HasValue)

		updated, err := client.SetTagValue(ctx, tag.ID, "42.5")
		require.NoError(t, err)
		assert.True(t, updated.HasValue)
		assert.Equal(t, "42.5", updated.Value)

		got, err := client.GetTag(ctx, tag.ID)
		require.NoError(t, err)
		assert.True(t, got.HasValue)
		assert.Equal(t, "42.5", got.Value)
	})
}

func TestDeleteTag(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Client, *Tag, *Tag, *Tag) {
		client, _ := setupTestClient(t)
		asset, err := client.CreateAsset(ctx, "asset", "x")
		require.NoError(t, err)
		sg, err := client.CreateSubgroup(ctx, asset.ID, "sg")
		require.NoError(t, err)
		root, err := client.CreateRootTag(ctx, sg.ID, "root", "")
		require.NoError(t, err)
		mid, err := client.CreateChildTag(ctx, root.ID, "mid", "")
		require.NoError(t, err)
		leaf, err := client.CreateChildTag(ctx, mid.ID, "leaf", "")
		require.NoError(t, err)
		return client, root, mid, leaf
	}

	t.Run("non-recursive leaves children in place", func(t *testing.T) {
		client, root, mid, leaf := setup(t)

		err := client.DeleteTag(ctx, root.ID, false)
		require.NoError(t, err)

		_, err = client.GetTag(ctx, root.ID)
		assert.True(t, IsNotFound(err))
		_, err = client.GetTag(ctx, mid.ID)
		assert.NoError(t, err)
		_, err = client.GetTag(ctx, leaf.ID)
		assert.NoError(t, err)
	})

	t.Run("recursive deletes whole sub-tree", func(t *testing.T) {
		client, root, mid, leaf := setup(t)

		err := client.DeleteTag(ctx, root.ID, true)
		require.NoError(t, err)

		for _, id := range []string{root.ID, mid.ID, leaf.ID} {
			_, err := client.GetTag(ctx, id)
			assert.True(t, IsNotFound(err))
		}
	})

	t.Run("deletes context bindings but keeps targeting bindings", func(t *testing.T) {
		client, root, mid, _ := setup(t)

		// Three formula variables bound at mid, plus one binding that
		// merely targets mid from another context.
		f := &Formula{ID: NewID(), Name: "f", Expression: "$a + $b + $c"}
		ws := client.NewWriteSet()
		ws.PutFormula(f)
		anchored := make([]*Binding, 0, 3)
		for _, name := range []string{"a", "b", "c"} {
			v := &Variable{ID: NewID(), FormulaID: f.ID, Name: name}
			ws.PutVariable(v)
			b := &Binding{ID: NewID(), VariableID: v.ID, TargetTagID: root.ID, ContextTagID: mid.ID}
			ws.PutBinding(b)
			anchored = append(anchored, b)
		}
		targeting := &Binding{ID: NewID(), VariableID: anchored[0].VariableID, TargetTagID: mid.ID, ContextTagID: root.ID}
		ws.PutBinding(targeting)
		require.NoError(t, ws.Apply(ctx))

		require.NoError(t, client.DeleteTag(ctx, mid.ID, false))

		for _, b := range anchored {
			_, err := client.GetBinding(ctx, b.ID)
			assert.True(t, IsNotFound(err))
		}
		_, err := client.GetBinding(ctx, targeting.ID)
		assert.NoError(t, err)
	})
}

func TestLookupBinding(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	asset, err := client.CreateAsset(ctx, "asset", "x")
	require.NoError(t, err)
	sg, err := client.CreateSubgroup(ctx, asset.ID, "sg")
	require.NoError(t, err)
	ctxTag, err := client.CreateRootTag(ctx, sg.ID, "ctx", "")
	require.NoError(t, err)
	target, err := client.CreateRootTag(ctx, sg.ID, "target", "")
	require.NoError(t, err)

	f := &Formula{ID: NewID(), Name: "f", Expression: "$x"}
	v := &Variable{ID: NewID(), FormulaID: f.ID, Name: "x"}
	b := &Binding{ID: NewID(), VariableID: v.ID, TargetTagID: target.ID, ContextTagID: ctxTag.ID}
	ws := client.NewWriteSet()
	ws.PutFormula(f)
	ws.PutVariable(v)
	ws.PutBinding(b)
	require.NoError(t, ws.Apply(ctx))

	t.Run("finds binding by pair", func(t *testing.T) {
		got, ok, err := client.LookupBinding(ctx, v.ID, ctxTag.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, b.ID, got.ID)
		assert.Equal(t, target.ID, got.TargetTagID)
	})

	t.Run("absence is not an error", func(t *testing.T) {
		got, ok, err := client.LookupBinding(ctx, v.ID, target.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, got)
	})
}

func TestScanEntityIDs(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	a1, err := client.CreateAsset(ctx, "one", "x")
	require.NoError(t, err)
	a2, err := client.CreateAsset(ctx, "two", "x")
	require.NoError(t, err)

	t.Run("empty prefix matches all", func(t *testing.T) {
		ids, err := client.ScanEntityIDs(ctx, "asset", "")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{a1.ID, a2.ID}, ids)
	})

	t.Run("prefix narrows matches", func(t *testing.T) {
		ids, err := client.ScanEntityIDs(ctx, "asset", a1.ID[:8])
		require.NoError(t, err)
		assert.Equal(t, []string{a1.ID}, ids)
	})

	t.Run("index keys are excluded", func(t *testing.T) {
		// Subgroups create asset:{id}:subgroups index keys under the asset
		// prefix; scanning assets must not surface them.
		_, err := client.CreateSubgroup(ctx, a1.ID, "sg")
		require.NoError(t, err)

		ids, err := client.ScanEntityIDs(ctx, "asset", "")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{a1.ID, a2.ID}, ids)
	})
}
