package template

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovekit/grove/internal/binding"
	"github.com/grovekit/grove/internal/formula"
	"github.com/grovekit/grove/pkg/tagstore"
)

// fixture wires a scoped capture scenario:
//
//	subgroup
//	├── scope (context tag; $x bound here → source)
//	│   └── dependent (formula = src, $x bound here → source)
//	├── source (holds the raw value)
//	└── targetA, targetB (assignment targets)
type fixture struct {
	engine    *Engine
	store     *tagstore.Client
	bindings  *binding.Resolver
	src       *tagstore.Formula
	srcVar    *tagstore.Variable
	subgroup  *tagstore.Subgroup
	scope     *tagstore.Tag
	dependent *tagstore.Tag
	source    *tagstore.Tag
	targetA   *tagstore.Tag
	targetB   *tagstore.Tag
}

func setupFixture(t *testing.T) *fixture {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	store, err := tagstore.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	registry := formula.NewRegistry(store)
	resolver := binding.NewResolver(store)

	src, vars, err := registry.Create(ctx, "double", "", "$x * 2")
	require.NoError(t, err)
	require.Len(t, vars, 1)

	asset, err := store.CreateAsset(ctx, "asset", "x")
	require.NoError(t, err)
	sg, err := store.CreateSubgroup(ctx, asset.ID, "sg")
	require.NoError(t, err)

	scope, err := store.CreateRootTag(ctx, sg.ID, "scope", "")
	require.NoError(t, err)
	source, err := store.CreateRootTag(ctx, sg.ID, "source", "")
	require.NoError(t, err)
	_, err = store.SetTagValue(ctx, source.ID, "21")
	require.NoError(t, err)

	dependent, err := store.CreateChildTag(ctx, scope.ID, "dependent", "")
	require.NoError(t, err)
	dependent, err = store.SetTagFormula(ctx, dependent.ID, src.ID)
	require.NoError(t, err)

	targetA, err := store.CreateRootTag(ctx, sg.ID, "target-a", "")
	require.NoError(t, err)
	targetB, err := store.CreateRootTag(ctx, sg.ID, "target-b", "")
	require.NoError(t, err)

	_, err = resolver.Upsert(ctx, vars[0].ID, scope.ID, source.ID)
	require.NoError(t, err)
	_, err = resolver.Upsert(ctx, vars[0].ID, dependent.ID, source.ID)
	require.NoError(t, err)

	return &fixture{
		engine:    NewEngine(store),
		store:     store,
		bindings:  resolver,
		src:       src,
		srcVar:    vars[0],
		subgroup:  sg,
		scope:     scope,
		dependent: dependent,
		source:    source,
		targetA:   targetA,
		targetB:   targetB,
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("scoped capture snapshots bindings into a private copy", func(t *testing.T) {
		fx := setupFixture(t)
		tmpl, err := fx.engine.Create(ctx, "pump-template", fx.src.ID, fx.scope.ID)
		require.NoError(t, err)

		assert.Equal(t, fx.src.ID, tmpl.SourceFormulaID)
		assert.Equal(t, fx.scope.ID, tmpl.CapturedFromTagID)
		assert.NotEqual(t, fx.src.ID, tmpl.FormulaID)

		// Private formula copy: new identity, same text.
		clone, err := fx.store.GetFormula(ctx, tmpl.FormulaID)
		require.NoError(t, err)
		assert.Equal(t, fx.src.Expression, clone.Expression)

		// One copied variable, bound at the placeholder to the same target
		// the scope binding had.
		vars, err := fx.store.ListVariables(ctx, tmpl.FormulaID)
		require.NoError(t, err)
		require.Len(t, vars, 1)
		assert.Equal(t, "x", vars[0].Name)
		assert.NotEqual(t, fx.srcVar.ID, vars[0].ID)

		placeholder, err := fx.store.GetTag(ctx, tmpl.ContextTagID)
		require.NoError(t, err)
		assert.Equal(t, tagstore.TagKindTemplateContext, placeholder.Kind)

		def, ok, err := fx.bindings.Lookup(ctx, vars[0].ID, placeholder.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, fx.source.ID, def.TargetTagID)

		// The source formula and its bindings are untouched.
		_, ok, err = fx.bindings.Lookup(ctx, fx.srcVar.ID, fx.scope.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unscoped capture falls back to lowest binding ID", func(t *testing.T) {
		fx := setupFixture(t)
		tmpl, err := fx.engine.Create(ctx, "unscoped", fx.src.ID, "")
		require.NoError(t, err)
		assert.Empty(t, tmpl.CapturedFromTagID)

		vars, err := fx.store.ListVariables(ctx, tmpl.FormulaID)
		require.NoError(t, err)
		require.Len(t, vars, 1)

		// Some binding was snapshotted; its target matches whichever source
		// binding sorts first by ID.
		all, err := fx.store.ListBindingsForVariable(ctx, fx.srcVar.ID)
		require.NoError(t, err)
		require.NotEmpty(t, all)

		def, ok, err := fx.bindings.Lookup(ctx, vars[0].ID, tmpl.ContextTagID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, all[0].TargetTagID, def.TargetTagID)
	})

	t.Run("unbound variable leaves no default", func(t *testing.T) {
		fx := setupFixture(t)
		registry := formula.NewRegistry(fx.store)
		bare, _, err := registry.Create(ctx, "bare", "", "$y")
		require.NoError(t, err)

		tmpl, err := fx.engine.Create(ctx, "bare-tmpl", bare.ID, "")
		require.NoError(t, err)

		newVars, err := fx.store.ListVariables(ctx, tmpl.FormulaID)
		require.NoError(t, err)
		require.Len(t, newVars, 1)
		_, ok, err := fx.bindings.Lookup(ctx, newVars[0].ID, tmpl.ContextTagID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing source formula", func(t *testing.T) {
		fx := setupFixture(t)
		_, err := fx.engine.Create(ctx, "bad", tagstore.NewID(), "")
		assert.True(t, tagstore.IsNotFound(err))
	})
}

func TestAssign(t *testing.T) {
	ctx := context.Background()

	t.Run("stamps formula, bindings, and cloned sub-tree", func(t *testing.T) {
		fx := setupFixture(t)
		tmpl, err := fx.engine.Create(ctx, "tmpl", fx.src.ID, fx.scope.ID)
		require.NoError(t, err)

		result, err := fx.engine.Assign(ctx, tmpl.ID, fx.targetA.ID)
		require.NoError(t, err)
		assert.Equal(t, tmpl.FormulaID, result.FormulaID)
		assert.Equal(t, 1, result.ClonedTags)

		// Target carries the template's private formula.
		target, err := fx.store.GetTag(ctx, fx.targetA.ID)
		require.NoError(t, err)
		assert.Equal(t, tmpl.FormulaID, target.FormulaID)

		// Template variable bound at the target to the snapshot default.
		vars, err := fx.store.ListVariables(ctx, tmpl.FormulaID)
		require.NoError(t, err)
		require.Len(t, vars, 1)
		b, ok, err := fx.bindings.Lookup(ctx, vars[0].ID, fx.targetA.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, fx.source.ID, b.TargetTagID)

		// The dependent tag was cloned under the target with a fresh ID.
		children, err := fx.store.ListChildren(ctx, fx.targetA.ID)
		require.NoError(t, err)
		require.Len(t, children, 1)
		clone := children[0]
		assert.Equal(t, "dependent", clone.Name)
		assert.NotEqual(t, fx.dependent.ID, clone.ID)
		assert.Equal(t, fx.src.ID, clone.FormulaID)
		assert.Equal(t, tagstore.TagKindStandard, clone.Kind)

		// The dependent's context binding was rewired onto the clone,
		// still pointing at the shared source tag.
		rb, ok, err := fx.bindings.Lookup(ctx, fx.srcVar.ID, clone.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, fx.source.ID, rb.TargetTagID)

		// Original sub-tree untouched.
		origChildren, err := fx.store.ListChildren(ctx, fx.scope.ID)
		require.NoError(t, err)
		assert.Len(t, origChildren, 1)

		// Subgroup association recorded.
		templates, err := fx.store.ListSubgroupTemplates(ctx, fx.subgroup.ID)
		require.NoError(t, err)
		require.Len(t, templates, 1)
		assert.Equal(t, tmpl.ID, templates[0].ID)
	})

	t.Run("pre-bound target wins over template default", func(t *testing.T) {
		fx := setupFixture(t)
		tmpl, err := fx.engine.Create(ctx, "tmpl", fx.src.ID, fx.scope.ID)
		require.NoError(t, err)

		vars, err := fx.store.ListVariables(ctx, tmpl.FormulaID)
		require.NoError(t, err)
		require.Len(t, vars, 1)

		other, err := fx.store.CreateRootTag(ctx, fx.subgroup.ID, "other-source", "")
		require.NoError(t, err)
		_, err = fx.bindings.Upsert(ctx, vars[0].ID, fx.targetA.ID, other.ID)
		require.NoError(t, err)

		_, err = fx.engine.Assign(ctx, tmpl.ID, fx.targetA.ID)
		require.NoError(t, err)

		b, ok, err := fx.bindings.Lookup(ctx, vars[0].ID, fx.targetA.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, other.ID, b.TargetTagID)

		// Still exactly one binding at the target for the pair.
		all, err := fx.store.ListBindingsForContext(ctx, fx.targetA.ID)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("two assignments diverge independently", func(t *testing.T) {
		fx := setupFixture(t)
		tmpl, err := fx.engine.Create(ctx, "tmpl", fx.src.ID, fx.scope.ID)
		require.NoError(t, err)

		_, err = fx.engine.Assign(ctx, tmpl.ID, fx.targetA.ID)
		require.NoError(t, err)
		_, err = fx.engine.Assign(ctx, tmpl.ID, fx.targetB.ID)
		require.NoError(t, err)

		childrenA, err := fx.store.ListChildren(ctx, fx.targetA.ID)
		require.NoError(t, err)
		childrenB, err := fx.store.ListChildren(ctx, fx.targetB.ID)
		require.NoError(t, err)
		require.Len(t, childrenA, 1)
		require.Len(t, childrenB, 1)
		assert.NotEqual(t, childrenA[0].ID, childrenB[0].ID)

		// Rebinding one clone leaves the other untouched.
		other, err := fx.store.CreateRootTag(ctx, fx.subgroup.ID, "other", "")
		require.NoError(t, err)
		_, err = fx.bindings.Upsert(ctx, fx.srcVar.ID, childrenA[0].ID, other.ID)
		require.NoError(t, err)

		bB, ok, err := fx.bindings.Lookup(ctx, fx.srcVar.ID, childrenB[0].ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, fx.source.ID, bB.TargetTagID)
	})

	t.Run("outside-context binding onto a cloned tag is replaced, not duplicated", func(t *testing.T) {
		fx := setupFixture(t)
		registry := formula.NewRegistry(fx.store)

		// A binding anchored outside the captured sub-tree whose target is
		// the dependent tag: the rewired copy lands at the same
		// (variable, context) pair.
		_, wVars, err := registry.Create(ctx, "watcher", "", "$w")
		require.NoError(t, err)
		require.Len(t, wVars, 1)
		outside, err := fx.store.CreateRootTag(ctx, fx.subgroup.ID, "outside", "")
		require.NoError(t, err)
		orig, err := fx.bindings.Upsert(ctx, wVars[0].ID, outside.ID, fx.dependent.ID)
		require.NoError(t, err)

		tmpl, err := fx.engine.Create(ctx, "tmpl", fx.src.ID, fx.scope.ID)
		require.NoError(t, err)
		_, err = fx.engine.Assign(ctx, tmpl.ID, fx.targetA.ID)
		require.NoError(t, err)

		children, err := fx.store.ListChildren(ctx, fx.targetA.ID)
		require.NoError(t, err)
		require.Len(t, children, 1)
		clone := children[0]

		// Exactly one binding record for the variable; the original is gone.
		all, err := fx.store.ListBindingsForVariable(ctx, wVars[0].ID)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.NotEqual(t, orig.ID, all[0].ID)
		_, err = fx.store.GetBinding(ctx, orig.ID)
		assert.True(t, tagstore.IsNotFound(err))

		// The pair resolves to the rewired binding targeting the clone.
		b, ok, err := fx.bindings.Lookup(ctx, wVars[0].ID, outside.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, all[0].ID, b.ID)
		assert.Equal(t, clone.ID, b.TargetTagID)

		// The old target's bound-by set no longer lists the stale record.
		targeting, err := fx.store.ListBindingsTargeting(ctx, fx.dependent.ID)
		require.NoError(t, err)
		for _, tb := range targeting {
			assert.NotEqual(t, orig.ID, tb.ID)
		}
	})

	t.Run("unscoped template clones nothing", func(t *testing.T) {
		fx := setupFixture(t)
		tmpl, err := fx.engine.Create(ctx, "unscoped", fx.src.ID, "")
		require.NoError(t, err)

		result, err := fx.engine.Assign(ctx, tmpl.ID, fx.targetA.ID)
		require.NoError(t, err)
		assert.Zero(t, result.ClonedTags)

		children, err := fx.store.ListChildren(ctx, fx.targetA.ID)
		require.NoError(t, err)
		assert.Empty(t, children)
	})

	t.Run("missing template or target", func(t *testing.T) {
		fx := setupFixture(t)
		tmpl, err := fx.engine.Create(ctx, "tmpl", fx.src.ID, "")
		require.NoError(t, err)

		_, err = fx.engine.Assign(ctx, tagstore.NewID(), fx.targetA.ID)
		assert.True(t, tagstore.IsNotFound(err))
		_, err = fx.engine.Assign(ctx, tmpl.ID, tagstore.NewID())
		assert.True(t, tagstore.IsNotFound(err))
	})
}

func TestDeleteTemplate(t *testing.T) {
	ctx := context.Background()

	t.Run("removes every trace of the capture", func(t *testing.T) {
		fx := setupFixture(t)
		tmpl, err := fx.engine.Create(ctx, "tmpl", fx.src.ID, fx.scope.ID)
		require.NoError(t, err)
		_, err = fx.engine.Assign(ctx, tmpl.ID, fx.targetA.ID)
		require.NoError(t, err)

		vars, err := fx.store.ListVariables(ctx, tmpl.FormulaID)
		require.NoError(t, err)
		require.Len(t, vars, 1)

		require.NoError(t, fx.engine.Delete(ctx, tmpl.ID))

		_, err = fx.store.GetTemplate(ctx, tmpl.ID)
		assert.True(t, tagstore.IsNotFound(err))
		_, err = fx.store.GetFormula(ctx, tmpl.FormulaID)
		assert.True(t, tagstore.IsNotFound(err))
		_, err = fx.store.GetTag(ctx, tmpl.ContextTagID)
		assert.True(t, tagstore.IsNotFound(err))
		_, err = fx.store.GetVariable(ctx, vars[0].ID)
		assert.True(t, tagstore.IsNotFound(err))

		// Association cleaned from the subgroup side too.
		templates, err := fx.store.ListSubgroupTemplates(ctx, fx.subgroup.ID)
		require.NoError(t, err)
		assert.Empty(t, templates)

		// Source formula and its variable survive.
		_, err = fx.store.GetFormula(ctx, fx.src.ID)
		assert.NoError(t, err)
		_, err = fx.store.GetVariable(ctx, fx.srcVar.ID)
		assert.NoError(t, err)
	})

	t.Run("create then delete leaves the source world unchanged", func(t *testing.T) {
		fx := setupFixture(t)

		before, err := fx.store.ListBindingsForVariable(ctx, fx.srcVar.ID)
		require.NoError(t, err)

		tmpl, err := fx.engine.Create(ctx, "tmpl", fx.src.ID, fx.scope.ID)
		require.NoError(t, err)
		require.NoError(t, fx.engine.Delete(ctx, tmpl.ID))

		after, err := fx.store.ListBindingsForVariable(ctx, fx.srcVar.ID)
		require.NoError(t, err)
		assert.Equal(t, len(before), len(after))
	})

	t.Run("missing template", func(t *testing.T) {
		fx := setupFixture(t)
		err := fx.engine.Delete(ctx, tagstore.NewID())
		assert.True(t, tagstore.IsNotFound(err))
	})
}
