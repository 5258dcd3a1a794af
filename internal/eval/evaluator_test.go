package eval

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

type fixture struct {
	evaluator *Evaluator
	store     *tagstore.Client
	registry  *formula.Registry
	bindings  *binding.Resolver
	subgroup  *tagstore.Subgroup
	ctxTag    *tagstore.Tag
}

func setupFixture(t *testing.T) *fixture {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	store, err := tagstore.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	asset, err := store.CreateAsset(ctx, "asset", "x")
	require.NoError(t, err)
	sg, err := store.CreateSubgroup(ctx, asset.ID, "sg")
	require.NoError(t, err)
	ctxTag, err := store.CreateRootTag(ctx, sg.ID, "ctx", "")
	require.NoError(t, err)

	return &fixture{
		evaluator: NewEvaluator(store),
		store:     store,
		registry:  formula.NewRegistry(store),
		bindings:  binding.NewResolver(store),
		subgroup:  sg,
		ctxTag:    ctxTag,
	}
}

// valueTag creates a tag carrying the given value.
func (fx *fixture) valueTag(t *testing.T, name, value string) *tagstore.Tag {
	ctx := context.Background()
	tag, err := fx.store.CreateRootTag(ctx, fx.subgroup.ID, name, "")
	require.NoError(t, err)
	tag, err = fx.store.SetTagValue(ctx, tag.ID, value)
	require.NoError(t, err)
	return tag
}

// bind binds the named variable of f to the tag under the fixture context.
func (fx *fixture) bind(t *testing.T, vars []*tagstore.Variable, name string, target *tagstore.Tag) {
	ctx := context.Background()
	for _, v := range vars {
		if v.Name == name {
			_, err := fx.bindings.Upsert(ctx, v.ID, fx.ctxTag.ID, target.ID)
			require.NoError(t, err)
			return
		}
	}
	t.Fatalf("no variable named %s", name)
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()

	t.Run("arithmetic over bound values", func(t *testing.T) {
		fx := setupFixture(t)
		f, vars, err := fx.registry.Create(ctx, "sum", "", "$a + $b")
		require.NoError(t, err)
		fx.bind(t, vars, "a", fx.valueTag(t, "a-tag", "2"))
		fx.bind(t, vars, "b", fx.valueTag(t, "b-tag", "3"))

		result, err := fx.evaluator.Evaluate(ctx, f.ID, fx.ctxTag.ID)
		require.NoError(t, err)
		require.True(t, result.Complete)
		assert.Equal(t, "5", result.Value)
	})

	t.Run("float result keeps precision", func(t *testing.T) {
		fx := setupFixture(t)
		f, vars, err := fx.registry.Create(ctx, "half", "", "$x / 2")
		require.NoError(t, err)
		fx.bind(t, vars, "x", fx.valueTag(t, "x-tag", "5"))

		result, err := fx.evaluator.Evaluate(ctx, f.ID, fx.ctxTag.ID)
		require.NoError(t, err)
		require.True(t, result.Complete)
		assert.Equal(t, "2.5", result.Value)
	})

	t.Run("boolean coercion and conditionals", func(t *testing.T) {
		fx := setupFixture(t)
		f, vars, err := fx.registry.Create(ctx, "gate", "", "$on ? $x : 0")
		require.NoError(t, err)
		fx.bind(t, vars, "on", fx.valueTag(t, "on-tag", "true"))
		fx.bind(t, vars, "x", fx.valueTag(t, "x-tag", "7"))

		result, err := fx.evaluator.Evaluate(ctx, f.ID, fx.ctxTag.ID)
		require.NoError(t, err)
		require.True(t, result.Complete)
		assert.Equal(t, "7", result.Value)
	})

	t.Run("unbound variable reports incomplete", func(t *testing.T) {
		fx := setupFixture(t)
		f, vars, err := fx.registry.Create(ctx, "sum", "", "$a + $b")
		require.NoError(t, err)
		fx.bind(t, vars, "a", fx.valueTag(t, "a-tag", "2"))

		result, err := fx.evaluator.Evaluate(ctx, f.ID, fx.ctxTag.ID)
		require.NoError(t, err)
		assert.False(t, result.Complete)
		assert.Equal(t, []string{"b"}, result.Missing)
		assert.Empty(t, result.Value)
	})

	t.Run("deleted target reports incomplete", func(t *testing.T) {
		fx := setupFixture(t)
		f, vars, err := fx.registry.Create(ctx, "double", "", "$x * 2")
		require.NoError(t, err)
		target := fx.valueTag(t, "x-tag", "4")
		fx.bind(t, vars, "x", target)

		require.NoError(t, fx.store.DeleteTag(ctx, target.ID, false))

		result, err := fx.evaluator.Evaluate(ctx, f.ID, fx.ctxTag.ID)
		require.NoError(t, err)
		assert.False(t, result.Complete)
		assert.Equal(t, []string{"x"}, result.Missing)
	})

	t.Run("valueless target reports incomplete", func(t *testing.T) {
		fx := setupFixture(t)
		f, vars, err := fx.registry.Create(ctx, "id", "", "$x")
		require.NoError(t, err)
		empty, err := fx.store.CreateRootTag(ctx, fx.subgroup.ID, "empty", "")
		require.NoError(t, err)
		fx.bind(t, vars, "x", empty)

		result, err := fx.evaluator.Evaluate(ctx, f.ID, fx.ctxTag.ID)
		require.NoError(t, err)
		assert.False(t, result.Complete)
		assert.Equal(t, []string{"x"}, result.Missing)
	})

	t.Run("missing formula or context is an error", func(t *testing.T) {
		fx := setupFixture(t)
		f, _, err := fx.registry.Create(ctx, "f", "", "$x")
		require.NoError(t, err)

		_, err = fx.evaluator.Evaluate(ctx, tagstore.NewID(), fx.ctxTag.ID)
		assert.True(t, tagstore.IsNotFound(err))
		_, err = fx.evaluator.Evaluate(ctx, f.ID, tagstore.NewID())
		assert.True(t, tagstore.IsNotFound(err))
	})
}

func TestUnsafeExpressions(t *testing.T) {
	ctx := context.Background()

	t.Run("denylisted tokens rejected before resolution", func(t *testing.T) {
		fx := setupFixture(t)
		for _, expr := range []string{
			"__class__",
			"import x",
			"eval($a)",
			"exec + 1",
			"open + $a",
			"os + 1",
		} {
			f, _, err := fx.registry.Create(ctx, "bad", "", expr)
			require.NoError(t, err)

			_, err = fx.evaluator.Evaluate(ctx, f.ID, fx.ctxTag.ID)
			assert.ErrorIs(t, err, ErrUnsafeExpression, "expression %q", expr)
		}
	})

	t.Run("word boundary does not catch substrings", func(t *testing.T) {
		fx := setupFixture(t)
		f, vars, err := fx.registry.Create(ctx, "ok", "", "$openings + 1")
		require.NoError(t, err)
		fx.bind(t, vars, "openings", fx.valueTag(t, "o-tag", "2"))

		result, err := fx.evaluator.Evaluate(ctx, f.ID, fx.ctxTag.ID)
		require.NoError(t, err)
		require.True(t, result.Complete)
		assert.Equal(t, "3", result.Value)
	})

	t.Run("function calls rejected", func(t *testing.T) {
		fx := setupFixture(t)
		f, vars, err := fx.registry.Create(ctx, "fn", "", "max($a, 2)")
		require.NoError(t, err)
		fx.bind(t, vars, "a", fx.valueTag(t, "a-tag", "1"))

		_, err = fx.evaluator.Evaluate(ctx, f.ID, fx.ctxTag.ID)
		assert.ErrorIs(t, err, ErrUnsafeExpression)
	})

	t.Run("function call under an attribute access rejected", func(t *testing.T) {
		fx := setupFixture(t)
		f, vars, err := fx.registry.Create(ctx, "fn-attr", "", "max($a, 2).hi")
		require.NoError(t, err)
		fx.bind(t, vars, "a", fx.valueTag(t, "a-tag", "1"))

		_, err = fx.evaluator.Evaluate(ctx, f.ID, fx.ctxTag.ID)
		assert.ErrorIs(t, err, ErrUnsafeExpression)
	})
}

func TestFormatValue(t *testing.T) {
	t.Run("integral numbers drop the decimal point", func(t *testing.T) {
		assert.Equal(t, "42", FormatValue(coerce("42")))
	})
	t.Run("booleans", func(t *testing.T) {
		assert.Equal(t, "true", FormatValue(coerce("TRUE")))
		assert.Equal(t, "false", FormatValue(coerce("False")))
	})
	t.Run("strings pass through", func(t *testing.T) {
		assert.Equal(t, "running", FormatValue(coerce("running")))
	})
}
