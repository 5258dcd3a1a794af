// Package eval evaluates formula expressions under a context tag.
//
// Expressions reference variables with a $ sigil ("$flow * $density"). The
// evaluator resolves each variable through its binding at the given context,
// coerces the target tag's value, and evaluates the expression with the HCL
// native-syntax engine. The evaluation context carries variables only and no
// function table, so the language surface is arithmetic, comparisons,
// conditionals, and string templates; function calls are rejected before
// evaluation ever starts.
package eval

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/grovekit/grove/internal/binding"
	"github.com/grovekit/grove/pkg/tagstore"
)

// ErrUnsafeExpression is returned when an expression contains a denylisted
// token. The check runs on the raw text before any variable is resolved, so
// an unsafe expression never touches the store.
var ErrUnsafeExpression = errors.New("expression contains a disallowed token")

// unsafePattern matches tokens with no place in a formula: dunder names and
// words associated with code loading or I/O. Matching is word-bounded so a
// variable named $openings stays legal.
var unsafePattern = regexp.MustCompile(`(__|\bimport\b|\beval\b|\bexec\b|\bcompile\b|\bopen\b|\bread\b|\bwrite\b|\bsys\b|\bos\b)`)

// variablePattern matches $name references in expression text.
var variablePattern = regexp.MustCompile(`\$([a-zA-Z_][a-zA-Z0-9_]*)`)

// EvaluationError wraps HCL diagnostics from parsing or evaluating an
// expression.
type EvaluationError struct {
	Expression string
	Diags      hcl.Diagnostics
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("failed to evaluate %q: %s", e.Expression, e.Diags.Error())
}

// Result is the outcome of evaluating a formula under a context.
//
// Complete is false when one or more variables could not be resolved to a
// concrete value; Missing then lists their names, sorted, and Value is
// unset. Callers surface an incomplete result as data, not as an error.
type Result struct {
	Value    string
	Raw      cty.Value
	Complete bool
	Missing  []string
}

// Evaluator resolves and evaluates formulas against the tag store.
type Evaluator struct {
	store    *tagstore.Client
	bindings *binding.Resolver
}

// NewEvaluator creates an evaluator backed by the given store.
func NewEvaluator(store *tagstore.Client) *Evaluator {
	return &Evaluator{
		store:    store,
		bindings: binding.NewResolver(store),
	}
}

// Evaluate resolves a formula's variables under the given context tag and
// evaluates its expression.
//
// A variable counts as missing when it has no binding at the context, when
// its binding's target tag no longer exists, or when the target tag holds
// no value. Missing variables produce an incomplete Result, never an error;
// ErrUnsafeExpression and EvaluationError report problems with the
// expression itself.
func (ev *Evaluator) Evaluate(ctx context.Context, formulaID, contextTagID string) (*Result, error) {
	formula, err := ev.store.GetFormula(ctx, formulaID)
	if err != nil {
		return nil, err
	}
	if _, err := ev.store.GetTag(ctx, contextTagID); err != nil {
		return nil, err
	}
	if unsafePattern.MatchString(formula.Expression) {
		return nil, fmt.Errorf("%w: %q", ErrUnsafeExpression, formula.Expression)
	}

	vars, err := ev.store.ListVariables(ctx, formulaID)
	if err != nil {
		return nil, err
	}

	env := make(map[string]cty.Value, len(vars))
	var missing []string
	for _, v := range vars {
		val, ok, err := ev.resolve(ctx, v, contextTagID)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, v.Name)
			continue
		}
		env[v.Name] = val
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &Result{Complete: false, Missing: missing}, nil
	}

	raw, err := evaluate(formula.Expression, env)
	if err != nil {
		return nil, err
	}
	return &Result{
		Value:    FormatValue(raw),
		Raw:      raw,
		Complete: true,
	}, nil
}

// resolve looks up a variable's binding at the context and reads the target
// tag's value. The three unresolvable cases (no binding, dangling target,
// valueless target) all report ok=false.
func (ev *Evaluator) resolve(ctx context.Context, v *tagstore.Variable, contextTagID string) (cty.Value, bool, error) {
	b, ok, err := ev.bindings.Lookup(ctx, v.ID, contextTagID)
	if err != nil {
		return cty.NilVal, false, err
	}
	if !ok {
		return cty.NilVal, false, nil
	}
	target, err := ev.store.GetTag(ctx, b.TargetTagID)
	if err != nil {
		if tagstore.IsNotFound(err) {
			return cty.NilVal, false, nil
		}
		return cty.NilVal, false, err
	}
	if !target.HasValue {
		return cty.NilVal, false, nil
	}
	return coerce(target.Value), true, nil
}

// coerce turns a stored tag value into the narrowest cty type it parses as.
func coerce(raw string) cty.Value {
	if strings.EqualFold(raw, "true") {
		return cty.True
	}
	if strings.EqualFold(raw, "false") {
		return cty.False
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return cty.NumberFloatVal(f)
	}
	return cty.StringVal(raw)
}

// evaluate parses the expression (with $ sigils rewritten to bare
// identifiers) and evaluates it against env. Function calls and identifiers
// outside env are rejected before evaluation.
func evaluate(expression string, env map[string]cty.Value) (cty.Value, error) {
	source := variablePattern.ReplaceAllString(expression, "$1")

	expr, diags := hclsyntax.ParseExpression([]byte(source), "formula", hcl.InitialPos)
	if diags.HasErrors() {
		return cty.NilVal, &EvaluationError{Expression: expression, Diags: diags}
	}

	functions := make(map[string]struct{})
	walkForFunctions(expr, functions)
	if len(functions) > 0 {
		names := make([]string, 0, len(functions))
		for f := range functions {
			names = append(names, f)
		}
		sort.Strings(names)
		return cty.NilVal, fmt.Errorf("%w: function call %s", ErrUnsafeExpression, strings.Join(names, ", "))
	}

	for _, traversal := range expr.Variables() {
		name := traversal.RootName()
		if _, ok := env[name]; !ok {
			return cty.NilVal, fmt.Errorf("%w: unknown identifier %q", ErrUnsafeExpression, name)
		}
	}

	val, diags := expr.Value(&hcl.EvalContext{Variables: env})
	if diags.HasErrors() {
		return cty.NilVal, &EvaluationError{Expression: expression, Diags: diags}
	}
	return val, nil
}

// walkForFunctions recursively walks the AST, collecting function call names.
func walkForFunctions(expr hclsyntax.Expression, functions map[string]struct{}) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		functions[e.Name] = struct{}{}
		for _, arg := range e.Args {
			walkForFunctions(arg, functions)
		}
	case *hclsyntax.BinaryOpExpr:
		walkForFunctions(e.LHS, functions)
		walkForFunctions(e.RHS, functions)
	case *hclsyntax.ConditionalExpr:
		walkForFunctions(e.Condition, functions)
		walkForFunctions(e.TrueResult, functions)
		walkForFunctions(e.FalseResult, functions)
	case *hclsyntax.UnaryOpExpr:
		walkForFunctions(e.Val, functions)
	case *hclsyntax.TemplateExpr:
		for _, part := range e.Parts {
			walkForFunctions(part, functions)
		}
	case *hclsyntax.TemplateWrapExpr:
		walkForFunctions(e.Wrapped, functions)
	case *hclsyntax.TupleConsExpr:
		for _, item := range e.Exprs {
			walkForFunctions(item, functions)
		}
	case *hclsyntax.ObjectConsExpr:
		for _, item := range e.Items {
			walkForFunctions(item.KeyExpr, functions)
			walkForFunctions(item.ValueExpr, functions)
		}
	case *hclsyntax.ForExpr:
		walkForFunctions(e.CollExpr, functions)
		walkForFunctions(e.KeyExpr, functions)
		walkForFunctions(e.ValExpr, functions)
		walkForFunctions(e.CondExpr, functions)
	case *hclsyntax.IndexExpr:
		walkForFunctions(e.Collection, functions)
		walkForFunctions(e.Key, functions)
	case *hclsyntax.SplatExpr:
		walkForFunctions(e.Source, functions)
		walkForFunctions(e.Each, functions)
	case *hclsyntax.RelativeTraversalExpr:
		walkForFunctions(e.Source, functions)
	case *hclsyntax.ParenthesesExpr:
		walkForFunctions(e.Expression, functions)
	}
}

// FormatValue renders a cty value the way tag values are stored: booleans
// and strings as-is, numbers without a trailing ".0" when integral.
func FormatValue(v cty.Value) string {
	switch v.Type() {
	case cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return strconv.FormatFloat(f, 'f', -1, 64)
	case cty.String:
		return v.AsString()
	default:
		return v.GoString()
	}
}
