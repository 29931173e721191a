package expression

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Namespace roots every property path must start from.
const (
	NamespaceData    = "data"
	NamespaceContext = "context"
)

// Evaluator parses and evaluates workflow expressions against the data
// and context namespaces. It is stateless and safe for concurrent use.
type Evaluator struct{}

// NewEvaluator creates a new Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Parse checks the safety limits and parses an expression string into an AST.
func (e *Evaluator) Parse(expr string) (*ExpressionAST, error) {
	return ParseExpression(expr)
}

// Evaluate evaluates an AST against the given namespaces. Both maps are
// sanitized (deep-copied) first, so evaluation never observes forbidden
// keys and never mutates caller data.
func (e *Evaluator) Evaluate(ast *ExpressionAST, data, context map[string]any) (any, error) {
	if ast == nil || ast.Root == nil {
		return nil, NewEvaluationError("nil AST", nil)
	}

	cleanData, err := SanitizeMap(data)
	if err != nil {
		return nil, NewEvaluationError("sanitize data", err)
	}
	cleanContext, err := SanitizeMap(context)
	if err != nil {
		return nil, NewEvaluationError("sanitize context", err)
	}

	return e.evaluateNode(ast.Root, cleanData, cleanContext)
}

// EvaluateString parses and evaluates an expression string.
func (e *Evaluator) EvaluateString(expr string, data, context map[string]any) (any, error) {
	ast, err := e.Parse(expr)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(ast, data, context)
}

// EvaluateBool parses and evaluates an expression string and reduces the
// result to its truthiness.
func (e *Evaluator) EvaluateBool(expr string, data, context map[string]any) (bool, error) {
	result, err := e.EvaluateString(expr, data, context)
	if err != nil {
		return false, err
	}
	return truthy(result), nil
}

// evaluateNode evaluates a single AST node.
func (e *Evaluator) evaluateNode(node Node, data, context map[string]any) (any, error) {
	switch n := node.(type) {
	case *LiteralNode:
		return n.Value, nil

	case *IdentifierNode:
		return resolvePath(n.Parts, data, context)

	case *UnaryNode:
		return e.evaluateUnary(n, data, context)

	case *BinaryNode:
		return e.evaluateBinary(n, data, context)

	case *ConditionalNode:
		cond, err := e.evaluateNode(n.Cond, data, context)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return e.evaluateNode(n.Then, data, context)
		}
		return e.evaluateNode(n.Else, data, context)

	case *CallNode:
		return e.evaluateCall(n, data, context)

	default:
		return nil, NewEvaluationError(fmt.Sprintf("unknown node type: %T", node), nil)
	}
}

// evaluateUnary evaluates ! and unary -.
func (e *Evaluator) evaluateUnary(node *UnaryNode, data, context map[string]any) (any, error) {
	val, err := e.evaluateNode(node.Operand, data, context)
	if err != nil {
		return nil, err
	}

	switch node.Operator {
	case TokenBang:
		return !truthy(val), nil
	case TokenMinus:
		n, ok := toFloat64(val)
		if !ok {
			return nil, NewTypeMismatchError("number", fmt.Sprintf("%T", val), val)
		}
		return -n, nil
	default:
		return nil, NewEvaluationError(fmt.Sprintf("unknown unary operator: %s", node.Operator), nil)
	}
}

// evaluateBinary evaluates a binary expression. Logical operators
// short-circuit; the right operand is only evaluated when needed.
func (e *Evaluator) evaluateBinary(node *BinaryNode, data, context map[string]any) (any, error) {
	left, err := e.evaluateNode(node.Left, data, context)
	if err != nil {
		return nil, err
	}

	switch node.Operator {
	case TokenAND:
		if !truthy(left) {
			return false, nil
		}
		right, err := e.evaluateNode(node.Right, data, context)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil

	case TokenOR:
		if truthy(left) {
			return true, nil
		}
		right, err := e.evaluateNode(node.Right, data, context)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	}

	right, err := e.evaluateNode(node.Right, data, context)
	if err != nil {
		return nil, err
	}

	switch node.Operator {
	case TokenEQ:
		return looseEqual(left, right), nil
	case TokenNE:
		return !looseEqual(left, right), nil
	case TokenSEQ:
		return strictEqual(left, right), nil
	case TokenSNE:
		return !strictEqual(left, right), nil
	case TokenLT, TokenGT, TokenLE, TokenGE:
		return compareOrdering(left, right, node.Operator)
	case TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent:
		return arithmetic(left, right, node.Operator)
	default:
		return nil, NewEvaluationError(fmt.Sprintf("unknown binary operator: %s", node.Operator), nil)
	}
}

// evaluateCall evaluates a helper function call.
func (e *Evaluator) evaluateCall(node *CallNode, data, context map[string]any) (any, error) {
	fn, ok := builtins[node.Name]
	if !ok {
		// The parser rejects unknown names; this guards direct AST use.
		return nil, NewForbiddenIdentifierError(node.Name, -1)
	}

	args := make([]any, 0, len(node.Args))
	for _, argNode := range node.Args {
		val, err := e.evaluateNode(argNode, data, context)
		if err != nil {
			return nil, err
		}
		args = append(args, val)
	}

	return fn(args)
}

// resolvePath resolves a dotted property path against the namespaces.
// A missing final property yields nil; walking a property of nil or of
// a scalar is an evaluation error.
func resolvePath(parts []string, data, context map[string]any) (any, error) {
	var current any
	switch parts[0] {
	case NamespaceData:
		current = data
	case NamespaceContext:
		current = context
	default:
		return nil, NewForbiddenIdentifierError(strings.Join(parts, "."), -1)
	}

	for i := 1; i < len(parts); i++ {
		val, err := getField(current, parts[i], strings.Join(parts[:i+1], "."))
		if err != nil {
			return nil, err
		}
		current = val
	}

	return current, nil
}

// getField gets a named field from a map or struct value.
func getField(v any, field, path string) (any, error) {
	if v == nil {
		return nil, NewEvaluationError(
			fmt.Sprintf("cannot read property %q of null", field),
			NewVariableNotFoundError(path))
	}

	if m, ok := v.(map[string]any); ok {
		return m[field], nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, NewEvaluationError(
				fmt.Sprintf("cannot read property %q of null", field),
				NewVariableNotFoundError(path))
		}
		rv = rv.Elem()
	}

	if rv.Kind() == reflect.Struct {
		fv := rv.FieldByName(field)
		if fv.IsValid() {
			return fv.Interface(), nil
		}
		for i := 0; i < rv.NumField(); i++ {
			if strings.EqualFold(rv.Type().Field(i).Name, field) {
				return rv.Field(i).Interface(), nil
			}
		}
		return nil, nil
	}

	return nil, NewEvaluationError(
		fmt.Sprintf("cannot read property %q of %T", field, v),
		NewVariableNotFoundError(path))
}

// looseEqual implements == with numeric coercion: numbers, numeric
// strings and booleans (as 0/1) compare by numeric value. Values of
// incompatible families are unequal rather than an error.
func looseEqual(left, right any) bool {
	if left == nil && right == nil {
		return true
	}
	if left == nil || right == nil {
		return false
	}

	ln, lok := looseNumber(left)
	rn, rok := looseNumber(right)
	if lok && rok {
		return ln == rn
	}

	ls, lIsStr := left.(string)
	rs, rIsStr := right.(string)
	if lIsStr && rIsStr {
		return ls == rs
	}

	return false
}

// strictEqual implements ===: both values must belong to the same value
// family (null, bool, number, string) and be equal. Numbers are unified
// as float64 regardless of their Go type. Composite values are never
// strictly equal.
func strictEqual(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}

	ln, lok := numericValue(left)
	rn, rok := numericValue(right)
	if lok || rok {
		return lok && rok && ln == rn
	}

	switch lv := left.(type) {
	case bool:
		rv, ok := right.(bool)
		return ok && lv == rv
	case string:
		rv, ok := right.(string)
		return ok && lv == rv
	default:
		return false
	}
}

// compareOrdering implements the relational operators. Operands compare
// numerically when both coerce to numbers, lexicographically when both
// are strings, and are a type mismatch otherwise.
func compareOrdering(left, right any, op TokenType) (any, error) {
	ln, lok := toFloat64(left)
	rn, rok := toFloat64(right)
	if lok && rok {
		switch op {
		case TokenLT:
			return ln < rn, nil
		case TokenGT:
			return ln > rn, nil
		case TokenLE:
			return ln <= rn, nil
		case TokenGE:
			return ln >= rn, nil
		}
	}

	ls, lIsStr := left.(string)
	rs, rIsStr := right.(string)
	if lIsStr && rIsStr {
		switch op {
		case TokenLT:
			return ls < rs, nil
		case TokenGT:
			return ls > rs, nil
		case TokenLE:
			return ls <= rs, nil
		case TokenGE:
			return ls >= rs, nil
		}
	}

	return nil, NewTypeMismatchError("comparable values",
		fmt.Sprintf("%T and %T", left, right), left)
}

// arithmetic implements + - * / %. Operands are coerced numerically;
// + concatenates when both operands are strings.
func arithmetic(left, right any, op TokenType) (any, error) {
	if op == TokenPlus {
		ls, lIsStr := left.(string)
		rs, rIsStr := right.(string)
		if lIsStr && rIsStr {
			return ls + rs, nil
		}
	}

	ln, lok := toFloat64(left)
	if !lok {
		return nil, NewTypeMismatchError("number", fmt.Sprintf("%T", left), left)
	}
	rn, rok := toFloat64(right)
	if !rok {
		return nil, NewTypeMismatchError("number", fmt.Sprintf("%T", right), right)
	}

	switch op {
	case TokenPlus:
		return ln + rn, nil
	case TokenMinus:
		return ln - rn, nil
	case TokenStar:
		return ln * rn, nil
	case TokenSlash:
		if rn == 0 {
			return nil, NewEvaluationError("division by zero", nil)
		}
		return ln / rn, nil
	case TokenPercent:
		if rn == 0 {
			return nil, NewEvaluationError("modulo by zero", nil)
		}
		return math.Mod(ln, rn), nil
	default:
		return nil, NewEvaluationError(fmt.Sprintf("unknown arithmetic operator: %s", op), nil)
	}
}

// numericValue converts a Go numeric value to float64. Strings are not
// coerced.
func numericValue(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}

// toFloat64 converts a value to float64 if possible, including numeric
// strings.
func toFloat64(v any) (float64, bool) {
	if n, ok := numericValue(v); ok {
		return n, true
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// looseNumber converts a value to float64 for loose equality: numbers,
// numeric strings, and booleans as 0/1.
func looseNumber(v any) (float64, bool) {
	if b, ok := v.(bool); ok {
		if b {
			return 1, true
		}
		return 0, true
	}
	return toFloat64(v)
}

// Truthy reduces a value to a boolean: null, false, zero, NaN and the
// empty string are falsy; everything else, composites included, is
// truthy. Exposed for callers that evaluate pre-parsed trees and need
// the same boolean interpretation as EvaluateBool.
func Truthy(v any) bool {
	return truthy(v)
}

// truthy reduces a value to a boolean: null, false, zero, NaN and the
// empty string are falsy; everything else, composites included, is truthy.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	}
	if n, ok := numericValue(v); ok {
		return n != 0 && !math.IsNaN(n)
	}
	return true
}

// Evaluate is a convenience function to parse and evaluate an expression
// string.
func Evaluate(expr string, data, context map[string]any) (any, error) {
	return NewEvaluator().EvaluateString(expr, data, context)
}
