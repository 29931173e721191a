package expression

import (
	"fmt"
	"math"
	"reflect"
	"time"
)

// builtinFunc is the signature of an allow-listed helper function.
type builtinFunc func(args []any) (any, error)

// builtins holds every helper callable from an expression. Calls of any
// other name are rejected by the parser.
var builtins = map[string]builtinFunc{
	"abs":     func(args []any) (any, error) { return numericUnary("abs", args, math.Abs) },
	"floor":   func(args []any) (any, error) { return numericUnary("floor", args, math.Floor) },
	"ceil":    func(args []any) (any, error) { return numericUnary("ceil", args, math.Ceil) },
	"round":   func(args []any) (any, error) { return numericUnary("round", args, math.Round) },
	"sqrt":    builtinSqrt,
	"pow":     builtinPow,
	"min":     builtinMin,
	"max":     builtinMax,
	"now":     builtinNow,
	"isArray": builtinIsArray,
}

// isBuiltinFunction reports whether name is on the helper allow list.
func isBuiltinFunction(name string) bool {
	_, ok := builtins[name]
	return ok
}

// numericUnary applies fn to a single numeric argument.
func numericUnary(name string, args []any, fn func(float64) float64) (any, error) {
	if len(args) != 1 {
		return nil, NewEvaluationError(fmt.Sprintf("%s expects 1 argument, got %d", name, len(args)), nil)
	}
	n, ok := toFloat64(args[0])
	if !ok {
		return nil, NewTypeMismatchError("number", fmt.Sprintf("%T", args[0]), args[0])
	}
	return fn(n), nil
}

func builtinSqrt(args []any) (any, error) {
	if len(args) != 1 {
		return nil, NewEvaluationError(fmt.Sprintf("sqrt expects 1 argument, got %d", len(args)), nil)
	}
	n, ok := toFloat64(args[0])
	if !ok {
		return nil, NewTypeMismatchError("number", fmt.Sprintf("%T", args[0]), args[0])
	}
	if n < 0 {
		return nil, NewEvaluationError(fmt.Sprintf("sqrt of negative number %v", n), nil)
	}
	return math.Sqrt(n), nil
}

func builtinPow(args []any) (any, error) {
	if len(args) != 2 {
		return nil, NewEvaluationError(fmt.Sprintf("pow expects 2 arguments, got %d", len(args)), nil)
	}
	base, ok := toFloat64(args[0])
	if !ok {
		return nil, NewTypeMismatchError("number", fmt.Sprintf("%T", args[0]), args[0])
	}
	exp, ok := toFloat64(args[1])
	if !ok {
		return nil, NewTypeMismatchError("number", fmt.Sprintf("%T", args[1]), args[1])
	}
	return math.Pow(base, exp), nil
}

func builtinMin(args []any) (any, error) {
	return numericFold("min", args, math.Min)
}

func builtinMax(args []any) (any, error) {
	return numericFold("max", args, math.Max)
}

// numericFold folds fn over one or more numeric arguments.
func numericFold(name string, args []any, fn func(float64, float64) float64) (any, error) {
	if len(args) == 0 {
		return nil, NewEvaluationError(fmt.Sprintf("%s expects at least 1 argument", name), nil)
	}
	acc, ok := toFloat64(args[0])
	if !ok {
		return nil, NewTypeMismatchError("number", fmt.Sprintf("%T", args[0]), args[0])
	}
	for _, arg := range args[1:] {
		n, ok := toFloat64(arg)
		if !ok {
			return nil, NewTypeMismatchError("number", fmt.Sprintf("%T", arg), arg)
		}
		acc = fn(acc, n)
	}
	return acc, nil
}

// builtinNow returns the current time as Unix milliseconds.
func builtinNow(args []any) (any, error) {
	if len(args) != 0 {
		return nil, NewEvaluationError(fmt.Sprintf("now expects no arguments, got %d", len(args)), nil)
	}
	return float64(time.Now().UnixMilli()), nil
}

func builtinIsArray(args []any) (any, error) {
	if len(args) != 1 {
		return nil, NewEvaluationError(fmt.Sprintf("isArray expects 1 argument, got %d", len(args)), nil)
	}
	if args[0] == nil {
		return false, nil
	}
	kind := reflect.TypeOf(args[0]).Kind()
	return kind == reflect.Slice || kind == reflect.Array, nil
}
