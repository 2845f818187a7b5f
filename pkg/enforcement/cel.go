package enforcement

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// CELEvaluator compiles and caches CEL programs for plan-rule and
// graph-policy-rule conditions. Evaluation is fail-closed: any compile or
// eval error is treated as "condition true" (the rule applies) rather than
// silently skipping enforcement, since a rule that can't be evaluated
// must not be allowed to wave a plan through.
type CELEvaluator struct {
	env *cel.Env
	mu  sync.RWMutex
	prg map[string]cel.Program
}

// NewCELEvaluator builds an evaluator whose environment declares two
// dynamic variables: "node" (a plan node) and "plan" (the plan document).
func NewCELEvaluator() (*CELEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("node", cel.DynType),
		cel.Variable("plan", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("enforcement: cel environment: %w", err)
	}
	return &CELEvaluator{env: env, prg: make(map[string]cel.Program)}, nil
}

// Eval evaluates expr against input. On any compile/eval/type error, Eval
// fails closed: it returns (true, err) so the caller can choose to treat
// the rule as matched (deny) while also surfacing the error for logging.
func (e *CELEvaluator) Eval(expr string, input map[string]interface{}) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return true, err
	}

	out, _, err := prg.Eval(input)
	if err != nil {
		return true, fmt.Errorf("enforcement: cel eval %q: %w", expr, err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return true, fmt.Errorf("enforcement: cel expression %q did not evaluate to bool", expr)
	}
	return val, nil
}

func (e *CELEvaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.prg[expr]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit := e.prg[expr]; hit {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("enforcement: cel compile %q: %w", expr, issues.Err())
	}
	p, err := e.env.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("enforcement: cel program %q: %w", expr, err)
	}
	e.prg[expr] = p
	return p, nil
}
