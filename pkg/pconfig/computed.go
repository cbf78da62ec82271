package pconfig

import (
	"context"
	"fmt"
	"time"

	"go.starlark.net/starlark"
)

// ComputedOptionEvaluator evaluates small Starlark expressions used for
// computed option values in a CUE config (e.g. `options: foo:
// script("...")`), grounded on pkg/config/starlark_eval.go's
// timeout-bounded evaluation pattern.
type ComputedOptionEvaluator struct {
	timeout time.Duration
}

// NewComputedOptionEvaluator creates an evaluator with the given per-script
// timeout, defaulting to 5s (option scripts are expected to be trivial
// string transforms, not full evaluations).
func NewComputedOptionEvaluator(timeout time.Duration) *ComputedOptionEvaluator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ComputedOptionEvaluator{timeout: timeout}
}

// Eval runs script with input bound as the Starlark global `input` and
// returns the string value of its `result` global.
func (e *ComputedOptionEvaluator) Eval(ctx context.Context, script string, input map[string]string) (string, error) {
	evalCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		value string
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		v, err := e.evalSync(script, input)
		done <- outcome{value: v, err: err}
	}()

	select {
	case <-evalCtx.Done():
		return "", fmt.Errorf("pconfig: computed option script timed out after %v", e.timeout)
	case o := <-done:
		return o.value, o.err
	}
}

func (e *ComputedOptionEvaluator) evalSync(script string, input map[string]string) (string, error) {
	inputDict := starlark.NewDict(len(input))
	for k, v := range input {
		if err := inputDict.SetKey(starlark.String(k), starlark.String(v)); err != nil {
			return "", fmt.Errorf("pconfig: building starlark input: %w", err)
		}
	}

	thread := &starlark.Thread{Name: "fplayout-option"}
	globals, err := starlark.ExecFile(thread, "option.star", script, starlark.StringDict{
		"input": inputDict,
	})
	if err != nil {
		return "", fmt.Errorf("pconfig: evaluating computed option: %w", err)
	}

	result, ok := globals["result"]
	if !ok {
		return "", fmt.Errorf("pconfig: computed option script did not set `result`")
	}
	str, ok := starlark.AsString(result)
	if !ok {
		return "", fmt.Errorf("pconfig: computed option `result` must be a string, got %s", result.Type())
	}
	return str, nil
}
