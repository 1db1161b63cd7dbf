package dht

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
)

// VersionSelector picks one candidate version out of a set presented by the
// recover pipeline (spec §4.4 recover). Candidates are described as
// map[string]any so a selector can inspect arbitrary metadata (timestamp,
// size, author) without the dht package depending on profile types. Select
// returns the index into candidates it picked.
type VersionSelector interface {
	Select(candidates []map[string]any) (int, error)
}

// VersionSelectorFunc adapts a plain closure to VersionSelector — the
// "opaque callback" spec.md §4.4 leaves recover's versionSelector as.
type VersionSelectorFunc func(candidates []map[string]any) (int, error)

func (f VersionSelectorFunc) Select(candidates []map[string]any) (int, error) { return f(candidates) }

// CELVersionSelector is a concrete, scriptable VersionSelector: a compiled
// google/cel-go expression comparing candidate pairs, directly grounded on
// the teacher's cel/cel.go Evaluator (Evaluate(mapX, mapY) (int, error) over
// map[string]any). It picks the "largest" candidate under the expression's
// ordering by running a linear tournament: keep the current winner, compare
// it against each subsequent candidate, keep whichever the expression says
// is greater.
type CELVersionSelector struct {
	expression string
	program    cel.Program
}

// NewCELVersionSelector compiles expression once; it is evaluated per
// candidate-pair on every Select call. expression must return an int: >0 if
// mapX should be preferred over mapY, <0 for the reverse, 0 for a tie
// (the current winner, passed as mapY, keeps its place on a tie, so the
// earliest of equally preferred candidates wins).
func NewCELVersionSelector(expression string) (*CELVersionSelector, error) {
	if expression == "" {
		return nil, fmt.Errorf("cel version selector: expression can't be empty")
	}
	env, err := cel.NewEnv(
		cel.Variable("mapX", cel.MapType(cel.StringType, cel.AnyType)),
		cel.Variable("mapY", cel.MapType(cel.StringType, cel.AnyType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel version selector: new env: %w", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel version selector: compile: %w", issues.Err())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel version selector: program: %w", err)
	}
	return &CELVersionSelector{expression: expression, program: prog}, nil
}

func (s *CELVersionSelector) compare(mapX, mapY map[string]any) (int, error) {
	out, _, err := s.program.Eval(map[string]any{"mapX": mapX, "mapY": mapY})
	if err != nil {
		return 0, fmt.Errorf("cel version selector: eval: %w", err)
	}
	native, err := out.ConvertToNative(reflect.TypeOf(int(0)))
	if err != nil {
		return 0, fmt.Errorf("cel version selector: convert result: %w", err)
	}
	v, ok := native.(int)
	if !ok {
		return 0, fmt.Errorf("cel version selector: expression did not return an int")
	}
	return v, nil
}

// Select runs the linear tournament described above, returning the winning
// candidate's index.
func (s *CELVersionSelector) Select(candidates []map[string]any) (int, error) {
	if len(candidates) == 0 {
		return 0, fmt.Errorf("cel version selector: no candidates")
	}
	winner := 0
	for i := 1; i < len(candidates); i++ {
		cmp, err := s.compare(candidates[i], candidates[winner])
		if err != nil {
			return 0, err
		}
		if cmp > 0 {
			winner = i
		}
	}
	return winner, nil
}
