package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/uow/internal/ir"
)

// PlanSnapshot captures the queued leaves and journaled writes of a
// scenario. It serializes with canonical JSON for deterministic comparison.
type PlanSnapshot struct {
	ScenarioName string
	Steps        []StepTrace
}

// NewPlanSnapshot builds the snapshot of a scenario result.
func NewPlanSnapshot(name string, result *Result) PlanSnapshot {
	return PlanSnapshot{ScenarioName: name, Steps: result.Steps}
}

// MarshalCanonical returns the canonical JSON form of the snapshot.
// Empty rows and fields are omitted.
func (s PlanSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// toCanonicalMap converts the snapshot to the map shape ir.MarshalCanonical
// accepts.
func (s PlanSnapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Steps))
	for i, st := range s.Steps {
		m := map[string]any{"op": st.Op}
		if st.Entity != "" {
			m["entity"] = st.Entity
		}
		if st.Root != "" {
			m["root"] = st.Root
		}
		if st.Op == OpStore || st.Op == OpDelete {
			leaves := make([]any, len(st.Leaves))
			for j, l := range st.Leaves {
				lm := map[string]any{
					"kind":     l.Kind,
					"database": l.Database,
					"table":    l.Table,
				}
				putRow(lm, "data", l.Data)
				putRow(lm, "scope", l.Scope)
				leaves[j] = lm
			}
			m["leaves"] = leaves
		}
		if st.Op == OpExecute {
			m["token"] = st.Token
			writes := make([]any, len(st.Writes))
			for j, w := range st.Writes {
				wm := map[string]any{
					"op":     w.Op,
					"table":  w.Table,
					"result": w.Result,
				}
				putRow(wm, "payload", w.Payload)
				putRow(wm, "scope", w.Scope)
				writes[j] = wm
			}
			m["writes"] = writes
		}
		steps[i] = m
	}

	return map[string]any{
		"name":  s.ScenarioName,
		"steps": steps,
	}
}

func putRow(m map[string]any, key string, row ir.Row) {
	if len(row) > 0 {
		m[key] = row
	}
}

// RunWithGolden executes a scenario and compares its plan snapshot
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check assertions.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}

	data, err := NewPlanSnapshot(scenario.Name, result).MarshalCanonical()
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result, nil
}
