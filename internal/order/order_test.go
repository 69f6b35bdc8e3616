package order

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/phobologic/stagegen/internal/model"
)

func call(name string, stage uint32) model.ResolvedCall {
	return model.ResolvedCall{Path: []string{"crate", name}, Stage: stage}
}

func names(p model.Plan) []string {
	out := make([]string, len(p.Calls))
	for i, c := range p.Calls {
		out[i] = c.Path[len(c.Path)-1]
	}
	return out
}

func TestPlanScenario(t *testing.T) {
	t.Parallel()

	p := Plan([]model.ResolvedCall{call("a", 1), call("b", 0), call("c", 1)})
	if diff := cmp.Diff([]string{"b", "a", "c"}, names(p)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanSparseStages(t *testing.T) {
	t.Parallel()

	p := Plan([]model.ResolvedCall{
		call("late", 9), call("mid1", 5), call("first", 0), call("mid2", 5),
	})
	if diff := cmp.Diff([]string{"first", "mid1", "mid2", "late"}, names(p)); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{0, 5, 9}, p.Stages()); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := []model.ResolvedCall{call("a", 1), call("b", 0)}
	Plan(in)
	if in[0].Path[1] != "a" {
		t.Error("input slice was reordered")
	}
}

func TestPlanEmpty(t *testing.T) {
	t.Parallel()

	p := Plan(nil)
	if len(p.Calls) != 0 {
		t.Errorf("expected empty plan, got %v", p.Calls)
	}
	if len(Groups(p)) != 0 {
		t.Error("expected no groups")
	}
}

// TestPlanSortedAndStable checks the ordering invariants over random inputs:
// stages never decrease, and equal stages keep input order.
func TestPlanSortedAndStable(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	for range 200 {
		n := rng.Intn(30)
		in := make([]model.ResolvedCall, n)
		for i := range in {
			in[i] = model.ResolvedCall{Path: []string{"crate", "f"}, Stage: uint32(rng.Intn(4)), Line: i}
		}

		p := Plan(in)
		if len(p.Calls) != n {
			t.Fatalf("plan has %d calls, want %d", len(p.Calls), n)
		}
		for i := 1; i < len(p.Calls); i++ {
			prev, cur := p.Calls[i-1], p.Calls[i]
			if prev.Stage > cur.Stage {
				t.Fatalf("stage decreases at %d: %d > %d", i, prev.Stage, cur.Stage)
			}
			if prev.Stage == cur.Stage && prev.Line > cur.Line {
				t.Fatalf("equal stage %d out of input order at %d", cur.Stage, i)
			}
		}
	}
}

func TestGroups(t *testing.T) {
	t.Parallel()

	p := Plan([]model.ResolvedCall{call("a", 1), call("b", 0), call("c", 1)})
	groups := Groups(p)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0]) != 1 || groups[0][0].Stage != 0 {
		t.Errorf("group 0 = %v", groups[0])
	}
	if len(groups[1]) != 2 || groups[1][0].Stage != 1 {
		t.Errorf("group 1 = %v", groups[1])
	}
}
