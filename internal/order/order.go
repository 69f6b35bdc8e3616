// Package order arranges resolved initializer calls into the final plan.
package order

import (
	"slices"
	"sort"

	"github.com/phobologic/stagegen/internal/model"
)

// Plan orders calls by ascending stage. Calls sharing a stage keep their
// input order, which is discovery order from the walk; nothing else about
// their relative order is guaranteed.
func Plan(calls []model.ResolvedCall) model.Plan {
	ordered := slices.Clone(calls)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Stage < ordered[j].Stage
	})
	return model.Plan{Calls: ordered}
}

// Groups splits a plan into runs of equal stage.
func Groups(p model.Plan) [][]model.ResolvedCall {
	var groups [][]model.ResolvedCall
	start := 0
	for i := 1; i <= len(p.Calls); i++ {
		if i == len(p.Calls) || p.Calls[i].Stage != p.Calls[start].Stage {
			groups = append(groups, p.Calls[start:i])
			start = i
		}
	}
	return groups
}
