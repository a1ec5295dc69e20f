package achievement

import (
	"github.com/volatiletech/null/v8"

	"github.com/obeworks/kurikulum/core/assessment"
	"github.com/obeworks/kurikulum/core/grading"
	"github.com/obeworks/kurikulum/core/outcome"
)

// finalGrade sums the weighted scores of every scored component. The sum is not clamped.
func finalGrade(rows []assessment.ScoredComponent) float64 {
	var total float64
	for _, r := range rows {
		total += grading.ComputeWeighted(r.Raw, r.MaxScore, r.Weight)
	}
	return total
}

// cpmkAttainment normalizes the weighted scores of the components templated on cpmkID
// by their realized weights, on a 0-100 scale. It is null when none is scored.
func cpmkAttainment(rows []assessment.ScoredComponent, cpmkID string) null.Float64 {
	var (
		weighted, weights float64
		found             bool
	)
	for _, r := range rows {
		if !r.CPMKID.Valid || r.CPMKID.String != cpmkID {
			continue
		}
		found = true
		weighted += grading.ComputeWeighted(r.Raw, r.MaxScore, r.Weight)
		weights += r.Weight
	}
	if !found {
		return null.Float64{}
	}
	if weights <= 0 {
		return null.Float64From(0)
	}
	return null.Float64From(weighted / weights * 100)
}

// cplAttainment is the contribution-weighted average of the non-null CPMK attainments
// of the mappings. It is null when no mapped CPMK has been assessed.
func cplAttainment(mappings []outcome.Mapping, cpmk map[string]null.Float64) (null.Float64, int) {
	var (
		sum, weights float64
		contributors int
	)
	for _, m := range mappings {
		v, ok := cpmk[m.CPMKID]
		if !ok || !v.Valid || m.Weight <= 0 {
			continue
		}
		sum += v.Float64 * m.Weight
		weights += m.Weight
		contributors++
	}
	if contributors == 0 {
		return null.Float64{}, 0
	}
	return null.Float64From(sum / weights), contributors
}

// cpmkIDs lists the distinct CPMK of the scored components, in first-seen order.
func cpmkIDs(rows []assessment.ScoredComponent) []string {
	seen := map[string]bool{}
	var ids []string
	for _, r := range rows {
		if r.CPMKID.Valid && !seen[r.CPMKID.String] {
			seen[r.CPMKID.String] = true
			ids = append(ids, r.CPMKID.String)
		}
	}
	return ids
}

func attainments(rows []assessment.ScoredComponent) map[string]null.Float64 {
	res := map[string]null.Float64{}
	for _, id := range cpmkIDs(rows) {
		res[id] = cpmkAttainment(rows, id)
	}
	return res
}
