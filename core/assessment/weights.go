package assessment

import (
	"context"
	"fmt"
	"sort"

	"github.com/obeworks/kurikulum/core"
)

// totalWeight is the template weight each CPMK must sum to.
const totalWeight = 100.0

// ValidateTemplateWeights checks that the templates of every CPMK of the RPS sum to 100.
// Errors are ordered by CPMK code.
func (svc *Service) ValidateTemplateWeights(ctx context.Context, rpsID string, exec ...core.DBExecutor) (WeightValidation, error) {
	if _, err := svc.repo.RPSStatus(ctx, rpsID, exec...); err != nil {
		return WeightValidation{}, err
	}
	totals, err := svc.repo.TemplateWeightTotals(ctx, rpsID, exec...)
	if err != nil {
		return WeightValidation{}, err
	}
	return checkWeights(rpsID, totals), nil
}

func checkWeights(rpsID string, totals []CPMKWeight) WeightValidation {
	sorted := make([]CPMKWeight, len(totals))
	copy(sorted, totals)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CPMKCode != sorted[j].CPMKCode {
			return sorted[i].CPMKCode < sorted[j].CPMKCode
		}
		return sorted[i].CPMKID < sorted[j].CPMKID
	})

	res := WeightValidation{RPSID: rpsID, Errors: []WeightError{}}
	for _, w := range sorted {
		var msg string
		switch {
		case w.Templates == 0:
			msg = fmt.Sprintf("%s has no assessment template", w.CPMKCode)
		case !core.FloatEquals(w.Total, totalWeight):
			msg = fmt.Sprintf("%s template weights sum to %g, expected %g", w.CPMKCode, w.Total, totalWeight)
		default:
			continue
		}
		res.Errors = append(res.Errors, WeightError{CPMKID: w.CPMKID, CPMKCode: w.CPMKCode, Total: w.Total, Message: msg})
	}
	res.IsValid = len(res.Errors) == 0
	return res
}
