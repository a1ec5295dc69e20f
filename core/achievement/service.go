package achievement

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/assessment"
	"github.com/obeworks/kurikulum/core/grading"
	"github.com/obeworks/kurikulum/core/outcome"
)

// DefaultPassMark is the CPL threshold used when no assessment type threshold applies.
const DefaultPassMark = 60.0

type (
	Repository interface {
		GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Enrollment, error)
		QueryEnrollments(ctx context.Context, classID string, exec ...core.DBExecutor) ([]assessment.Enrollment, error)
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Class, error)
		// EnrollmentRPS returns the RPS of the class of the enrollment.
		EnrollmentRPS(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) (string, error)
		// ScoredComponents lists the scores of the enrollment joined with their component
		// and the CPMK of the component's template.
		ScoredComponents(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) ([]assessment.ScoredComponent, error)
		// SetFinalGrade stores the final grade and letter; a null grade clears both.
		SetFinalGrade(ctx context.Context, enrollmentID string, grade null.Float64, letter null.String, at time.Time, exec ...core.DBExecutor) error

		GetCPL(ctx context.Context, id string, exec ...core.DBExecutor) (outcome.CPL, error)
		GetCPMK(ctx context.Context, id string, exec ...core.DBExecutor) (outcome.CPMK, error)
		QueryCPMK(ctx context.Context, rpsID string, exec ...core.DBExecutor) ([]outcome.CPMK, error)
		MappingsByCPL(ctx context.Context, cplID string, exec ...core.DBExecutor) ([]outcome.Mapping, error)
		// MappingsByRPS lists the mappings of every CPMK of the RPS.
		MappingsByRPS(ctx context.Context, rpsID string, exec ...core.DBExecutor) ([]outcome.Mapping, error)

		ClassGradeStats(ctx context.Context, classID string, exec ...core.DBExecutor) (GradeStats, error)
		LetterDistribution(ctx context.Context, classID string, exec ...core.DBExecutor) ([]LetterCount, error)
	}

	// ThresholdSource resolves the threshold configured for an assessment type of an RPS.
	ThresholdSource interface {
		ThresholdFor(ctx context.Context, rpsID, typeID string) (float64, bool, error)
	}

	Deps struct {
		DB         core.DB
		Repo       Repository
		Thresholds ThresholdSource
		Logger     core.Logger
		PassMark   float64
		Now        func() time.Time
	}

	// Aggregator rolls component scores up into final grades, CPMK and CPL attainment.
	Aggregator struct {
		db         core.DB
		repo       Repository
		thresholds ThresholdSource
		logger     core.Logger
		passMark   float64
		now        func() time.Time
	}
)

var _ assessment.GradeRecomputer = (*Aggregator)(nil)

func NewAggregator(deps Deps) *Aggregator {
	agg := &Aggregator{
		db:         deps.DB,
		repo:       deps.Repo,
		thresholds: deps.Thresholds,
		logger:     deps.Logger,
		passMark:   deps.PassMark,
		now:        deps.Now,
	}
	if agg.now == nil {
		agg.now = time.Now
	}
	if agg.passMark <= 0 {
		agg.passMark = DefaultPassMark
	}
	return agg
}

// SetThresholds wires the threshold source once the assessment service exists.
func (agg *Aggregator) SetThresholds(src ThresholdSource) {
	agg.thresholds = src
}

// RecomputeFinalGrade sums the weighted scores of the enrollment into its final grade
// and letter. Given an executor it runs inside the caller's transaction, else in its own.
// An enrollment without any score has its grade cleared.
func (agg *Aggregator) RecomputeFinalGrade(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) (assessment.Enrollment, error) {
	if len(exec) > 0 && exec[0] != nil {
		return agg.recompute(ctx, enrollmentID, exec[0])
	}
	var e assessment.Enrollment
	err := core.InTx(ctx, agg.db, func(tx core.DBExecutor) error {
		var err error
		e, err = agg.recompute(ctx, enrollmentID, tx)
		return err
	})
	return e, err
}

func (agg *Aggregator) recompute(ctx context.Context, enrollmentID string, tx core.DBExecutor) (assessment.Enrollment, error) {
	e, err := agg.repo.GetEnrollment(ctx, enrollmentID, tx)
	if err != nil {
		return assessment.Enrollment{}, err
	}
	rows, err := agg.repo.ScoredComponents(ctx, enrollmentID, tx)
	if err != nil {
		return assessment.Enrollment{}, err
	}

	now := agg.now().UTC()
	if len(rows) == 0 {
		e.FinalGrade, e.LetterGrade, e.GradedAt = null.Float64{}, null.String{}, null.Time{}
	} else {
		grade := finalGrade(rows)
		e.FinalGrade = null.Float64From(grade)
		e.LetterGrade = null.StringFrom(grading.ConvertToLetter(grade).String())
		e.GradedAt = null.TimeFrom(now)
	}
	if err = agg.repo.SetFinalGrade(ctx, enrollmentID, e.FinalGrade, e.LetterGrade, now, tx); err != nil {
		return assessment.Enrollment{}, err
	}
	return e, nil
}

// RecalculateClassGrades recomputes every enrollment of a class, each in its own transaction.
func (agg *Aggregator) RecalculateClassGrades(ctx context.Context, classID string) (RecalcReport, error) {
	if _, err := agg.repo.GetClass(ctx, classID); err != nil {
		return RecalcReport{}, err
	}
	enrollments, err := agg.repo.QueryEnrollments(ctx, classID)
	if err != nil {
		return RecalcReport{}, err
	}

	report := RecalcReport{Updated: []assessment.Enrollment{}, Failed: []RecalcFailure{}}
	for _, e := range enrollments {
		updated, err := agg.RecomputeFinalGrade(ctx, e.ID)
		if err != nil {
			if agg.logger != nil {
				agg.logger.Warn("recomputing final grade", err, map[string]interface{}{"enrollment_id": e.ID})
			}
			report.Failed = append(report.Failed, RecalcFailure{EnrollmentID: e.ID, Error: err.Error()})
			continue
		}
		report.Updated = append(report.Updated, updated)
	}
	return report, nil
}

// CalculateCPMKAchievement returns the attainment of a CPMK by an enrollment, null if
// no component of the CPMK has been scored yet.
func (agg *Aggregator) CalculateCPMKAchievement(ctx context.Context, enrollmentID, cpmkID string) (null.Float64, error) {
	if _, err := agg.repo.GetEnrollment(ctx, enrollmentID); err != nil {
		return null.Float64{}, err
	}
	if _, err := agg.repo.GetCPMK(ctx, cpmkID); err != nil {
		return null.Float64{}, err
	}
	rows, err := agg.repo.ScoredComponents(ctx, enrollmentID)
	if err != nil {
		return null.Float64{}, err
	}
	return cpmkAttainment(rows, cpmkID), nil
}

// CalculateCPLAchievement averages the attainments of the CPMK mapped to a CPL using the
// contribution weights, skipping CPMK not yet assessed. The CPL is achieved when the value
// reaches the threshold of assessmentTypeID in the enrollment's RPS, or the pass mark when
// no type is given or none is configured.
func (agg *Aggregator) CalculateCPLAchievement(ctx context.Context, enrollmentID, cplID, assessmentTypeID string) (CPLAchievement, error) {
	if _, err := agg.repo.GetEnrollment(ctx, enrollmentID); err != nil {
		return CPLAchievement{}, err
	}
	cpl, err := agg.repo.GetCPL(ctx, cplID)
	if err != nil {
		return CPLAchievement{}, err
	}
	rpsID, err := agg.repo.EnrollmentRPS(ctx, enrollmentID)
	if err != nil {
		return CPLAchievement{}, err
	}
	mappings, err := agg.repo.MappingsByCPL(ctx, cplID)
	if err != nil {
		return CPLAchievement{}, err
	}
	rows, err := agg.repo.ScoredComponents(ctx, enrollmentID)
	if err != nil {
		return CPLAchievement{}, err
	}
	threshold, err := agg.threshold(ctx, rpsID, assessmentTypeID)
	if err != nil {
		return CPLAchievement{}, err
	}
	return cplAchievement(cpl, mappings, attainments(rows), threshold), nil
}

func cplAchievement(cpl outcome.CPL, mappings []outcome.Mapping, cpmk map[string]null.Float64, threshold float64) CPLAchievement {
	value, contributors := cplAttainment(mappings, cpmk)
	return CPLAchievement{
		CPLID:        cpl.ID,
		Code:         cpl.Code,
		Value:        value,
		Threshold:    threshold,
		Achieved:     value.Valid && value.Float64 >= threshold,
		Contributors: contributors,
	}
}

func (agg *Aggregator) threshold(ctx context.Context, rpsID, typeID string) (float64, error) {
	if typeID == "" || agg.thresholds == nil {
		return agg.passMark, nil
	}
	minValue, ok, err := agg.thresholds.ThresholdFor(ctx, rpsID, core.CleanString(typeID, true /* lower */))
	if err != nil {
		return 0, err
	}
	if !ok {
		return agg.passMark, nil
	}
	return minValue, nil
}

// EnrollmentReport computes the attainment of every CPMK of the enrollment's RPS and of
// every CPL those CPMK map to, ordered by code.
func (agg *Aggregator) EnrollmentReport(ctx context.Context, enrollmentID, assessmentTypeID string) (Report, error) {
	e, err := agg.repo.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return Report{}, err
	}
	rpsID, err := agg.repo.EnrollmentRPS(ctx, enrollmentID)
	if err != nil {
		return Report{}, err
	}
	cpmks, err := agg.repo.QueryCPMK(ctx, rpsID)
	if err != nil {
		return Report{}, err
	}
	mappings, err := agg.repo.MappingsByRPS(ctx, rpsID)
	if err != nil {
		return Report{}, err
	}
	rows, err := agg.repo.ScoredComponents(ctx, enrollmentID)
	if err != nil {
		return Report{}, err
	}
	threshold, err := agg.threshold(ctx, rpsID, assessmentTypeID)
	if err != nil {
		return Report{}, err
	}

	values := attainments(rows)
	report := Report{Enrollment: e, RPSID: rpsID, CPMK: make([]CPMKAchievement, 0, len(cpmks)), CPL: []CPLAchievement{}}
	for _, c := range cpmks {
		report.CPMK = append(report.CPMK, CPMKAchievement{CPMKID: c.ID, Code: c.Code, Value: values[c.ID]})
	}

	byCPL := groupByCPL(mappings)
	for _, cplID := range sortedKeys(byCPL) {
		cpl, err := agg.repo.GetCPL(ctx, cplID)
		if err != nil {
			return Report{}, err
		}
		report.CPL = append(report.CPL, cplAchievement(cpl, byCPL[cplID], values, threshold))
	}
	sort.SliceStable(report.CPL, func(i, j int) bool { return report.CPL[i].Code < report.CPL[j].Code })
	return report, nil
}

// ClassStatistics aggregates the final grades of a class.
func (agg *Aggregator) ClassStatistics(ctx context.Context, classID string) (ClassStatistics, error) {
	if _, err := agg.repo.GetClass(ctx, classID); err != nil {
		return ClassStatistics{}, err
	}
	stats, err := agg.repo.ClassGradeStats(ctx, classID)
	if err != nil {
		return ClassStatistics{}, err
	}
	counts, err := agg.repo.LetterDistribution(ctx, classID)
	if err != nil {
		return ClassStatistics{}, err
	}
	return ClassStatistics{ClassID: classID, GradeStats: stats, Distribution: distribution(counts)}, nil
}

// distribution lists every letter from A to E, zero counts included.
func distribution(counts []LetterCount) []LetterCount {
	byLetter := make(map[grading.Letter]int, len(counts))
	for _, c := range counts {
		byLetter[c.Letter] += c.Count
	}
	res := make([]LetterCount, 0, len(grading.Letters()))
	for _, l := range grading.Letters() {
		res = append(res, LetterCount{Letter: l, Count: byLetter[l]})
	}
	return res
}

// ClassCPLSummary reports, per CPL reached by the RPS of the class, how many enrollments
// were assessed on it, how many achieved it and their average attainment.
func (agg *Aggregator) ClassCPLSummary(ctx context.Context, classID, assessmentTypeID string) ([]CPLSummary, error) {
	class, err := agg.repo.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	enrollments, err := agg.repo.QueryEnrollments(ctx, classID)
	if err != nil {
		return nil, err
	}
	mappings, err := agg.repo.MappingsByRPS(ctx, class.RPSID)
	if err != nil {
		return nil, err
	}
	threshold, err := agg.threshold(ctx, class.RPSID, assessmentTypeID)
	if err != nil {
		return nil, err
	}

	byCPL := groupByCPL(mappings)
	cplIDs := sortedKeys(byCPL)
	sums := make(map[string]float64, len(cplIDs))
	summaries := make(map[string]*CPLSummary, len(cplIDs))
	for _, id := range cplIDs {
		cpl, err := agg.repo.GetCPL(ctx, id)
		if err != nil {
			return nil, err
		}
		summaries[id] = &CPLSummary{CPLID: id, Code: cpl.Code}
	}

	for _, e := range enrollments {
		rows, err := agg.repo.ScoredComponents(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		values := attainments(rows)
		for _, id := range cplIDs {
			v, _ := cplAttainment(byCPL[id], values)
			if !v.Valid {
				continue
			}
			s := summaries[id]
			s.Assessed++
			sums[id] += v.Float64
			if v.Float64 >= threshold {
				s.Achieved++
			}
		}
	}

	res := make([]CPLSummary, 0, len(cplIDs))
	for _, id := range cplIDs {
		s := summaries[id]
		if s.Assessed > 0 {
			s.Average = null.Float64From(sums[id] / float64(s.Assessed))
		}
		res = append(res, *s)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Code < res[j].Code })
	return res, nil
}

func groupByCPL(mappings []outcome.Mapping) map[string][]outcome.Mapping {
	res := map[string][]outcome.Mapping{}
	for _, m := range mappings {
		res[m.CPLID] = append(res[m.CPLID], m)
	}
	return res
}

func sortedKeys(m map[string][]outcome.Mapping) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
