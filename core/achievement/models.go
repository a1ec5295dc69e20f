package achievement

import (
	"github.com/volatiletech/null/v8"

	"github.com/obeworks/kurikulum/core/assessment"
	"github.com/obeworks/kurikulum/core/grading"
)

type (
	// CPMKAchievement is the attainment of one CPMK by an enrollment. Value is null
	// while no component of the CPMK has been scored.
	CPMKAchievement struct {
		CPMKID string       `json:"cpmk_id"`
		Code   string       `json:"code"`
		Value  null.Float64 `json:"value"`
	}

	// CPLAchievement is the attainment of one CPL by an enrollment.
	CPLAchievement struct {
		CPLID        string       `json:"cpl_id"`
		Code         string       `json:"code"`
		Value        null.Float64 `json:"value"`
		Threshold    float64      `json:"threshold"`
		Achieved     bool         `json:"achieved"` // tercapai
		Contributors int          `json:"contributors"`
	}

	// Report lists every CPMK of the enrollment's RPS and every CPL they map to.
	Report struct {
		Enrollment assessment.Enrollment `json:"enrollment"`
		RPSID      string                `json:"rps_id"`
		CPMK       []CPMKAchievement     `json:"cpmk"`
		CPL        []CPLAchievement      `json:"cpl"`
	}

	LetterCount struct {
		Letter grading.Letter `db:"letter_grade" json:"letter"`
		Count  int            `db:"count" json:"count"`
	}

	// GradeStats is the final grade aggregate of a class, computed by the store.
	GradeStats struct {
		Enrolled int          `db:"enrolled" json:"enrolled"`
		Graded   int          `db:"graded" json:"graded"`
		Average  null.Float64 `db:"average" json:"average"`
		Min      null.Float64 `db:"min_grade" json:"min"`
		Max      null.Float64 `db:"max_grade" json:"max"`
	}

	ClassStatistics struct {
		ClassID string `json:"class_id"`
		GradeStats
		Distribution []LetterCount `json:"distribution"`
	}

	// CPLSummary is the attainment of one CPL over the enrollments of a class.
	CPLSummary struct {
		CPLID    string       `json:"cpl_id"`
		Code     string       `json:"code"`
		Assessed int          `json:"assessed"`
		Achieved int          `json:"achieved"`
		Average  null.Float64 `json:"average"`
	}

	RecalcFailure struct {
		EnrollmentID string `json:"enrollment_id"`
		Error        string `json:"error"`
	}

	// RecalcReport is the outcome of recomputing the final grades of a class.
	RecalcReport struct {
		Updated []assessment.Enrollment `json:"updated"`
		Failed  []RecalcFailure         `json:"failed"`
	}
)
