package assessment

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type (
	// AssessmentType is a kind of assessment (tugas, kuis, UTS, UAS, ...).
	AssessmentType struct {
		ID   string `db:"id" json:"id"`
		Code string `db:"code" json:"code"`
		Name string `db:"name" json:"name"`
	}

	// Template is the nominal weight of an assessment type towards a CPMK of an RPS.
	Template struct {
		ID               string    `db:"id" json:"id"`
		RPSID            string    `db:"rps_id" json:"rps_id"`
		CPMKID           string    `db:"cpmk_id" json:"cpmk_id"`
		AssessmentTypeID string    `db:"assessment_type_id" json:"assessment_type_id"`
		Weight           float64   `db:"weight" json:"weight"`
		CreatedAt        time.Time `db:"created_at" json:"created_at"` // UTC
		UpdatedAt        time.Time `db:"updated_at" json:"updated_at"` // UTC
	}

	// Threshold is the minimum passing value of an assessment type in an RPS.
	Threshold struct {
		ID               string    `db:"id" json:"id"`
		RPSID            string    `db:"rps_id" json:"rps_id"`
		AssessmentTypeID string    `db:"assessment_type_id" json:"assessment_type_id"`
		MinValue         float64   `db:"min_value" json:"min_value"`
		CreatedAt        time.Time `db:"created_at" json:"created_at"` // UTC
		UpdatedAt        time.Time `db:"updated_at" json:"updated_at"` // UTC
	}

	Class struct {
		ID        string    `db:"id" json:"id"`
		RPSID     string    `db:"rps_id" json:"rps_id"`
		Name      string    `db:"name" json:"name"`
		CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
	}

	Enrollment struct {
		ID          string       `db:"id" json:"id"`
		ClassID     string       `db:"class_id" json:"class_id"`
		StudentID   string       `db:"student_id" json:"student_id"`
		FinalGrade  null.Float64 `db:"final_grade" json:"final_grade"`
		LetterGrade null.String  `db:"letter_grade" json:"letter_grade"`
		GradedAt    null.Time    `db:"graded_at" json:"graded_at"`   // UTC
		CreatedAt   time.Time    `db:"created_at" json:"created_at"` // UTC
	}

	// Component is an assessment of one class, instantiated from a template or ad hoc.
	// Weight is the realized weight used at scoring time.
	Component struct {
		ID         string      `db:"id" json:"id"`
		ClassID    string      `db:"class_id" json:"class_id"`
		TemplateID null.String `db:"template_id" json:"template_id"`
		Name       string      `db:"name" json:"name"`
		MaxScore   float64     `db:"max_score" json:"max_score"`
		Weight     float64     `db:"weight" json:"weight"`
		Deadline   null.Time   `db:"deadline" json:"deadline"`     // UTC
		CreatedAt  time.Time   `db:"created_at" json:"created_at"` // UTC
		UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"` // UTC
	}

	// Score is the raw score of an enrollment on a component.
	Score struct {
		ID           string    `db:"id" json:"id"`
		EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
		ComponentID  string    `db:"component_id" json:"component_id"`
		Raw          float64   `db:"raw" json:"raw"`
		GradedBy     string    `db:"graded_by" json:"graded_by"`
		GradedAt     time.Time `db:"graded_at" json:"graded_at"` // UTC
	}

	// ScoredComponent joins a score with its component and the CPMK of the component's template.
	ScoredComponent struct {
		ComponentID string      `db:"component_id" json:"component_id"`
		CPMKID      null.String `db:"cpmk_id" json:"cpmk_id"`
		Raw         float64     `db:"raw" json:"raw"`
		MaxScore    float64     `db:"max_score" json:"max_score"`
		Weight      float64     `db:"weight" json:"weight"`
	}

	// CPMKWeight is the template weight total of one CPMK.
	CPMKWeight struct {
		CPMKID    string  `db:"cpmk_id" json:"cpmk_id"`
		CPMKCode  string  `db:"cpmk_code" json:"cpmk_code"`
		Total     float64 `db:"total" json:"total"`
		Templates int     `db:"templates" json:"templates"`
	}

	NewTemplate struct {
		RPSID            string  `json:"rps_id" validate:"required"`
		CPMKID           string  `json:"cpmk_id" validate:"required"`
		AssessmentTypeID string  `json:"assessment_type_id" validate:"required"`
		Weight           float64 `json:"weight" validate:"gte=0,lte=100"`
	}

	NewThreshold struct {
		RPSID            string  `json:"rps_id" validate:"required"`
		AssessmentTypeID string  `json:"assessment_type_id" validate:"required"`
		MinValue         float64 `json:"min_value" validate:"gte=0,lte=100"`
	}

	NewComponent struct {
		ClassID    string     `json:"class_id" validate:"required"`
		TemplateID string     `json:"template_id"`
		Name       string     `json:"name" validate:"required,max=200"`
		MaxScore   float64    `json:"max_score" validate:"gt=0"`
		Weight     float64    `json:"weight" validate:"gte=0,lte=100"`
		Deadline   *time.Time `json:"deadline"`
	}

	UpdateComponent struct {
		Name     *string    `json:"name" validate:"omitempty,min=1,max=200"`
		MaxScore *float64   `json:"max_score" validate:"omitempty,gt=0"`
		Weight   *float64   `json:"weight" validate:"omitempty,gte=0,lte=100"`
		Deadline *time.Time `json:"deadline"`
	}

	NewClass struct {
		RPSID string `json:"rps_id" validate:"required"`
		Name  string `json:"name" validate:"required,max=200"`
	}

	NewEnrollment struct {
		ClassID   string `json:"class_id" validate:"required"`
		StudentID string `json:"student_id" validate:"required"`
	}

	NewScore struct {
		EnrollmentID string  `json:"enrollment_id" validate:"required"`
		ComponentID  string  `json:"component_id" validate:"required"`
		Raw          float64 `json:"raw" validate:"gte=0"`
		GradedBy     string  `json:"graded_by" validate:"required"`
	}

	WeightError struct {
		CPMKID   string  `json:"cpmk_id"`
		CPMKCode string  `json:"cpmk_code"`
		Total    float64 `json:"total"`
		Message  string  `json:"message"`
	}

	// WeightValidation is the template weight check of an RPS.
	WeightValidation struct {
		RPSID   string        `json:"rps_id"`
		IsValid bool          `json:"is_valid"`
		Errors  []WeightError `json:"errors"`
	}

	ScoreFailure struct {
		Item  NewScore `json:"item"`
		Error string   `json:"error"`
	}

	// ScoreReport is the outcome of a bulk score input.
	ScoreReport struct {
		Success []Score        `json:"success"`
		Failed  []ScoreFailure `json:"failed"`
	}
)
