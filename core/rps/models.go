package rps

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/datatypes"

	"github.com/obeworks/kurikulum/core"
)

// Status is the lifecycle status of an RPS.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusRevised   Status = "revised"
	StatusApproved  Status = "approved"
	StatusActive    Status = "active"
	StatusArchived  Status = "archived"
)

var allStatuses = []Status{StatusDraft, StatusSubmitted, StatusRevised, StatusApproved, StatusActive, StatusArchived}

func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func ParseStatus(s string) (Status, error) {
	st := Status(core.CleanString(s, true /* lower */))
	if !st.IsValid() {
		return "", core.NewFieldError("status", "invalid rps status "+s)
	}
	return st, nil
}

func (s Status) IsValid() bool {
	for _, st := range allStatuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }

// ApprovalStatus is the status of one approval row.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalRevised  ApprovalStatus = "revised"
)

// Decision is a reviewer verdict on a pending approval row.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionRevised  Decision = "revised"
)

func ParseDecision(s string) (Decision, error) {
	d := Decision(core.CleanString(s, true /* lower */))
	switch d {
	case DecisionApproved, DecisionRejected, DecisionRevised:
		return d, nil
	}
	return "", core.NewFieldError("decision", "invalid approval decision "+s)
}

// ApprovalLevels is the number of review levels of a submission.
const ApprovalLevels = 3

type (
	RPS struct {
		ID              string    `db:"id" json:"id"`
		CourseCode      string    `db:"course_code" json:"course_code"`
		CurriculumID    string    `db:"curriculum_id" json:"curriculum_id"`
		Term            string    `db:"term" json:"term"`
		AcademicYear    string    `db:"academic_year" json:"academic_year"`
		Status          Status    `db:"status" json:"status"`
		LeadDeveloperID string    `db:"lead_developer_id" json:"lead_developer_id"`
		Content         Content   `db:"content" json:"content"`
		CreatedBy       string    `db:"created_by" json:"created_by"`
		UpdatedBy       string    `db:"updated_by" json:"updated_by"`
		CreatedAt       time.Time `db:"created_at" json:"created_at"` // UTC
		UpdatedAt       time.Time `db:"updated_at" json:"updated_at"` // UTC
	}

	// Snapshot is the content of an RPS frozen into a Version.
	Snapshot struct {
		CourseCode      string  `json:"course_code"`
		CurriculumID    string  `json:"curriculum_id"`
		Term            string  `json:"term"`
		AcademicYear    string  `json:"academic_year"`
		Status          Status  `json:"status"`
		LeadDeveloperID string  `json:"lead_developer_id"`
		Content         Content `json:"content"`
	}

	Version struct {
		ID        string         `db:"id" json:"id"`
		RPSID     string         `db:"rps_id" json:"rps_id"`
		Number    int            `db:"version" json:"version"`
		Status    Status         `db:"status" json:"status"`
		Snapshot  datatypes.JSON `db:"snapshot" json:"snapshot"`
		CreatedBy string         `db:"created_by" json:"created_by"`
		IsActive  bool           `db:"is_active" json:"is_active"`
		CreatedAt time.Time      `db:"created_at" json:"created_at"` // UTC
	}

	Approval struct {
		ID         string         `db:"id" json:"id"`
		RPSID      string         `db:"rps_id" json:"rps_id"`
		Cycle      int            `db:"cycle" json:"cycle"`
		ApproverID string         `db:"approver_id" json:"approver_id"`
		Level      int            `db:"level" json:"level"`
		Status     ApprovalStatus `db:"status" json:"status"`
		Comment    string         `db:"comment" json:"comment"`
		DecidedAt  null.Time      `db:"decided_at" json:"decided_at"` // UTC
		CreatedAt  time.Time      `db:"created_at" json:"created_at"` // UTC
	}

	NewRPS struct {
		CourseCode      string  `json:"course_code" validate:"required,max=32"`
		CurriculumID    string  `json:"curriculum_id" validate:"required"`
		Term            string  `json:"term" validate:"required,rps_term"`
		AcademicYear    string  `json:"academic_year" validate:"required,academic_year"`
		LeadDeveloperID string  `json:"lead_developer_id" validate:"required"`
		Content         Content `json:"content"`
	}

	UpdateRPS struct {
		Term            *string  `json:"term" validate:"omitempty,rps_term"`
		AcademicYear    *string  `json:"academic_year" validate:"omitempty,academic_year"`
		LeadDeveloperID *string  `json:"lead_developer_id" validate:"omitempty,min=1"`
		Content         *Content `json:"content"`
	}

	// Approvers lists the reviewer of each approval level.
	Approvers struct {
		Level1 string `json:"level_1" validate:"required"`
		Level2 string `json:"level_2" validate:"required"`
		Level3 string `json:"level_3" validate:"required"`
	}

	ApprovalDecision struct {
		Decision Decision `json:"decision" validate:"required,approval_decision"`
		Comment  string   `json:"comment" validate:"max=2000"`
	}

	QueryFilter struct {
		CourseCode   string
		CurriculumID string
		Statuses     []Status
	}

	// DecisionResult describes what a processed approval decision changed.
	DecisionResult struct {
		RPS            RPS
		Approval       Approval
		PreviousStatus Status
		Revised        []Approval // pending rows invalidated by a rejection
	}
)

func (r RPS) snapshot() Snapshot {
	return Snapshot{
		CourseCode:      r.CourseCode,
		CurriculumID:    r.CurriculumID,
		Term:            r.Term,
		AcademicYear:    r.AcademicYear,
		Status:          r.Status,
		LeadDeveloperID: r.LeadDeveloperID,
		Content:         r.Content,
	}
}

func (a Approvers) byLevel() []string {
	return []string{a.Level1, a.Level2, a.Level3}
}

// StatusChanged reports whether the decision moved the RPS to a new status.
func (res DecisionResult) StatusChanged() bool {
	return res.RPS.Status != res.PreviousStatus
}

// Decode unmarshals the frozen snapshot of the version.
func (v Version) Decode() (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(v.Snapshot, &snap); err != nil {
		return Snapshot{}, errors.Wrap(err, "decoding rps snapshot")
	}
	return snap, nil
}

func (nr *NewRPS) clean() {
	nr.CourseCode = core.CleanCode(nr.CourseCode)
	nr.CurriculumID = core.CleanString(nr.CurriculumID)
	nr.Term = core.CleanString(nr.Term, true /* lower */)
	nr.AcademicYear = core.CleanString(nr.AcademicYear)
	nr.LeadDeveloperID = core.CleanString(nr.LeadDeveloperID)
}

// DecodeNewRPS reads a NewRPS document; unknown fields are rejected.
func DecodeNewRPS(r io.Reader) (NewRPS, error) {
	var nr NewRPS
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&nr); err != nil {
		return NewRPS{}, core.NewValidationError(errors.Wrap(err, "decoding rps"), core.FieldError{Field: "rps", Error: err.Error()})
	}
	return nr, nil
}

// DecodeUpdateRPS reads an UpdateRPS document; unknown fields are rejected.
func DecodeUpdateRPS(r io.Reader) (UpdateRPS, error) {
	var ur UpdateRPS
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ur); err != nil {
		return UpdateRPS{}, core.NewValidationError(errors.Wrap(err, "decoding rps update"), core.FieldError{Field: "rps", Error: err.Error()})
	}
	return ur, nil
}

func trimAll(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
