package rps

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/obeworks/kurikulum/core"
)

// audited tables
const (
	tableRPS       = "rps"
	tableVersions  = "rps_versions"
	tableApprovals = "rps_approvals"
)

type (
	Repository interface {
		CreateRPS(ctx context.Context, r RPS, exec ...core.DBExecutor) error
		// GetRPS returns a *core.NotFoundError if the RPS does not exist.
		GetRPS(ctx context.Context, id string, exec ...core.DBExecutor) (RPS, error)
		QueryRPS(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]RPS, error)
		UpdateRPS(ctx context.Context, r RPS, exec ...core.DBExecutor) error
		UpdateRPSStatus(ctx context.Context, id string, status Status, updatedBy string, at time.Time, exec ...core.DBExecutor) error
		// QueryActiveRPS lists active RPS of a course in a curriculum.
		QueryActiveRPS(ctx context.Context, courseCode, curriculumID string, exec ...core.DBExecutor) ([]RPS, error)
		DeleteRPS(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateVersion(ctx context.Context, v Version, exec ...core.DBExecutor) error
		GetVersion(ctx context.Context, rpsID string, number int, exec ...core.DBExecutor) (Version, error)
		GetActiveVersion(ctx context.Context, rpsID string, exec ...core.DBExecutor) (Version, error)
		QueryVersions(ctx context.Context, rpsID string, exec ...core.DBExecutor) ([]Version, error)
		MaxVersion(ctx context.Context, rpsID string, exec ...core.DBExecutor) (int, error)
		// SetActiveVersion marks version number as the only active version of the RPS.
		SetActiveVersion(ctx context.Context, rpsID string, number int, exec ...core.DBExecutor) error
		DeleteVersions(ctx context.Context, rpsID string, exec ...core.DBExecutor) error

		CreateApprovals(ctx context.Context, approvals []Approval, exec ...core.DBExecutor) error
		GetApproval(ctx context.Context, id string, exec ...core.DBExecutor) (Approval, error)
		// QueryApprovals lists approvals ordered by cycle then level; cycle 0 lists every cycle.
		QueryApprovals(ctx context.Context, rpsID string, cycle int, exec ...core.DBExecutor) ([]Approval, error)
		MaxApprovalCycle(ctx context.Context, rpsID string, exec ...core.DBExecutor) (int, error)
		UpdateApproval(ctx context.Context, a Approval, exec ...core.DBExecutor) error
		DeleteApprovals(ctx context.Context, rpsID string, exec ...core.DBExecutor) error
	}

	Deps struct {
		DB        core.DB
		Repo      Repository
		Validator *core.Validator
		Audit     core.AuditSink
		Now       func() time.Time // defaults to time.Now
	}

	Service struct {
		db       core.DB
		repo     Repository
		validate *core.Validator
		audit    core.AuditSink
		now      func() time.Time
	}
)

func NewService(deps Deps) *Service {
	svc := &Service{
		db:       deps.DB,
		repo:     deps.Repo,
		validate: deps.Validator,
		audit:    deps.Audit,
		now:      deps.Now,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.audit == nil {
		svc.audit = core.NewNopAuditSink()
	}
	return svc
}

// Repo exposes the repository to the orchestration layer (ordered cascades).
func (svc *Service) Repo() Repository {
	return svc.repo
}

func (svc *Service) timestamp() time.Time {
	return svc.now().UTC()
}

func (svc *Service) newVersion(r RPS, number int, active bool, actorID string, at time.Time) (Version, error) {
	snap, err := json.Marshal(r.snapshot())
	if err != nil {
		return Version{}, errors.Wrap(err, "encoding rps snapshot")
	}
	return Version{
		ID:        uuid.New().String(),
		RPSID:     r.ID,
		Number:    number,
		Status:    r.Status,
		Snapshot:  snap,
		CreatedBy: actorID,
		IsActive:  active,
		CreatedAt: at,
	}, nil
}

// Create starts a new RPS in draft with version 1 as the active snapshot.
func (svc *Service) Create(ctx context.Context, nr NewRPS, actorID string) (RPS, error) {
	nr.clean()
	if err := svc.validate.Struct(nr); err != nil {
		return RPS{}, err
	}

	now := svc.timestamp()
	r := RPS{
		ID:              uuid.New().String(),
		CourseCode:      nr.CourseCode,
		CurriculumID:    nr.CurriculumID,
		Term:            nr.Term,
		AcademicYear:    nr.AcademicYear,
		Status:          StatusDraft,
		LeadDeveloperID: nr.LeadDeveloperID,
		Content:         nr.Content,
		CreatedBy:       actorID,
		UpdatedBy:       actorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	v, err := svc.newVersion(r, 1, true, actorID, now)
	if err != nil {
		return RPS{}, err
	}

	err = core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.repo.CreateRPS(ctx, r, tx); err != nil {
			return err
		}
		return svc.repo.CreateVersion(ctx, v, tx)
	})
	if err != nil {
		return RPS{}, err
	}

	svc.audit.Record(ctx,
		core.AuditEntry{Table: tableRPS, RecordID: r.ID, Action: core.ActionCreate, NewValue: r, ActorID: actorID, At: now},
		core.AuditEntry{Table: tableVersions, RecordID: v.ID, Action: core.ActionCreate, NewValue: v, ActorID: actorID, At: now},
	)
	return r, nil
}

func (svc *Service) Get(ctx context.Context, id string) (RPS, error) {
	return svc.repo.GetRPS(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]RPS, error) {
	return svc.repo.QueryRPS(ctx, filter)
}

// Update edits the RPS content and appends a new, inactive version snapshot.
func (svc *Service) Update(ctx context.Context, id string, ur UpdateRPS, actorID string) (RPS, Version, error) {
	if ur.Term != nil {
		term := core.CleanString(*ur.Term, true /* lower */)
		ur.Term = &term
	}
	if err := svc.validate.Struct(ur); err != nil {
		return RPS{}, Version{}, err
	}

	var (
		old, r RPS
		v      Version
	)
	now := svc.timestamp()
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if old, err = svc.repo.GetRPS(ctx, id, tx); err != nil {
			return err
		}
		if _, err = Transition(old.Status, ActionUpdate); err != nil {
			return err
		}

		r = old
		if ur.Term != nil {
			r.Term = *ur.Term
		}
		if ur.AcademicYear != nil {
			r.AcademicYear = core.CleanString(*ur.AcademicYear)
		}
		if ur.LeadDeveloperID != nil {
			r.LeadDeveloperID = core.CleanString(*ur.LeadDeveloperID)
		}
		if ur.Content != nil {
			r.Content = *ur.Content
		}
		r.UpdatedBy = actorID
		r.UpdatedAt = now
		if err = svc.repo.UpdateRPS(ctx, r, tx); err != nil {
			return err
		}

		last, err := svc.repo.MaxVersion(ctx, id, tx)
		if err != nil {
			return err
		}
		if v, err = svc.newVersion(r, last+1, false, actorID, now); err != nil {
			return err
		}
		return svc.repo.CreateVersion(ctx, v, tx)
	})
	if err != nil {
		return RPS{}, Version{}, err
	}

	svc.audit.Record(ctx,
		core.AuditEntry{Table: tableRPS, RecordID: r.ID, Action: core.ActionUpdate, OldValue: old, NewValue: r, ActorID: actorID, At: now},
		core.AuditEntry{Table: tableVersions, RecordID: v.ID, Action: core.ActionCreate, NewValue: v, ActorID: actorID, At: now},
	)
	return r, v, nil
}

// SubmitForApproval opens a new approval cycle with one pending row per level and
// moves the RPS to submitted, all in one transaction.
func (svc *Service) SubmitForApproval(ctx context.Context, id string, approvers Approvers, actorID string) (RPS, []Approval, error) {
	approvers.Level1 = core.CleanString(approvers.Level1)
	approvers.Level2 = core.CleanString(approvers.Level2)
	approvers.Level3 = core.CleanString(approvers.Level3)
	if err := svc.validate.Struct(approvers); err != nil {
		return RPS{}, nil, err
	}

	var (
		old, r    RPS
		approvals []Approval
	)
	now := svc.timestamp()
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if old, err = svc.repo.GetRPS(ctx, id, tx); err != nil {
			return err
		}
		next, err := Transition(old.Status, ActionSubmit)
		if err != nil {
			return err
		}

		cycle, err := svc.repo.MaxApprovalCycle(ctx, id, tx)
		if err != nil {
			return err
		}
		cycle++
		approvals = make([]Approval, 0, ApprovalLevels)
		for i, approverID := range approvers.byLevel() {
			approvals = append(approvals, Approval{
				ID:         uuid.New().String(),
				RPSID:      id,
				Cycle:      cycle,
				ApproverID: approverID,
				Level:      i + 1,
				Status:     ApprovalPending,
				CreatedAt:  now,
			})
		}
		if err = svc.repo.CreateApprovals(ctx, approvals, tx); err != nil {
			return err
		}
		if err = svc.repo.UpdateRPSStatus(ctx, id, next, actorID, now, tx); err != nil {
			return err
		}

		r = old
		r.Status = next
		r.UpdatedBy = actorID
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return RPS{}, nil, err
	}

	entries := []core.AuditEntry{
		{Table: tableRPS, RecordID: id, Action: string(ActionSubmit), OldValue: old.Status, NewValue: r.Status, ActorID: actorID, At: now},
	}
	for _, a := range approvals {
		entries = append(entries, core.AuditEntry{Table: tableApprovals, RecordID: a.ID, Action: core.ActionCreate, NewValue: a, ActorID: actorID, At: now})
	}
	svc.audit.Record(ctx, entries...)
	return r, approvals, nil
}

// ProcessApproval applies a reviewer decision to a pending approval row.
// A rejection or revision request sends the RPS back to revised and invalidates the
// other pending rows of the cycle; the RPS is approved once every level has approved.
func (svc *Service) ProcessApproval(ctx context.Context, approvalID string, ad ApprovalDecision, actorID string) (DecisionResult, error) {
	ad.Comment = core.CleanString(ad.Comment)
	if err := svc.validate.Struct(ad); err != nil {
		return DecisionResult{}, err
	}

	var (
		res DecisionResult
		old Approval
	)
	now := svc.timestamp()
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if old, err = svc.repo.GetApproval(ctx, approvalID, tx); err != nil {
			return err
		}
		if old.Status != ApprovalPending {
			return core.NewTransitionError("rps approval", string(old.Status), "decide")
		}
		r, err := svc.repo.GetRPS(ctx, old.RPSID, tx)
		if err != nil {
			return err
		}
		res.PreviousStatus = r.Status

		a := old
		a.Status = ApprovalStatus(ad.Decision)
		a.Comment = ad.Comment
		a.DecidedAt = null.TimeFrom(now)

		var next Status
		switch ad.Decision {
		case DecisionRejected, DecisionRevised:
			if next, err = Transition(r.Status, ActionRevise); err != nil {
				return err
			}
		default:
			if _, err = Transition(r.Status, ActionApprove); err != nil {
				return err
			}
			next = r.Status
		}
		if err = svc.repo.UpdateApproval(ctx, a, tx); err != nil {
			return err
		}

		cycle, err := svc.repo.QueryApprovals(ctx, r.ID, a.Cycle, tx)
		if err != nil {
			return err
		}
		if ad.Decision == DecisionApproved {
			if allApproved(cycle) {
				next = StatusApproved
			}
		} else {
			for _, other := range cycle {
				if other.ID == a.ID || other.Status != ApprovalPending {
					continue
				}
				other.Status = ApprovalRevised
				other.DecidedAt = null.TimeFrom(now)
				if err = svc.repo.UpdateApproval(ctx, other, tx); err != nil {
					return err
				}
				res.Revised = append(res.Revised, other)
			}
		}

		if next != r.Status {
			if err = svc.repo.UpdateRPSStatus(ctx, r.ID, next, actorID, now, tx); err != nil {
				return err
			}
			r.Status = next
			r.UpdatedBy = actorID
			r.UpdatedAt = now
		}
		res.RPS = r
		res.Approval = a
		return nil
	})
	if err != nil {
		return DecisionResult{}, err
	}

	entries := []core.AuditEntry{
		{Table: tableApprovals, RecordID: res.Approval.ID, Action: string(ad.Decision), OldValue: old, NewValue: res.Approval, ActorID: actorID, At: now},
	}
	for _, a := range res.Revised {
		entries = append(entries, core.AuditEntry{Table: tableApprovals, RecordID: a.ID, Action: string(ActionRevise), OldValue: ApprovalPending, NewValue: a.Status, ActorID: actorID, At: now})
	}
	if res.StatusChanged() {
		entries = append(entries, core.AuditEntry{Table: tableRPS, RecordID: res.RPS.ID, Action: core.ActionUpdate, OldValue: res.PreviousStatus, NewValue: res.RPS.Status, ActorID: actorID, At: now})
	}
	svc.audit.Record(ctx, entries...)
	return res, nil
}

func allApproved(approvals []Approval) bool {
	if len(approvals) != ApprovalLevels {
		return false
	}
	for _, a := range approvals {
		if a.Status != ApprovalApproved {
			return false
		}
	}
	return true
}

// Activate makes an approved RPS the active plan of its course, archiving the
// previously active RPS of the same course and curriculum.
func (svc *Service) Activate(ctx context.Context, id string, actorID string) (RPS, []RPS, error) {
	var (
		r        RPS
		prev     Status
		archived []RPS
	)
	now := svc.timestamp()
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if r, err = svc.repo.GetRPS(ctx, id, tx); err != nil {
			return err
		}
		next, err := Transition(r.Status, ActionActivate)
		if err != nil {
			return err
		}

		actives, err := svc.repo.QueryActiveRPS(ctx, r.CourseCode, r.CurriculumID, tx)
		if err != nil {
			return err
		}
		for _, other := range actives {
			if other.ID == r.ID {
				continue
			}
			if err = svc.repo.UpdateRPSStatus(ctx, other.ID, StatusArchived, actorID, now, tx); err != nil {
				return err
			}
			other.Status = StatusArchived
			archived = append(archived, other)
		}

		if err = svc.repo.UpdateRPSStatus(ctx, r.ID, next, actorID, now, tx); err != nil {
			return err
		}
		prev = r.Status
		r.Status = next
		r.UpdatedBy = actorID
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return RPS{}, nil, err
	}

	entries := []core.AuditEntry{
		{Table: tableRPS, RecordID: r.ID, Action: string(ActionActivate), OldValue: prev, NewValue: r.Status, ActorID: actorID, At: now},
	}
	for _, other := range archived {
		entries = append(entries, core.AuditEntry{Table: tableRPS, RecordID: other.ID, Action: string(ActionArchive), OldValue: StatusActive, NewValue: StatusArchived, ActorID: actorID, At: now})
	}
	svc.audit.Record(ctx, entries...)
	return r, archived, nil
}

// Archive retires an RPS from any status but archived. Other RPS are not touched.
func (svc *Service) Archive(ctx context.Context, id string, actorID string) (RPS, error) {
	var (
		r    RPS
		prev Status
	)
	now := svc.timestamp()
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if r, err = svc.repo.GetRPS(ctx, id, tx); err != nil {
			return err
		}
		next, err := Transition(r.Status, ActionArchive)
		if err != nil {
			return err
		}
		if err = svc.repo.UpdateRPSStatus(ctx, id, next, actorID, now, tx); err != nil {
			return err
		}
		prev = r.Status
		r.Status = next
		r.UpdatedBy = actorID
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return RPS{}, err
	}

	svc.audit.Record(ctx, core.AuditEntry{Table: tableRPS, RecordID: id, Action: string(ActionArchive), OldValue: prev, NewValue: r.Status, ActorID: actorID, At: now})
	return r, nil
}

// SetActiveVersion marks one version as active. The RPS status is left untouched.
func (svc *Service) SetActiveVersion(ctx context.Context, id string, number int, actorID string) (Version, error) {
	var prev, v Version
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if _, err = svc.repo.GetRPS(ctx, id, tx); err != nil {
			return err
		}
		if v, err = svc.repo.GetVersion(ctx, id, number, tx); err != nil {
			return err
		}
		if prev, err = svc.repo.GetActiveVersion(ctx, id, tx); err != nil && !core.IsNotFound(err) {
			return err
		}
		if err = svc.repo.SetActiveVersion(ctx, id, number, tx); err != nil {
			return err
		}
		v.IsActive = true
		return nil
	})
	if err != nil {
		return Version{}, err
	}

	svc.audit.Record(ctx, core.AuditEntry{Table: tableVersions, RecordID: v.ID, Action: "activate", OldValue: prev.Number, NewValue: v.Number, ActorID: actorID, At: svc.timestamp()})
	return v, nil
}

func (svc *Service) ActiveVersion(ctx context.Context, id string) (Version, error) {
	if _, err := svc.repo.GetRPS(ctx, id); err != nil {
		return Version{}, err
	}
	return svc.repo.GetActiveVersion(ctx, id)
}

func (svc *Service) Versions(ctx context.Context, id string) ([]Version, error) {
	if _, err := svc.repo.GetRPS(ctx, id); err != nil {
		return nil, err
	}
	return svc.repo.QueryVersions(ctx, id)
}

// Approvals lists every approval row of the RPS, oldest cycle first.
func (svc *Service) Approvals(ctx context.Context, id string) ([]Approval, error) {
	if _, err := svc.repo.GetRPS(ctx, id); err != nil {
		return nil, err
	}
	return svc.repo.QueryApprovals(ctx, id, 0)
}
