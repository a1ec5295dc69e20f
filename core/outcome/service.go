package outcome

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/obeworks/kurikulum/core"
)

const (
	DefaultMinCPMK = 3
	DefaultMaxCPMK = 12

	tableCPL     = "cpl"
	tableCPMK    = "cpmk"
	tableSubCPMK = "sub_cpmk"
	tableMapping = "cpmk_cpl"
)

var (
	// errors
	ErrTooManyCPMK        = errors.New("rps already has the maximum number of cpmk")
	ErrTooFewCPMK         = errors.New("rps already has the minimum number of cpmk")
	ErrCPLCodeExists      = errors.New("a cpl with this code already exists in the curriculum")
	ErrCPMKCodeExists     = errors.New("a cpmk with this code already exists in the rps")
	ErrSubCPMKCodeExists  = errors.New("a sub-cpmk with this code already exists in the cpmk")
	ErrMappingExists      = errors.New("the cpmk is already mapped to this cpl")
	ErrCurriculumMismatch = errors.New("cpmk and cpl belong to different curricula")
)

type (
	Repository interface {
		CreateCPL(ctx context.Context, cpl CPL, exec ...core.DBExecutor) error
		GetCPL(ctx context.Context, id string, exec ...core.DBExecutor) (CPL, error)
		QueryCPL(ctx context.Context, filter CPLQueryFilter, exec ...core.DBExecutor) ([]CPL, error)
		UpdateCPL(ctx context.Context, cpl CPL, exec ...core.DBExecutor) error
		DeleteCPL(ctx context.Context, id string, exec ...core.DBExecutor) error
		CPLCodeExists(ctx context.Context, curriculumID, code, excludeID string, exec ...core.DBExecutor) (bool, error)

		// RPSCurriculum returns the curriculum of an RPS, or a *core.NotFoundError.
		RPSCurriculum(ctx context.Context, rpsID string, exec ...core.DBExecutor) (string, error)
		CreateCPMK(ctx context.Context, cpmk CPMK, exec ...core.DBExecutor) error
		GetCPMK(ctx context.Context, id string, exec ...core.DBExecutor) (CPMK, error)
		QueryCPMK(ctx context.Context, rpsID string, exec ...core.DBExecutor) ([]CPMK, error)
		UpdateCPMK(ctx context.Context, cpmk CPMK, exec ...core.DBExecutor) error
		DeleteCPMK(ctx context.Context, id string, exec ...core.DBExecutor) error
		CountCPMK(ctx context.Context, rpsID string, exec ...core.DBExecutor) (int, error)
		CPMKCodeExists(ctx context.Context, rpsID, code, excludeID string, exec ...core.DBExecutor) (bool, error)

		CreateSubCPMK(ctx context.Context, sub SubCPMK, exec ...core.DBExecutor) error
		GetSubCPMK(ctx context.Context, id string, exec ...core.DBExecutor) (SubCPMK, error)
		QuerySubCPMK(ctx context.Context, cpmkID string, exec ...core.DBExecutor) ([]SubCPMK, error)
		SubCPMKCodeExists(ctx context.Context, cpmkID, code string, exec ...core.DBExecutor) (bool, error)
		DeleteSubCPMK(ctx context.Context, id string, exec ...core.DBExecutor) error
		DeleteSubCPMKByCPMK(ctx context.Context, cpmkID string, exec ...core.DBExecutor) error

		CreateMapping(ctx context.Context, m Mapping, exec ...core.DBExecutor) error
		GetMapping(ctx context.Context, id string, exec ...core.DBExecutor) (Mapping, error)
		MappingExists(ctx context.Context, cpmkID, cplID string, exec ...core.DBExecutor) (bool, error)
		QueryMappingsByCPMK(ctx context.Context, cpmkID string, exec ...core.DBExecutor) ([]Mapping, error)
		QueryMappingsByCPL(ctx context.Context, cplID string, exec ...core.DBExecutor) ([]Mapping, error)
		UpdateMapping(ctx context.Context, m Mapping, exec ...core.DBExecutor) error
		DeleteMapping(ctx context.Context, id string, exec ...core.DBExecutor) error
		DeleteMappingsByCPMK(ctx context.Context, cpmkID string, exec ...core.DBExecutor) error
		DeleteMappingsByCPL(ctx context.Context, cplID string, exec ...core.DBExecutor) error

		// DeleteTemplatesByCPMK removes the assessment templates of a CPMK and detaches
		// the class components instantiated from them.
		DeleteTemplatesByCPMK(ctx context.Context, cpmkID string, exec ...core.DBExecutor) error
	}

	Deps struct {
		DB        core.DB
		Repo      Repository
		Validator *core.Validator
		Audit     core.AuditSink
		MinCPMK   int // defaults to DefaultMinCPMK
		MaxCPMK   int // defaults to DefaultMaxCPMK
		Now       func() time.Time
	}

	Service struct {
		db       core.DB
		repo     Repository
		validate *core.Validator
		audit    core.AuditSink
		minCPMK  int
		maxCPMK  int
		now      func() time.Time
	}
)

func NewService(deps Deps) *Service {
	svc := &Service{
		db:       deps.DB,
		repo:     deps.Repo,
		validate: deps.Validator,
		audit:    deps.Audit,
		minCPMK:  deps.MinCPMK,
		maxCPMK:  deps.MaxCPMK,
		now:      deps.Now,
	}
	if svc.minCPMK <= 0 {
		svc.minCPMK = DefaultMinCPMK
	}
	if svc.maxCPMK <= 0 {
		svc.maxCPMK = DefaultMaxCPMK
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.audit == nil {
		svc.audit = core.NewNopAuditSink()
	}
	return svc
}

func (svc *Service) Repo() Repository {
	return svc.repo
}

func (svc *Service) timestamp() time.Time {
	return svc.now().UTC()
}

func (svc *Service) record(ctx context.Context, table, id, action string, oldValue, newValue interface{}, actorID string) {
	svc.audit.Record(ctx, core.AuditEntry{Table: table, RecordID: id, Action: action, OldValue: oldValue, NewValue: newValue, ActorID: actorID, At: svc.timestamp()})
}

// CPL

func (svc *Service) CreateCPL(ctx context.Context, n NewCPL, actorID string) (CPL, error) {
	n.clean()
	if err := svc.validate.Struct(n); err != nil {
		return CPL{}, err
	}

	exists, err := svc.repo.CPLCodeExists(ctx, n.CurriculumID, n.Code, "")
	if err != nil {
		return CPL{}, err
	}
	if exists {
		return CPL{}, core.NewConflictError(ErrCPLCodeExists, "code")
	}

	now := svc.timestamp()
	cpl := CPL{
		ID:           uuid.New().String(),
		CurriculumID: n.CurriculumID,
		Code:         n.Code,
		Description:  n.Description,
		Category:     n.Category,
		Order:        n.Order,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = svc.repo.CreateCPL(ctx, cpl); err != nil {
		return CPL{}, err
	}
	svc.record(ctx, tableCPL, cpl.ID, core.ActionCreate, nil, cpl, actorID)
	return cpl, nil
}

// BulkCreateCPL creates each CPL on its own; failures are collected instead of aborting the batch.
func (svc *Service) BulkCreateCPL(ctx context.Context, items []NewCPL, actorID string) CPLReport {
	report := CPLReport{Success: make([]CPL, 0, len(items)), Failed: make([]CPLFailure, 0)}
	for _, item := range items {
		cpl, err := svc.CreateCPL(ctx, item, actorID)
		if err != nil {
			report.Failed = append(report.Failed, CPLFailure{Item: item, Error: err.Error()})
			continue
		}
		report.Success = append(report.Success, cpl)
	}
	return report
}

func (svc *Service) GetCPL(ctx context.Context, id string) (CPL, error) {
	return svc.repo.GetCPL(ctx, id)
}

func (svc *Service) QueryCPL(ctx context.Context, filter CPLQueryFilter) ([]CPL, error) {
	return svc.repo.QueryCPL(ctx, filter)
}

func (svc *Service) UpdateCPL(ctx context.Context, id string, u UpdateCPL, actorID string) (CPL, error) {
	if u.Code != nil {
		code := core.CleanCode(*u.Code)
		u.Code = &code
	}
	if u.Category != nil {
		if c, err := ParseCategory(string(*u.Category)); err == nil {
			u.Category = &c
		}
	}
	if err := svc.validate.Struct(u); err != nil {
		return CPL{}, err
	}

	var old, cpl CPL
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if old, err = svc.repo.GetCPL(ctx, id, tx); err != nil {
			return err
		}
		cpl = old
		if u.Code != nil && *u.Code != old.Code {
			exists, err := svc.repo.CPLCodeExists(ctx, old.CurriculumID, *u.Code, id, tx)
			if err != nil {
				return err
			}
			if exists {
				return core.NewConflictError(ErrCPLCodeExists, "code")
			}
			cpl.Code = *u.Code
		}
		if u.Description != nil {
			cpl.Description = core.CleanString(*u.Description)
		}
		if u.Category != nil {
			cpl.Category = *u.Category
		}
		if u.Order != nil {
			cpl.Order = *u.Order
		}
		if u.IsActive != nil {
			cpl.IsActive = *u.IsActive
		}
		cpl.UpdatedAt = svc.timestamp()
		return svc.repo.UpdateCPL(ctx, cpl, tx)
	})
	if err != nil {
		return CPL{}, err
	}
	svc.record(ctx, tableCPL, id, core.ActionUpdate, old, cpl, actorID)
	return cpl, nil
}

// DeleteCPL removes a CPL together with the CPMK mappings pointing at it.
func (svc *Service) DeleteCPL(ctx context.Context, id string, actorID string) error {
	var old CPL
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if old, err = svc.repo.GetCPL(ctx, id, tx); err != nil {
			return err
		}
		if err = svc.repo.DeleteMappingsByCPL(ctx, id, tx); err != nil {
			return err
		}
		return svc.repo.DeleteCPL(ctx, id, tx)
	})
	if err != nil {
		return err
	}
	svc.record(ctx, tableCPL, id, core.ActionDelete, old, nil, actorID)
	return nil
}

// CPMK

// CreateCPMK adds a CPMK to an RPS, refusing to go over the maximum per RPS.
func (svc *Service) CreateCPMK(ctx context.Context, n NewCPMK, actorID string) (CPMK, error) {
	n.clean()
	if err := svc.validate.Struct(n); err != nil {
		return CPMK{}, err
	}

	now := svc.timestamp()
	cpmk := CPMK{
		ID:          uuid.New().String(),
		RPSID:       n.RPSID,
		Code:        n.Code,
		Description: n.Description,
		Order:       n.Order,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.repo.RPSCurriculum(ctx, n.RPSID, tx); err != nil {
			return err
		}
		count, err := svc.repo.CountCPMK(ctx, n.RPSID, tx)
		if err != nil {
			return err
		}
		if count >= svc.maxCPMK {
			return core.NewConflictError(errors.Wrapf(ErrTooManyCPMK, "%d/%d", count, svc.maxCPMK))
		}
		exists, err := svc.repo.CPMKCodeExists(ctx, n.RPSID, n.Code, "", tx)
		if err != nil {
			return err
		}
		if exists {
			return core.NewConflictError(ErrCPMKCodeExists, "code")
		}
		return svc.repo.CreateCPMK(ctx, cpmk, tx)
	})
	if err != nil {
		return CPMK{}, err
	}
	svc.record(ctx, tableCPMK, cpmk.ID, core.ActionCreate, nil, cpmk, actorID)
	return cpmk, nil
}

func (svc *Service) GetCPMK(ctx context.Context, id string) (CPMK, error) {
	return svc.repo.GetCPMK(ctx, id)
}

func (svc *Service) QueryCPMK(ctx context.Context, rpsID string) ([]CPMK, error) {
	if _, err := svc.repo.RPSCurriculum(ctx, rpsID); err != nil {
		return nil, err
	}
	return svc.repo.QueryCPMK(ctx, rpsID)
}

func (svc *Service) UpdateCPMK(ctx context.Context, id string, u UpdateCPMK, actorID string) (CPMK, error) {
	if u.Code != nil {
		code := core.CleanCode(*u.Code)
		u.Code = &code
	}
	if err := svc.validate.Struct(u); err != nil {
		return CPMK{}, err
	}

	var old, cpmk CPMK
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if old, err = svc.repo.GetCPMK(ctx, id, tx); err != nil {
			return err
		}
		cpmk = old
		if u.Code != nil && *u.Code != old.Code {
			exists, err := svc.repo.CPMKCodeExists(ctx, old.RPSID, *u.Code, id, tx)
			if err != nil {
				return err
			}
			if exists {
				return core.NewConflictError(ErrCPMKCodeExists, "code")
			}
			cpmk.Code = *u.Code
		}
		if u.Description != nil {
			cpmk.Description = core.CleanString(*u.Description)
		}
		if u.Order != nil {
			cpmk.Order = *u.Order
		}
		cpmk.UpdatedAt = svc.timestamp()
		return svc.repo.UpdateCPMK(ctx, cpmk, tx)
	})
	if err != nil {
		return CPMK{}, err
	}
	svc.record(ctx, tableCPMK, id, core.ActionUpdate, old, cpmk, actorID)
	return cpmk, nil
}

// DeleteCPMK removes a CPMK with its mappings, Sub-CPMK and templates, refusing to go
// under the minimum per RPS.
func (svc *Service) DeleteCPMK(ctx context.Context, id string, actorID string) error {
	var old CPMK
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if old, err = svc.repo.GetCPMK(ctx, id, tx); err != nil {
			return err
		}
		count, err := svc.repo.CountCPMK(ctx, old.RPSID, tx)
		if err != nil {
			return err
		}
		if count <= svc.minCPMK {
			return core.NewConflictError(errors.Wrapf(ErrTooFewCPMK, "%d/%d", count, svc.minCPMK))
		}

		if err = svc.repo.DeleteMappingsByCPMK(ctx, id, tx); err != nil {
			return err
		}
		if err = svc.repo.DeleteSubCPMKByCPMK(ctx, id, tx); err != nil {
			return err
		}
		if err = svc.repo.DeleteTemplatesByCPMK(ctx, id, tx); err != nil {
			return err
		}
		return svc.repo.DeleteCPMK(ctx, id, tx)
	})
	if err != nil {
		return err
	}
	svc.record(ctx, tableCPMK, id, core.ActionDelete, old, nil, actorID)
	return nil
}

// Sub-CPMK

func (svc *Service) CreateSubCPMK(ctx context.Context, n NewSubCPMK, actorID string) (SubCPMK, error) {
	n.clean()
	if err := svc.validate.Struct(n); err != nil {
		return SubCPMK{}, err
	}

	now := svc.timestamp()
	sub := SubCPMK{
		ID:          uuid.New().String(),
		CPMKID:      n.CPMKID,
		Code:        n.Code,
		Description: n.Description,
		Indicator:   n.Indicator,
		Order:       n.Order,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetCPMK(ctx, n.CPMKID, tx); err != nil {
			return err
		}
		exists, err := svc.repo.SubCPMKCodeExists(ctx, n.CPMKID, n.Code, tx)
		if err != nil {
			return err
		}
		if exists {
			return core.NewConflictError(ErrSubCPMKCodeExists, "code")
		}
		return svc.repo.CreateSubCPMK(ctx, sub, tx)
	})
	if err != nil {
		return SubCPMK{}, err
	}
	svc.record(ctx, tableSubCPMK, sub.ID, core.ActionCreate, nil, sub, actorID)
	return sub, nil
}

func (svc *Service) QuerySubCPMK(ctx context.Context, cpmkID string) ([]SubCPMK, error) {
	if _, err := svc.repo.GetCPMK(ctx, cpmkID); err != nil {
		return nil, err
	}
	return svc.repo.QuerySubCPMK(ctx, cpmkID)
}

func (svc *Service) DeleteSubCPMK(ctx context.Context, id string, actorID string) error {
	old, err := svc.repo.GetSubCPMK(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteSubCPMK(ctx, id); err != nil {
		return err
	}
	svc.record(ctx, tableSubCPMK, id, core.ActionDelete, old, nil, actorID)
	return nil
}

// Mappings

// CreateMapping links a CPMK to a CPL of the same curriculum.
func (svc *Service) CreateMapping(ctx context.Context, n NewMapping, actorID string) (Mapping, error) {
	n.CPMKID = core.CleanString(n.CPMKID)
	n.CPLID = core.CleanString(n.CPLID)
	if err := svc.validate.Struct(n); err != nil {
		return Mapping{}, err
	}

	now := svc.timestamp()
	m := Mapping{
		ID:        uuid.New().String(),
		CPMKID:    n.CPMKID,
		CPLID:     n.CPLID,
		Weight:    n.Weight,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		cpmk, err := svc.repo.GetCPMK(ctx, n.CPMKID, tx)
		if err != nil {
			return err
		}
		cpl, err := svc.repo.GetCPL(ctx, n.CPLID, tx)
		if err != nil {
			return err
		}
		curriculumID, err := svc.repo.RPSCurriculum(ctx, cpmk.RPSID, tx)
		if err != nil {
			return err
		}
		if curriculumID != cpl.CurriculumID {
			return core.NewConflictError(
				errors.Wrap(ErrCurriculumMismatch, fmt.Sprintf("cpmk %s in %s, cpl %s in %s", cpmk.Code, curriculumID, cpl.Code, cpl.CurriculumID)),
				"cpl_id",
			)
		}
		exists, err := svc.repo.MappingExists(ctx, n.CPMKID, n.CPLID, tx)
		if err != nil {
			return err
		}
		if exists {
			return core.NewConflictError(ErrMappingExists)
		}
		return svc.repo.CreateMapping(ctx, m, tx)
	})
	if err != nil {
		return Mapping{}, err
	}
	svc.record(ctx, tableMapping, m.ID, core.ActionCreate, nil, m, actorID)
	return m, nil
}

// UpdateMappingWeight changes the contribution weight of a mapping.
func (svc *Service) UpdateMappingWeight(ctx context.Context, id string, weight float64, actorID string) (Mapping, error) {
	if err := svc.validate.Validate.Var(weight, "gt=0,lte=100"); err != nil {
		return Mapping{}, core.NewFieldError("weight", "must be greater than 0 and at most 100")
	}

	var old, m Mapping
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if old, err = svc.repo.GetMapping(ctx, id, tx); err != nil {
			return err
		}
		m = old
		m.Weight = weight
		m.UpdatedAt = svc.timestamp()
		return svc.repo.UpdateMapping(ctx, m, tx)
	})
	if err != nil {
		return Mapping{}, err
	}
	svc.record(ctx, tableMapping, id, core.ActionUpdate, old, m, actorID)
	return m, nil
}

func (svc *Service) DeleteMapping(ctx context.Context, id string, actorID string) error {
	old, err := svc.repo.GetMapping(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteMapping(ctx, id); err != nil {
		return err
	}
	svc.record(ctx, tableMapping, id, core.ActionDelete, old, nil, actorID)
	return nil
}

func (svc *Service) MappingsByCPMK(ctx context.Context, cpmkID string) ([]Mapping, error) {
	if _, err := svc.repo.GetCPMK(ctx, cpmkID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMappingsByCPMK(ctx, cpmkID)
}

func (svc *Service) MappingsByCPL(ctx context.Context, cplID string) ([]Mapping, error) {
	if _, err := svc.repo.GetCPL(ctx, cplID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMappingsByCPL(ctx, cplID)
}
