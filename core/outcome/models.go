package outcome

import (
	"time"

	"github.com/obeworks/kurikulum/core"
)

// Category classifies a CPL.
type Category string

const (
	CategoryAttitude      Category = "attitude"
	CategoryKnowledge     Category = "knowledge"
	CategoryGeneralSkill  Category = "general_skill"
	CategorySpecificSkill Category = "specific_skill"
)

var categoryAliases = map[string]Category{
	"attitude":            CategoryAttitude,
	"sikap":               CategoryAttitude,
	"knowledge":           CategoryKnowledge,
	"pengetahuan":         CategoryKnowledge,
	"general_skill":       CategoryGeneralSkill,
	"general-skill":       CategoryGeneralSkill,
	"keterampilan_umum":   CategoryGeneralSkill,
	"specific_skill":      CategorySpecificSkill,
	"specific-skill":      CategorySpecificSkill,
	"keterampilan_khusus": CategorySpecificSkill,
}

// ParseCategory accepts the english names and their Indonesian equivalents (sikap, pengetahuan, ...).
func ParseCategory(s string) (Category, error) {
	if c, ok := categoryAliases[core.CleanString(s, true /* lower */)]; ok {
		return c, nil
	}
	return "", core.NewFieldError("category", "invalid cpl category "+s)
}

func (c Category) IsValid() bool {
	switch c {
	case CategoryAttitude, CategoryKnowledge, CategoryGeneralSkill, CategorySpecificSkill:
		return true
	}
	return false
}

type (
	// CPL is a graduate learning outcome of a curriculum.
	CPL struct {
		ID           string    `db:"id" json:"id"`
		CurriculumID string    `db:"curriculum_id" json:"curriculum_id"`
		Code         string    `db:"code" json:"code"`
		Description  string    `db:"description" json:"description"`
		Category     Category  `db:"category" json:"category"`
		Order        int       `db:"ord" json:"order"`
		IsActive     bool      `db:"is_active" json:"is_active"`
		CreatedAt    time.Time `db:"created_at" json:"created_at"` // UTC
		UpdatedAt    time.Time `db:"updated_at" json:"updated_at"` // UTC
	}

	// CPMK is a course learning outcome owned by an RPS.
	CPMK struct {
		ID          string    `db:"id" json:"id"`
		RPSID       string    `db:"rps_id" json:"rps_id"`
		Code        string    `db:"code" json:"code"`
		Description string    `db:"description" json:"description"`
		Order       int       `db:"ord" json:"order"`
		CreatedAt   time.Time `db:"created_at" json:"created_at"` // UTC
		UpdatedAt   time.Time `db:"updated_at" json:"updated_at"` // UTC
	}

	SubCPMK struct {
		ID          string    `db:"id" json:"id"`
		CPMKID      string    `db:"cpmk_id" json:"cpmk_id"`
		Code        string    `db:"code" json:"code"`
		Description string    `db:"description" json:"description"`
		Indicator   string    `db:"indicator" json:"indicator"`
		Order       int       `db:"ord" json:"order"`
		CreatedAt   time.Time `db:"created_at" json:"created_at"` // UTC
		UpdatedAt   time.Time `db:"updated_at" json:"updated_at"` // UTC
	}

	// Mapping is the contribution of a CPMK to a CPL.
	Mapping struct {
		ID        string    `db:"id" json:"id"`
		CPMKID    string    `db:"cpmk_id" json:"cpmk_id"`
		CPLID     string    `db:"cpl_id" json:"cpl_id"`
		Weight    float64   `db:"weight" json:"weight"`
		CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
		UpdatedAt time.Time `db:"updated_at" json:"updated_at"` // UTC
	}

	NewCPL struct {
		CurriculumID string   `json:"curriculum_id" yaml:"curriculum_id" validate:"required"`
		Code         string   `json:"code" yaml:"code" validate:"required,max=32,outcome_code"`
		Description  string   `json:"description" yaml:"description" validate:"required,max=2000"`
		Category     Category `json:"category" yaml:"category" validate:"required,cpl_category"`
		Order        int      `json:"order" yaml:"order" validate:"gte=0"`
	}

	UpdateCPL struct {
		Code        *string   `json:"code" validate:"omitempty,max=32,outcome_code"`
		Description *string   `json:"description" validate:"omitempty,min=1,max=2000"`
		Category    *Category `json:"category" validate:"omitempty,cpl_category"`
		Order       *int      `json:"order" validate:"omitempty,gte=0"`
		IsActive    *bool     `json:"is_active"`
	}

	NewCPMK struct {
		RPSID       string `json:"rps_id" validate:"required"`
		Code        string `json:"code" validate:"required,max=32,outcome_code"`
		Description string `json:"description" validate:"required,max=2000"`
		Order       int    `json:"order" validate:"gte=0"`
	}

	UpdateCPMK struct {
		Code        *string `json:"code" validate:"omitempty,max=32,outcome_code"`
		Description *string `json:"description" validate:"omitempty,min=1,max=2000"`
		Order       *int    `json:"order" validate:"omitempty,gte=0"`
	}

	NewSubCPMK struct {
		CPMKID      string `json:"cpmk_id" validate:"required"`
		Code        string `json:"code" validate:"required,max=32,outcome_code"`
		Description string `json:"description" validate:"required,max=2000"`
		Indicator   string `json:"indicator" validate:"max=2000"`
		Order       int    `json:"order" validate:"gte=0"`
	}

	NewMapping struct {
		CPMKID string  `json:"cpmk_id" validate:"required"`
		CPLID  string  `json:"cpl_id" validate:"required"`
		Weight float64 `json:"weight" validate:"gt=0,lte=100"`
	}

	CPLQueryFilter struct {
		CurriculumID string
		Category     Category
		ActiveOnly   bool
	}

	CPLFailure struct {
		Item  NewCPL `json:"item"`
		Error string `json:"error"`
	}

	// CPLReport is the outcome of a bulk CPL creation.
	CPLReport struct {
		Success []CPL        `json:"success"`
		Failed  []CPLFailure `json:"failed"`
	}
)

func (n *NewCPL) clean() {
	n.CurriculumID = core.CleanString(n.CurriculumID)
	n.Code = core.CleanCode(n.Code)
	n.Description = core.CleanString(n.Description)
	if c, err := ParseCategory(string(n.Category)); err == nil {
		n.Category = c
	}
}

func (n *NewCPMK) clean() {
	n.RPSID = core.CleanString(n.RPSID)
	n.Code = core.CleanCode(n.Code)
	n.Description = core.CleanString(n.Description)
}

func (n *NewSubCPMK) clean() {
	n.CPMKID = core.CleanString(n.CPMKID)
	n.Code = core.CleanCode(n.Code)
	n.Description = core.CleanString(n.Description)
	n.Indicator = core.CleanString(n.Indicator)
}
