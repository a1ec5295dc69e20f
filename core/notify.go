package core

import (
	"context"
	"time"
)

type (
	// RPSDecisionNotice carries what the lead developer of an RPS is told after a review decision.
	RPSDecisionNotice struct {
		RPSID           string
		CourseCode      string
		AcademicYear    string
		Term            string
		LeadDeveloperID string
		Status          string // new RPS status
		Decision        string
		Level           int
		Comment         string
		DecidedBy       string
		DecidedAt       time.Time
	}

	Notifier interface {
		NotifyRPSDecision(ctx context.Context, notice RPSDecisionNotice) error
	}
)
