// Package notifysvc tells lead developers about the review decisions on their RPS.
package notifysvc

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/user"
)

const decisionTemplate = "rps_decision"

type UserGetter interface {
	Get(ctx context.Context, id string) (user.User, error)
}

// EmailNotifier mails RPS decisions to the lead developer.
type EmailNotifier struct {
	users  UserGetter
	emails core.EmailService
}

var _ core.Notifier = (*EmailNotifier)(nil)

func NewEmailNotifier(users UserGetter, emails core.EmailService) *EmailNotifier {
	return &EmailNotifier{users: users, emails: emails}
}

type decisionData struct {
	core.RPSDecisionNotice
	Name string
}

func (n *EmailNotifier) NotifyRPSDecision(ctx context.Context, notice core.RPSDecisionNotice) error {
	lead, err := n.users.Get(ctx, notice.LeadDeveloperID)
	if err != nil {
		return errors.Wrap(err, "getting lead developer")
	}
	if !lead.IsActive {
		return nil
	}
	n.emails.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: lead.Name, Address: lead.Email}},
		Subject:      "RPS " + notice.CourseCode + " " + notice.Decision,
		TemplateName: decisionTemplate,
		TemplateData: decisionData{RPSDecisionNotice: notice, Name: lead.Name},
	})
	return nil
}
