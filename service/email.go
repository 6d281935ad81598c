package service

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"prfmonitor/config"
	"prfmonitor/models"

	"gopkg.in/gomail.v2"
)

// ErrEmailDisabled email.enabled is false
var ErrEmailDisabled = errors.New("email service disabled, set email.enabled=true")

// EmailService SMTP notifications
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService creates the email service.
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// Enabled reports whether mail is configured to be sent.
func (s *EmailService) Enabled() bool {
	return s != nil && s.cfg != nil && s.cfg.Enabled
}

// SendPRFStatusEmail tells the requester their PRF changed status.
func (s *EmailService) SendPRFStatusEmail(toEmail string, prf *models.PRF, oldStatus string) error {
	if !s.Enabled() {
		return ErrEmailDisabled
	}
	subject := fmt.Sprintf("[PRF Monitor] %s is now %s", prf.PRFNo, prf.Status)
	return s.sendEmail([]string{toEmail}, subject, s.generatePRFStatusBody(prf, oldStatus))
}

func (s *EmailService) generatePRFStatusBody(prf *models.PRF, oldStatus string) string {
	notes := ""
	if prf.Notes != "" {
		notes = fmt.Sprintf("<p><strong>Notes:</strong> %s</p>", html.EscapeString(prf.Notes))
	}
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
    <h2>Purchase Request %s</h2>
    <p>Status changed from <strong>%s</strong> to <strong>%s</strong>.</p>
    <table cellpadding="6" style="border-collapse: collapse;">
        <tr><td>Cost code</td><td>%s</td></tr>
        <tr><td>Requested amount</td><td>%s</td></tr>
        <tr><td>Approved amount</td><td>%s</td></tr>
        <tr><td>Description</td><td>%s</td></tr>
    </table>
    %s
    <p style="color: #666;">This message was sent automatically, please do not reply.</p>
</body>
</html>
`,
		html.EscapeString(prf.PRFNo),
		html.EscapeString(oldStatus),
		html.EscapeString(prf.Status),
		html.EscapeString(prf.PurchaseCostCode),
		prf.RequestedAmount.StringFixed(2),
		prf.ApprovedAmount.StringFixed(2),
		html.EscapeString(prf.Description),
		notes,
	)
}

// SendReconciliationAlert mails the reconciliation findings.
func (s *EmailService) SendReconciliationAlert(to []string, report *ReconciliationReport) error {
	if !s.Enabled() {
		return ErrEmailDisabled
	}
	if len(to) == 0 {
		return fmt.Errorf("no alert recipients configured")
	}
	subject := fmt.Sprintf("[PRF Monitor] %d reconciliation issue(s) for FY%d", report.IssueCount(), report.FiscalYear)
	return s.sendEmail(to, subject, s.generateReconciliationBody(report))
}

func (s *EmailService) generateReconciliationBody(r *ReconciliationReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Budget reconciliation FY%d</h2>\n<ul>\n", r.FiscalYear)
	fmt.Fprintf(&b, "<li>Orphaned cost codes: %d</li>\n", len(r.Orphans))
	fmt.Fprintf(&b, "<li>Mismatched cost codes: %d</li>\n", len(r.Mismatches))
	fmt.Fprintf(&b, "<li>Duplicate budgets: %d</li>\n", len(r.DuplicateBudgets))
	fmt.Fprintf(&b, "<li>Missing budgets: %d</li>\n", len(r.MissingBudgets))
	fmt.Fprintf(&b, "<li>Over budget: %d</li>\n</ul>\n", len(r.OverBudget))
	if len(r.OverBudget) > 0 {
		b.WriteString("<h3>Over budget</h3>\n<table cellpadding=\"4\">\n<tr><th>Code</th><th>Allocated</th><th>Spent</th><th>%</th></tr>\n")
		for _, o := range r.OverBudget {
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
				html.EscapeString(o.COACode), o.Allocated.StringFixed(2), o.Spent.StringFixed(2), o.UtilizationPct.StringFixed(2))
		}
		b.WriteString("</table>\n")
	}
	if len(r.Orphans) > 0 {
		b.WriteString("<h3>Orphaned cost codes</h3>\n<ul>\n")
		for _, o := range r.Orphans {
			fmt.Fprintf(&b, "<li>%s (%d PRFs, %s)</li>\n", html.EscapeString(o.CostCode), o.PRFCount, o.TotalAmount.StringFixed(2))
		}
		b.WriteString("</ul>\n")
	}
	return "<!DOCTYPE html>\n<html>\n<head><meta charset=\"UTF-8\"></head>\n<body style=\"font-family: Arial, sans-serif;\">\n" +
		b.String() + "</body>\n</html>\n"
}

// SendTestEmail verifies SMTP settings.
func (s *EmailService) SendTestEmail(toEmail string) error {
	if !s.Enabled() {
		return ErrEmailDisabled
	}
	body := `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; padding: 20px;">
    <h2>Email configured</h2>
    <p>If you received this message the PRF Monitor mail settings work.</p>
</body>
</html>
`
	return s.sendEmail([]string{toEmail}, "[PRF Monitor] mail test", body)
}

func (s *EmailService) sendEmail(to []string, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.Username, s.cfg.From))
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
