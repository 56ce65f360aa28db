package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/netvigil/vigil-core/internal/config"
	"github.com/netvigil/vigil-core/internal/models"
	"github.com/netvigil/vigil-core/pkg/logger"
)

// SlackChannel posts alerts to a Slack incoming webhook. Registered under the
// routing name "chat".
type SlackChannel struct {
	config config.SlackConfig
	client *http.Client
	logger logger.Logger
}

func NewSlackChannel(cfg config.SlackConfig, log logger.Logger) *SlackChannel {
	return &SlackChannel{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: log,
	}
}

func (s *SlackChannel) Name() string    { return "chat" }
func (s *SlackChannel) IsEnabled() bool { return s.config.Enabled }

func (s *SlackChannel) Send(ctx context.Context, alert *models.Alert) error {
	slackPayload := map[string]interface{}{
		"channel": s.config.Channel,
		"attachments": []map[string]interface{}{
			{
				"color":     slackColor(alert.Severity),
				"title":     alert.Name,
				"text":      alert.Message,
				"timestamp": alert.Timestamp.Unix(),
				"fields": []map[string]interface{}{
					{"title": "Component", "value": alert.Component, "short": true},
					{"title": "Severity", "value": alert.Severity, "short": true},
					{"title": "Status", "value": alert.Status, "short": true},
				},
			},
		},
	}

	if err := postJSON(ctx, s.client, s.config.WebhookURL, slackPayload); err != nil {
		return fmt.Errorf("slack notification failed: %w", err)
	}

	s.logger.Info("Slack notification sent", "alert", alert.ID, "component", alert.Component)
	return nil
}

// TeamsChannel posts MessageCards to an MS Teams webhook.
type TeamsChannel struct {
	config config.MSTeamsConfig
	client *http.Client
	logger logger.Logger
}

func NewTeamsChannel(cfg config.MSTeamsConfig, log logger.Logger) *TeamsChannel {
	return &TeamsChannel{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: log,
	}
}

func (t *TeamsChannel) Name() string    { return "teams" }
func (t *TeamsChannel) IsEnabled() bool { return t.config.Enabled }

func (t *TeamsChannel) Send(ctx context.Context, alert *models.Alert) error {
	teamsPayload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"summary":    alert.Name,
		"themeColor": teamsColor(alert.Severity),
		"sections": []map[string]interface{}{
			{
				"activityTitle":    alert.Name,
				"activitySubtitle": alert.Component,
				"text":             alert.Message,
				"facts": []map[string]interface{}{
					{"name": "Severity", "value": alert.Severity},
					{"name": "Status", "value": alert.Status},
					{"name": "Time", "value": alert.Timestamp.Format(time.RFC3339)},
				},
			},
		},
	}

	if err := postJSON(ctx, t.client, t.config.WebhookURL, teamsPayload); err != nil {
		return fmt.Errorf("ms teams notification failed: %w", err)
	}

	t.logger.Info("MS Teams notification sent", "alert", alert.ID, "component", alert.Component)
	return nil
}

// EmailChannel sends alerts over SMTP with optional plain auth.
type EmailChannel struct {
	config config.EmailConfig
	logger logger.Logger

	// sendMail is swappable for tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailChannel(cfg config.EmailConfig, log logger.Logger) *EmailChannel {
	return &EmailChannel{
		config:   cfg,
		logger:   log,
		sendMail: smtp.SendMail,
	}
}

func (e *EmailChannel) Name() string    { return "email" }
func (e *EmailChannel) IsEnabled() bool { return e.config.Enabled }

func (e *EmailChannel) Send(ctx context.Context, alert *models.Alert) error {
	if e.config.SMTPHost == "" || e.config.SMTPPort == 0 || e.config.FromAddress == "" {
		return fmt.Errorf("email channel not properly configured")
	}

	recipients := e.config.Recipients
	if len(recipients) == 0 {
		recipients = []string{e.config.FromAddress}
	}

	safeFrom, err := sanitizeEmailHeader("from address", e.config.FromAddress)
	if err != nil {
		return err
	}

	safeRecipients := make([]string, 0, len(recipients))
	for _, recipient := range recipients {
		safe, err := sanitizeEmailHeader("recipient", recipient)
		if err != nil {
			return err
		}
		if safe == "" {
			return fmt.Errorf("recipient cannot be empty")
		}
		safeRecipients = append(safeRecipients, safe)
	}

	safeSeverity, err := sanitizeEmailHeader("severity", alert.Severity)
	if err != nil {
		return err
	}
	safeName, err := sanitizeEmailHeader("name", alert.Name)
	if err != nil {
		return err
	}
	safeComponent, err := sanitizeEmailHeader("component", alert.Component)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("[Vigil] %s - %s", strings.ToUpper(safeSeverity), safeName)
	body := fmt.Sprintf(
		"Component: %s\nSeverity: %s\nStatus: %s\nTime: %s\n\n%s",
		safeComponent,
		safeSeverity,
		alert.Status,
		alert.Timestamp.Format(time.RFC3339),
		alert.Message,
	)

	var msg strings.Builder
	msg.WriteString("From: " + safeFrom + "\r\n")
	msg.WriteString("To: " + strings.Join(safeRecipients, ",") + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if e.config.Username != "" && e.config.Password != "" {
		auth = smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.SMTPHost)
	}

	addr := fmt.Sprintf("%s:%d", e.config.SMTPHost, e.config.SMTPPort)
	if err := e.sendMail(addr, auth, safeFrom, safeRecipients, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Info("Email notification sent", "alert", alert.ID, "to", safeRecipients)
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func slackColor(severity string) string {
	switch severity {
	case models.SeverityCritical:
		return "danger"
	case models.SeverityWarning:
		return "warning"
	case models.SeverityInfo:
		return "good"
	default:
		return "#439FE0"
	}
}

func teamsColor(severity string) string {
	switch severity {
	case models.SeverityCritical:
		return "FF0000"
	case models.SeverityWarning:
		return "FFA500"
	case models.SeverityInfo:
		return "00FF00"
	default:
		return "0078D4"
	}
}

// sanitizeEmailHeader rejects header values that could break out of email headers.
func sanitizeEmailHeader(fieldName, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if strings.ContainsAny(trimmed, "\r\n") {
		return "", fmt.Errorf("%s contains invalid newline characters", fieldName)
	}
	return trimmed, nil
}
