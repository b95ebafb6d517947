package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"rubswatch/internal/anomaly"
)

const (
	ChannelTelegram = "telegram"
	ChannelLog      = "log"
)

// Notification carries one detected anomaly to the alert channels.
type Notification struct {
	RunID        uuid.UUID
	PropertyID   string
	PropertyName string
	Utility      anomaly.UtilityType
	Severity     anomaly.Severity
	PeakMonth    string
	PeakUsage    float64
	Ratio        float64
	CostImpact   decimal.Decimal
	Message      string
	Link         string
	Channels     []string
}

// NewNotification builds a notification from a detector result. The link is empty when
// linkBase is empty.
func NewNotification(runID uuid.UUID, r anomaly.Result, linkBase string, channels []string) Notification {
	note := Notification{
		RunID:        runID,
		PropertyID:   r.PropertyID,
		PropertyName: r.PropertyName,
		Utility:      r.Utility,
		Severity:     r.Severity,
		CostImpact:   r.CostImpactMonthly,
		Message:      r.AlertMessage,
		Link:         PropertyLink(linkBase, r.PropertyID),
		Channels:     channels,
	}
	if r.Peak != nil {
		note.PeakMonth = r.Peak.Month
		note.PeakUsage = r.Peak.Usage
		note.Ratio = r.Peak.Ratio
	}
	return note
}

// PropertyLink returns the deep link of a property page.
func PropertyLink(base, propertyID string) string {
	if base == "" || propertyID == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/properties/" + url.PathEscape(propertyID)
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered text.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("run_id", note.RunID.String()).
		Str("property_id", note.PropertyID).
		Str("utility", string(note.Utility)).
		Str("severity", string(note.Severity)).
		Msg("alert sent (telegram)")
	return nil
}

// LogNotifier writes alerts to the structured log. It backs the "log" channel.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a log-backed notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the notification at warn level.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Warn().
		Str("run_id", note.RunID.String()).
		Str("property_id", note.PropertyID).
		Str("utility", string(note.Utility)).
		Str("severity", string(note.Severity)).
		Str("peak_month", note.PeakMonth).
		Float64("ratio", note.Ratio).
		Str("cost_impact", note.CostImpact.StringFixed(2)).
		Str("link", note.Link).
		Msg(note.Message)
	return nil
}

// Multi fans a notification out to several notifiers. Every notifier is tried; errors are joined.
type Multi []Notifier

// Notify delivers to each notifier in order.
func (m Multi) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[Utility Alert: %s]\n", strings.ToUpper(string(note.Severity))))
	name := note.PropertyID
	if note.PropertyName != "" {
		name = fmt.Sprintf("%s (%s)", note.PropertyName, note.PropertyID)
	}
	builder.WriteString(fmt.Sprintf("Property: %s\n", name))
	builder.WriteString(fmt.Sprintf("Utility: %s\n", note.Utility))
	if note.PeakMonth != "" {
		builder.WriteString(fmt.Sprintf("Month: %s\n", note.PeakMonth))
	}
	builder.WriteString(fmt.Sprintf("Cost impact: $%s/month\n", note.CostImpact.StringFixed(2)))
	if note.Message != "" {
		builder.WriteString(note.Message)
		builder.WriteString("\n")
	}
	if note.Link != "" {
		builder.WriteString(note.Link)
		builder.WriteString("\n")
	}
	if note.RunID != uuid.Nil {
		builder.WriteString(fmt.Sprintf("Run: %s", note.RunID))
	}
	return strings.TrimRight(builder.String(), "\n")
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = Multi(nil)
)
