// Package telegram sends analysis notifications via the Telegram Bot API.
// It formats risk reports into MarkdownV2 messages and delivers them with
// retry logic, skipping reports below the configured minimum risk level.
//
// Sends are rate limited to one message per second per notifier.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/argus/internal/format"
	"github.com/rewired-gh/argus/internal/logger"
	"github.com/rewired-gh/argus/internal/metrics"
	"github.com/rewired-gh/argus/internal/models"
	"github.com/rewired-gh/argus/internal/risk"
)

// AlertKind selects the icon of an ad-hoc alert. The kinds match the risk
// color tokens.
type AlertKind string

const (
	AlertInfo    AlertKind = risk.ColorInfo
	AlertSuccess AlertKind = risk.ColorSuccess
	AlertWarning AlertKind = risk.ColorWarning
	AlertDanger  AlertKind = risk.ColorDanger
)

const topPatterns = 5

// sender is the subset of the bot API the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier handles Telegram notifications
type Notifier struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	minLevel       risk.Level
	limiter        *rate.Limiter
	metrics        *metrics.Metrics
	sleep          func(context.Context, time.Duration) error
}

// NewNotifier creates a notifier for one chat. minLevel is the lowest report
// risk level that is sent.
func NewNotifier(botToken, chatID string, maxRetries int, retryDelayBase time.Duration, minLevel string) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newNotifier(bot, chatID, maxRetries, retryDelayBase, minLevel)
}

func newNotifier(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration, minLevel string) (*Notifier, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	level, err := risk.ParseLevel(minLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid minimum level: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Notifier{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		minLevel:       level,
		limiter:        rate.NewLimiter(rate.Every(time.Second), 1),
		sleep:          sleepContext,
	}, nil
}

// SetMetrics attaches a metrics recorder.
func (n *Notifier) SetMetrics(m *metrics.Metrics) {
	n.metrics = m
}

// NotifyReport sends the report of a finished session when its risk level is
// at least the configured minimum. It reports whether a message was sent.
func (n *Notifier) NotifyReport(ctx context.Context, session *models.AnalysisSession, report risk.Report, patterns map[string]int) (bool, error) {
	if !report.Risks.Level.AtLeast(n.minLevel) {
		logger.Debug("Report for %s is %s, below minimum %s; not notifying", session.ID, report.Risks.Level, n.minLevel)
		return false, nil
	}
	err := n.send(ctx, formatReport(session, report, patterns))
	n.metrics.ObserveNotification("report", err)
	if err != nil {
		return false, err
	}
	logger.Info("Sent %s risk report for analysis %s to Telegram", report.Risks.Level, session.ID)
	return true, nil
}

// Alert sends a short ad-hoc message.
func (n *Notifier) Alert(ctx context.Context, kind AlertKind, message string) error {
	text := alertIcon(kind) + " " + escapeMarkdownV2(message)
	err := n.send(ctx, text)
	n.metrics.ObserveNotification(string(kind), err)
	return err
}

// SendError notifies the chat that an analysis failed.
func (n *Notifier) SendError(ctx context.Context, err error) error {
	return n.Alert(ctx, AlertDanger, "Falha na análise: "+err.Error())
}

func (n *Notifier) send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < n.maxRetries; i++ {
		if err := n.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("telegram send cancelled: %w", err)
		}
		_, err := n.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Warn("Telegram send attempt %d/%d failed: %v", i+1, n.maxRetries, err)
		if i < n.maxRetries-1 {
			if err := n.sleep(ctx, n.retryDelayBase*time.Duration(i+1)); err != nil {
				return fmt.Errorf("telegram send cancelled: %w", err)
			}
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", n.maxRetries, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// formatReport renders a report as a MarkdownV2 message.
func formatReport(session *models.AnalysisSession, report risk.Report, patterns map[string]int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s *Relatório de Risco ARGUS*\n\n", alertIcon(AlertKind(report.Risks.Color)))
	fmt.Fprintf(&b, "🆔 Análise: `%s`\n", session.ID)
	fmt.Fprintf(&b, "📅 Gerado: %s\n\n", escapeMarkdownV2(report.Timestamp))

	s := report.Summary
	fmt.Fprintf(&b, "💬 Comentários analisados: %s\n", escapeMarkdownV2(format.Int(s.TotalComments)))
	fmt.Fprintf(&b, "🔎 Suspeitos: %s \\(%s\\)\n",
		escapeMarkdownV2(format.Int(s.SuspiciousCount)),
		escapeMarkdownV2(format.Percentage(s.DetectionRate, 2)))
	fmt.Fprintf(&b, "🎯 Acurácia: %s\n", escapeMarkdownV2(format.Percentage(s.Accuracy*100, 2)))
	fmt.Fprintf(&b, "📊 Nível: *%s*\n", escapeMarkdownV2(report.Risks.Text))

	top := risk.RankPatterns(patterns)
	if len(top) > topPatterns {
		top = top[:topPatterns]
	}
	if len(top) > 0 {
		b.WriteString("\n*Padrões mais frequentes*\n")
		for i, p := range top {
			fmt.Fprintf(&b, "%d\\. %s: %d\n", i+1, escapeMarkdownV2(p.Pattern), p.Count)
		}
	}

	return b.String()
}

func alertIcon(kind AlertKind) string {
	switch kind {
	case AlertSuccess:
		return "✅"
	case AlertWarning:
		return "⚠️"
	case AlertDanger:
		return "🚨"
	default:
		return "ℹ️"
	}
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . ! \
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
