package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/argus/internal/models"
	"github.com/rewired-gh/argus/internal/risk"
)

type fakeBot struct {
	failures int
	calls    int
	sent     []tgbotapi.MessageConfig
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.calls++
	if f.calls <= f.failures {
		return tgbotapi.Message{}, errors.New("telegram unavailable")
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func testNotifier(t *testing.T, bot *fakeBot, minLevel string) (*Notifier, *[]time.Duration) {
	t.Helper()
	n, err := newNotifier(bot, "12345", 3, time.Second, minLevel)
	if err != nil {
		t.Fatalf("newNotifier failed: %v", err)
	}
	n.limiter = rate.NewLimiter(rate.Inf, 1)
	var sleeps []time.Duration
	n.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return n, &sleeps
}

func reportFor(pct float64) risk.Report {
	b := risk.NewBuilder(func() time.Time { return time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC) })
	return b.Build(risk.Summary{TotalComments: 1000, SuspiciousCount: int(pct * 10), SuspiciousPercentage: pct, Accuracy: 0.92})
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"25.00%", "25\\.00%"},
		{"a_b*c", "a\\_b\\*c"},
		{"(x) [y]!", "\\(x\\) \\[y\\]\\!"},
		{"2024-01-15", "2024\\-01\\-15"},
		{`back\slash`, `back\\slash`},
		{"👧💕", "👧💕"},
	}
	for _, tt := range tests {
		if got := escapeMarkdownV2(tt.in); got != tt.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatReport(t *testing.T) {
	session := &models.AnalysisSession{ID: "abc-123"}
	patterns := map[string]int{"👧💕": 3, "menina linda": 5, "🌀👦": 3}

	msg := formatReport(session, reportFor(85), patterns)

	for _, want := range []string{
		"🚨 *Relatório de Risco ARGUS*",
		"`abc-123`",
		"2024\\-01\\-15T10:30:00\\.000Z",
		"Comentários analisados: 1\\.000",
		"Suspeitos: 850 \\(85\\.00%\\)",
		"Acurácia: 92\\.00%",
		"*Alto Risco*",
		"1\\. menina linda: 5",
		"2\\. 🌀👦: 3",
		"3\\. 👧💕: 3",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatReportLimitsPatterns(t *testing.T) {
	patterns := map[string]int{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5, "f": 6, "g": 7}
	msg := formatReport(&models.AnalysisSession{ID: "x"}, reportFor(10), patterns)
	if strings.Contains(msg, "6\\.") {
		t.Errorf("expected at most %d patterns:\n%s", topPatterns, msg)
	}
	if !strings.Contains(msg, "1\\. g: 7") {
		t.Errorf("expected most frequent pattern first:\n%s", msg)
	}
}

func TestNotifyReportRespectsMinLevel(t *testing.T) {
	tests := []struct {
		name     string
		minLevel string
		pct      float64
		wantSent bool
	}{
		{"high passes medium gate", "medium", 85, true},
		{"low blocked by medium gate", "medium", 50, false},
		{"safe passes safe gate", "safe", 0, true},
		{"medium passes low gate", "low", 70, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := &fakeBot{}
			n, _ := testNotifier(t, bot, tt.minLevel)

			sent, err := n.NotifyReport(context.Background(), &models.AnalysisSession{ID: "s"}, reportFor(tt.pct), nil)
			if err != nil {
				t.Fatalf("NotifyReport failed: %v", err)
			}
			if sent != tt.wantSent {
				t.Errorf("sent = %v, want %v", sent, tt.wantSent)
			}
			if got := len(bot.sent) == 1; got != tt.wantSent {
				t.Errorf("bot received %d messages", len(bot.sent))
			}
		})
	}
}

func TestSendRetriesWithLinearBackoff(t *testing.T) {
	bot := &fakeBot{failures: 2}
	n, sleeps := testNotifier(t, bot, "safe")

	if err := n.Alert(context.Background(), AlertInfo, "Dataset gerado com sucesso!"); err != nil {
		t.Fatalf("Alert failed: %v", err)
	}
	if bot.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", bot.calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*sleeps) != len(want) || (*sleeps)[0] != want[0] || (*sleeps)[1] != want[1] {
		t.Errorf("Expected backoff %v, got %v", want, *sleeps)
	}

	msg := bot.sent[0]
	if msg.ParseMode != tgbotapi.ModeMarkdownV2 || msg.ChatID != 12345 {
		t.Errorf("Unexpected message config: %+v", msg)
	}
	if msg.Text != "ℹ️ Dataset gerado com sucesso\\!" {
		t.Errorf("Unexpected text %q", msg.Text)
	}
}

func TestSendGivesUp(t *testing.T) {
	bot := &fakeBot{failures: 10}
	n, sleeps := testNotifier(t, bot, "safe")

	err := n.SendError(context.Background(), errors.New("disk full"))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if bot.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", bot.calls)
	}
	if len(*sleeps) != 2 {
		t.Errorf("Expected no sleep after the last attempt, got %v", *sleeps)
	}
}

func TestSendHonoursContext(t *testing.T) {
	bot := &fakeBot{}
	n, _ := testNotifier(t, bot, "safe")
	n.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	n.limiter.Allow() // drain the burst

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Alert(ctx, AlertWarning, "x"); err == nil {
		t.Error("expected error for cancelled context")
	}
	if bot.calls != 0 {
		t.Errorf("Expected no send, got %d", bot.calls)
	}
}

func TestSendStopsBackoffOnCancel(t *testing.T) {
	bot := &fakeBot{failures: 10}
	n, _ := testNotifier(t, bot, "safe")
	n.retryDelayBase = time.Hour
	n.sleep = sleepContext

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := n.Alert(ctx, AlertWarning, "x")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if bot.calls != 1 {
		t.Errorf("Expected 1 attempt before cancel, got %d", bot.calls)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("backoff ignored cancellation, took %v", elapsed)
	}
}

func TestNewNotifierValidation(t *testing.T) {
	if _, err := newNotifier(&fakeBot{}, "not-a-number", 3, time.Second, "low"); err == nil {
		t.Error("expected error for bad chat ID")
	}
	if _, err := newNotifier(&fakeBot{}, "1", 3, time.Second, "critical"); err == nil {
		t.Error("expected error for unknown level")
	}
	n, err := newNotifier(&fakeBot{}, "-100", 0, 0, "high")
	if err != nil {
		t.Fatalf("newNotifier failed: %v", err)
	}
	if n.maxRetries != 3 || n.retryDelayBase != time.Second {
		t.Errorf("Expected defaults, got retries=%d delay=%v", n.maxRetries, n.retryDelayBase)
	}
}
