package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/argus/internal/models"
	"github.com/rewired-gh/argus/internal/pipeline"
	"github.com/rewired-gh/argus/internal/risk"
	"github.com/rewired-gh/argus/internal/server"
	"github.com/rewired-gh/argus/internal/storage"
)

func init() {
	color.NoColor = true
}

// execute runs the root command with flags reset to their defaults.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var reset func(*cobra.Command)
	reset = func(c *cobra.Command) {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func useTempDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "argus.db")
	t.Setenv("ARGUS_STORAGE_DB_PATH", path)
	t.Setenv("ARGUS_LOGGING_LEVEL", "error")
	return path
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	b := risk.NewBuilder(func() time.Time { return time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC) })
	printReport(&buf, b.Build(risk.Summary{TotalComments: 1000, SuspiciousCount: 850, SuspiciousPercentage: 85, Accuracy: 0.92}))

	out := buf.String()
	assert.Contains(t, out, "━")
	assert.Contains(t, out, "Comentários analisados: 1.000")
	assert.Contains(t, out, "Suspeitos:              850 (85.00%)")
	assert.Contains(t, out, "Acurácia:               92.00%")
	assert.Contains(t, out, "Alto Risco")
	assert.Contains(t, out, "2024-01-15T10:30:00.000Z")
}

func TestPrintOutcome(t *testing.T) {
	var buf bytes.Buffer
	out := &pipeline.Outcome{
		Session:           &models.AnalysisSession{ID: "s-1", SuspiciousCount: 3},
		Dataset:           &models.Dataset{Name: "Dataset_1"},
		Report:            risk.BuildReport(risk.Summary{TotalComments: 6, SuspiciousCount: 3, SuspiciousPercentage: 50}),
		PatternFrequency:  map[string]int{"menina linda": 2, "👧💕": 1},
		Users:             []models.UserBehavior{{Username: "predator_1", SuspiciousCount: 2, TotalComments: 2, SuspicionScore: 100}},
		Posts:             []models.PostAnalysis{{PostID: 1, Username: "ana", SuspiciousCount: 2, TotalComments: 4, SuspicionRatio: 50}},
		ActualSuspicious:  3,
		DetectionAccuracy: 100,
		ElapsedSeconds:    1.5,
	}
	printOutcome(&buf, out)

	s := buf.String()
	assert.Contains(t, s, "Análise s-1 · Dataset_1")
	assert.Contains(t, s, "Baixo Risco")
	assert.Contains(t, s, "PADRÕES MAIS FREQUENTES")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("menina linda")), bytes.Index(buf.Bytes(), []byte("👧💕")))
	assert.Contains(t, s, "predator_1")
	assert.Contains(t, s, "2/2 (100.00%)")
	assert.Contains(t, s, "@ana")
	assert.Contains(t, s, "Precisão da detecção: 100.00% (3 de 3 rotulados)")
	assert.Contains(t, s, "Tempo de análise: 1,5 s")
}

func TestPrintOutcomeWithoutLabels(t *testing.T) {
	var buf bytes.Buffer
	printOutcome(&buf, &pipeline.Outcome{
		Session: &models.AnalysisSession{ID: "s-2"},
		Dataset: &models.Dataset{Name: "x"},
		Report:  risk.BuildReport(risk.Summary{}),
	})
	assert.Contains(t, buf.String(), "Seguro")
	assert.NotContains(t, buf.String(), "Precisão")
	assert.NotContains(t, buf.String(), "PADRÕES")
}

func TestRiskColor(t *testing.T) {
	assert.True(t, riskColor(risk.ColorDanger).Equals(color.New(color.FgRed, color.Bold)))
	assert.True(t, riskColor(risk.ColorWarning).Equals(color.New(color.FgYellow, color.Bold)))
	assert.True(t, riskColor(risk.ColorInfo).Equals(color.New(color.FgCyan)))
	assert.True(t, riskColor(risk.ColorSuccess).Equals(color.New(color.FgGreen)))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "argus dev")
}

func TestGenerateAnalyzeAndReport(t *testing.T) {
	dbPath := useTempDB(t)
	dir := t.TempDir()

	out, err := execute(t, "generate",
		"--posts-count", "10", "--comments-count", "100", "--ratio", "0.1",
		"--out", dir, "--seed", "7", "--analyze")
	require.NoError(t, err)
	assert.Contains(t, out, "Dataset gerado com sucesso!")
	assert.Contains(t, out, "Suspeitos:   10 (10.00%)")
	assert.Contains(t, out, "Análise ")
	assert.Contains(t, out, "Dataset_1")
	assert.FileExists(t, filepath.Join(dir, "posts.csv"))
	assert.FileExists(t, filepath.Join(dir, "comments.csv"))

	store, err := storage.New(dbPath)
	require.NoError(t, err)
	sessions, err := store.ListSessions(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Len(t, sessions, 1)
	id := sessions[0].ID
	assert.Equal(t, models.StatusCompleted, sessions[0].Status)
	assert.Equal(t, 100, sessions[0].TotalComments)

	out, err = execute(t, "report", id, "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "totalComments: 100")
	assert.Contains(t, out, "risks:")

	out, err = execute(t, "report", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Análise "+id+" (COMPLETED)")
	assert.Contains(t, out, "RELATÓRIO DE RISCO")

	out, err = execute(t, "analyze",
		"--posts", filepath.Join(dir, "posts.csv"),
		"--comments", filepath.Join(dir, "comments.csv"),
		"--name", "Reanálise", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Reanálise"`)
	assert.Contains(t, out, `"actual_suspicious": 10`)
}

func TestReportRejectsCSV(t *testing.T) {
	useTempDB(t)
	_, err := execute(t, "report", "any", "--format", "csv")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestReportUnknownSession(t *testing.T) {
	useTempDB(t)
	_, err := execute(t, "report", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAnalyzeMissingFile(t *testing.T) {
	useTempDB(t)
	_, err := execute(t, "analyze", "--posts", "nope.csv", "--comments", "nope.csv")
	assert.ErrorContains(t, err, "failed to open posts")
}

func TestReportFromURL(t *testing.T) {
	useTempDB(t)
	ctx := context.Background()

	remote, err := storage.New(":memory:")
	require.NoError(t, err)
	defer remote.Close()
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	require.NoError(t, remote.AddDataset(ctx, &models.Dataset{ID: "d", Name: "remoto", CreatedAt: now}))
	require.NoError(t, remote.AddSession(ctx, &models.AnalysisSession{
		ID: "r-1", DatasetID: "d", CreatedAt: now, Status: models.StatusCompleted,
		TotalComments: 10, SuspiciousCount: 9, Accuracy: 0.5,
	}))

	ts := httptest.NewServer(server.New(server.Config{}, remote, nil).Handler())
	defer ts.Close()

	out, err := execute(t, "report", "r-1", "--from-url", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Análise r-1 (COMPLETED)")
	assert.Contains(t, out, "Alto Risco")

	_, err = execute(t, "report", "r-2", "--from-url", ts.URL)
	assert.ErrorContains(t, err, "Análise não encontrada")

	t.Setenv("ARGUS_DASHBOARD_BASE_URL", ts.URL)
	out, err = execute(t, "report", "r-1", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"detectionRate": 90`)
}

func TestAssessCommand(t *testing.T) {
	useTempDB(t)

	out, err := execute(t, "assess", "0.85")
	require.NoError(t, err)
	assert.Contains(t, out, "Probabilidade 0,85: Alto Risco")

	out, err = execute(t, "assess", "0.8", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"level":"medium"`)

	_, err = execute(t, "assess", "alto")
	assert.ErrorContains(t, err, "invalid probability")

	remote, err := storage.New(":memory:")
	require.NoError(t, err)
	defer remote.Close()
	ts := httptest.NewServer(server.New(server.Config{}, remote, nil).Handler())
	defer ts.Close()

	out, err = execute(t, "assess", "0.7", "--from-url", ts.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Probabilidade 0,7: Risco Médio")
}
