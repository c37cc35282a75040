package aggregator

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-sniper/models"
)

var t0 = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	now := t0
	return func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
}

func vulns(prefix string, n int) []models.Vulnerability {
	out := make([]models.Vulnerability, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Vulnerability{
			ID:       fmt.Sprintf("%s-%d", prefix, i),
			Severity: models.SeverityMedium,
			Name:     "Finding",
		})
	}
	return out
}

func running(id, target, workspace string, vs []models.Vulnerability) models.ScanResult {
	return models.ScanResult{
		ID:              id,
		Target:          target,
		Mode:            models.ModeNormal,
		Workspace:       workspace,
		Status:          models.StatusRunning,
		StartTime:       t0,
		Vulnerabilities: vs,
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestIngest_Rollup(t *testing.T) {
	s := New(WithClock(fixedClock()))

	_, err := s.Ingest(running("a", "example.com", "prod", vulns("a", 2)))
	require.NoError(t, err)
	ws, err := s.Ingest(running("b", "example.com", "prod", vulns("b", 3)))
	require.NoError(t, err)

	assert.Equal(t, "prod", ws.Name)
	assert.Equal(t, 2, ws.ScanCount)
	assert.Equal(t, 5, ws.VulnerabilityCount)
	assert.Equal(t, 1, ws.HostCount)
	assert.True(t, ws.LastModified.After(ws.Created))
}

func TestIngest_IdempotentForSameResult(t *testing.T) {
	s := New()
	r := running("a", "example.com", "prod", vulns("a", 2))

	_, err := s.Ingest(r)
	require.NoError(t, err)
	ws, err := s.Ingest(r)
	require.NoError(t, err)

	assert.Equal(t, 1, ws.ScanCount)
	assert.Equal(t, 2, ws.VulnerabilityCount)
}

func TestIngest_DuplicateID(t *testing.T) {
	s := New()
	_, err := s.Ingest(running("a", "example.com", "prod", vulns("a", 2)))
	require.NoError(t, err)

	_, err = s.Ingest(running("a", "other.com", "prod", nil))
	assert.ErrorIs(t, err, models.ErrDuplicateResultID)

	ws, err := s.Workspace("prod")
	require.NoError(t, err)
	assert.Equal(t, 1, ws.ScanCount)
	assert.Equal(t, 2, ws.VulnerabilityCount)
}

func TestIngest_RejectsMalformed(t *testing.T) {
	s := New()

	missingID := running("", "example.com", "prod", nil)
	_, err := s.Ingest(missingID)
	assert.ErrorIs(t, err, models.ErrMissingField)

	badMode := running("x", "example.com", "prod", nil)
	badMode.Mode = "warp"
	_, err = s.Ingest(badMode)
	assert.ErrorIs(t, err, models.ErrInvalidMode)

	noEnd := running("x", "example.com", "prod", nil)
	noEnd.Status = models.StatusCompleted
	_, err = s.Ingest(noEnd)
	assert.ErrorIs(t, err, models.ErrMissingEndTime)

	dupVuln := running("x", "example.com", "prod", []models.Vulnerability{
		{ID: "1", Severity: models.SeverityLow, Name: "a"},
		{ID: "1", Severity: models.SeverityLow, Name: "b"},
	})
	_, err = s.Ingest(dupVuln)
	assert.ErrorIs(t, err, models.ErrDuplicateVulnerabilityID)

	badSeverity := running("x", "example.com", "prod", []models.Vulnerability{{ID: "1", Severity: "URGENT", Name: "a"}})
	_, err = s.Ingest(badSeverity)
	assert.ErrorIs(t, err, models.ErrInvalidSeverity)

	assert.Empty(t, s.Workspaces(""))
}

func TestIngest_NormalizesFindings(t *testing.T) {
	s := New()
	r := running("a", "example.com", "prod", []models.Vulnerability{{ID: "1", Severity: "high", Name: "SQL Injection"}})
	r.Ports = []models.Port{
		{Number: 80, Protocol: "tcp", State: "open", Service: "http"},
		{Number: 80, Protocol: "TCP", State: "open", Service: "duplicate"},
		{Number: 80, Protocol: "udp", State: "filtered"},
	}
	r.Domains = []string{"example.com", "WWW.example.com", "www.example.com", ""}
	r.Duration = new(int64)

	_, err := s.Ingest(r)
	require.NoError(t, err)

	got, err := s.Result("a")
	require.NoError(t, err)
	assert.Equal(t, models.SeverityHigh, got.Vulnerabilities[0].Severity)
	require.Len(t, got.Ports, 2)
	assert.Equal(t, "http", got.Ports[0].Service)
	assert.Equal(t, []string{"example.com", "WWW.example.com"}, got.Domains)
	assert.Nil(t, got.Duration, "duration is derived, not taken from input")
}

func TestTransition(t *testing.T) {
	s := New()
	_, err := s.Ingest(running("a", "example.com", "prod", vulns("a", 1)))
	require.NoError(t, err)

	r, err := s.Transition("a", models.StatusCompleted, ptr(t0.Add(75*time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, r.Status)
	require.NotNil(t, r.Duration)
	assert.Equal(t, int64(4500), *r.Duration)
}

func TestTransition_TerminalIsFinal(t *testing.T) {
	s := New(WithClock(fixedClock()))
	_, err := s.Ingest(running("a", "example.com", "prod", vulns("a", 2)))
	require.NoError(t, err)
	_, err = s.Transition("a", models.StatusCompleted, ptr(t0.Add(time.Hour)))
	require.NoError(t, err)

	before, err := s.Workspace("prod")
	require.NoError(t, err)
	resultBefore, err := s.Result("a")
	require.NoError(t, err)

	for _, status := range []models.ScanStatus{models.StatusCompleted, models.StatusFailed, models.StatusRunning} {
		_, err = s.Transition("a", status, ptr(t0.Add(2*time.Hour)))
		assert.ErrorIs(t, err, models.ErrIllegalTransition, status)
	}

	after, err := s.Workspace("prod")
	require.NoError(t, err)
	resultAfter, err := s.Result("a")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, resultBefore, resultAfter)
}

func TestTransition_Errors(t *testing.T) {
	s := New()
	_, err := s.Ingest(running("a", "example.com", "prod", nil))
	require.NoError(t, err)

	_, err = s.Transition("missing", models.StatusFailed, ptr(t0))
	assert.ErrorIs(t, err, models.ErrResultNotFound)

	_, err = s.Transition("a", models.StatusRunning, ptr(t0))
	assert.ErrorIs(t, err, models.ErrIllegalTransition)

	_, err = s.Transition("a", models.StatusFailed, nil)
	assert.ErrorIs(t, err, models.ErrMissingEndTime)

	_, err = s.Transition("a", models.StatusFailed, ptr(t0.Add(-time.Second)))
	assert.ErrorIs(t, err, models.ErrInvalidTimeRange)

	r, err := s.Result("a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, r.Status)
	assert.Nil(t, r.EndTime)
}

func TestUpdate(t *testing.T) {
	s := New()
	_, err := s.Ingest(running("a", "example.com", "prod", vulns("a", 1)))
	require.NoError(t, err)

	ws, err := s.Update(running("a", "example.com", "prod", vulns("a", 4)))
	require.NoError(t, err)
	assert.Equal(t, 1, ws.ScanCount)
	assert.Equal(t, 4, ws.VulnerabilityCount)

	_, err = s.Update(running("a", "example.com", "staging", nil))
	assert.ErrorIs(t, err, models.ErrIllegalUpdate)

	_, err = s.Update(running("nope", "example.com", "prod", nil))
	assert.ErrorIs(t, err, models.ErrResultNotFound)

	_, err = s.Transition("a", models.StatusFailed, ptr(t0.Add(time.Minute)))
	require.NoError(t, err)
	_, err = s.Update(running("a", "example.com", "prod", nil))
	assert.ErrorIs(t, err, models.ErrIllegalTransition)
}

func TestRemove(t *testing.T) {
	s := New()
	_, err := s.Ingest(running("a", "a.example.com", "prod", vulns("a", 2)))
	require.NoError(t, err)
	_, err = s.Ingest(running("b", "b.example.com", "prod", vulns("b", 3)))
	require.NoError(t, err)

	ws, err := s.Remove("a")
	require.NoError(t, err)
	assert.Equal(t, 1, ws.ScanCount)
	assert.Equal(t, 1, ws.HostCount)
	assert.Equal(t, 3, ws.VulnerabilityCount)

	_, err = s.Remove("a")
	assert.ErrorIs(t, err, models.ErrResultNotFound)
}

func TestRollupInvariant(t *testing.T) {
	s := New()
	for i := 0; i < 6; i++ {
		ws := "prod"
		if i%2 == 1 {
			ws = "internal"
		}
		_, err := s.Ingest(running(fmt.Sprint(i), fmt.Sprintf("host%d", i%3), ws, vulns(fmt.Sprint(i), i)))
		require.NoError(t, err)
	}
	_, err := s.Transition("2", models.StatusCompleted, ptr(t0.Add(time.Hour)))
	require.NoError(t, err)
	_, err = s.Transition("2", models.StatusFailed, ptr(t0.Add(time.Hour)))
	require.Error(t, err)
	_, err = s.Remove("3")
	require.NoError(t, err)

	for _, ws := range s.Workspaces("") {
		want := 0
		count := 0
		for r := range s.Query(InWorkspace(ws.Name)) {
			want += len(r.Vulnerabilities)
			count++
		}
		assert.Equal(t, want, ws.VulnerabilityCount, ws.Name)
		assert.Equal(t, count, ws.ScanCount, ws.Name)
	}
}

func TestWorkspaces(t *testing.T) {
	s := New()

	_, err := s.CreateWorkspace("production", "Production environment security scans")
	require.NoError(t, err)
	_, err = s.CreateWorkspace("internal", "Internal network assessment")
	require.NoError(t, err)

	_, err = s.CreateWorkspace("production", "")
	assert.ErrorIs(t, err, models.ErrWorkspaceExists)
	_, err = s.CreateWorkspace("  ", "")
	assert.ErrorIs(t, err, models.ErrMissingField)
	for _, name := range []string{"two words", "-w", "a;b", "$(id)", "x`y`"} {
		_, err = s.CreateWorkspace(name, "")
		assert.ErrorIs(t, err, models.ErrInvalidWorkspace, name)
	}

	names := func(ws []models.Workspace) []string {
		var out []string
		for _, w := range ws {
			out = append(out, w.Name)
		}
		return out
	}
	assert.Equal(t, []string{"internal", "production"}, names(s.Workspaces("")))
	assert.Equal(t, []string{"internal"}, names(s.Workspaces("NETWORK")))
	assert.Equal(t, []string{"production"}, names(s.Workspaces("prod")))
}

func TestDeleteWorkspace(t *testing.T) {
	s := New()
	_, err := s.Ingest(running("a", "example.com", "prod", vulns("a", 2)))
	require.NoError(t, err)
	_, err = s.Ingest(running("b", "example.com", "prod", nil))
	require.NoError(t, err)
	_, err = s.Ingest(running("c", "example.com", "internal", nil))
	require.NoError(t, err)

	prompt, err := s.DeletionPrompt("prod")
	require.NoError(t, err)
	assert.Equal(t, 2, prompt.AffectedScans)
	assert.Contains(t, prompt.Prompt, `"prod"`)

	removed, err := s.DeleteWorkspace("prod")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = s.Result("a")
	assert.ErrorIs(t, err, models.ErrResultNotFound)
	_, err = s.Workspace("prod")
	assert.ErrorIs(t, err, models.ErrWorkspaceNotFound)
	_, err = s.DeleteWorkspace("prod")
	assert.ErrorIs(t, err, models.ErrWorkspaceNotFound)

	assert.Equal(t, 1, s.Stats().TotalScans)
}

func TestStats(t *testing.T) {
	s := New()
	_, err := s.Ingest(running("a", "example.com", "prod", []models.Vulnerability{
		{ID: "1", Severity: models.SeverityCritical, Name: "RCE"},
		{ID: "2", Severity: models.SeverityHigh, Name: "SQLi"},
	}))
	require.NoError(t, err)
	_, err = s.Ingest(running("b", "EXAMPLE.com", "internal", vulns("b", 1)))
	require.NoError(t, err)
	_, err = s.Ingest(running("c", "10.0.0.1", "internal", nil))
	require.NoError(t, err)
	_, err = s.Transition("c", models.StatusFailed, ptr(t0.Add(time.Second)))
	require.NoError(t, err)

	st := s.Stats()
	assert.Equal(t, 2, st.ActiveScans)
	assert.Equal(t, 3, st.TotalScans)
	assert.Equal(t, 3, st.TotalVulnerabilities)
	assert.Equal(t, 2, st.HostsScanned)
	assert.Equal(t, 2, st.Workspaces)
	assert.Equal(t, models.SeverityCounts{Critical: 1, High: 1, Medium: 1}, st.Severities)
}

func TestRestore(t *testing.T) {
	s := New()
	created := t0.Add(-24 * time.Hour)
	end := t0.Add(time.Hour)
	done := running("b", "api.example.com", "prod", vulns("b", 3))
	done.Status = models.StatusCompleted
	done.EndTime = &end

	err := s.Restore(
		[]models.Workspace{{Name: "prod", Created: created, LastModified: created, ScanCount: 99}},
		[]models.ScanResult{running("a", "example.com", "prod", vulns("a", 2)), done, running("c", "x", "orphan", nil)},
	)
	require.NoError(t, err)

	ws, err := s.Workspace("prod")
	require.NoError(t, err)
	assert.Equal(t, 2, ws.ScanCount)
	assert.Equal(t, 5, ws.VulnerabilityCount)
	assert.Equal(t, 2, ws.HostCount)
	assert.Equal(t, created, ws.Created)

	_, err = s.Workspace("orphan")
	assert.NoError(t, err)

	err = s.Restore(nil, []models.ScanResult{running("a", "x", "p", nil), running("a", "y", "p", nil)})
	assert.True(t, errors.Is(err, models.ErrDuplicateResultID))

	_, err = s.Workspace("prod")
	assert.NoError(t, err, "a failed restore keeps the previous content")
}

type failingRepo struct {
	err   error
	saved int
}

func (f *failingRepo) SaveResult(models.ScanResult, models.Workspace) error {
	if f.err != nil {
		return f.err
	}
	f.saved++
	return nil
}
func (f *failingRepo) DeleteResult(string, models.Workspace) error { return f.err }
func (f *failingRepo) SaveWorkspace(models.Workspace) error       { return f.err }
func (f *failingRepo) DeleteWorkspace(string) error               { return f.err }

func TestRepositoryFailureLeavesStateUntouched(t *testing.T) {
	repo := &failingRepo{}
	s := New(WithRepository(repo))

	_, err := s.Ingest(running("a", "example.com", "prod", vulns("a", 2)))
	require.NoError(t, err)
	assert.Equal(t, 1, repo.saved)

	repo.err = errors.New("disk full")

	_, err = s.Ingest(running("b", "example.com", "prod", vulns("b", 3)))
	assert.ErrorContains(t, err, "disk full")
	_, err = s.Transition("a", models.StatusCompleted, ptr(t0.Add(time.Minute)))
	assert.Error(t, err)
	_, err = s.DeleteWorkspace("prod")
	assert.Error(t, err)

	ws, err := s.Workspace("prod")
	require.NoError(t, err)
	assert.Equal(t, 1, ws.ScanCount)
	assert.Equal(t, 2, ws.VulnerabilityCount)

	r, err := s.Result("a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, r.Status)
	_, err = s.Result("b")
	assert.ErrorIs(t, err, models.ErrResultNotFound)
}

func TestConcurrentWriters(t *testing.T) {
	s := New()

	const scans, hosts = 50, 7
	wantVulns := 0
	for i := 0; i < scans; i++ {
		wantVulns += i%4 + 1
	}

	var wg sync.WaitGroup
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			id := fmt.Sprintf("scan-%d", i)
			target := fmt.Sprintf("host-%d.example.com", i%hosts)
			_, err := s.Ingest(running(id, target, "prod", vulns(id, i%4+1)))
			if !assert.NoError(t, err) {
				return
			}

			for r := range s.Query(InWorkspace("prod")) {
				for j := range r.Vulnerabilities {
					r.Vulnerabilities[j].Name = "changed by reader"
				}
			}

			_, err = s.Transition(id, models.StatusCompleted, ptr(t0.Add(time.Hour)))
			assert.NoError(t, err)
			_, err = s.Transition(id, models.StatusFailed, ptr(t0.Add(2*time.Hour)))
			assert.ErrorIs(t, err, models.ErrIllegalTransition)
		}(i)
	}
	wg.Wait()

	ws, err := s.Workspace("prod")
	require.NoError(t, err)
	assert.Equal(t, scans, ws.ScanCount)
	assert.Equal(t, hosts, ws.HostCount)
	assert.Equal(t, wantVulns, ws.VulnerabilityCount)

	stats := s.Stats()
	assert.Equal(t, scans, stats.TotalScans)
	assert.Zero(t, stats.ActiveScans)

	for r := range s.Query(nil) {
		assert.Equal(t, models.StatusCompleted, r.Status, r.ID)
		for _, v := range r.Vulnerabilities {
			assert.Equal(t, "Finding", v.Name, r.ID)
		}
	}
}
