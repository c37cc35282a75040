package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
		ok   bool
	}{
		{"CRITICAL", SeverityCritical, true},
		{" high ", SeverityHigh, true},
		{"Medium", SeverityMedium, true},
		{"low", SeverityLow, true},
		{"info", SeverityInfo, true},
		{"urgent", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSeverity(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSeverityRank(t *testing.T) {
	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Greater(t, SeverityLow.Rank(), SeverityInfo.Rank())
	assert.Zero(t, Severity("BOGUS").Rank())
}

func TestSeverityCounts(t *testing.T) {
	r := ScanResult{Vulnerabilities: []Vulnerability{
		{Severity: SeverityCritical},
		{Severity: SeverityHigh},
		{Severity: SeverityHigh},
		{Severity: SeverityInfo},
	}}

	counts := r.SeverityCounts()
	assert.Equal(t, SeverityCounts{Critical: 1, High: 2, Info: 1}, counts)
	assert.Equal(t, 4, counts.Total())
}

func TestErrorMatching(t *testing.T) {
	err := ErrInvalidPort.With("port %q is not a number", "http")

	assert.True(t, errors.Is(err, ErrInvalidPort))
	assert.False(t, errors.Is(err, ErrMissingPort))
	assert.Equal(t, "InvalidPort: port \"http\" is not a number (port)", err.Error())
	assert.Equal(t, "port must be an integer between 1 and 65535", ErrInvalidPort.Message, "sentinel is unchanged")

	wrapped := fmt.Errorf("render: %w", ErrMissingField.OnField("id"))
	var domain *Error
	assert.True(t, errors.As(wrapped, &domain))
	assert.Equal(t, "id", domain.Field)
	assert.Equal(t, KindValidation, domain.Kind)
	assert.Empty(t, ErrMissingField.Field)
}

func TestModesAndStatus(t *testing.T) {
	assert.Len(t, AllModes, 11)
	assert.True(t, ModeFlyover.Valid())
	assert.False(t, ScanMode("Normal").Valid())

	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, ScanStatus("paused").Valid())
}

func TestInvocationDescriptor(t *testing.T) {
	d := InvocationDescriptor{Tool: "sniper", Args: []string{"-t", "example.com", "-m", "normal"}}

	assert.Equal(t, []string{"sniper", "-t", "example.com", "-m", "normal"}, d.Tokens())
	assert.Equal(t, "sniper -t example.com -m normal", d.String())
}

func TestPortKey(t *testing.T) {
	a := Port{Number: 443, Protocol: "tcp", Service: "https"}
	b := Port{Number: 443, Protocol: "tcp", Service: "other"}
	c := Port{Number: 443, Protocol: "udp"}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestClone(t *testing.T) {
	end := time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)
	d := int64(1800)
	r := ScanResult{
		ID:              "1",
		EndTime:         &end,
		Duration:        &d,
		Vulnerabilities: []Vulnerability{{ID: "v1", Name: "XSS"}},
		Ports:           []Port{{Number: 80}},
		Domains:         []string{"example.com"},
	}

	c := r.Clone()
	c.Vulnerabilities[0].Name = "changed"
	c.Ports[0].Number = 8080
	c.Domains[0] = "changed"
	*c.EndTime = end.Add(time.Hour)
	*c.Duration = 1

	assert.Equal(t, "XSS", r.Vulnerabilities[0].Name)
	assert.Equal(t, 80, r.Ports[0].Number)
	assert.Equal(t, "example.com", r.Domains[0])
	assert.Equal(t, end, *r.EndTime)
	assert.Equal(t, int64(1800), *r.Duration)
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())

	s := DefaultSettings()
	s.Threads = 0
	assert.ErrorIs(t, s.Validate(), ErrInvalidField)

	s = DefaultSettings()
	s.Timeout = 301
	assert.ErrorIs(t, s.Validate(), ErrInvalidField)

	s = DefaultSettings()
	s.SlackNotifications = true
	assert.ErrorIs(t, s.Validate(), ErrMissingField)

	s.SlackWebhookURL = "http://hooks.slack.com/services/T000/B000/XXX"
	assert.ErrorIs(t, s.Validate(), ErrInvalidField)

	s.SlackWebhookURL = "https://hooks.slack.com/services/T000/B000/XXX"
	assert.NoError(t, s.Validate())
}

func TestIsSingleToken(t *testing.T) {
	for _, s := range []string{"example.com", "10.0.0.0/24", "prod-2024", "https://app.example.com:8443/login"} {
		assert.True(t, IsSingleToken(s), s)
	}
	for _, s := range []string{"", "-x", "a b", "a;b", "a|b", "$(id)", "a\tb", "a\x00b"} {
		assert.False(t, IsSingleToken(s), s)
	}
}
