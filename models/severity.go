package models

import "strings"

// Severity defines the ordered vulnerability severity taxonomy.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

var severityRanks = map[Severity]int{
	SeverityCritical: 5,
	SeverityHigh:     4,
	SeverityMedium:   3,
	SeverityLow:      2,
	SeverityInfo:     1,
}

// ParseSeverity normalizes a severity label such as "high" or "Medium".
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := severityRanks[sev]
	return sev, ok
}

// Valid reports whether s is part of the taxonomy.
func (s Severity) Valid() bool {
	_, ok := severityRanks[s]
	return ok
}

// Rank returns the ordering weight of s, higher is more severe.
// Unknown severities rank below INFO.
func (s Severity) Rank() int {
	return severityRanks[s]
}

// SeverityCounts holds per-severity vulnerability totals.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Add counts one vulnerability of severity s.
func (c *SeverityCounts) Add(s Severity) {
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	case SeverityMedium:
		c.Medium++
	case SeverityLow:
		c.Low++
	case SeverityInfo:
		c.Info++
	}
}

// Total returns the sum over every severity.
func (c SeverityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low + c.Info
}
