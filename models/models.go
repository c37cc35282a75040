package models

import (
	"slices"
	"strings"
	"time"
)

// ScanMode defines a scan strategy understood by the scanner.
type ScanMode string

const (
	ModeNormal       ScanMode = "normal"
	ModeStealth      ScanMode = "stealth"
	ModeWeb          ScanMode = "web"
	ModeDiscover     ScanMode = "discover"
	ModePort         ScanMode = "port"
	ModeFullPortOnly ScanMode = "fullportonly"
	ModeWebScan      ScanMode = "webscan"
	ModeVulnScan     ScanMode = "vulnscan"
	ModeAirstrike    ScanMode = "airstrike"
	ModeNuke         ScanMode = "nuke"
	ModeFlyover      ScanMode = "flyover"
)

// AllModes lists every scan mode in catalog order.
var AllModes = []ScanMode{
	ModeNormal,
	ModeStealth,
	ModeWeb,
	ModeDiscover,
	ModePort,
	ModeFullPortOnly,
	ModeWebScan,
	ModeVulnScan,
	ModeAirstrike,
	ModeNuke,
	ModeFlyover,
}

// Valid reports whether m is one of the known modes.
func (m ScanMode) Valid() bool {
	for _, known := range AllModes {
		if m == known {
			return true
		}
	}
	return false
}

// ScanConfig defines a scan proposed by the end-user. It is not trusted
// until it went through the builder.
type ScanConfig struct {
	Target       string   `json:"target" yaml:"target"`
	Mode         ScanMode `json:"mode" yaml:"mode"`
	Workspace    string   `json:"workspace,omitempty" yaml:"workspace,omitempty"`
	Port         string   `json:"port,omitempty" yaml:"port,omitempty"`
	OSINT        bool     `json:"osint" yaml:"osint"`
	Recon        bool     `json:"recon" yaml:"recon"`
	Bruteforce   bool     `json:"bruteforce" yaml:"bruteforce"`
	FullPortScan bool     `json:"fullPortScan" yaml:"fullPortScan"`
	CustomConfig string   `json:"customConfig,omitempty" yaml:"customConfig,omitempty"`
}

// InvocationDescriptor is the rendered command handed to the executor.
type InvocationDescriptor struct {
	Tool string   `json:"tool"`
	Args []string `json:"args"`
}

// Tokens returns the tool name followed by its arguments.
func (d InvocationDescriptor) Tokens() []string {
	tokens := make([]string, 0, len(d.Args)+1)
	tokens = append(tokens, d.Tool)
	return append(tokens, d.Args...)
}

// String returns the command line as shown in the command preview.
func (d InvocationDescriptor) String() string {
	return strings.Join(d.Tokens(), " ")
}

// ScanStatus defines the lifecycle state of a scan result.
type ScanStatus string

const (
	StatusRunning   ScanStatus = "running"
	StatusCompleted ScanStatus = "completed"
	StatusFailed    ScanStatus = "failed"
)

// Valid reports whether s is a known status.
func (s ScanStatus) Valid() bool {
	return s == StatusRunning || s == StatusCompleted || s == StatusFailed
}

// Terminal reports whether no further transition is allowed from s.
func (s ScanStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Vulnerability defines a single finding attached to a scan result.
type Vulnerability struct {
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url,omitempty"`
	Evidence    string   `json:"evidence,omitempty"`
	CVE         string   `json:"cve,omitempty"`
}

// Port defines a probed port on the target.
type Port struct {
	Number   int    `json:"number"`
	Protocol string `json:"protocol"`
	State    string `json:"state"`
	Service  string `json:"service,omitempty"`
	Version  string `json:"version,omitempty"`
}

// PortKey identifies a port within a result.
type PortKey struct {
	Number   int
	Protocol string
}

// Key returns the deduplication key of the port.
func (p Port) Key() PortKey {
	return PortKey{Number: p.Number, Protocol: p.Protocol}
}

// ScanResult defines the JSON structure for a result of a scan.
type ScanResult struct {
	ID              string          `json:"id"`
	Target          string          `json:"target"`
	Mode            ScanMode        `json:"mode"`
	Workspace       string          `json:"workspace"`
	Status          ScanStatus      `json:"status"`
	StartTime       time.Time       `json:"startTime"`
	EndTime         *time.Time      `json:"endTime,omitempty"`
	Duration        *int64          `json:"duration,omitempty"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	Ports           []Port          `json:"ports"`
	Domains         []string        `json:"domains"`
}

// Clone returns a deep copy of the result.
func (r ScanResult) Clone() ScanResult {
	c := r
	if r.EndTime != nil {
		end := *r.EndTime
		c.EndTime = &end
	}
	if r.Duration != nil {
		d := *r.Duration
		c.Duration = &d
	}
	c.Vulnerabilities = slices.Clone(r.Vulnerabilities)
	c.Ports = slices.Clone(r.Ports)
	c.Domains = slices.Clone(r.Domains)
	return c
}

// SeverityCounts counts the result's vulnerabilities per severity.
func (r ScanResult) SeverityCounts() SeverityCounts {
	var counts SeverityCounts
	for _, v := range r.Vulnerabilities {
		counts.Add(v.Severity)
	}
	return counts
}

// Workspace defines a named group of scan results and its rollups.
type Workspace struct {
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	Created            time.Time `json:"created"`
	LastModified       time.Time `json:"lastModified"`
	ScanCount          int       `json:"scanCount"`
	HostCount          int       `json:"hostCount"`
	VulnerabilityCount int       `json:"vulnerabilityCount"`
}

// Stats defines the dashboard rollup over every workspace.
type Stats struct {
	ActiveScans          int            `json:"activeScans"`
	TotalScans           int            `json:"totalScans"`
	TotalVulnerabilities int            `json:"totalVulnerabilities"`
	HostsScanned         int            `json:"hostsScanned"`
	Workspaces           int            `json:"workspaces"`
	Severities           SeverityCounts `json:"severities"`
}

// Confirmation describes a destructive action the caller must confirm
// before it is carried out.
type Confirmation struct {
	Action        string `json:"action"`
	Target        string `json:"target"`
	Prompt        string `json:"prompt"`
	AffectedScans int    `json:"affectedScans"`
}
