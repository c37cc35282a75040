package database

import (
	"encoding/json"
	"time"

	"go-sniper/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WorkspaceDB is the persisted form of models.Workspace.
type WorkspaceDB struct {
	Name               string `gorm:"primaryKey"`
	Description        string
	Created            time.Time
	LastModified       time.Time
	ScanCount          int
	HostCount          int
	VulnerabilityCount int
}

func (WorkspaceDB) TableName() string { return "workspaces" }

// ScanResultDB is the persisted form of models.ScanResult without its
// vulnerabilities and ports, which live in their own tables.
type ScanResultDB struct {
	ID        string `gorm:"primaryKey"`
	Target    string
	Mode      string
	Workspace string `gorm:"index"`
	Status    string
	StartTime time.Time `gorm:"index"`
	EndTime   *time.Time
	Duration  *int64
	Domains   datatypes.JSON
}

func (ScanResultDB) TableName() string { return "scan_results" }

type VulnerabilityDB struct {
	ResultID    string `gorm:"primaryKey"`
	VulnID      string `gorm:"primaryKey"`
	Position    int
	Severity    string
	Name        string
	Description string
	URL         string
	Evidence    string
	CVE         string
}

func (VulnerabilityDB) TableName() string { return "vulnerabilities" }

type PortDB struct {
	ID       uint   `gorm:"primaryKey"`
	ResultID string `gorm:"index"`
	Position int
	Number   int
	Protocol string
	State    string
	Service  string
	Version  string
}

func (PortDB) TableName() string { return "ports" }

// InvocationDB records every rendered command for audit.
type InvocationDB struct {
	gorm.Model
	ResultID string `gorm:"index"`
	Tool     string
	Tokens   datatypes.JSON
}

func (InvocationDB) TableName() string { return "invocations" }

// SettingsDB holds the single row of panel settings.
type SettingsDB struct {
	gorm.Model
	Threads            int
	Timeout            int
	EnableAutoUpdates  bool
	SlackNotifications bool
	SlackWebhookURL    string
	NmapOptions        string
	CustomWordlists    bool
}

func (SettingsDB) TableName() string { return "settings" }

func workspaceRow(ws models.Workspace) WorkspaceDB {
	return WorkspaceDB{
		Name:               ws.Name,
		Description:        ws.Description,
		Created:            ws.Created,
		LastModified:       ws.LastModified,
		ScanCount:          ws.ScanCount,
		HostCount:          ws.HostCount,
		VulnerabilityCount: ws.VulnerabilityCount,
	}
}

func (w WorkspaceDB) model() models.Workspace {
	return models.Workspace{
		Name:               w.Name,
		Description:        w.Description,
		Created:            w.Created.UTC(),
		LastModified:       w.LastModified.UTC(),
		ScanCount:          w.ScanCount,
		HostCount:          w.HostCount,
		VulnerabilityCount: w.VulnerabilityCount,
	}
}

// resultRows splits a result into its table rows.
func resultRows(r models.ScanResult) (ScanResultDB, []VulnerabilityDB, []PortDB, error) {
	domains, err := json.Marshal(r.Domains)
	if err != nil {
		return ScanResultDB{}, nil, nil, err
	}
	row := ScanResultDB{
		ID:        r.ID,
		Target:    r.Target,
		Mode:      string(r.Mode),
		Workspace: r.Workspace,
		Status:    string(r.Status),
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Duration:  r.Duration,
		Domains:   datatypes.JSON(domains),
	}

	vulns := make([]VulnerabilityDB, 0, len(r.Vulnerabilities))
	for i, v := range r.Vulnerabilities {
		vulns = append(vulns, VulnerabilityDB{
			ResultID:    r.ID,
			VulnID:      v.ID,
			Position:    i,
			Severity:    string(v.Severity),
			Name:        v.Name,
			Description: v.Description,
			URL:         v.URL,
			Evidence:    v.Evidence,
			CVE:         v.CVE,
		})
	}

	ports := make([]PortDB, 0, len(r.Ports))
	for i, p := range r.Ports {
		ports = append(ports, PortDB{
			ResultID: r.ID,
			Position: i,
			Number:   p.Number,
			Protocol: p.Protocol,
			State:    p.State,
			Service:  p.Service,
			Version:  p.Version,
		})
	}
	return row, vulns, ports, nil
}

func (r ScanResultDB) model() (models.ScanResult, error) {
	out := models.ScanResult{
		ID:              r.ID,
		Target:          r.Target,
		Mode:            models.ScanMode(r.Mode),
		Workspace:       r.Workspace,
		Status:          models.ScanStatus(r.Status),
		StartTime:       r.StartTime.UTC(),
		Duration:        r.Duration,
		Vulnerabilities: []models.Vulnerability{},
		Ports:           []models.Port{},
		Domains:         []string{},
	}
	if r.EndTime != nil {
		end := r.EndTime.UTC()
		out.EndTime = &end
	}
	if len(r.Domains) > 0 {
		if err := json.Unmarshal(r.Domains, &out.Domains); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (v VulnerabilityDB) model() models.Vulnerability {
	return models.Vulnerability{
		ID:          v.VulnID,
		Severity:    models.Severity(v.Severity),
		Name:        v.Name,
		Description: v.Description,
		URL:         v.URL,
		Evidence:    v.Evidence,
		CVE:         v.CVE,
	}
}

func (p PortDB) model() models.Port {
	return models.Port{
		Number:   p.Number,
		Protocol: p.Protocol,
		State:    p.State,
		Service:  p.Service,
		Version:  p.Version,
	}
}

func settingsRow(s models.Settings) SettingsDB {
	return SettingsDB{
		Threads:            s.Threads,
		Timeout:            s.Timeout,
		EnableAutoUpdates:  s.EnableAutoUpdates,
		SlackNotifications: s.SlackNotifications,
		SlackWebhookURL:    s.SlackWebhookURL,
		NmapOptions:        s.NmapOptions,
		CustomWordlists:    s.CustomWordlists,
	}
}

func (s SettingsDB) model() models.Settings {
	return models.Settings{
		Threads:            s.Threads,
		Timeout:            s.Timeout,
		EnableAutoUpdates:  s.EnableAutoUpdates,
		SlackNotifications: s.SlackNotifications,
		SlackWebhookURL:    s.SlackWebhookURL,
		NmapOptions:        s.NmapOptions,
		CustomWordlists:    s.CustomWordlists,
	}
}
