package aggregator

import (
	"strings"
	"time"

	"go-sniper/models"
)

// normalizeResult checks an inbound result against the schema and returns
// a canonical copy: trimmed strings, UTC times, deduplicated ports and
// domains, derived duration.
func normalizeResult(in models.ScanResult) (models.ScanResult, error) {
	r := models.ScanResult{
		ID:        strings.TrimSpace(in.ID),
		Target:    strings.TrimSpace(in.Target),
		Mode:      models.ScanMode(strings.ToLower(strings.TrimSpace(string(in.Mode)))),
		Workspace: strings.TrimSpace(in.Workspace),
		Status:    models.ScanStatus(strings.ToLower(strings.TrimSpace(string(in.Status)))),
	}

	switch {
	case r.ID == "":
		return r, models.ErrMissingField.OnField("id")
	case r.Target == "":
		return r, models.ErrMissingField.OnField("target")
	case r.Workspace == "":
		return r, models.ErrMissingField.OnField("workspace")
	case r.Mode == "":
		return r, models.ErrMissingField.OnField("mode")
	case r.Status == "":
		return r, models.ErrMissingField.OnField("status")
	case in.StartTime.IsZero():
		return r, models.ErrMissingField.OnField("startTime")
	}
	if !r.Mode.Valid() {
		return r, models.ErrInvalidMode.With("unknown scan mode %q", in.Mode)
	}
	if !r.Status.Valid() {
		return r, models.ErrInvalidField.OnField("status").With("unknown status %q", in.Status)
	}

	r.StartTime = in.StartTime.UTC()
	if r.Status.Terminal() {
		if in.EndTime == nil || in.EndTime.IsZero() {
			return r, models.ErrMissingEndTime
		}
		if err := setEnd(&r, *in.EndTime); err != nil {
			return r, err
		}
	} else if in.EndTime != nil && !in.EndTime.IsZero() {
		return r, models.ErrInvalidTimeRange.With("a running result cannot have an end time")
	}

	vulns, err := normalizeVulnerabilities(in.Vulnerabilities)
	if err != nil {
		return r, err
	}
	r.Vulnerabilities = vulns

	ports, err := normalizePorts(in.Ports)
	if err != nil {
		return r, err
	}
	r.Ports = ports
	r.Domains = normalizeDomains(in.Domains)

	return r, nil
}

// setEnd stores the end time and derives the duration in seconds.
func setEnd(r *models.ScanResult, end time.Time) error {
	end = end.UTC()
	if r.StartTime.After(end) {
		return models.ErrInvalidTimeRange.With("start %s is after end %s",
			r.StartTime.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	d := int64(end.Sub(r.StartTime) / time.Second)
	r.EndTime = &end
	r.Duration = &d
	return nil
}

func normalizeVulnerabilities(in []models.Vulnerability) ([]models.Vulnerability, error) {
	out := make([]models.Vulnerability, 0, len(in))
	seen := make(map[string]struct{}, len(in))

	for i, v := range in {
		v.ID = strings.TrimSpace(v.ID)
		v.Name = strings.TrimSpace(v.Name)
		if v.ID == "" {
			return nil, models.ErrMissingField.OnField("vulnerabilities.id").With("vulnerability %d has no id", i)
		}
		if _, dup := seen[v.ID]; dup {
			return nil, models.ErrDuplicateVulnerabilityID.With("vulnerability id %q is used twice", v.ID)
		}
		seen[v.ID] = struct{}{}

		sev, ok := models.ParseSeverity(string(v.Severity))
		if !ok {
			return nil, models.ErrInvalidSeverity.With("vulnerability %q has unknown severity %q", v.ID, v.Severity)
		}
		v.Severity = sev
		if v.Name == "" {
			return nil, models.ErrMissingField.OnField("vulnerabilities.name").With("vulnerability %q has no name", v.ID)
		}
		out = append(out, v)
	}
	return out, nil
}

// normalizePorts validates ports and keeps the first occurrence of each
// (number, protocol) pair.
func normalizePorts(in []models.Port) ([]models.Port, error) {
	out := make([]models.Port, 0, len(in))
	seen := make(map[models.PortKey]struct{}, len(in))

	for _, p := range in {
		p.Protocol = strings.ToLower(strings.TrimSpace(p.Protocol))
		p.State = strings.ToLower(strings.TrimSpace(p.State))

		if p.Number < 1 || p.Number > 65535 {
			return nil, models.ErrInvalidPort.OnField("ports.number").With("port %d is out of range", p.Number)
		}
		if p.Protocol != "tcp" && p.Protocol != "udp" {
			return nil, models.ErrInvalidField.OnField("ports.protocol").With("port %d has unknown protocol %q", p.Number, p.Protocol)
		}
		switch p.State {
		case "open", "closed", "filtered":
		default:
			return nil, models.ErrInvalidField.OnField("ports.state").With("port %d has unknown state %q", p.Number, p.State)
		}

		if _, dup := seen[p.Key()]; dup {
			continue
		}
		seen[p.Key()] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// normalizeDomains drops empties and case-insensitive duplicates,
// keeping the first spelling.
func normalizeDomains(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, d := range in {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		key := strings.ToLower(d)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return out
}
