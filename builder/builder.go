package builder

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"go-sniper/models"
)

// ValidatedConfig is a ScanConfig that passed Validate. It can only be
// obtained through Validate, so Render never sees unchecked input.
type ValidatedConfig struct {
	cfg models.ScanConfig
}

// Config returns a copy of the normalized configuration.
func (v ValidatedConfig) Config() models.ScanConfig {
	return v.cfg
}

// Builder renders validated configurations into invocations.
type Builder struct {
	tool string
}

// New returns a *Builder for the given tool name. An empty name
// falls back to DefaultTool.
func New(tool string) *Builder {
	tool = strings.TrimSpace(tool)
	if tool == "" {
		tool = DefaultTool
	}
	return &Builder{tool: tool}
}

// Tool returns the scanner binary name.
func (b *Builder) Tool() string {
	return b.tool
}

// Validate checks a raw configuration and normalizes it. Options the
// mode does not consume are dropped.
func Validate(cfg models.ScanConfig) (ValidatedConfig, error) {
	out := models.ScanConfig{
		Target:       strings.TrimSpace(cfg.Target),
		Mode:         models.ScanMode(strings.ToLower(strings.TrimSpace(string(cfg.Mode)))),
		Workspace:    strings.TrimSpace(cfg.Workspace),
		CustomConfig: strings.TrimSpace(cfg.CustomConfig),
	}

	if out.Target == "" {
		return ValidatedConfig{}, models.ErrMissingTarget
	}
	if !models.IsSingleToken(out.Target) {
		return ValidatedConfig{}, models.ErrInvalidTarget.With("invalid target %q", out.Target)
	}

	entry, ok := modeTable[out.Mode]
	if !ok {
		return ValidatedConfig{}, models.ErrInvalidMode.With("unknown scan mode %q", cfg.Mode)
	}

	if entry.fields[FieldPort] {
		port, err := normalizePort(cfg.Port)
		if err != nil {
			return ValidatedConfig{}, err
		}
		out.Port = port
	}

	if out.Workspace != "" && !models.IsSingleToken(out.Workspace) {
		return ValidatedConfig{}, models.ErrInvalidWorkspace.With("invalid workspace %q", out.Workspace)
	}

	if out.CustomConfig != "" {
		if i := strings.IndexFunc(out.CustomConfig, isUnsafe); i >= 0 {
			r, _ := utf8.DecodeRuneInString(out.CustomConfig[i:])
			return ValidatedConfig{}, models.ErrUnsafeCustomConfig.With("custom config contains %q", r)
		}
		out.CustomConfig = strings.Join(strings.Fields(out.CustomConfig), " ")
	}

	out.OSINT = cfg.OSINT && entry.fields[FieldOSINT]
	out.Recon = cfg.Recon && entry.fields[FieldRecon]
	out.Bruteforce = cfg.Bruteforce && entry.fields[FieldBruteforce]
	out.FullPortScan = cfg.FullPortScan && entry.fields[FieldFullPortScan]

	return ValidatedConfig{cfg: out}, nil
}

// Render turns a validated configuration into the invocation handed to
// the executor. It is a pure function of its input.
func (b *Builder) Render(v ValidatedConfig) models.InvocationDescriptor {
	cfg := v.cfg
	entry := modeTable[cfg.Mode]

	args := []string{"-t", cfg.Target, "-m", string(cfg.Mode)}
	for _, f := range fieldOrder {
		if !entry.fields[f] {
			continue
		}
		switch f {
		case FieldWorkspace:
			if cfg.Workspace != "" {
				args = append(args, "-w", cfg.Workspace)
			}
		case FieldPort:
			if cfg.Port != "" {
				args = append(args, "-p", cfg.Port)
			}
		case FieldOSINT, FieldRecon, FieldBruteforce, FieldFullPortScan:
			if toggle(cfg, f) {
				args = append(args, toggleFlags[f])
			}
		case FieldCustomConfig:
			args = append(args, strings.Fields(cfg.CustomConfig)...)
		}
	}

	return models.InvocationDescriptor{Tool: b.tool, Args: args}
}

// Preview validates and renders cfg in one step.
func (b *Builder) Preview(cfg models.ScanConfig) (ValidatedConfig, models.InvocationDescriptor, error) {
	v, err := Validate(cfg)
	if err != nil {
		logrus.Debugf("Scan config rejected: %v", err)
		return ValidatedConfig{}, models.InvocationDescriptor{}, err
	}
	return v, b.Render(v), nil
}

// Modes returns the mode catalog in enumeration order.
func Modes() []ModeInfo {
	infos := make([]ModeInfo, 0, len(models.AllModes))
	for _, m := range models.AllModes {
		entry := modeTable[m]
		info := ModeInfo{
			Value:       m,
			Label:       entry.label,
			Description: entry.description,
		}
		for _, f := range fieldOrder {
			if entry.fields[f] {
				info.Fields = append(info.Fields, f)
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// Applies reports whether mode consumes field.
func Applies(mode models.ScanMode, field Field) bool {
	return modeTable[mode].fields[field]
}

func toggle(cfg models.ScanConfig, f Field) bool {
	switch f {
	case FieldOSINT:
		return cfg.OSINT
	case FieldRecon:
		return cfg.Recon
	case FieldBruteforce:
		return cfg.Bruteforce
	case FieldFullPortScan:
		return cfg.FullPortScan
	}
	return false
}

// normalizePort parses port and returns its canonical decimal form.
func normalizePort(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", models.ErrMissingPort
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 65535 {
		return "", models.ErrInvalidPort.With("invalid port %q", raw)
	}
	return strconv.Itoa(n), nil
}

func isUnsafe(r rune) bool {
	return strings.ContainsRune(models.ShellMeta, r) || (unicode.IsControl(r) && !unicode.IsSpace(r)) || r == '\n' || r == '\r'
}
