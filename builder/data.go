package builder

import "go-sniper/models"

// DefaultTool is the scanner binary name the invocation starts with.
const DefaultTool = "sniper"

// Field names a ScanConfig option that a mode may consume.
type Field string

const (
	FieldWorkspace    Field = "workspace"
	FieldPort         Field = "port"
	FieldOSINT        Field = "osint"
	FieldRecon        Field = "recon"
	FieldBruteforce   Field = "bruteforce"
	FieldFullPortScan Field = "fullPortScan"
	FieldCustomConfig Field = "customConfig"
)

// fieldOrder is the order optional fields are rendered and listed in.
var fieldOrder = []Field{
	FieldWorkspace,
	FieldPort,
	FieldOSINT,
	FieldRecon,
	FieldBruteforce,
	FieldFullPortScan,
	FieldCustomConfig,
}

type fieldSet map[Field]bool

// modeEntry defines how a mode is presented and which options it consumes.
type modeEntry struct {
	label       string
	description string
	fields      fieldSet
}

func fields(extra ...Field) fieldSet {
	set := fieldSet{FieldWorkspace: true, FieldCustomConfig: true}
	for _, f := range extra {
		set[f] = true
	}
	return set
}

// modeTable maps every scan mode to its options. Adding a mode is a single entry here.
var modeTable = map[models.ScanMode]modeEntry{
	models.ModeNormal: {
		label:       "Normal",
		description: "Basic scan with active and passive checks",
		fields:      fields(FieldOSINT, FieldRecon, FieldBruteforce, FieldFullPortScan),
	},
	models.ModeStealth: {
		label:       "Stealth",
		description: "Non-intrusive scan to avoid detection",
		fields:      fields(FieldOSINT, FieldRecon),
	},
	models.ModeWeb: {
		label:       "Web",
		description: "Full web application scan (ports 80/443)",
		fields:      fields(FieldRecon),
	},
	models.ModeDiscover: {
		label:       "Discover",
		description: "Network discovery scan for CIDR ranges",
		fields:      fields(),
	},
	models.ModePort: {
		label:       "Port",
		description: "Scan a single port",
		fields:      fields(FieldPort),
	},
	models.ModeFullPortOnly: {
		label:       "Full Port",
		description: "Comprehensive port scan only",
		fields:      fields(),
	},
	models.ModeWebScan: {
		label:       "Web Scan",
		description: "Burpsuite and Arachni web scanning",
		fields:      fields(),
	},
	models.ModeVulnScan: {
		label:       "Vulnerability",
		description: "OpenVAS vulnerability assessment",
		fields:      fields(),
	},
	models.ModeAirstrike: {
		label:       "Airstrike",
		description: "Fast enumeration of multiple targets",
		fields:      fields(FieldOSINT, FieldRecon, FieldBruteforce, FieldFullPortScan),
	},
	models.ModeNuke: {
		label:       "Nuke",
		description: "Full audit of multiple targets",
		fields:      fields(FieldOSINT, FieldRecon, FieldBruteforce, FieldFullPortScan),
	},
	models.ModeFlyover: {
		label:       "Flyover",
		description: "High-speed multi-threaded scanning",
		fields:      fields(FieldOSINT, FieldRecon),
	},
}

// toggleFlags maps boolean options to their flag.
var toggleFlags = map[Field]string{
	FieldOSINT:        "-o",
	FieldRecon:        "-re",
	FieldBruteforce:   "-b",
	FieldFullPortScan: "-fp",
}

// ModeInfo describes a mode for the scan form.
type ModeInfo struct {
	Value       models.ScanMode `json:"value"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
	Fields      []Field         `json:"fields"`
}
