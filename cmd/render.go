package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go-sniper/builder"
	"go-sniper/models"
	"gopkg.in/yaml.v3"
)

var (
	scanFile   string
	renderTool string
	renderJSON bool
	scanFlags  models.ScanConfig
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Validate a scan configuration and print the sniper command",
	Example: `  go-sniper render -t example.com -m normal --osint --recon
  go-sniper render --file scan.yaml --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadScanConfig(cmd)
		if err != nil {
			return err
		}

		_, d, err := builder.New(renderTool).Preview(cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if renderJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		}
		_, err = fmt.Fprintln(out, d.String())
		return err
	},
}

// loadScanConfig reads --file, then lets explicitly set flags override it.
func loadScanConfig(cmd *cobra.Command) (models.ScanConfig, error) {
	var cfg models.ScanConfig
	if scanFile != "" {
		data, err := os.ReadFile(scanFile)
		if err != nil {
			return cfg, fmt.Errorf("read scan file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse scan file %s: %w", scanFile, err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("target") {
		cfg.Target = scanFlags.Target
	}
	if flags.Changed("mode") {
		cfg.Mode = scanFlags.Mode
	}
	if flags.Changed("workspace") {
		cfg.Workspace = scanFlags.Workspace
	}
	if flags.Changed("port") {
		cfg.Port = scanFlags.Port
	}
	if flags.Changed("osint") {
		cfg.OSINT = scanFlags.OSINT
	}
	if flags.Changed("recon") {
		cfg.Recon = scanFlags.Recon
	}
	if flags.Changed("bruteforce") {
		cfg.Bruteforce = scanFlags.Bruteforce
	}
	if flags.Changed("full-port-scan") {
		cfg.FullPortScan = scanFlags.FullPortScan
	}
	if flags.Changed("custom-config") {
		cfg.CustomConfig = scanFlags.CustomConfig
	}
	return cfg, nil
}

func init() {
	f := renderCmd.Flags()
	f.StringVarP(&scanFile, "file", "f", "", "YAML file holding the scan configuration")
	f.StringVar(&renderTool, "tool", builder.DefaultTool, "Scanner binary name")
	f.BoolVar(&renderJSON, "json", false, "Print the invocation as JSON")

	f.StringVarP(&scanFlags.Target, "target", "t", "", "Target host, domain or CIDR")
	f.StringVarP((*string)(&scanFlags.Mode), "mode", "m", "", "Scan mode (see 'modes')")
	f.StringVarP(&scanFlags.Workspace, "workspace", "w", "", "Workspace name")
	f.StringVarP(&scanFlags.Port, "port", "p", "", "Port, port mode only")
	f.BoolVar(&scanFlags.OSINT, "osint", false, "Enable OSINT")
	f.BoolVar(&scanFlags.Recon, "recon", false, "Enable recon")
	f.BoolVar(&scanFlags.Bruteforce, "bruteforce", false, "Enable bruteforce")
	f.BoolVar(&scanFlags.FullPortScan, "full-port-scan", false, "Scan all ports")
	f.StringVar(&scanFlags.CustomConfig, "custom-config", "", "Extra scanner arguments")
}
