// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package cmd

import (
	"encoding/json"
	"net/http"
	"runtime"

	"github.com/spf13/cobra"

	"routingtables/common/reporter"
)

// Version and BuildDate are set at link time (-ldflags) by the build
// system; they default to placeholders for local builds.
var (
	Version   = "dev"
	BuildDate = "unknown"
)

func init() {
	RootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Long:  `Display version and build information about the routing-tables engine.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.Printf("routingtables %s\n", Version)
		cmd.Printf("  Built: %s\n", BuildDate)
		cmd.Printf("  Built with: %s\n", runtime.Version())
		return nil
	},
}

// versionHandler serves build information as JSON.
func versionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version":  Version,
			"built":    BuildDate,
			"compiler": runtime.Version(),
		})
	}
}

// versionMetrics exposes build information as a Prometheus gauge.
func versionMetrics(r *reporter.Reporter) {
	r.GaugeVec(reporter.GaugeOpts{
		Name: "info",
		Help: "Routing-tables engine build information.",
	}, []string{"version", "compiler"}).
		WithLabelValues(Version, runtime.Version()).Set(1)
}
