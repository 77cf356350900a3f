// Command statestore inspects and maintains the tool's on-disk state:
// cache entries, session-platform mappings, and API throttle slots. It only
// drives the library contracts; nothing here parses state files directly.
package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"
)

// envDataDir overrides the data root when set.
const envDataDir = "GACCODE_STATUSLINE_DIR"

type app struct {
	dataDir  string
	logLevel string
	logger   pslog.Logger
}

// cacheDir returns the directory hosting cache entries, the session store
// and throttle slots.
func (a *app) cacheDir() string {
	return filepath.Join(a.dataDir, "cache")
}

func defaultDataDir() string {
	if dir := os.Getenv(envDataDir); dir != "" {
		return dir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "gaccode-statusline")
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "statestore",
		Short:         "Maintain the statusline's shared on-disk state",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, ok := pslog.ParseLevel(a.logLevel)
			if !ok {
				level = pslog.InfoLevel
			}
			a.logger = pslog.NewStructured(cmd.Context(), cmd.ErrOrStderr()).LogLevel(level)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&a.dataDir, "data-dir", defaultDataDir(),
		"data root (also "+envDataDir+")")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn",
		"log level (trace, debug, info, warn, error)")

	cmd.AddCommand(
		newCleanupCommand(a),
		newStatsCommand(a),
		newSessionsCommand(a),
		newMigrateCommand(a),
	)
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Stderr.WriteString("statestore: " + err.Error() + "\n")
		os.Exit(1)
	}
}
