package main

import (
	"fmt"

	"github.com/spf13/cobra"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/DrayChou/gaccode-statusline/cache"
	"github.com/DrayChou/gaccode-statusline/session"
	"github.com/DrayChou/gaccode-statusline/throttle"
)

func newCleanupCommand(a *app) *cobra.Command {
	var retentionFlag, lockAgeFlag string
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired cache entries, sessions and stale throttle slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			retention, err := str2duration.ParseDuration(retentionFlag)
			if err != nil {
				return fmt.Errorf("invalid --retention %q: %w", retentionFlag, err)
			}
			lockAge, err := str2duration.ParseDuration(lockAgeFlag)
			if err != nil {
				return fmt.Errorf("invalid --lock-age %q: %w", lockAgeFlag, err)
			}

			store := cache.New(a.cacheDir(), cache.WithLogger(a.logger))
			registry := session.New(a.cacheDir(),
				session.WithLogger(a.logger), session.WithRetention(retention))
			guard := throttle.New(a.cacheDir(), throttle.WithLogger(a.logger))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cache entries removed:   %d\n", store.CleanupExpired())
			fmt.Fprintf(out, "sessions removed:        %d\n", registry.CleanupExpiredSessions(retention))
			fmt.Fprintf(out, "throttle slots removed:  %d\n", guard.CleanupOldLocks(lockAge))
			return nil
		},
	}
	cmd.Flags().StringVar(&retentionFlag, "retention", "7d", "session retention window")
	cmd.Flags().StringVar(&lockAgeFlag, "lock-age", "24h", "max age for throttle slot documents")
	return cmd
}
