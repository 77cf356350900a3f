package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/DrayChou/gaccode-statusline/cache"
	"github.com/DrayChou/gaccode-statusline/session"
	"github.com/DrayChou/gaccode-statusline/throttle"
)

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize cache, session and throttle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cs := cache.New(a.cacheDir(), cache.WithLogger(a.logger)).Stats()
			fmt.Fprintf(out, "cache (%s)\n", cs.Dir)
			fmt.Fprintf(out, "  disk entries:   %d\n", cs.DiskEntries)

			ss := session.New(a.cacheDir(), session.WithLogger(a.logger)).Stats()
			fmt.Fprintf(out, "sessions\n")
			fmt.Fprintf(out, "  live:           %d\n", ss.TotalSessions)
			fmt.Fprintf(out, "  expired:        %d\n", ss.ExpiredSessions)
			fmt.Fprintf(out, "  shard dirs:     %d\n", ss.ShardDirs)
			for _, name := range sortedKeys(ss.Platforms) {
				fmt.Fprintf(out, "    %-14s%d\n", name, ss.Platforms[name])
			}

			status := throttle.New(a.cacheDir(), throttle.WithLogger(a.logger)).Status()
			fmt.Fprintf(out, "throttle slots\n")
			for _, slot := range sortedKeys(status) {
				st := status[slot]
				last := time.Unix(int64(st.LastRequestTime), 0)
				state := "ready"
				if !st.CanRequest {
					state = fmt.Sprintf("wait %.0fs", st.RemainingSecs)
				}
				fmt.Fprintf(out, "  %-28s last %s, %s\n", slot, humanize.Time(last), state)
			}
			return nil
		},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
