package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DrayChou/gaccode-statusline/platform"
	"github.com/DrayChou/gaccode-statusline/session"
)

func newSessionsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage the session registry",
	}
	cmd.AddCommand(
		newSessionsListCommand(a),
		newSessionsSetCommand(a),
		newSessionsResolveCommand(a),
		newSessionsNewCommand(a),
	)
	return cmd
}

func newSessionsListCommand(a *app) *cobra.Command {
	var platformName string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List live sessions, optionally filtered by platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := session.New(a.cacheDir(), session.WithLogger(a.logger))
			out := cmd.OutOrStdout()

			platforms := platform.All()
			if platformName != "" {
				p := platform.Platform(platformName)
				if !p.Known() {
					return fmt.Errorf("unknown platform %q", platformName)
				}
				platforms = []platform.Platform{p}
			}
			total := 0
			for _, p := range platforms {
				for id, rec := range reg.ListSessions(p) {
					last := time.Unix(int64(rec.LastActive), 0).UTC()
					fmt.Fprintf(out, "%s  %-12s last active %s\n",
						id, rec.Platform, last.Format(time.RFC3339))
					total++
				}
			}
			fmt.Fprintf(out, "%d session(s)\n", total)
			return nil
		},
	}
	cmd.Flags().StringVar(&platformName, "platform", "", "restrict to one platform")
	return cmd
}

func newSessionsSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <session-id> <platform>",
		Short: "Record the platform for a session identifier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := platform.Platform(args[1])
			if !p.Known() {
				return fmt.Errorf("unknown platform %q", args[1])
			}
			reg := session.New(a.cacheDir(), session.WithLogger(a.logger))
			if !reg.SetSessionPlatform(args[0], p, nil) {
				return fmt.Errorf("failed to record session %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %s -> %s\n", args[0], p)
			return nil
		},
	}
}

func newSessionsResolveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <session-id>",
		Short: "Resolve a session identifier to its platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := session.New(a.cacheDir(), session.WithLogger(a.logger))
			fmt.Fprintln(cmd.OutOrStdout(), reg.GetSessionPlatform(args[0]))
			return nil
		},
	}
}

func newSessionsNewCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new <platform>",
		Short: "Generate and register a prefixed/standard identifier pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := platform.Platform(args[0])
			if !p.Known() {
				return fmt.Errorf("unknown platform %q", args[0])
			}
			reg := session.New(a.cacheDir(), session.WithLogger(a.logger))
			prefixed, standard, ok := reg.RegisterDual(p, nil)
			if !ok {
				return fmt.Errorf("failed to register session pair for %s", p)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "prefixed: %s\n", prefixed)
			fmt.Fprintf(out, "standard: %s\n", standard)
			return nil
		},
	}
}
