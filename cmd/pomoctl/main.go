package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"pomodoro/timerd/internal/channel"
	"pomodoro/timerd/internal/client"
	"pomodoro/timerd/internal/model"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalFlags struct {
	server string
	token  string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "pomoctl",
		Short:         "Control and observe a running timerd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.server, "server", envOr("TIMERD_URL", "http://localhost:8080"), "timerd base URL")
	root.PersistentFlags().StringVar(&flags.token, "token", os.Getenv("TIMERD_TOKEN"), "bearer token")

	root.AddCommand(newStateCmd(flags))
	root.AddCommand(newStartCmd(flags))
	root.AddCommand(newPauseCmd(flags))
	root.AddCommand(newSkipCmd(flags))
	root.AddCommand(newWatchCmd(flags))
	root.AddCommand(newHistoryCmd(flags))
	root.AddCommand(newStatsCmd(flags))
	root.AddCommand(newSettingsCmd(flags))
	return root
}

func (g *globalFlags) client() *client.Client {
	return client.New(g.server, g.token, nil)
}

func timeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), client.DefaultTimeout)
}

func newStateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the current timer state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			state, err := flags.client().State(ctx)
			if err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), state)
			return nil
		},
	}
}

func newStartCmd(flags *globalFlags) *cobra.Command {
	var (
		minutes     int
		sessionType string
		session     int
		info        model.SessionInfo
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start or resume the timer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := channel.Command{}
			if cmd.Flags().Changed("minutes") {
				seconds := minutes * 60
				start.CurrentTime = &seconds
				start.TotalTime = &seconds
			}
			if sessionType != "" {
				st := model.SessionType(sessionType)
				start.SessionType = &st
			}
			if cmd.Flags().Changed("session") {
				start.CurrentSession = &session
			}
			if info != (model.SessionInfo{}) {
				start.SessionInfo = &info
			}

			ctx, cancel := timeout(cmd)
			defer cancel()
			return flags.client().Start(ctx, start)
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 0, "session length in minutes (0 uses the configured length)")
	cmd.Flags().StringVar(&sessionType, "type", "", "session type: focus, break or long_break")
	cmd.Flags().IntVar(&session, "session", 1, "index within the cycle")
	cmd.Flags().StringVar(&info.Goal, "goal", "", "what this focus session should achieve")
	cmd.Flags().StringVar(&info.StartingPoint, "starting-point", "", "where the work starts from")
	cmd.Flags().StringVar(&info.Hazards, "hazards", "", "what could derail the session")
	cmd.Flags().IntVar(&info.Energy, "energy", 0, "energy level 1-5")
	cmd.Flags().IntVar(&info.Morale, "morale", 0, "morale level 1-5")
	return cmd
}

func newPauseCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the running timer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			return flags.client().Pause(ctx)
		},
	}
}

func newSkipCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "skip",
		Short: "Skip to the next session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			c := flags.client()
			// Send the state this observer last saw, as a UI would.
			state, err := c.State(ctx)
			if err != nil {
				return err
			}
			if err := c.Skip(ctx, &state.SessionType, &state.CurrentSession); err != nil {
				return err
			}
			next, err := c.State(ctx)
			if err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), next)
			return nil
		},
	}
}

func newWatchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream timer notifications until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			return flags.client().Watch(ctx, func(n channel.Notification) {
				switch n.Type {
				case channel.NotifyTimerUpdate:
					if n.CurrentTime != nil {
						fmt.Fprintf(out, "\r%s ", clockFace(*n.CurrentTime))
					}
				case channel.NotifySessionComplete:
					fmt.Fprintln(out)
					if n.NewState != nil {
						printState(out, *n.NewState)
					}
				case channel.NotifyAlert:
					if n.Alert != nil {
						fmt.Fprintf(out, "\n%s %s\n", n.Alert.Title, n.Alert.Message)
					}
				}
			})
		},
	}
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			sessions, err := flags.client().History(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range sessions {
				goal := ""
				if s.SessionInfo != nil {
					goal = s.SessionInfo.Goal
				}
				fmt.Fprintf(out, "%s  %-10s %6s  %s\n", s.Timestamp.Local().Format("2006-01-02 15:04"), s.Type, clockFace(s.Duration), goal)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of sessions")
	return cmd
}

func newStatsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show today's focus totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			stats, err := flags.client().Today(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d sessions, %d minutes focused\n", stats.Date, stats.Sessions, stats.FocusTime/60)
			return nil
		},
	}
}

func newSettingsCmd(flags *globalFlags) *cobra.Command {
	var settings model.Settings
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Replace the timer settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			if err := flags.client().UpdateSettings(ctx, settings); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(settings.Normalized())
		},
	}
	cmd.Flags().IntVar(&settings.FocusDuration, "focus", model.DefaultFocusMinutes, "focus minutes")
	cmd.Flags().IntVar(&settings.BreakDuration, "break", model.DefaultBreakMinutes, "break minutes")
	cmd.Flags().IntVar(&settings.LongBreakDuration, "long-break", model.DefaultLongBreakMinutes, "long break minutes")
	cmd.Flags().BoolVar(&settings.SoundEnabled, "sound", model.DefaultSoundEnabled, "play sounds")
	cmd.Flags().BoolVar(&settings.DesktopNotifications, "notifications", model.DefaultDesktopNotifyFlag, "show desktop notifications")
	return cmd
}

func printState(out io.Writer, s model.TimerState) {
	status := "paused"
	if s.IsRunning {
		status = "running"
	}
	fmt.Fprintf(out, "%s %d/%d  %s  %s (%.0f%%)\n",
		s.SessionType.Label(), s.CurrentSession, s.TotalSessions, clockFace(s.CurrentTime), status, s.Progress()*100)
}

func clockFace(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
