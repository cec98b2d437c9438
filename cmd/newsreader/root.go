package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/glabrego/newsreader/internal/reader"
	"github.com/glabrego/newsreader/internal/tui"
)

func newRootCmd(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "newsreader",
		Short: "Read RSS and Atom feeds in the terminal",
		Long: `newsreader merges your RSS/Atom subscriptions into one article stream.

Run without a subcommand to start the interactive reader.

Examples:
  newsreader
  newsreader feeds add "Go Blog" https://go.dev/blog/feed.atom
  newsreader refresh --scope saved
  newsreader export backup.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), open)
		},
	}

	rootCmd.AddCommand(newFeedsCmd(open))
	rootCmd.AddCommand(newRefreshCmd(open))
	rootCmd.AddCommand(newPrefsCmd(open))
	rootCmd.AddCommand(newExportCmd(open))
	rootCmd.AddCommand(newImportCmd(open))
	return rootCmd
}

func runTUI(ctx context.Context, open opener) error {
	s, err := open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	program := tea.NewProgram(tui.NewModel(s.engine), tea.WithAltScreen(), tea.WithContext(ctx))
	// Send blocks until the program reads it, and the listener can fire
	// from inside Update.
	s.engine.SetListener(func(ev reader.Event) {
		go program.Send(tui.EngineEventMsg{Event: ev})
	})
	s.engine.StartAutoRefresh()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

func newFeedsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Manage feed subscriptions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List subscribed feeds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tURL")
			for _, f := range s.engine.ListFeeds() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", f.ID, f.Name, f.URL)
			}
			return w.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add <name> <url>",
		Short: "Subscribe to a feed and fetch it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			feed, err := s.engine.AddFeed(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s) with %d articles\n", feed.Name, feed.ID, s.engine.Count(reader.FeedScope(feed.ID)))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Unsubscribe from a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.engine.RemoveFeed(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func newRefreshCmd(open opener) *cobra.Command {
	var (
		scope  string
		search string
	)
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch every feed and print the merged article list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			report := s.engine.RefreshAll(cmd.Context())
			if err := s.engine.SetScope(reader.Scope(scope)); err != nil {
				return err
			}
			s.engine.SetSearchQuery(search)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PUBLISHED\tFEED\tTITLE\tLINK")
			for a := range s.engine.FilteredView(s.engine.Scope(), s.engine.SearchQuery()) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", publishedLabel(a.ParsedDate), a.FeedName, a.Title, a.Link)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			printFailures(cmd, s.engine, report)
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", string(reader.ScopeAll), "all, saved or a feed id")
	cmd.Flags().StringVar(&search, "search", "", "only show articles matching this text")
	return cmd
}

func newPrefsCmd(open opener) *cobra.Command {
	var (
		sortOrder   string
		limit       int
		autoRefresh int
		grid        string
	)
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change reader preferences",
		Long: `Show reader preferences, or change them with flags.

Examples:
  newsreader prefs
  newsreader prefs --sort oldest --limit 30
  newsreader prefs --auto-refresh 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			flags := cmd.Flags()
			if flags.Changed("sort") {
				if err := s.engine.SetSortOrder(ctx, reader.SortOrder(sortOrder)); err != nil {
					return err
				}
			}
			if flags.Changed("grid") {
				switch grid {
				case "on":
					s.engine.SetGridView(ctx, true)
				case "off":
					s.engine.SetGridView(ctx, false)
				default:
					return fmt.Errorf("%w: grid must be on or off", reader.ErrInvalidInput)
				}
			}
			if flags.Changed("auto-refresh") {
				if err := s.engine.SetAutoRefreshInterval(ctx, autoRefresh); err != nil {
					return err
				}
			}
			if flags.Changed("limit") {
				report, err := s.engine.SetArticleLimit(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d feeds with the new limit (%d articles)\n", report.Feeds, report.Articles)
				printFailures(cmd, s.engine, report)
			}

			p := s.engine.Preferences()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "sort\t%s\n", p.SortOrder)
			fmt.Fprintf(w, "grid\t%s\n", onOff(p.GridView))
			fmt.Fprintf(w, "limit\t%d\n", p.ArticleLimit)
			fmt.Fprintf(w, "auto-refresh\t%s\n", autoRefreshLabel(p.AutoRefreshMinutes))
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&sortOrder, "sort", "", "newest or oldest")
	cmd.Flags().IntVar(&limit, "limit", reader.DefaultArticleLimit, "articles fetched per feed (max 50)")
	cmd.Flags().IntVar(&autoRefresh, "auto-refresh", reader.DefaultAutoRefreshMinutes, "minutes between background refreshes, 0 disables")
	cmd.Flags().StringVar(&grid, "grid", "", "on or off")
	return cmd
}

func newExportCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write feeds and saved articles as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if len(args) == 0 {
				return s.engine.Export(cmd.OutOrStdout())
			}
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			if err := s.engine.Export(f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close export file: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d feeds to %s\n", len(s.engine.ListFeeds()), args[0])
			return nil
		},
	}
}

func newImportCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace feeds and saved articles from an export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer f.Close()

			if err := s.engine.Import(cmd.Context(), f); err != nil {
				return err
			}
			report := s.engine.RefreshAll(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d feeds and %d saved articles; fetched %d articles\n",
				len(s.engine.ListFeeds()), len(s.engine.SavedLinks()), report.Articles)
			printFailures(cmd, s.engine, report)
			return nil
		},
	}
}

func printFailures(cmd *cobra.Command, engine *reader.Engine, report reader.RefreshReport) {
	for id, err := range report.Failures {
		name := id
		if feed, ok := engine.Feed(id); ok {
			name = feed.Name
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %v\n", name, err)
	}
}

func publishedLabel(t time.Time) string {
	if t.Equal(time.Unix(0, 0)) || t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func autoRefreshLabel(minutes int) string {
	if minutes == 0 {
		return "off"
	}
	return fmt.Sprintf("every %d min", minutes)
}
