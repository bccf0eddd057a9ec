package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ifmain/pinny/internal/app"
	"github.com/ifmain/pinny/internal/culler"
	"github.com/ifmain/pinny/internal/exporter"
	"github.com/ifmain/pinny/internal/home"
	"github.com/ifmain/pinny/internal/logger"
	"github.com/ifmain/pinny/internal/model"
	"github.com/ifmain/pinny/internal/picker"
	"github.com/ifmain/pinny/internal/search"
	"github.com/ifmain/pinny/internal/tui"
	"github.com/ifmain/pinny/internal/worker"
)

// drainTimeout bounds how long headless commands wait for metadata jobs.
const drainTimeout = 2 * time.Minute

var (
	configPath string
	memory     bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newApp builds the application for a command. The caller must Close it.
// Headless commands log to stderr; the TUI logs to the configured file.
func newApp(cmd *cobra.Command, headless bool) (*app.App, error) {
	a, err := app.New(cmd.Context(), app.Options{
		ConfigPath:  configPath,
		Memory:      memory,
		LogToStderr: headless,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// drain waits for local metadata jobs to finish. Jobs sent to RabbitMQ are
// left for `pinny worker`.
func drain(ctx context.Context, a *app.App) error {
	if !a.UsesLocalPool() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	if err := a.Pool.Drain(ctx); err != nil {
		return fmt.Errorf("waiting for metadata jobs: %w", err)
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:          "pinny",
	Short:        "Keyboard-driven bookmark manager",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runTUI,
}

// runTUI runs the interactive home screen until the user quits.
func runTUI(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a.Start(ctx)
	coord := a.NewCoordinator()
	done := make(chan error, 1)
	go func() { done <- coord.Run(ctx) }()

	program := tea.NewProgram(
		tui.NewApp(tui.AppParams{Coordinator: coord}),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, runErr := program.Run()

	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		a.Log.Error("coordinator stopped", logger.Error(err))
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("running app: %w", runErr)
	}
	return nil
}

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Save a bookmark and fetch its metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		note, _ := cmd.Flags().GetString("note")
		category, _ := cmd.Flags().GetString("category")
		tags, _ := cmd.Flags().GetStringSlice("tag")

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()
		a.Start(cmd.Context())

		b, err := a.Add(cmd.Context(), args[0], model.StringPtr(note), model.StringPtr(category), tui.ParseTags(strings.Join(tags, ",")))
		if err != nil {
			return fmt.Errorf("adding bookmark: %w", err)
		}
		fmt.Printf("Saved %s (%s)\n", b.URL, b.ID)
		return drain(cmd.Context(), a)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List bookmarks, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		archived, _ := cmd.Flags().GetBool("archived")

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		bookmarks, err := a.List(cmd.Context(), archived)
		if err != nil {
			return fmt.Errorf("listing bookmarks: %w", err)
		}
		if len(bookmarks) == 0 {
			fmt.Println("No bookmarks.")
			return nil
		}
		printBookmarks(bookmarks)
		return nil
	},
}

func printBookmarks(bookmarks []model.Bookmark) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tURL\tTAGS\tUPDATED")
	for _, b := range bookmarks {
		item := home.ToListItem(b)
		title := item.Title
		if b.Archived {
			title += " [archived]"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			b.ID, title, b.URL, strings.Join(b.Tags, ","), b.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy search, pick a bookmark and open it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		bookmarks, err := a.List(cmd.Context(), false)
		if err != nil {
			return fmt.Errorf("loading bookmarks: %w", err)
		}
		items := make([]home.ListItem, len(bookmarks))
		for i, b := range bookmarks {
			items[i] = home.ToListItem(b)
		}

		results := search.Fuzzy(items, query)
		if len(results) == 0 {
			fmt.Printf("No bookmarks found for '%s'\n", query)
			return nil
		}

		var selected *home.ListItem
		if len(results) == 1 {
			selected = &results[0].Item
			fmt.Printf("Opening: %s\n", selected.Title)
		} else {
			program := tea.NewProgram(picker.New(results, query), tea.WithContext(cmd.Context()))
			final, err := program.Run()
			if err != nil {
				return fmt.Errorf("running picker: %w", err)
			}
			p := final.(picker.Picker)
			if p.Cancelled() {
				return nil
			}
			selected = p.SelectedItem()
		}
		if selected == nil {
			return nil
		}
		return tui.OpenInBrowser(selected.URL)
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive a bookmark, or unarchive it with --undo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		undo, _ := cmd.Flags().GetBool("undo")

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Bookmarks.ArchiveBookmark(cmd.Context(), args[0], !undo); err != nil {
			return fmt.Errorf("archiving bookmark: %w", err)
		}
		if undo {
			fmt.Printf("Unarchived %s\n", args[0])
		} else {
			fmt.Printf("Archived %s\n", args[0])
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a bookmark permanently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Bookmarks.DeleteBookmark(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("deleting bookmark: %w", err)
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file.html>",
	Short: "Import bookmarks from a browser HTML export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening file: %w", err)
		}
		defer f.Close()

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()
		a.Start(cmd.Context())

		result, err := a.Import(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("importing: %w", err)
		}
		fmt.Printf("Imported %d bookmarks (%d already saved)\n", result.Added, result.Skipped)
		return drain(cmd.Context(), a)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Export bookmarks to a browser HTML file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var outputPath string
		if len(args) == 1 {
			outputPath = args[0]
		} else {
			var err error
			if outputPath, err = exporter.DefaultExportPath(time.Now()); err != nil {
				return fmt.Errorf("getting export path: %w", err)
			}
		}

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		html, n, err := a.Export(cmd.Context())
		if err != nil {
			return fmt.Errorf("exporting: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
		if err := os.WriteFile(outputPath, []byte(html), 0644); err != nil {
			return fmt.Errorf("writing file: %w", err)
		}
		fmt.Printf("Exported %d bookmarks to %s\n", n, outputPath)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh metadata for bookmarks missing a title or thumbnail",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()
		a.Start(cmd.Context())

		n, err := a.SyncStale(cmd.Context())
		if err != nil {
			return fmt.Errorf("syncing: %w", err)
		}
		fmt.Printf("Scheduled %d bookmarks\n", n)
		return drain(cmd.Context(), a)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process metadata jobs from RabbitMQ until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()
		a.Start(cmd.Context())

		consumer, err := worker.NewConsumer(a.AMQPConfig(), a.Pool, a.Log.With(logger.String("component", "consumer")))
		if err != nil {
			return err
		}
		defer consumer.Close()

		a.Log.Info("worker started")
		if err := consumer.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Find bookmarks whose links are dead",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		archiveDead, _ := cmd.Flags().GetBool("archive-dead")

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Check(cmd.Context(), app.CheckParams{
			ArchiveDead: archiveDead,
			OnProgress: func(completed, total int) {
				fmt.Fprintf(os.Stderr, "\rChecking %d/%d", completed, total)
			},
		})
		fmt.Fprintln(os.Stderr)
		printCheckResults(results, archiveDead)
		return err
	},
}

func printCheckResults(results []culler.Result, archived bool) {
	var dead, unreachable int
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, r := range results {
		switch r.Status {
		case culler.Dead:
			dead++
			fmt.Fprintf(w, "dead\t%d\t%s\t%s\n", r.StatusCode, r.Bookmark.ID, r.Bookmark.URL)
		case culler.Unreachable:
			unreachable++
			fmt.Fprintf(w, "unreachable\t%s\t%s\t%s\n", r.Error, r.Bookmark.ID, r.Bookmark.URL)
		}
	}
	w.Flush()

	fmt.Printf("%d checked, %d dead, %d unreachable\n", len(results), dead, unreachable)
	if archived && dead > 0 {
		fmt.Printf("Archived %d dead bookmarks\n", dead)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/pinny/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&memory, "memory", false, "keep bookmarks in memory for this run")

	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringP("note", "n", "", "Note for the bookmark")
	addCmd.Flags().StringP("category", "c", "", "Category")
	addCmd.Flags().StringSliceP("tag", "t", nil, "Tag (repeatable or comma-separated)")

	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolP("archived", "a", false, "Include archived bookmarks")

	rootCmd.AddCommand(searchCmd)

	rootCmd.AddCommand(archiveCmd)
	archiveCmd.Flags().Bool("undo", false, "Unarchive instead")

	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(workerCmd)

	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Bool("archive-dead", false, "Archive bookmarks whose links are dead")
}
