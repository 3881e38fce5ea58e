package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"echopress/internal/api"
	"echopress/internal/config"
	"echopress/internal/draft"
	"echopress/internal/fileutil"
	"echopress/internal/ipc"
	"echopress/internal/queueaccess"
	"echopress/internal/recording"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		title       string
		language    string
		profile     string
		profileFile string
		outlineFile string
		force       bool
		watch       bool
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "submit <recording>",
		Short: "Submit a recording for conversion",
		Long: "Submit a recording for conversion. Submitting a recording that already has an\n" +
			"active or completed run returns that run instead of starting a new one.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.SubmitRequest{
				RecordingRef: args[0],
				Title:        title,
				Language:     language,
				ProfileName:  profile,
				Force:        force,
			}
			if strings.TrimSpace(profileFile) != "" {
				path, err := config.ExpandPath(profileFile)
				if err != nil {
					return err
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read profile: %w", err)
				}
				parsed, err := recording.ParseProfile(data)
				if err != nil {
					return err
				}
				style := parsed.Style
				req.Profile = &style
				if req.Outline == nil {
					req.Outline = parsed.Outline
				}
			}
			if strings.TrimSpace(outlineFile) != "" {
				path, err := config.ExpandPath(outlineFile)
				if err != nil {
					return err
				}
				outline, err := recording.LoadOutline(path)
				if err != nil {
					return err
				}
				req.Outline = outline
			}

			var resp *ipc.SubmitResponse
			err := ctx.withClient(func(client *ipc.Client) error {
				var err error
				resp, err = client.Submit(req)
				return err
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s", resp.RunID)
			if resp.Run != nil {
				fmt.Fprintf(out, " (%s, %.0f%%)", formatStatusLabel(resp.Run.Status), resp.Run.Progress)
			}
			fmt.Fprintln(out)
			if watch {
				return watchRun(cmd, ctx, resp.RunID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Article title")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Spoken language code (default from config)")
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Name of a saved style profile")
	cmd.Flags().StringVar(&profileFile, "profile-file", "", "Inline style profile YAML file")
	cmd.Flags().StringVar(&outlineFile, "outline", "", "Outline YAML or JSON file")
	cmd.Flags().BoolVar(&force, "force", false, "Start a new run even if the recording already completed")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Watch the run after submitting")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func showRunStatus(cmd *cobra.Command, ctx *commandContext, runID string, asJSON bool) error {
	session, err := ctx.openAccess()
	if err != nil {
		return err
	}
	defer session.Close()
	run, err := session.Access.Get(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(cmd, run)
	}
	noteOffline(cmd, session)
	printRun(cmd.OutOrStdout(), run, shouldColorize(cmd.OutOrStdout()))
	return nil
}

func noteOffline(cmd *cobra.Command, session queueaccess.Session) {
	if session.Offline != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Showing stored state (%v)\n", session.Offline)
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Cancel a run after its current stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cancel(args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Cancelled {
					fmt.Fprintf(out, "Cancellation requested for run %s; it stops after the current stage\n", resp.RunID)
				} else {
					fmt.Fprintf(out, "Run %s already finished\n", resp.RunID)
				}
				return nil
			})
		},
	}
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "runs",
		Aliases: []string{"list"},
		Short:   "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openAccess()
			if err != nil {
				return err
			}
			defer session.Close()
			runs, err := session.Access.List(cmd.Context(), statuses, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, runs)
			}
			noteOffline(cmd, session)
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs")
				return nil
			}
			fmt.Fprint(out, renderTable(
				[]column{left("Run"), left("Recording"), left("Status"), numeric("Progress"), left("Created"), wrapped("Error", 40)},
				buildRunRows(runs),
			))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newDraftCommand(ctx *commandContext) *cobra.Command {
	var format string
	var output string
	var citations bool
	cmd := &cobra.Command{
		Use:   "draft <run-id>",
		Short: "Print the draft of a completed run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "markdown" && format != "md" && format != "json" {
				return fmt.Errorf("unsupported format %q (use markdown or json)", format)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Draft(args[0], format != "json")
				if err != nil {
					return err
				}
				if citations {
					return printCitations(cmd, resp.Draft)
				}
				var body []byte
				if format == "json" {
					var buf bytes.Buffer
					if err := encodeIndented(&buf, resp.Draft); err != nil {
						return err
					}
					body = buf.Bytes()
				} else {
					body = []byte(resp.Markdown)
				}
				if strings.TrimSpace(output) != "" {
					path, err := config.ExpandPath(output)
					if err != nil {
						return err
					}
					if err := fileutil.WriteAtomic(path, body, 0o644); err != nil {
						return fmt.Errorf("write draft: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote draft to %s\n", path)
					return nil
				}
				_, err = cmd.OutOrStdout().Write(body)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "Output format (markdown or json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the draft to a file")
	cmd.Flags().BoolVar(&citations, "citations", false, "Print the citation ledger as a table")
	return cmd
}

func printCitations(cmd *cobra.Command, d *draft.Draft) error {
	if d == nil {
		return fmt.Errorf("draft missing from response")
	}
	out := cmd.OutOrStdout()
	if len(d.Ledger) == 0 {
		fmt.Fprintln(out, "Draft has no citations")
		return nil
	}
	rows := make([][]string, 0, len(d.Ledger))
	for _, c := range d.Ledger {
		text := c.Text
		if len(text) > 60 {
			text = text[:57] + "..."
		}
		rows = append(rows, []string{
			c.Section,
			formatTimestamp(c.StartMS),
			c.Speaker,
			fmt.Sprintf("%.2f", c.Confidence),
			text,
		})
	}
	fmt.Fprint(out, renderTable(
		[]column{left("Section"), numeric("At"), left("Speaker"), numeric("Conf"), wrapped("Quote", 60)},
		rows,
	))
	return nil
}

func formatTimestamp(ms int64) string {
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
