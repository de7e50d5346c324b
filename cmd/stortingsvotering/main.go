package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/agreement"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/config"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/logger"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/pipeline"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/store"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/stortinget"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/timeseries"
)

var version = "0.1.0"

// Global state set up by the root command before any subcommand runs.
var (
	cfg       *config.Config
	fileStore *store.FileStore
)

func main() {
	rootCmd := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Sync()

	if err != nil {
		pterm.Error.Println(err)
		for _, hint := range errors.GetAllHints(err) {
			pterm.Info.Println(hint)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stortingsvotering",
		Short: "Party agreement analysis of Storting roll-call votes",
		Long: `Stortingsvotering downloads roll-call votes from data.stortinget.no and
measures how often each pair of parties votes the same way.

It produces:
  - Per-session agreement matrices and most/least agreeing pairs
  - Per-party participation and winning-side statistics
  - Cross-session series with converging, diverging and stable pairs
  - Vote-level verification of any computed figure`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (TOML, YAML or JSON)")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (overrides data.dir)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(timeseriesCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(methodologyCmd())

	return rootCmd
}

// setup loads configuration, applies flag overrides and opens the data
// directory.
func setup(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	jsonLogs, _ := cmd.Flags().GetBool("json-logs")
	logLevel, _ := cmd.Flags().GetString("log-level")

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dataDir != "" {
		loaded.Data.Dir = dataDir
	}
	if cmd.Flags().Changed("json-logs") {
		loaded.Logging.JSON = jsonLogs
	}
	if logLevel != "" {
		loaded.Logging.Level = logLevel
	}

	if err := logger.Initialize(loaded.Logging.JSON, loaded.Logging.Level); err != nil {
		return err
	}

	format, err := store.ParseFormat(loaded.Data.Format)
	if err != nil {
		return err
	}
	fs, err := store.NewFileStore(loaded.Data.Dir, format)
	if err != nil {
		return err
	}

	cfg = loaded
	fileStore = fs
	logger.Logger.Debugw("Configuration loaded",
		logger.FieldPath, fs.Dir(),
		"format", format,
		"sessions", len(cfg.Sessions))
	return nil
}

func newClient() *stortinget.Client {
	return stortinget.NewClient(stortinget.Config{
		BaseURL:             cfg.API.BaseURL,
		Timeout:             cfg.API.Timeout,
		RateLimit:           cfg.API.RateLimit,
		MaxAttempts:         cfg.API.MaxAttempts,
		TimeoutRetryWait:    cfg.API.TimeoutRetryWait,
		ConnectionRetryWait: cfg.API.ConnectionRetryWait,
		UserAgent:           cfg.API.UserAgent,
		CacheTTL:            cfg.API.CacheTTL,
	}, logger.ComponentLogger("stortinget"))
}

func pipelineOptions() pipeline.Options {
	return pipeline.Options{
		Agreement: agreement.Options{TopN: cfg.Analysis.TopN},
		Series: timeseries.Options{
			MinStableSessions: cfg.Analysis.MinStableSessions,
			SummaryN:          cfg.Analysis.SummaryN,
		},
	}
}

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [session...]",
		Short: "Download roll-call votes for one or more sessions",
		Long: `Download every case, vote and ballot of the given sessions and store
them in the data directory. Without arguments the configured sessions
between --from and --to are fetched.

Example:
  stortingsvotering fetch 2023-2024
  stortingsvotering fetch --from 2019-2020 --to 2023-2024
  stortingsvotering fetch 2023-2024 --max-cases 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			maxCases, _ := cmd.Flags().GetInt("max-cases")

			sessions := args
			if len(sessions) == 0 {
				var err error
				sessions, err = cfg.SessionRange(from, to)
				if err != nil {
					return err
				}
			}

			spinner, _ := pterm.DefaultSpinner.Start("Fetching " + strings.Join(sessions, ", "))
			fetcher := &pipeline.Fetcher{
				Source: newClient(),
				Sink:   fileStore,
				Logger: logger.ComponentLogger("fetch"),
				OnCase: func(sessionID string, index, total int) {
					spinner.UpdateText(fmt.Sprintf("%s: case %d/%d", sessionID, index+1, total))
				},
			}

			report, err := fetcher.FetchSessions(cmd.Context(), sessions, maxCases)
			if err != nil {
				spinner.Fail("Fetch interrupted")
				return err
			}

			if len(report.Failed) > 0 {
				spinner.Warning(fmt.Sprintf("Fetched %d of %d sessions", len(report.Fetched), len(sessions)))
				for _, id := range sessions {
					if ferr, ok := report.Failed[id]; ok {
						pterm.Warning.Printf("%s: %v\n", id, ferr)
					}
				}
			} else {
				spinner.Success(fmt.Sprintf("Fetched %d sessions, %d votes", len(report.Fetched), report.Votes))
			}
			pterm.Info.Printf("Data stored in %s\n", fileStore.Dir())
			return nil
		},
	}

	cmd.Flags().String("from", "", "First session of the range")
	cmd.Flags().String("to", "", "Last session of the range")
	cmd.Flags().Int("max-cases", 0, "Limit cases per session (0 = all)")

	return cmd
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <session>",
		Short: "Compute the party agreement matrix of a session",
		Long: `Analyse the stored votes of a session and write analyse_<session> to the
data directory.

Example:
  stortingsvotering analyze 2023-2024
  stortingsvotering analyze 2023-2024 --matrix csv > matrix.csv
  stortingsvotering analyze 2023-2024 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topN, _ := cmd.Flags().GetInt("top")
			matrixFormat, _ := cmd.Flags().GetString("matrix")
			formatStr, _ := cmd.Flags().GetString("format")

			sessionID := args[0]
			records, err := fileStore.LoadVotes(sessionID)
			if err != nil {
				return err
			}

			opts := pipelineOptions().Agreement
			if topN > 0 {
				opts.TopN = topN
			}
			analysis, err := agreement.AnalyzeSession(sessionID, records.Votes, opts)
			if err != nil {
				return err
			}
			if err := fileStore.SaveAnalysis(analysis); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if formatStr == "json" {
				return writeJSON(out, analysis)
			}

			report := analysis.Report()
			switch matrixFormat {
			case "csv":
				csvOut, err := report.ToCSV()
				if err != nil {
					return err
				}
				fmt.Fprint(out, csvOut)
				return nil
			case "svg":
				fmt.Fprint(out, report.ToSVGHeatmap())
				return nil
			case "ascii", "":
			default:
				return errors.WithHint(errors.Newf("unknown matrix format %q", matrixFormat), "use ascii, csv or svg")
			}

			fmt.Fprintf(out, "Session %s: %d votes, %d parties\n\n", sessionID, analysis.VoteCount, analysis.PartyCount)
			fmt.Fprintln(out, report.ToASCII())

			if err := renderPairs(out, "Most agreeing", analysis.Top); err != nil {
				return err
			}
			if err := renderPairs(out, "Least agreeing", analysis.Bottom); err != nil {
				return err
			}
			return renderStatistics(out, analysis.Statistics)
		},
	}

	cmd.Flags().Int("top", 0, "Length of the most/least agreeing lists (default analysis.top_n)")
	cmd.Flags().String("matrix", "ascii", "Matrix output (ascii, csv, svg)")
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")

	return cmd
}

func timeseriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeseries",
		Short: "Analyse several sessions and build the agreement series",
		Long: `Analyse every stored session (or those given with --sessions) and write
analyse_tidsserie and tidsserie_frontend to the data directory. With
--archive the run is also recorded in the SQLite archive. With --watch the
command keeps running and repeats the analysis whenever fetch stores new
votes.

Example:
  stortingsvotering timeseries
  stortingsvotering timeseries --sessions 2021-2022,2022-2023,2023-2024 --archive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, _ := cmd.Flags().GetStringSlice("sessions")
			archiveRun, _ := cmd.Flags().GetBool("archive")
			formatStr, _ := cmd.Flags().GetString("format")
			watch, _ := cmd.Flags().GetBool("watch")

			out := cmd.OutOrStdout()
			if err := runTimeseries(cmd.Context(), out, sessions, archiveRun, formatStr); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			watcher := &pipeline.Watcher{Dir: fileStore.Dir(), Logger: logger.ComponentLogger("watch")}
			err := watcher.Run(cmd.Context(), func(ctx context.Context, _ []string) error {
				return runTimeseries(ctx, out, sessions, archiveRun, formatStr)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringSlice("sessions", nil, "Sessions to include, in order (default: all stored)")
	cmd.Flags().Bool("archive", false, "Record the run in the SQLite archive")
	cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	cmd.Flags().Bool("watch", false, "Re-run whenever vote files in the data directory change")

	return cmd
}

// runTimeseries analyses the sessions, stores every result and prints the
// series. No sessions means all stored sessions.
func runTimeseries(ctx context.Context, out io.Writer, sessions []string, archiveRun bool, formatStr string) error {
	if len(sessions) == 0 {
		var err error
		sessions, err = storedSessions()
		if err != nil {
			return err
		}
	}
	if len(sessions) == 0 {
		return errors.WithHint(errors.New("no stored sessions"), "run the fetch command first")
	}

	analyzer := &pipeline.Analyzer{
		Loader:  fileStore,
		Workers: cfg.Analysis.Workers,
		Options: pipelineOptions(),
		Logger:  logger.ComponentLogger("pipeline"),
	}
	result, err := analyzer.Run(ctx, sessions)
	if err != nil {
		return err
	}

	for _, analysis := range result.Analyses {
		if err := fileStore.SaveAnalysis(analysis); err != nil {
			return err
		}
	}
	if err := fileStore.SaveSeries(result.Series); err != nil {
		return err
	}
	if err := fileStore.SavePresentation(result.Presentation); err != nil {
		return err
	}

	if archiveRun || cfg.Data.ArchivePath != "" {
		run, err := recordRun(ctx, result)
		if err != nil {
			return err
		}
		pterm.Info.Printf("Archived run %s\n", run.ID)
	}

	if formatStr == "json" {
		return writeJSON(out, result.Series)
	}
	return renderSeries(out, result.Series)
}

// storedSessions returns the stored sessions in configured order, followed
// by any stored session the configuration does not list.
func storedSessions() ([]string, error) {
	stored, err := fileStore.ListSessions()
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(stored))
	for _, id := range stored {
		present[id] = true
	}

	ordered := make([]string, 0, len(stored))
	for _, id := range cfg.Sessions {
		if present[id] {
			ordered = append(ordered, id)
			delete(present, id)
		}
	}
	for _, id := range stored {
		if present[id] {
			ordered = append(ordered, id)
		}
	}
	return ordered, nil
}

func archivePath() string {
	if cfg.Data.ArchivePath != "" {
		return cfg.Data.ArchivePath
	}
	return filepath.Join(fileStore.Dir(), "arkiv.db")
}

func recordRun(ctx context.Context, result *pipeline.Result) (*store.Run, error) {
	archive, err := store.OpenArchive(archivePath())
	if err != nil {
		return nil, err
	}
	defer archive.Close()
	return archive.RecordRun(ctx, result.Analyses, result.Series)
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <party-a> <party-b>",
		Short: "Show a pair's agreement across the sessions of an archived run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run")
			listRuns, _ := cmd.Flags().GetBool("runs")

			archive, err := store.OpenArchive(archivePath())
			if err != nil {
				return err
			}
			defer archive.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if listRuns {
				runs, err := archive.Runs(ctx)
				if err != nil {
					return err
				}
				data := pterm.TableData{{"RUN", "CREATED", "SESSIONS", "PAIRS"}}
				for _, run := range runs {
					data = append(data, []string{
						run.ID,
						run.CreatedAt.Format("2006-01-02 15:04:05"),
						fmt.Sprint(run.SessionCount),
						fmt.Sprint(run.PairCount),
					})
				}
				return renderTable(out, data)
			}

			if runID == "" {
				latest, err := archive.LatestRun(ctx)
				if err != nil {
					return err
				}
				runID = latest.ID
			}

			pair := agreement.NewPartyPair(args[0], args[1])
			points, err := archive.PairHistory(ctx, runID, pair)
			if err != nil {
				return err
			}
			if len(points) == 0 {
				fmt.Fprintf(out, "%s never voted together in run %s\n", pair, runID)
				return nil
			}

			fmt.Fprintf(out, "%s (run %s)\n\n", pair, runID)
			data := pterm.TableData{{"SESSION", "AGREE", "DISAGREE", "TOTAL", "PERCENT"}}
			for _, p := range points {
				data = append(data, []string{
					p.SessionID,
					fmt.Sprint(p.Agree),
					fmt.Sprint(p.Disagree),
					fmt.Sprint(p.Total),
					fmt.Sprintf("%.1f", p.Percent),
				})
			}
			return renderTable(out, data)
		},
	}

	cmd.Flags().String("run", "", "Archived run id (default: latest)")
	cmd.Flags().Bool("runs", false, "List archived runs instead")

	return cmd
}

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List configured sessions and their fetch status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stored, err := fileStore.ListSessions()
			if err != nil {
				return err
			}
			manifest, err := fileStore.LoadManifest()
			if err != nil {
				return err
			}

			isStored := make(map[string]bool, len(stored))
			for _, id := range stored {
				isStored[id] = true
			}

			data := pterm.TableData{{"SESSION", "STORED", "LAST FETCH", "VOTES"}}
			for _, id := range cfg.Sessions {
				row := []string{id, "no", "-", "-"}
				if isStored[id] {
					row[1] = "yes"
				}
				if fetch, ok := manifest.Sessions[id]; ok {
					row[2] = string(fetch.Status)
					if fetch.Status == store.FetchOK {
						row[3] = fmt.Sprint(fetch.VoteCount)
					}
				}
				data = append(data, row)
			}

			out := cmd.OutOrStdout()
			if err := renderTable(out, data); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d of %d sessions stored, %d votes fetched\n",
				len(stored), len(cfg.Sessions), manifest.TotalVotes)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func renderTable(w io.Writer, data pterm.TableData) error {
	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "render table")
	}
	fmt.Fprintln(w, s)
	return nil
}

func renderPairs(w io.Writer, title string, records []agreement.PairRecord) error {
	fmt.Fprintf(w, "%s:\n", title)
	data := pterm.TableData{{"PAIR", "AGREE", "DISAGREE", "TOTAL", "PERCENT"}}
	for _, rec := range records {
		data = append(data, []string{
			rec.String(),
			fmt.Sprint(rec.Agree),
			fmt.Sprint(rec.Disagree),
			fmt.Sprint(rec.Total),
			fmt.Sprintf("%.1f", rec.Percent),
		})
	}
	return renderTable(w, data)
}

func renderStatistics(w io.Writer, stats map[string]agreement.PartyStatistics) error {
	fmt.Fprintln(w, "Party statistics:")
	data := pterm.TableData{{"PARTY", "VOTES", "FOR", "AGAINST", "FOR %", "WINNING %"}}
	for _, s := range agreement.SortedStatistics(stats) {
		data = append(data, []string{
			s.PartyID,
			fmt.Sprint(s.Participated),
			fmt.Sprint(s.ForCount),
			fmt.Sprint(s.AgainstCount),
			fmt.Sprintf("%.1f", s.ForPercent),
			fmt.Sprintf("%.1f", s.WinningPercent),
		})
	}
	return renderTable(w, data)
}

func renderSeries(w io.Writer, series *timeseries.Series) error {
	fmt.Fprintf(w, "%d sessions: %s\n\n", series.SessionCount, strings.Join(series.Sessions, ", "))

	trendTable := func(title string, trends []timeseries.Trend) error {
		fmt.Fprintf(w, "%s:\n", title)
		data := pterm.TableData{{"PAIR", "FROM", "TO", "FIRST", "LAST", "CHANGE"}}
		for _, t := range head(trends, cfg.Analysis.SummaryN) {
			data = append(data, []string{
				t.Pair, t.FirstSession, t.LastSession,
				fmt.Sprintf("%.1f", t.First),
				fmt.Sprintf("%.1f", t.Last),
				fmt.Sprintf("%+.1f", t.Delta),
			})
		}
		return renderTable(w, data)
	}

	if err := trendTable("Converging", series.Converging); err != nil {
		return err
	}
	if err := trendTable("Diverging", series.Diverging); err != nil {
		return err
	}

	fmt.Fprintln(w, "Most stable:")
	data := pterm.TableData{{"PAIR", "RANGE", "AVERAGE", "SESSIONS"}}
	for _, s := range head(series.MostStable, cfg.Analysis.SummaryN) {
		data = append(data, []string{
			s.Pair,
			fmt.Sprintf("%.1f", s.Range),
			fmt.Sprintf("%.1f", s.Average),
			fmt.Sprint(s.Sessions),
		})
	}
	return renderTable(w, data)
}

func head[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
