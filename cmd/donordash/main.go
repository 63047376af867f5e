// Package main provides the CLI entrypoint for donordash.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/donordash/internal/config"
	"github.com/verte-zerg/donordash/internal/dashui"
	"github.com/verte-zerg/donordash/internal/donors"
	"github.com/verte-zerg/donordash/internal/generator"
	"github.com/verte-zerg/donordash/internal/model"
	"github.com/verte-zerg/donordash/internal/report"
	"github.com/verte-zerg/donordash/internal/store"
)

const (
	defaultPlotHeight = 8
	defaultTopStates  = 15
)

var (
	dataPath    string
	dataFormat  string
	datasetName string
	plotHeight  int
	topStates   int
	noColor     bool
	verbose     bool

	reportFrom      string
	reportTo        string
	reportStates    []string
	reportPoverty   []string
	reportResources []string
	reportGrades    []string
	reportWidth     int

	importName string

	sampleRows int
	sampleOut  string
	sampleSeed int64
	sampleFrom string
	sampleTo   string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "donordash",
		Short:         "Cross-filtered dashboard for charitable project data",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogging(verbose)
		},
		RunE: runDashboardCmd,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataPath, "data", "", "dataset file (CSV or JSON)")
	pf.StringVar(&dataFormat, "format", "", "dataset format: csv or json (default: from file extension)")
	pf.StringVar(&datasetName, "dataset", "", "name of an imported dataset")
	pf.IntVar(&plotHeight, "plot-height", defaultPlotHeight, "plot height in rows")
	pf.IntVar(&topStates, "top-states", defaultTopStates, "states shown in reports (0 for all)")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log diagnostics to stderr")

	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newDatasetsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newSampleCmd())

	return rootCmd
}

func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// resolveSettings merges flags, environment and the config file, in that
// order of precedence.
func resolveSettings(cmd *cobra.Command) (model.Settings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	envCfg, err := config.LoadEnv()
	if err != nil {
		return model.Settings{}, fmt.Errorf("failed to load environment: %w", err)
	}
	cfg := envCfg.Merge(fileCfg)

	applyStringConfig(cmd, "data", &dataPath, cfg.Data.Path)
	applyStringConfig(cmd, "format", &dataFormat, cfg.Data.Format)
	applyStringConfig(cmd, "dataset", &datasetName, cfg.Data.Dataset)
	applyIntConfig(cmd, "plot-height", &plotHeight, cfg.Dashboard.PlotHeight)
	applyIntConfig(cmd, "top-states", &topStates, cfg.Dashboard.TopStates)

	color := !noColor
	if cfg.Dashboard.Color != nil && !cmd.Flags().Changed("no-color") {
		color = *cfg.Dashboard.Color
	}
	dbPath := config.DefaultDBPath()
	if envCfg.DBPath != nil {
		dbPath = *envCfg.DBPath
	}

	settings := model.Settings{
		DataPath:   dataPath,
		Format:     dataFormat,
		Dataset:    datasetName,
		DBPath:     dbPath,
		PlotHeight: plotHeight,
		TopStates:  topStates,
		Color:      color,
	}
	if err := config.Validate(settings); err != nil {
		return model.Settings{}, err
	}
	return settings, nil
}

// loadProjects reads projects from --data when given, otherwise from the
// named dataset in the local store.
func loadProjects(ctx context.Context, s model.Settings) ([]model.Project, error) {
	if s.DataPath != "" {
		projects, err := donors.LoadFile(ctx, s.DataPath, s.Format)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", s.DataPath, err)
		}
		return projects, nil
	}
	if s.Dataset == "" {
		return nil, errors.New("no data: pass --data <file> or --dataset <name> (see: donordash import)")
	}
	st, err := store.Open(s.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	projects, err := st.LoadProjects(ctx, s.Dataset)
	if errors.Is(err, store.ErrDatasetNotFound) {
		return nil, fmt.Errorf("%w (see: donordash datasets)", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return projects, nil
}

func openDashboard(cmd *cobra.Command) (*donors.Dashboard, model.Settings, error) {
	settings, err := resolveSettings(cmd)
	if err != nil {
		return nil, model.Settings{}, err
	}
	start := time.Now()
	projects, err := loadProjects(cmd.Context(), settings)
	if err != nil {
		return nil, model.Settings{}, err
	}
	dash, err := donors.NewDashboard(projects)
	if err != nil {
		return nil, model.Settings{}, fmt.Errorf("failed to index projects: %w", err)
	}
	slog.Debug("dashboard ready", "projects", dash.Size(), "elapsed", time.Since(start))
	return dash, settings, nil
}

func runDashboardCmd(cmd *cobra.Command, _ []string) error {
	dash, settings, err := openDashboard(cmd)
	if err != nil {
		return err
	}
	program := tea.NewProgram(dashui.NewModel(dash, settings), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the dashboard for a set of filters",
		Args:  cobra.NoArgs,
		RunE:  runReportCmd,
	}
	cmd.Flags().StringVar(&reportFrom, "from", "", "first month posted (YYYY-MM)")
	cmd.Flags().StringVar(&reportTo, "to", "", "last month posted (YYYY-MM)")
	cmd.Flags().StringSliceVar(&reportStates, "state", nil, "school states, e.g. CA,NY")
	cmd.Flags().StringSliceVar(&reportPoverty, "poverty", nil, "poverty levels, e.g. high,low")
	cmd.Flags().StringSliceVar(&reportResources, "resource", nil, "resource types")
	cmd.Flags().StringSliceVar(&reportGrades, "grade", nil, "grade levels, e.g. \"Grades 3-5\"")
	cmd.Flags().IntVar(&reportWidth, "width", 0, "output width (default: terminal width)")
	return cmd
}

func runReportCmd(cmd *cobra.Command, _ []string) error {
	filters, err := parseReportFilters()
	if err != nil {
		return err
	}
	dash, settings, err := openDashboard(cmd)
	if err != nil {
		return err
	}
	if err := applyReportFilters(dash, filters); err != nil {
		return err
	}
	snap, err := dash.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to aggregate: %w", err)
	}
	out := cmd.OutOrStdout()
	opts := report.Options{
		Width:      reportWidth,
		PlotHeight: settings.PlotHeight,
		TopStates:  settings.TopStates,
		Color:      settings.Color && report.ShouldUseColor(out, false),
	}
	if err := report.RenderDashboard(out, snap, opts); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func parseReportFilters() (model.ReportFilters, error) {
	var f model.ReportFilters
	if reportFrom != "" {
		m, err := model.ParseMonth(reportFrom)
		if err != nil {
			return f, fmt.Errorf("invalid --from value: %w", err)
		}
		f.From = &m
	}
	if reportTo != "" {
		m, err := model.ParseMonth(reportTo)
		if err != nil {
			return f, fmt.Errorf("invalid --to value: %w", err)
		}
		f.To = &m
	}
	if f.From != nil && f.To != nil && *f.From > *f.To {
		return f, fmt.Errorf("--from %s is after --to %s", *f.From, *f.To)
	}
	f.States = trimAll(reportStates, strings.ToUpper)
	f.Poverty = trimAll(reportPoverty, func(s string) string { return string(model.ParsePovertyLevel(s)) })
	f.Resources = trimAll(reportResources, nil)
	f.Grades = trimAll(reportGrades, nil)
	return f, nil
}

func trimAll(values []string, normalize func(string) string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if normalize != nil {
			v = normalize(v)
		}
		out = append(out, v)
	}
	return out
}

func applyReportFilters(dash *donors.Dashboard, f model.ReportFilters) error {
	if f.From != nil || f.To != nil {
		lo, hi, ok := dash.DateRange()
		if ok {
			// An open end defaults to the data's bound without crossing
			// the given one.
			if f.From != nil {
				lo = *f.From
				hi = max(hi, lo)
			}
			if f.To != nil {
				hi = *f.To
				lo = min(lo, hi)
			}
			if err := dash.FilterDate(lo, hi+1); err != nil {
				return err
			}
		}
	}
	selections := []struct {
		dim  string
		keys []string
	}{
		{donors.DimState, f.States},
		{donors.DimPovertyLevel, f.Poverty},
		{donors.DimResourceType, f.Resources},
		{donors.DimGradeLevel, f.Grades},
	}
	for _, s := range selections {
		if err := dash.Select(s.dim, s.keys...); err != nil {
			return err
		}
	}
	return nil
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a dataset file into the local cache",
		Args:  cobra.NoArgs,
		RunE:  runImportCmd,
	}
	cmd.Flags().StringVar(&importName, "name", "", "dataset name (default: file name without extension)")
	return cmd
}

func runImportCmd(cmd *cobra.Command, _ []string) error {
	settings, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	if settings.DataPath == "" {
		return errors.New("--data is required")
	}
	name := importName
	if name == "" {
		base := filepath.Base(settings.DataPath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	projects, err := donors.LoadFile(cmd.Context(), settings.DataPath, settings.Format)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", settings.DataPath, err)
	}

	st, err := store.Open(settings.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	source, err := filepath.Abs(settings.DataPath)
	if err != nil {
		source = settings.DataPath
	}
	if _, err := st.ImportDataset(cmd.Context(), name, source, projects); err != nil {
		return fmt.Errorf("failed to import dataset: %w", err)
	}
	logErrf("Imported %s projects as %q\n", report.FormatCount(len(projects)), name)
	return nil
}

func newDatasetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List imported datasets",
		Args:  cobra.NoArgs,
		RunE:  runDatasetsCmd,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an imported dataset",
		Args:  cobra.ExactArgs(1),
		RunE:  runDatasetsDeleteCmd,
	})
	return cmd
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	settings, err := resolveSettings(cmd)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(settings.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func runDatasetsCmd(cmd *cobra.Command, _ []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	infos, err := st.ListDatasets(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list datasets: %w", err)
	}
	if len(infos) == 0 {
		logErrln("No datasets imported. Import with: donordash import --data <file>")
		return nil
	}
	for _, line := range datasetLines(infos) {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func datasetLines(infos []model.DatasetInfo) []string {
	lines := make([]string, 0, len(infos))
	for _, info := range infos {
		lines = append(lines, fmt.Sprintf("%s\t%s projects\t%s\t%s",
			info.Name,
			report.FormatCount(info.Rows),
			info.ImportedAt.Local().Format("2006-01-02 15:04"),
			info.Source))
	}
	return lines
}

func runDatasetsDeleteCmd(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	if err := st.DeleteDataset(cmd.Context(), args[0]); err != nil {
		return err
	}
	logErrf("Deleted %q\n", args[0])
	return nil
}

func newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write a synthetic dataset as CSV",
		Args:  cobra.NoArgs,
		RunE:  runSampleCmd,
	}
	cmd.Flags().IntVar(&sampleRows, "rows", 10000, "number of projects")
	cmd.Flags().StringVarP(&sampleOut, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().Int64Var(&sampleSeed, "seed", 0, "random seed (default: time based)")
	cmd.Flags().StringVar(&sampleFrom, "from", "2010-01", "first month posted (YYYY-MM)")
	cmd.Flags().StringVar(&sampleTo, "to", "2015-12", "last month posted (YYYY-MM)")
	return cmd
}

func runSampleCmd(cmd *cobra.Command, _ []string) error {
	if sampleRows <= 0 {
		return fmt.Errorf("--rows must be > 0")
	}
	from, err := model.ParseMonth(sampleFrom)
	if err != nil {
		return fmt.Errorf("invalid --from value: %w", err)
	}
	to, err := model.ParseMonth(sampleTo)
	if err != nil {
		return fmt.Errorf("invalid --to value: %w", err)
	}
	gen := generator.New()
	if cmd.Flags().Changed("seed") {
		gen = generator.NewSeeded(sampleSeed)
	}
	projects := gen.Generate(sampleRows, from, to)

	if sampleOut == "" {
		return donors.WriteCSV(cmd.OutOrStdout(), projects)
	}
	file, err := os.Create(sampleOut)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", sampleOut, err)
	}
	if err := donors.WriteCSV(file, projects); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", sampleOut, err)
	}
	logErrf("Wrote %s projects to %s\n", report.FormatCount(len(projects)), sampleOut)
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil || cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# donordash configuration
# Uncomment a value to enable it. Environment variables (DONORDASH_DATA,
# DONORDASH_FORMAT, DONORDASH_DATASET, DONORDASH_DB) override this file,
# and CLI flags override both.

[data]
# path = "opendata_projects_clean.csv"   # Dataset file (CSV or JSON)
# format = "csv"                         # csv or json (default: file extension)
# dataset = "projects"                   # Imported dataset used when path is unset

[dashboard]
# plot-height = %d        # Plot height in rows
# top-states = %d         # States shown in reports (0 for all)
# color = true            # Colored charts
`,
		defaultPlotHeight,
		defaultTopStates,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
