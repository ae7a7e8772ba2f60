package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/hubtest/internal/harness"
	"github.com/roach88/hubtest/internal/metrics"
	"github.com/roach88/hubtest/internal/store"
)

// DefaultParallel is how many scenarios run at once by default.
const DefaultParallel = 4

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update      bool   // regenerate golden files
	Filter      string // scenario filter (glob pattern)
	Parallel    int
	Database    string // optional transaction log
	MetricsFile string // optional Prometheus text dump
	Exclude     []string
	Timeout     time.Duration // per scenario; zero means unbounded
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run hub scenarios",
		Long: `Run nanoapp scenarios against a simulated Context Hub.

Each scenario runs on its own hub and fake clock, so transaction budgets
elapse instantly. Traces are compared with golden/<name>.golden next to
the scenarios when that file exists.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, unreadable database, etc.)

Examples:
  hubtest test ./testdata/scenarios
  hubtest test ./testdata/scenarios --filter "load_*"
  hubtest test ./testdata/scenarios --exclude "hub_*" --scenario-timeout 30s
  hubtest test ./testdata/scenarios --update
  hubtest test ./testdata/scenarios --db hubtest.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.resolve()
			return runTests(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", DefaultParallel, "maximum scenarios run at once")
	cmd.Flags().StringVar(&opts.Database, "db", "", "append transactions to this SQLite database")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil, "skip scenarios whose name matches any of these globs")
	cmd.Flags().DurationVar(&opts.Timeout, "scenario-timeout", 0, "wall-clock limit per scenario (0 for none)")

	return cmd
}

// resolve applies configuration read from the environment or a config file.
func (o *TestOptions) resolve() {
	if o.Config.Parallel > 0 {
		o.Parallel = o.Config.Parallel
	}
	if o.Config.DB != "" {
		o.Database = o.Config.DB
	}
	if len(o.Config.Exclude) > 0 {
		o.Exclude = o.Config.Exclude
	}
	if o.Config.ScenarioTimeout > 0 {
		o.Timeout = o.Config.ScenarioTimeout
	}
	if o.Parallel < 1 {
		o.Parallel = 1
	}
}

func runTests(ctx context.Context, opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := newFormatter(cmd, opts.RootOptions)

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	scenarioFiles, err = excludeScenarios(scenarioFiles, opts.Exclude)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(scenarioFiles) == 0 {
		if out.JSON() {
			return out.Success(TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(out.Writer, "No scenarios found.")
		return nil
	}

	runOpts := []harness.Option{harness.WithLogger(opts.logger())}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
		runOpts = append(runOpts, harness.WithStore(st))
	}

	reg := prometheus.NewRegistry()
	runOpts = append(runOpts, harness.WithMetrics(metrics.New(reg)))

	results := make([]ScenarioResult, len(scenarioFiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallel)
	for i, file := range scenarioFiles {
		out.VerboseLog("running %s", file)
		g.Go(func() error {
			results[i] = runScenario(gctx, file, opts, runOpts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, reg); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	result := TestResult{Scenarios: results, Total: len(results)}
	for _, r := range results {
		if r.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if out.JSON() {
		return outputTestJSON(out, result)
	}
	return outputTestText(out, result)
}

// findScenarioFiles finds all YAML scenario files under dir, skipping the
// golden directory.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			if matched, _ := filepath.Match(filter, name); !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// excludeScenarios drops files whose scenario name matches any pattern.
func excludeScenarios(files []string, patterns []string) ([]string, error) {
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
	}
	if len(patterns) == 0 {
		return files, nil
	}

	kept := files[:0:0]
	for _, f := range files {
		name := scenarioName(f)
		if !slices.ContainsFunc(patterns, func(p string) bool {
			matched, _ := filepath.Match(p, name)
			return matched
		}) {
			kept = append(kept, f)
		}
	}
	return kept, nil
}

// runScenario executes a single scenario and checks its golden trace.
func runScenario(ctx context.Context, scenarioFile string, opts *TestOptions, runOpts []harness.Option) ScenarioResult {
	sr := ScenarioResult{Name: scenarioName(scenarioFile), File: scenarioFile}
	fail := func(format string, args ...any) ScenarioResult {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf(format, args...))
		return sr
	}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return fail("failed to load scenario: %v", err)
	}
	sr.Name = scenario.Name

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		return fail("execution failed: %v", err)
	}
	sr.Pass = result.Pass
	sr.Errors = result.Errors

	snapshot, err := harness.Snapshot(scenario.Name, result)
	if err != nil {
		return fail("failed to render trace: %v", err)
	}

	goldenPath := goldenFilePath(scenarioFile)
	if opts.Update {
		if err := writeGoldenFile(goldenPath, snapshot); err != nil {
			return fail("failed to update golden file: %v", err)
		}
		sr.Golden = "updated"
		return sr
	}

	golden, err := os.ReadFile(goldenPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		sr.Golden = "missing"
	case err != nil:
		return fail("failed to read golden file: %v", err)
	case !bytes.Equal(golden, snapshot):
		return fail("trace does not match golden file %s (run with --update to regenerate)", goldenPath)
	default:
		sr.Golden = "match"
	}
	return sr
}

func scenarioName(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", scenarioName(scenarioFile)+".golden")
}

func writeGoldenFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(out *OutputFormatter, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    CodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := out.Respond(response); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(out *OutputFormatter, result TestResult) error {
	w := out.Writer

	for _, r := range result.Scenarios {
		if r.Pass {
			suffix := ""
			if r.Golden == "updated" {
				suffix = " (golden updated)"
			}
			fmt.Fprintf(w, "✓ %s%s\n", r.Name, suffix)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", r.Name)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
