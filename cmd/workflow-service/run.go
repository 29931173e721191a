package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/engine"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/lock"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/logger"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/parser"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/persistence"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/internal/store"
	"github.com/PatClay7325/manufacturing-analytics-platform-sub012/pkg/types"
)

var (
	runFile   string
	runInput  string
	runOutput string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one workflow locally",
	Long: `Execute a workflow definition file once, in process, with in-memory
locking and persistence. Each step is reported as it finished; --output
writes the full execution record as JSON.`,
	Example: `  # Run a workflow
  workflow-service run --file shift-analysis.yaml

  # Pass workflow input
  workflow-service run --file shift-analysis.yaml --input '{"line": "L2"}'

  # Keep the full execution record
  workflow-service run --file shift-analysis.yaml --output result.json`,
	RunE: runWorkflow,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "workflow definition file (yaml or json)")
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "workflow input as a JSON object")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "write the execution record to this file")
	_ = runCmd.MarkFlagRequired("file")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// One-shot runs keep the console clean; only problems are logged
	// unless --debug asks for more.
	level := "warn"
	if debug {
		level = "debug"
	}
	logger.Init(&logger.Config{Level: level, Format: "console", Output: "stdout"})
	defer logger.Sync()

	def, err := parser.ParseFile(runFile)
	if err != nil {
		return err
	}

	var input map[string]any
	if runInput != "" {
		if err := sonic.UnmarshalString(runInput, &input); err != nil {
			return fmt.Errorf("parse --input: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\naborting run...")
		cancel()
	}()

	invoker, err := buildInvoker(ctx, cfg)
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Options{
		Invoker: invoker,
		Locks:   lock.NewManager(store.NewMemoryStore()),
		Gateway: persistence.NewMemoryGateway(),
		LockTTL: cfg.Lock.TTL,
		LockRetry: lock.RetryPolicy{
			Attempts: cfg.Lock.RetryAttempts,
			Interval: cfg.Lock.RetryInterval,
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n  workflow: %s (%d steps)\n\n", def.ID, len(def.Steps))

	exec, err := eng.Execute(ctx, def, input)
	if err != nil {
		return fmt.Errorf("execute workflow: %w", err)
	}

	printStepTable(exec)
	printRunSummary(exec)

	if runOutput != "" {
		raw, err := sonic.MarshalIndent(exec, "", "  ")
		if err != nil {
			return fmt.Errorf("encode execution record: %w", err)
		}
		if err := os.WriteFile(runOutput, raw, 0644); err != nil {
			return fmt.Errorf("write %s: %w", runOutput, err)
		}
		fmt.Printf("\nexecution record written to %s\n", runOutput)
	}

	if exec.Status != types.ExecutionStatusCompleted {
		if exec.Error != nil {
			return fmt.Errorf("execution %s: %s", exec.Status, exec.Error.Message)
		}
		return fmt.Errorf("execution %s", exec.Status)
	}
	return nil
}

func printStepTable(exec *types.WorkflowExecution) {
	fmt.Printf("  %-22s %-10s %-10s %12s %8s\n", "STEP", "KIND", "STATUS", "DURATION", "ATTEMPT")
	for _, step := range exec.Steps {
		dur := "-"
		if step.Duration > 0 {
			dur = step.Duration.Round(time.Millisecond).String()
		}

		note := ""
		switch {
		case step.Error != nil:
			note = "  " + step.Error.Message
		case step.Status == types.StepStatusSkipped && len(step.Logs) > 0:
			note = "  " + step.Logs[len(step.Logs)-1]
		}

		fmt.Printf("  %-22s %-10s %-10s %12s %8d%s\n",
			step.StepID, step.Kind, step.Status, dur, step.Attempt, note)
	}
}

func printRunSummary(exec *types.WorkflowExecution) {
	fmt.Println()
	fmt.Printf("     Status.............: %s\n", exec.Status)
	fmt.Printf("     Duration...........: %s\n", exec.Duration.Round(time.Millisecond))
	fmt.Printf("     Steps completed....: %d/%d\n", exec.Metrics.Completed, exec.Metrics.StepCount)
	if exec.Metrics.Failed > 0 {
		fmt.Printf("     Steps failed.......: %d\n", exec.Metrics.Failed)
	}
	if exec.Metrics.Skipped > 0 {
		fmt.Printf("     Steps skipped......: %d\n", exec.Metrics.Skipped)
	}
	if exec.Metrics.RetryCount > 0 {
		fmt.Printf("     Retryable failures.: %d\n", exec.Metrics.RetryCount)
	}
	if exec.Error != nil {
		fmt.Printf("     Error..............: %s\n", exec.Error.Message)
	}
	fmt.Println()
}
