// Package cli parses command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pipedag/pipedag/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("pipedag", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
pipedag - A declarative, dependency-aware data-pipeline scheduler.

Usage:
  pipedag [options] [PIPELINE_PATH]

Arguments:
  PIPELINE_PATH
    Path to a single definition file or a directory containing definition files.

Options:
`)
		flagSet.PrintDefaults()
	}

	pipelineFlag := flagSet.String("pipeline", "", "Path to the pipeline file or directory.")
	pFlag := flagSet.String("p", "", "Path to the pipeline file or directory (shorthand).")
	formatFlag := flagSet.String("format", "hcl", "Pipeline definition format. Options: 'hcl' or 'yaml'.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 4, "Number of concurrent workers.")
	queueFlag := flagSet.Int("queue-size", 16, "Capacity of the bounded work queue.")
	retriesFlag := flagSet.Int("retries", 0, "Default transient-failure retry budget for tasks that do not declare their own.")
	retryDelayFlag := flagSet.Duration("retry-delay", 500*time.Millisecond, "Pause before re-releasing a transiently failed task.")
	taskTimeoutFlag := flagSet.Duration("task-timeout", time.Minute, "Deadline per task execution attempt. 0 disables it.")
	stallTimeoutFlag := flagSet.Duration("stall-timeout", 5*time.Minute, "How long to wait for any status report before presuming in-flight workers lost. 0 disables the watchdog.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *pipelineFlag != "" {
		path = *pipelineFlag
	} else if *pFlag != "" {
		path = *pFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Pipeline path determined.", "path", path)

	if path == "" {
		slog.Debug("No pipeline path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	format := strings.ToLower(*formatFlag)
	if format != "hcl" && format != "yaml" {
		return nil, false, &ExitError{Code: 2, Message: "invalid format: must be 'hcl' or 'yaml'"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *workersFlag < 1 {
		return nil, false, &ExitError{Code: 2, Message: "invalid workers: must be at least 1"}
	}
	slog.Debug("CLI parameter validation complete.")

	config := &app.Config{
		PipelinePath:    path,
		Format:          format,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		WorkerCount:     *workersFlag,
		QueueSize:       *queueFlag,
		DefaultRetries:  *retriesFlag,
		RetryDelay:      *retryDelayFlag,
		TaskTimeout:     *taskTimeoutFlag,
		StallTimeout:    *stallTimeoutFlag,
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
