package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vk/flowgrid/internal/app"
	"github.com/vk/flowgrid/internal/flow"
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

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("flowgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
Flowgrid - run AI processing flows on a remote worker.

Usage:
  flowgrid [options] [FLOW_PATH]

Arguments:
  FLOW_PATH
    Path to a flow document (.json, .yaml or .yml).

Options:
`)
		flagSet.PrintDefaults()
	}

	flowFlag := flagSet.String("flow", "", "Path to the flow document.")
	fFlag := flagSet.String("f", "", "Path to the flow document (shorthand).")
	workerURLFlag := flagSet.String("worker-url", app.DefaultWorkerURL, "URL of the socket.io worker.")
	namespaceFlag := flagSet.String("namespace", "/", "Socket.io namespace of the worker.")
	processorsPathFlag := flagSet.String("processors-path", "", "File or directory of extra .hcl processor manifests.")
	stateFlag := flagSet.String("state", "", "Workspace file to load and save (.json or .yaml). Empty keeps state in memory.")
	runNodeFlag := flagSet.String("run-node", "", "Run only the node with this name.")
	cyclePolicyFlag := flagSet.String("cycle-policy", flow.CycleDegrade.String(), "What to do with cyclic flows. Options: 'degrade' or 'fail'.")
	envCredsFlag := flagSet.Bool("env-credentials", false, "Read API keys from OPENAI_API_KEY, STABILITYAI_API_KEY and REPLICATE_API_KEY.")
	insecureFlag := flagSet.Bool("insecure-skip-verify", false, "Skip TLS certificate verification for the worker.")
	timeoutFlag := flagSet.Duration("timeout", 10*time.Minute, "Maximum time to wait for the run to finish. 0 waits forever.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *flowFlag != "" {
		path = *flowFlag
	} else if *fFlag != "" {
		path = *fFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Flow path determined.", "path", path)

	if path == "" {
		slog.Debug("No flow path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
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

	policy, err := flow.ParseCyclePolicy(*cyclePolicyFlag)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		FlowPath:           path,
		ProcessorsPath:     *processorsPathFlag,
		StatePath:          *stateFlag,
		WorkerURL:          *workerURLFlag,
		Namespace:          *namespaceFlag,
		InsecureSkipVerify: *insecureFlag,
		RunNode:            *runNodeFlag,
		CyclePolicy:        policy,
		EnvCredentials:     *envCredsFlag,
		Timeout:            *timeoutFlag,
		HealthcheckPort:    *healthPortFlag,
		LogFormat:          logFormat,
		LogLevel:           logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
