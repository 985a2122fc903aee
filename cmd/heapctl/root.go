package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/heap/fatal"
	"github.com/joshuapare/heapkit/internal/logger"
)

var (
	// Global flags
	verbose  bool
	quiet    bool
	jsonOut  bool
	logAlloc bool
	simOnly  bool
	frames   int
)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Exercise and inspect the kernel and userspace heap allocators",
	Long: `heapctl drives the kernel and userspace heap allocators against a
frame pool and an address space: it replays the reference scenarios, runs
concurrent stress workloads, and prints heap layouts and statistics.

By default frames live in a memfd and heaps are real mappings of this
process; --sim switches to the simulated address space.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logAlloc {
			logger.Init(logger.Options{Enabled: true, Output: os.Stderr, Level: slog.LevelDebug, JSON: jsonOut})
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&logAlloc, "log", false, "Log every ALLOC, FREE and EXTEND to stderr")
	rootCmd.PersistentFlags().BoolVar(&simOnly, "sim", false, "Use the simulated address space")
	rootCmd.PersistentFlags().IntVar(&frames, "frames", 65536, "Physical frames available to the heaps")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error to the process status. A fatal heap failure
// exits the way the allocators' own handler would.
func exitCode(err error) int {
	if fe, ok := fatal.As(err); ok {
		printVerbose("fatal %s during %s\n", fe.Kind, fe.Op)
		return fatal.ExitCode
	}
	return 1
}

// out is where command output goes; tests replace it.
var out io.Writer = os.Stdout

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(out, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(out, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
