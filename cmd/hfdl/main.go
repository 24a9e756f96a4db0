package main

import (
	"fmt"
	"os"

	"github.com/MaxLiang-91/HF-Download/internal/config"
	"github.com/rs/zerolog"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitInvalidArgs     = 2
	ExitUnresolvableURL = 3
	ExitListFailed      = 4
	ExitTransferFailed  = 5
	ExitCancelled       = 6
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "get":
		return runGet(cmdArgs)
	case "repo":
		return runRepo(cmdArgs)
	case "resume":
		return runResume(cmdArgs)
	case "clean":
		return runClean(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: hfdl <command> [options]

Commands:
  get     Download a single file with resume support
  repo    Download every file in a repository tree
  resume  Continue an interrupted repository download
  clean   Remove the batch manifest from a directory

Run 'hfdl <command> -h' for command-specific help.`)
}

// loadConfig builds the effective configuration: defaults, then the
// config file, then HFDL_* environment variables, then flag overrides.
func loadConfig(path string, override config.Config) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		c, err := config.LoadFromFile(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = c
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}
	cfg = cfg.Merge(override)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger builds the CLI logger. Debug logging is opt-in via -v.
func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}
