package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/codefionn/werkraum/internal/cli"
	"github.com/codefionn/werkraum/internal/config"
	"github.com/codefionn/werkraum/internal/logger"
)

type stringSlice []string

func (s *stringSlice) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringSlice) Set(value string) error {
	if value == "" {
		return fmt.Errorf("value cannot be empty")
	}
	*s = append(*s, value)
	return nil
}

func (s stringSlice) toStrings() []string {
	if len(s) == 0 {
		return nil
	}
	return append([]string(nil), s...)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	var (
		allowed    stringSlice
		configPath = flag.String("config", "", "config file path (default: the standard location)")
		root       = flag.String("root", "", "workspace root, overriding the configuration")
		assumeYes  = flag.Bool("yes", false, "answer every confirmation prompt with yes")
		binary     = flag.Bool("binary", false, "treat file content as raw bytes")
		pattern    = flag.String("pattern", "", "glob filter for ls")
		all        = flag.Bool("all", false, "include hidden entries in ls")
		force      = flag.Bool("force", false, "skip the content deny list on writes")
		logLevel   = flag.String("log-level", "", "log level, overriding the configuration")
	)
	flag.Var(&allowed, "allow", "additional allowed directory (repeatable)")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return errors.New("no command given")
	}
	command, cmdArgs := args[0], args[1:]

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.GetConfigPath()
	}

	if command == "init" {
		created, err := config.EnsureDefault(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to write configuration: %w", err)
		}
		if created {
			fmt.Printf("wrote default configuration to %s\n", cfgPath)
		} else {
			fmt.Printf("configuration already exists at %s\n", cfgPath)
		}
		return nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Environment overrides mirror the command-line ones for scripting.
	if envLevel := strings.TrimSpace(os.Getenv("WERKRAUM_LOG_LEVEL")); envLevel != "" {
		cfg.Logging.Level = envLevel
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if envRoot := strings.TrimSpace(os.Getenv("WERKRAUM_ROOT")); envRoot != "" && *root == "" {
		*root = envRoot
	}

	if initErr := logger.Init(logger.ParseLevel(cfg.Logging.Level), cfg.Logging.LogPath); initErr != nil {
		return fmt.Errorf("failed to initialize logger: %w", initErr)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	logger.Info("werkraum starting: command=%s", command)

	ctx := context.Background()
	runner, err := cli.New(ctx, cfg, &cli.Options{
		Root:             *root,
		AllowedPaths:     allowed.toStrings(),
		AssumeYes:        *assumeYes,
		Binary:           *binary,
		Pattern:          *pattern,
		All:              *all,
		SkipContentCheck: *force,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := runner.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return runner.Run(ctx, command, cmdArgs)
}

func usage() {
	fmt.Fprintf(os.Stderr, `werkraum - boundary-enforced workspace file manager

Usage:
  werkraum [flags] <command> [args]

Commands:
  init                      write the default configuration file
  read <path>               print file content
  write <path> [content|-]  write content (stdin when omitted or "-")
  append <path> [content|-] append content
  patch <path> < diff       apply a unified diff from stdin
  rm <path>                 delete a file
  mv <old> <new>            rename a file
  mkdir <path>              create a directory
  ls [path]                 list a directory
  info <path>               show entry metadata
  exists <path>             report whether a path exists

Flags:
`)
	flag.PrintDefaults()
}
