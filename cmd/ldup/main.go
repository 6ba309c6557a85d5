package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	ldup "github.com/mattkeenan/ldup/pkg"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ldup: %v\n", err)
		os.Exit(1)
	}

	app := newApp(os.Stdout, cwd, setupSignalHandler)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ldup: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the CLI. baseDir resolves "." and relative directories;
// shutdown is only called once a scan actually starts.
func newApp(stdout io.Writer, baseDir string, shutdown func() <-chan struct{}) *cli.App {
	// -v is taken by --verbose
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Usage: "print the version"}

	return &cli.App{
		Name:      "ldup",
		Usage:     "list duplicate files in the given directories (the current directory by default)",
		ArgsUsage: "[DIRECTORY...]",
		Version:   version,
		Writer:    stdout,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, Usage: "traverse subdirectories"},
			&cli.BoolFlag{Name: "hidden", Usage: "include hidden files and files in hidden directories"},
			&cli.BoolFlag{Name: "json", Usage: "print the duplicates as JSON (same as --format json)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "output format: human, json, fdupes"},
			&cli.StringFlag{Name: "hash", Usage: "hash algorithm: sha1, sha256, sha512"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"j"}, Usage: "number of files examined concurrently"},
			&cli.StringFlag{Name: "hash-buffer", Usage: "read size used while hashing, e.g. 64K (default: filesystem block size)"},
			&cli.StringFlag{Name: "symlinks", Usage: "file symlink handling: none, contained, all"},
			&cli.StringSliceFlag{Name: "ignore", Aliases: []string{"x"}, Usage: "skip paths matching this regular expression (repeatable)"},
			&cli.StringFlag{Name: "ignore-file", Usage: "read ignore patterns from this file"},
			&cli.BoolFlag{Name: "strict", Usage: "stop at the first file that cannot be read instead of skipping it"},
			&cli.BoolFlag{Name: "no-color", Usage: "never colour the output"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "configuration file", Value: ldup.DefaultConfigPath()},
			&cli.StringSliceFlag{Name: "override", Aliases: []string{"o"}, Usage: "configuration override as key:value (repeatable)"},
			&cli.BoolFlag{Name: "print-config", Usage: "print the effective configuration and exit"},
			&cli.IntFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "verbose level 0-3"},
			&cli.StringFlag{Name: "debug", Usage: "comma-separated debug flags: walk, index, hash"},
		},
		Action: func(c *cli.Context) error {
			return run(c, stdout, baseDir, shutdown)
		},
	}
}

func run(c *cli.Context, stdout io.Writer, baseDir string, shutdown func() <-chan struct{}) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	all := cfg.GetAllConfig()
	ldup.InitLogging(all.Verbose)
	if path := cfg.Path(); path != "" {
		ldup.VerboseLog(2, "configuration file: %s", path)
	}

	if c.Bool("print-config") {
		_, err := cfg.WriteTo(stdout)
		return err
	}

	ignore := ldup.NewIgnoreManager(all.Scan.IgnoreFile)
	for _, pattern := range c.StringSlice("ignore") {
		if err := ignore.AddPattern(pattern); err != nil {
			return err
		}
	}

	opts, err := ldup.FinderOptionsFromConfig(cfg, ignore)
	if err != nil {
		return err
	}

	reporter, err := ldup.NewReporter(stdout, all.Output.Format)
	if err != nil {
		return err
	}
	if c.Bool("no-color") {
		reporter.Color = false
	}

	finder := ldup.NewFinder(baseDir, opts)
	_, err = ldup.Run(finder, c.Args().Slice(), reporter, shutdown())
	return err
}

// loadConfig layers the config file, LDUP_* variables, -o overrides and
// finally explicit flags
func loadConfig(c *cli.Context) (*ldup.Config, error) {
	cfg, err := ldup.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvironment(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(c.StringSlice("override")); err != nil {
		return nil, err
	}
	if err := cfg.ApplyOverrides(flagOverrides(c)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// flagOverrides turns explicitly set flags into config overrides
func flagOverrides(c *cli.Context) []string {
	var overrides []string
	boolFlags := map[string]string{
		"recursive": "recursive",
		"hidden":    "hidden",
		"strict":    "strict",
	}
	for flag, key := range boolFlags {
		if c.IsSet(flag) {
			overrides = append(overrides, key+":"+strconv.FormatBool(c.Bool(flag)))
		}
	}

	stringFlags := map[string]string{
		"format":      "format",
		"hash":        "default",
		"hash-buffer": "hash_buffer",
		"symlinks":    "mode",
		"ignore-file": "ignore_file",
		"debug":       "debug",
	}
	for flag, key := range stringFlags {
		if c.IsSet(flag) {
			overrides = append(overrides, key+":"+c.String(flag))
		}
	}

	// --json wins over --format, as the shorter spelling of the same request
	if c.Bool("json") {
		overrides = append(overrides, "format:"+ldup.FormatJSON)
	}

	if c.IsSet("workers") {
		overrides = append(overrides, "hash_workers:"+strconv.Itoa(c.Int("workers")))
	}
	if c.IsSet("verbose") {
		overrides = append(overrides, "level:"+strconv.Itoa(c.Int("verbose")))
	}
	return overrides
}
