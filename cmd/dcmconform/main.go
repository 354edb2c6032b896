// Command dcmconform validates DICOM files against an IOD schema edition
// and prints a per-file conformance report.
//
// Usage:
//
//	dcmconform -schema dicom-2019b.json file.dcm ...
//	dcmconform -config run.yaml
//
// Directories given as arguments are walked recursively; the -pattern glob
// filters which files inside them are validated.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
	"github.com/gradienthealth/dicom"
	"gopkg.in/yaml.v3"

	"github.com/medatlas/dcmconform"
)

// Config drives a validation run. Every field can also be given as a flag;
// flags win over the file.
type Config struct {
	// Schema is the path of the schema JSON produced by the crawl tool.
	Schema string `yaml:"schema"`
	// Paths are the files and directories to validate.
	Paths []string `yaml:"paths"`
	// Pattern is a glob matched against slash-separated paths when walking
	// directories. Defaults to "**.dcm".
	Pattern string `yaml:"pattern"`
	// LogLevel is the minimum diagnostic level: debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "YAML run configuration")
	schemaPath := flag.String("schema", "", "schema JSON file")
	pattern := flag.String("pattern", "", "glob for files inside directories")
	logLevel := flag.String("level", "", "minimum log level (debug, info, warn, error)")
	flag.Parse()

	var cfg Config
	if *configPath != "" {
		var err error
		cfg, err = loadConfig(*configPath)
		if err != nil {
			fatal(err)
		}
	}
	if *schemaPath != "" {
		cfg.Schema = *schemaPath
	}
	if *pattern != "" {
		cfg.Pattern = *pattern
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if args := flag.Args(); len(args) > 0 {
		cfg.Paths = args
	}
	if cfg.Pattern == "" {
		cfg.Pattern = "**.dcm"
	}
	if cfg.Schema == "" {
		fatal(fmt.Errorf("no schema given; use -schema or a config file"))
	}
	if len(cfg.Paths) == 0 {
		fatal(fmt.Errorf("no files or directories to validate"))
	}

	var level slog.Level
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			fatal(fmt.Errorf("bad log level %q: %w", cfg.LogLevel, err))
		}
	} else {
		level = slog.LevelWarn
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	schema, err := dcmconform.LoadSchemaFile(cfg.Schema)
	if err != nil {
		fatal(err)
	}
	validator := dcmconform.NewValidator(schema, log)

	files, err := collectFiles(cfg.Paths, cfg.Pattern)
	if err != nil {
		fatal(err)
	}

	violations := 0
	for _, file := range files {
		result, err := validateFile(validator, file)
		if err != nil {
			log.Error("validation failed", "file", file, "error", err)
			violations++
			continue
		}
		printResult(file, result)
		if len(result) > 0 {
			violations++
		}
	}
	if violations > 0 {
		os.Exit(1)
	}
}

// collectFiles expands directories into the files matching the glob pattern.
// Plain file arguments are taken as given.
func collectFiles(paths []string, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}

	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && g.Match(filepath.ToSlash(path)) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func validateFile(v *dcmconform.Validator, path string) (dcmconform.Result, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	p, err := dicom.NewParser(in, st.Size(), nil)
	if err != nil {
		return nil, err
	}
	ds, err := p.Parse(dicom.ParseOptions{DropPixelData: true})
	if err != nil {
		return nil, err
	}

	return v.Validate(dcmconform.FromParsedDataSet(ds))
}

// printResult renders one file's report, modules and messages sorted for
// stable output.
func printResult(path string, result dcmconform.Result) {
	if len(result) == 0 {
		fmt.Printf("%s: OK\n", path)
		return
	}
	modules := make([]string, 0, len(result))
	for name := range result {
		modules = append(modules, name)
	}
	sort.Strings(modules)

	fmt.Printf("%s: errors in %d module(s)\n", path, len(modules))
	for _, name := range modules {
		fmt.Printf("  %s:\n", name)
		msgs := make([]string, 0, len(result[name]))
		for msg := range result[name] {
			msgs = append(msgs, msg)
		}
		sort.Strings(msgs)
		for _, msg := range msgs {
			fmt.Printf("    %s\n", msg)
		}
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
