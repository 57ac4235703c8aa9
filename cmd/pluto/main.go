// Command pluto is the compiler driver's minimum surface: load the project
// config, parse the sources through the linked frontend, run the middle-end
// pipeline, and write the cache and coverage artifacts. Code generation is
// a separate component consuming the produced environment.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plutolang/pluto/internal/cache"
	"github.com/plutolang/pluto/internal/config"
	"github.com/plutolang/pluto/internal/diagnostics"
	"github.com/plutolang/pluto/internal/ffi"
	"github.com/plutolang/pluto/internal/frontend"
	"github.com/plutolang/pluto/internal/pipeline"
	"github.com/plutolang/pluto/internal/source"
)

var (
	flagConfig      string
	flagIncremental bool
	flagCoverage    bool
	flagVerbose     bool
)

func main() {
	root := &cobra.Command{
		Use:           "pluto",
		Short:         "Pluto compiler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "pluto.yaml", "project configuration file")
	root.PersistentFlags().BoolVar(&flagIncremental, "incremental", false, "enable incremental recompilation")
	root.PersistentFlags().BoolVar(&flagCoverage, "coverage", false, "emit the coverage map")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log pipeline passes")

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Type-check the project without writing artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(false)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "build",
		Short: "Check the project and write cache and coverage artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(true)
		},
	})

	if err := root.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func run(writeArtifacts bool) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	sm := source.NewMap()
	for _, path := range append([]string{cfg.Entry}, cfg.Sources...) {
		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read source %s: %w", path, err)
		}
		sm.AddFile(path, string(text))
	}

	program, err := frontend.Parse(sm)
	if err != nil {
		return err
	}

	// Scanned Rust bindings become extern declarations; Result-returning
	// ones seed RustError into effect inference.
	if len(cfg.FFI.RustSources) > 0 {
		scan, err := ffi.ScanFiles(cfg.FFI.RustSources)
		if err != nil {
			return err
		}
		for _, skipped := range scan.Skipped {
			fmt.Fprintf(os.Stderr, "ffi: %s\n", skipped)
		}
		decls, fallible := ffi.ToExternDecls(scan)
		program.ExternFns = append(program.ExternFns, decls...)
		program.FallibleExternFns = append(program.FallibleExternFns, fallible...)
	}

	opts := pipeline.Options{
		Incremental: flagIncremental || cfg.Incremental.Enabled,
		Coverage:    flagCoverage || cfg.Coverage.Enabled,
	}
	if flagVerbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
		opts.Logger = logger
	}

	var store *cache.Store
	if opts.Incremental {
		store, err = cache.OpenStore(cfg.Incremental.CachePath)
		if err != nil {
			return err
		}
		defer store.Close()
		loaded, derr := store.Load()
		if derr != nil {
			// Corrupt caches are recoverable: fall back to a full build.
			fmt.Fprintf(os.Stderr, "%s; running a full build\n", derr.Msg)
			loaded = cache.NewCompilationCache()
		}
		opts.Cache = loaded
	}

	result, cerr := pipeline.Compile(program, sm, opts)
	if cerr != nil {
		printDiagnostic(cerr, sm)
		os.Exit(1)
	}

	for _, w := range result.Warnings {
		printWarning(w, sm)
	}

	if writeArtifacts {
		if store != nil && result.Cache != nil {
			if err := store.Save(result.Cache); err != nil {
				return fmt.Errorf("save cache: %w", err)
			}
		}
		if result.CoverageMap != nil {
			data, err := json.MarshalIndent(result.CoverageMap, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(cfg.Coverage.MapPath, data, 0o644); err != nil {
				return fmt.Errorf("write coverage map: %w", err)
			}
		}
	}
	if result.Stats.CacheHit {
		fmt.Fprintf(os.Stderr, "incremental: %d/%d declarations re-checked\n",
			result.Stats.AffectedDecls, result.Stats.TotalDecls)
	}
	return nil
}

func colorsEnabled() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

func printError(err error) {
	if !colorsEnabled() {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
}

func printDiagnostic(e *diagnostics.CompileError, sm *source.Map) {
	loc := ""
	if f := sm.Get(e.Span.FileID); f != nil {
		line := source.NewLineIndex(f.Text).Line(e.Span.Start)
		loc = fmt.Sprintf("%s:%d: ", f.Path, line)
	}
	if colorsEnabled() {
		fmt.Fprintf(os.Stderr, "%s%s %s\n", loc, color.RedString("%s:", e.Kind), e.Msg)
	} else {
		fmt.Fprintf(os.Stderr, "%s%s: %s\n", loc, e.Kind, e.Msg)
	}
	if e.Help != "" {
		fmt.Fprintf(os.Stderr, "  help: %s\n", e.Help)
	}
}

func printWarning(w diagnostics.Warning, sm *source.Map) {
	loc := ""
	if f := sm.Get(w.Span.FileID); f != nil {
		line := source.NewLineIndex(f.Text).Line(w.Span.Start)
		loc = fmt.Sprintf("%s:%d: ", f.Path, line)
	}
	if colorsEnabled() {
		fmt.Fprintf(os.Stderr, "%s%s %s\n", loc, color.YellowString("warning:"), w.Msg)
	} else {
		fmt.Fprintf(os.Stderr, "%swarning: %s\n", loc, w.Msg)
	}
}
