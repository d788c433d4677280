package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/jibjab-lang/jj/interp"
	"github.com/jibjab-lang/jj/langdef"
	"github.com/jibjab-lang/jj/lexer"
	"github.com/jibjab-lang/jj/native"
	"github.com/jibjab-lang/jj/parser"
	"github.com/jibjab-lang/jj/toolconfig"
	"github.com/jibjab-lang/jj/trace"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"     // Version number (set by git tag at build time)
	Commit  = "unknown" // Git commit hash
	Date    = "unknown" // Build date
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help message")

		langdefPath = flag.String("langdef", "", "Language definition JSON file (default: built-in spellings)")
		configPath  = flag.String("config", "", "Toolchain config file (default: platform config dir)")

		compileMode = flag.Bool("compile", false, "Compile to a native ARM64 Mach-O executable instead of interpreting")
		outputPath  = flag.String("o", "", "Output path for -compile (default: from config, usually a.out)")

		traceTUI = flag.Bool("trace-tui", false, "Record execution and open the trace viewer after the program finishes")
		maxLoops = flag.Uint64("max-loops", 0, "Maximum condition-loop iterations (0 = use config value)")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("JibJab %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		if Date != "unknown" {
			fmt.Printf("Built: %s\n", Date)
		}
		os.Exit(0)
	}

	if *showHelp || flag.NArg() != 1 {
		printHelp()
		if *showHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := toolconfig.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ld := langdef.Default()
	if *langdefPath != "" {
		ld, err = langdef.Load(*langdefPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	sourcePath := flag.Arg(0)
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot read %s: %v\n", sourcePath, err)
		os.Exit(1)
	}

	toks, err := lexer.Lex(string(source), sourcePath, ld)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	prog, err := parser.Parse(toks, ld, sourcePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *compileMode {
		out := *outputPath
		if out == "" {
			out = cfg.Native.OutputPath
		}
		if err := native.CompileToFile(prog, sourcePath, out); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !cfg.Native.MarkExecutable {
			if err := os.Chmod(out, 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}
		return
	}

	it := interp.New(sourcePath)
	it.MaxLoopIters = cfg.Execution.MaxLoopIterations
	if *maxLoops > 0 {
		it.MaxLoopIters = *maxLoops
	}

	var rec *trace.Recorder
	var captured bytes.Buffer
	if *traceTUI || cfg.Execution.EnableTrace {
		rec = trace.NewRecorder(cfg.Trace.MaxEntries)
		it.Tracer = rec
		it.Out = io.MultiWriter(os.Stdout, &captured)
	}

	runErr := it.Run(prog)
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
	}

	if rec != nil && *traceTUI {
		tui := trace.NewTUI(rec, captured.String())
		tui.ShowPositions = cfg.Trace.ShowPositions
		if err := tui.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: trace viewer: %v\n", err)
			os.Exit(1)
		}
	}
	if runErr != nil {
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("JibJab - interpreter and native ARM64 compiler for the JJ language")
	fmt.Println()
	fmt.Println("Usage: jj [options] <program.jj>")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  jj program.jj                        Interpret a program")
	fmt.Println("  jj -compile -o prog program.jj       Compile to a Mach-O executable")
	fmt.Println("  jj -trace-tui program.jj             Interpret, then browse the execution trace")
	fmt.Println("  jj -langdef custom.json program.jj   Use custom surface spellings")
}
