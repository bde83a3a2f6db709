package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	tccruntime "github.com/wippyai/tcc-runtime"
	"github.com/wippyai/tcc-runtime/engine"
	"github.com/wippyai/tcc-runtime/native"
	"github.com/wippyai/tcc-runtime/runtime"
)

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type options struct {
	sources     []string
	inline      string
	includes    listFlag
	sysIncludes listFlag
	libPaths    listFlag
	libs        listFlag
	defines     listFlag
	tccOptions  string
	tccLibPath  string
	funcName    string
	sigText     string
	args        string
	output      string
	kind        string
	runMain     bool
	list        bool
	verbose     bool
}

func main() {
	var o options
	flag.StringVar(&o.inline, "e", "", "C source to compile in addition to the files")
	flag.Var(&o.includes, "I", "Include directory (repeatable)")
	flag.Var(&o.sysIncludes, "isystem", "System include directory (repeatable)")
	flag.Var(&o.libPaths, "L", "Library directory (repeatable)")
	flag.Var(&o.libs, "l", "Library to link (repeatable)")
	flag.Var(&o.defines, "D", "Macro definition NAME or NAME=VALUE (repeatable)")
	flag.StringVar(&o.tccOptions, "opts", "", "Compiler options, e.g. \"-Wall -g\"")
	flag.StringVar(&o.tccLibPath, "lib-path", "", "Directory holding libtcc1.a and the tcc headers")
	flag.StringVar(&o.funcName, "func", "", "Function to call (default main)")
	flag.StringVar(&o.sigText, "sig", "", "Signatures as WIT text, or @file to read them from a file")
	flag.StringVar(&o.args, "args", "", "Arguments for -func, or argv for -run (comma-separated)")
	flag.StringVar(&o.output, "o", "", "Write an artifact to this path instead of running")
	flag.StringVar(&o.kind, "kind", "exe", "Artifact kind for -o: exe, dll, obj or preprocess")
	flag.BoolVar(&o.runMain, "run", false, "Run main like a program and exit with its status")
	flag.BoolVar(&o.list, "list", false, "List symbols after compiling and exit")
	interactive := flag.Bool("i", false, "Interactive mode with TUI (needs -sig)")
	flag.BoolVar(&o.verbose, "v", false, "Log compiler and runtime activity to stderr")
	flag.Parse()
	o.sources = flag.Args()

	if len(o.sources) == 0 && o.inline == "" {
		fmt.Fprintln(os.Stderr, "Usage: tccrun [flags] file.c... [-func name -sig 'name: func(a: s32) -> s32' -args 1]")
		fmt.Fprintln(os.Stderr, "       tccrun [flags] file.c... -run -args a,b")
		fmt.Fprintln(os.Stderr, "       tccrun [flags] file.c... -o out -kind obj")
		fmt.Fprintln(os.Stderr, "       tccrun [flags] file.c... -sig @api.wit -i  (interactive mode)")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if o.verbose {
		setupLogging()
	}

	if *interactive {
		if err := runInteractive(&o); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	code, err := run(&o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func setupLogging() {
	l, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return
	}
	runtime.SetLogger(l)
	engine.SetLogger(l)
	native.SetLogger(l)
}

// config translates the flags into a runtime configuration.
func (o *options) config() (*runtime.Config, error) {
	cfg := &runtime.Config{
		LibPath:         o.tccLibPath,
		Options:         o.tccOptions,
		IncludePaths:    o.includes,
		SysIncludePaths: o.sysIncludes,
		LibraryPaths:    o.libPaths,
		Libraries:       o.libs,
		Defines:         make(map[string]string),
		ScriptHeader:    true,
		ErrorCallback: func(msg string) {
			fmt.Fprintln(os.Stderr, msg)
		},
	}
	for _, d := range o.defines {
		name, value, _ := strings.Cut(d, "=")
		cfg.Defines[name] = value
	}
	if o.output != "" {
		kind, ok := tccruntime.ParseOutputKind(o.kind)
		if !ok || !kind.IsFile() {
			return nil, fmt.Errorf("unknown artifact kind %q", o.kind)
		}
		cfg.Output = kind
	}
	return cfg, nil
}

// load creates a context and adds every source.
func (o *options) load() (*runtime.Context, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	c, err := runtime.New(engine.NewTCC(), cfg)
	if err != nil {
		return nil, fmt.Errorf("create compiler: %w", err)
	}
	for _, path := range o.sources {
		if err := c.AddFile(path); err != nil {
			c.Destroy()
			return nil, fmt.Errorf("add %s: %w", path, err)
		}
	}
	if o.inline != "" {
		if err := c.AddSource(o.inline); err != nil {
			c.Destroy()
			return nil, fmt.Errorf("add -e source: %w", err)
		}
	}
	return c, nil
}

// signatures parses -sig. A leading @ names a file.
func (o *options) signatures() (map[string]*runtime.Signature, error) {
	text := o.sigText
	if strings.HasPrefix(text, "@") {
		data, err := os.ReadFile(text[1:])
		if err != nil {
			return nil, fmt.Errorf("read signatures: %w", err)
		}
		text = string(data)
	}
	if text == "" {
		return map[string]*runtime.Signature{}, nil
	}
	return runtime.ParseSignatures(text)
}

func splitArgs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func run(o *options) (int, error) {
	c, err := o.load()
	if err != nil {
		return 0, err
	}
	defer c.Destroy()

	if o.output != "" {
		if err := c.OutputFile(o.output, c.OutputKind()); err != nil {
			return 0, fmt.Errorf("write %s: %w", o.output, err)
		}
		fmt.Printf("Wrote %s (%s)\n", o.output, c.OutputKind())
		return 0, nil
	}

	if o.runMain {
		code, err := c.Run(append([]string{"tccrun"}, splitArgs(o.args)...)...)
		if err != nil {
			return 0, fmt.Errorf("run: %w", err)
		}
		return code, nil
	}

	if err := c.Compile(); err != nil {
		return 0, fmt.Errorf("compile: %w", err)
	}

	if o.list {
		syms, err := c.Symbols()
		if err != nil {
			return 0, fmt.Errorf("list symbols: %w", err)
		}
		fmt.Printf("Symbols:\n")
		for _, s := range syms {
			fmt.Printf("  %s %p\n", s.Name, s.Addr)
		}
		return 0, nil
	}

	sigs, err := o.signatures()
	if err != nil {
		return 0, err
	}

	name := o.funcName
	if name == "" {
		name = "main"
	}
	sig, ok := sigs[name]
	if !ok {
		// without a declared signature, assume int name(void)
		sig, err = runtime.ParseSignature(name + ": func() -> s32;")
		if err != nil {
			return 0, err
		}
	}

	args, err := sig.ConvertArgs(splitArgs(o.args))
	if err != nil {
		return 0, err
	}

	fmt.Printf("Calling %s...\n", sig)
	result, err := c.InvokeDynamic(name, sig, args...)
	if err != nil {
		return 0, fmt.Errorf("call %s: %w", name, err)
	}
	if result != nil {
		fmt.Printf("Result: %v\n", result)
	}
	return 0, nil
}
