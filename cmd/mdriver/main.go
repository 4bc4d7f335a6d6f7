// mdriver replays allocation traces against the allocator and reports space utilization and
// throughput, or generates random traces.
package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/noip2019/malloclab/cmd/mdriver/internal/trace"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/slog"
)

var (
	ConfigFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	CheckFlag = &cli.BoolFlag{
		Name:  "check",
		Usage: "run the heap validator after every operation",
	}
	DumpFlag = &cli.BoolFlag{
		Name:  "dump",
		Usage: "print the heap's block map after each trace",
	}
	JSONFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "write results as JSON instead of a table",
	}
	ChunkSizeFlag = &cli.IntFlag{
		Name:  "chunk-size",
		Usage: "minimum heap growth in bytes (power of two)",
	}
	ArenaSizeFlag = &cli.IntFlag{
		Name:  "arena-size",
		Usage: "maximum heap size in bytes",
	}
	MappedFlag = &cli.BoolFlag{
		Name:  "mapped",
		Usage: "back the heap with an anonymous memory mapping",
	}
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Value: "warn",
		Usage: "log level (debug|info|warn|error)",
	}

	OpsFlag = &cli.IntFlag{
		Name:  "ops",
		Value: 10000,
		Usage: "number of operations to generate",
	}
	MaxSizeFlag = &cli.IntFlag{
		Name:  "max-size",
		Value: 4096,
		Usage: "largest request size to generate",
	}
	SeedFlag = &cli.Int64Flag{
		Name:  "seed",
		Value: 1,
		Usage: "random seed",
	}
	OutputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "write the trace to a file instead of stdout",
	}
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Replays traces and reports utilization and throughput",
	ArgsUsage: "<trace>...",
	Action:    runTraces,
	Flags: []cli.Flag{
		ConfigFlag,
		CheckFlag,
		DumpFlag,
		JSONFlag,
		ChunkSizeFlag,
		ArenaSizeFlag,
		MappedFlag,
		VerbosityFlag,
	},
}

var genCommand = &cli.Command{
	Name:   "gen",
	Usage:  "Generates a random trace",
	Action: generateTrace,
	Flags: []cli.Flag{
		OpsFlag,
		MaxSizeFlag,
		SeedFlag,
		OutputFlag,
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "mdriver",
		Usage: "allocator trace driver",
		Commands: []*cli.Command{
			runCommand,
			genCommand,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(ctx *cli.Context) (*slog.Logger, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(ctx.String(VerbosityFlag.Name)))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid verbosity %q", ctx.String(VerbosityFlag.Name))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

func loadConfig(ctx *cli.Context) (*trace.Config, error) {
	config := &trace.Config{}
	if ctx.IsSet(ConfigFlag.Name) {
		var err error
		config, err = trace.LoadConfig(ctx.String(ConfigFlag.Name))
		if err != nil {
			return nil, err
		}
	}

	if ctx.IsSet(CheckFlag.Name) {
		config.Check = ctx.Bool(CheckFlag.Name)
	}
	if ctx.IsSet(ChunkSizeFlag.Name) {
		config.Allocator.ChunkSize = ctx.Int(ChunkSizeFlag.Name)
	}
	if ctx.IsSet(ArenaSizeFlag.Name) {
		config.Allocator.ArenaSize = ctx.Int(ArenaSizeFlag.Name)
	}
	if ctx.IsSet(MappedFlag.Name) {
		config.Allocator.Mapped = ctx.Bool(MappedFlag.Name)
	}
	if ctx.Args().Present() {
		config.TraceDir = ""
		config.Traces = ctx.Args().Slice()
	}

	return config, nil
}

func runTraces(ctx *cli.Context) error {
	logger, err := newLogger(ctx)
	if err != nil {
		return err
	}

	config, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	paths := config.TracePaths()
	if len(paths) == 0 {
		return errors.New("no traces given: pass trace files or set traces in the config file")
	}

	options := trace.ReplayOptions{
		Logger:    logger,
		Allocator: config.Allocator.CreateOptions(),
		Check:     config.Check,
		Dump:      ctx.Bool(DumpFlag.Name),
	}

	results := make([]trace.Result, 0, len(paths))
	for _, path := range paths {
		t, err := trace.ParseFile(path)
		if err != nil {
			return err
		}

		result, err := trace.Replay(t, options)
		if err != nil {
			return err
		}
		results = append(results, result)
	}

	if ctx.Bool(JSONFlag.Name) {
		return trace.WriteJSON(ctx.App.Writer, results)
	}

	trace.WriteTable(ctx.App.Writer, results)
	if options.Dump {
		for _, result := range results {
			fmt.Fprintf(ctx.App.Writer, "%s: %s\n", result.Name, result.Dump)
		}
	}
	return nil
}

func generateTrace(ctx *cli.Context) error {
	t, err := trace.Generate(trace.GenerateOptions{
		Ops:     ctx.Int(OpsFlag.Name),
		MaxSize: ctx.Int(MaxSizeFlag.Name),
		Seed:    ctx.Int64(SeedFlag.Name),
	})
	if err != nil {
		return err
	}

	if !ctx.IsSet(OutputFlag.Name) {
		return trace.Write(ctx.App.Writer, t)
	}

	file, err := os.Create(ctx.String(OutputFlag.Name))
	if err != nil {
		return errors.Wrap(err, "failed to create output file")
	}
	defer file.Close()

	return trace.Write(file, t)
}
