package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"

	"wcrt/internal/bench"
	"wcrt/internal/job"
	"wcrt/internal/natsvc"
	"wcrt/internal/report"
	"wcrt/internal/sched"
	"wcrt/internal/taskset"
)

// app holds what the Before hook resolved for the commands.
type app struct {
	cfg    sched.Config
	format report.Format
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	slog.SetDefault(newLogger(slog.LevelInfo))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := a.command().Run(ctx, os.Args); err != nil {
		slog.Error("wcrt failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func newLogger(lvl slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.TimeOnly,
		NoColor:    color.NoColor,
	}))
}

func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	slog.SetDefault(newLogger(lvl))
	return nil
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:  "wcrt",
		Usage: "worst-case response time analysis for fixed-priority task sets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				Sources: cli.EnvVars("WCRT_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("WCRT_LOG_LEVEL"),
			},
			&cli.StringSliceFlag{
				Name:  "methods",
				Usage: "methods to run, e.g. RTA,RTA4,HET2",
			},
			&cli.StringFlag{
				Name:  "ceil",
				Usage: "ceiling arithmetic: int or float",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "detail (per task) or total (per method)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"o"},
				Usage:   "table or json",
				Value:   string(report.FormatTable),
			},
		},
		Before: a.before,
		Commands: []*cli.Command{
			a.analyzeCommand(),
			a.benchCommand(),
			a.genCommand(),
			a.serveCommand(),
			a.askCommand(),
		},
	}
}

// before loads the configuration and applies the global flags on top of it.
func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := sched.Load(cmd.String("config"))
	if err != nil {
		return ctx, cli.Exit(err.Error(), 2)
	}

	if cmd.IsSet("methods") {
		cfg.Methods = cmd.StringSlice("methods")
	}
	if cmd.IsSet("ceil") {
		cfg.Ceil = cmd.String("ceil")
	}
	if cmd.IsSet("report") {
		cfg.Report = sched.ReportMode(cmd.String("report"))
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return ctx, cli.Exit(err.Error(), 2)
	}
	if err := setupLogging(cfg.LogLevel); err != nil {
		return ctx, cli.Exit(err.Error(), 2)
	}

	if a.format, err = report.ParseFormat(cmd.String("format")); err != nil {
		return ctx, cli.Exit(err.Error(), 2)
	}
	a.cfg = cfg
	slog.Debug("configuration loaded", "methods", cfg.Methods, "ceil", cfg.Ceil, "report", cfg.Report)
	return ctx, nil
}

func (a *app) analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "analyse every task set of a file with the enabled methods",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return cli.Exit("analyze needs exactly one task set file", 2)
			}
			sets, err := taskset.Load(cmd.Args().First())
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			runner := job.NewRunner(a.cfg)
			reports := make([]report.SetReport, 0, len(sets))
			for _, j := range job.FromSets(sets) {
				reports = append(reports, report.FromOutcome(runner.Run(j), a.cfg.Report))
			}

			if a.format == report.FormatJSON {
				return report.WriteJSON(os.Stdout, reports)
			}
			for _, r := range reports {
				report.WriteSet(os.Stdout, r)
			}
			return nil
		},
	}
}

func generateFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "sets", Value: 100, Usage: "task sets per utilization"},
		&cli.IntFlag{Name: "tasks", Value: 10, Usage: "tasks per set"},
		&cli.StringSliceFlag{Name: "util", Value: []string{"0.5", "0.6", "0.7", "0.8", "0.9"}, Usage: "target utilizations"},
		&cli.IntFlag{Name: "period-min", Value: 10},
		&cli.IntFlag{Name: "period-max", Value: 10000},
		&cli.BoolFlag{Name: "constrained", Usage: "draw deadlines in [c, t]"},
		&cli.IntFlag{Name: "seed", Usage: "random seed, 0 picks one"},
	}
}

// generate draws one group of sets per requested utilization.
func generate(cmd *cli.Command) ([]taskset.Set, error) {
	seed := uint64(cmd.Int("seed"))
	if seed == 0 {
		seed = rand.Uint64()
	}
	slog.Info("generating task sets", "seed", seed)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	var all []taskset.Set
	for _, s := range cmd.StringSlice("util") {
		u, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("utilization %q: %w", s, err)
		}
		sets, err := taskset.Generate(taskset.Params{
			Sets:        int(cmd.Int("sets")),
			Tasks:       int(cmd.Int("tasks")),
			Utilization: u,
			PeriodMin:   int(cmd.Int("period-min")),
			PeriodMax:   int(cmd.Int("period-max")),
			Constrained: cmd.Bool("constrained"),
		}, rng)
		if err != nil {
			return nil, err
		}
		for i := range sets {
			sets[i].ID = len(all) + i + 1
		}
		all = append(all, sets...)
	}
	return all, nil
}

func (a *app) benchCommand() *cli.Command {
	return &cli.Command{
		Name:      "bench",
		Usage:     "time every method over many task sets",
		ArgsUsage: "[files...]",
		Flags: append(generateFlags(),
			&cli.BoolFlag{Name: "generate", Aliases: []string{"g"}, Usage: "benchmark generated sets instead of files"},
			&cli.StringFlag{Name: "csv", Usage: "write one row per set and method to this file"},
			&cli.IntFlag{Name: "workers", Usage: "parallel workers"},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var sets []taskset.Set
			if cmd.Bool("generate") {
				generated, err := generate(cmd)
				if err != nil {
					return cli.Exit(err.Error(), 2)
				}
				sets = generated
			}
			for _, path := range cmd.Args().Slice() {
				loaded, err := taskset.Load(path)
				if err != nil {
					return cli.Exit(err.Error(), 2)
				}
				sets = append(sets, loaded...)
			}
			if len(sets) == 0 {
				return cli.Exit("bench needs task set files or --generate", 2)
			}

			cfg := a.cfg
			if cmd.IsSet("workers") {
				cfg.Workers = max(1, int(cmd.Int("workers")))
			}
			if cmd.IsSet("csv") {
				cfg.CSV = cmd.String("csv")
			}

			runner := job.NewRunner(cfg)
			b := bench.New(cfg.Report)
			if cfg.CSV != "" {
				if err := b.EnableCSV(cfg.CSV); err != nil {
					return cli.Exit(err.Error(), 2)
				}
			}

			slog.Info("benchmark started", "run", b.RunID, "sets", len(sets), "workers", cfg.Workers)
			start := time.Now()
			err := b.Run(ctx, func(ctx context.Context, emit func(job.Outcome)) error {
				return runner.RunAll(ctx, job.FromSets(sets), emit)
			})
			if err != nil {
				return err
			}

			analysed, rejected, mismatches := b.Counts()
			slog.Info("benchmark finished",
				"run", b.RunID,
				"analysed", analysed,
				"rejected", rejected,
				"mismatches", mismatches,
				"elapsed", time.Since(start))
			for m, d := range runner.Stats().Mean {
				slog.Debug("mean time per set", "method", m, "elapsed", d)
			}

			if a.format == report.FormatJSON {
				return report.WriteJSON(os.Stdout, b.Summaries())
			}
			report.WriteSummary(os.Stdout, b.Summaries())
			return nil
		},
	}
}

func (a *app) genCommand() *cli.Command {
	return &cli.Command{
		Name:      "gen",
		Usage:     "write generated task sets to a file (yaml, toml, json or csv, optionally .zst)",
		ArgsUsage: "<out>",
		Flags:     generateFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return cli.Exit("gen needs exactly one output file", 2)
			}
			sets, err := generate(cmd)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			out := cmd.Args().First()
			if err := taskset.Write(out, sets); err != nil {
				return err
			}
			slog.Info("task sets written", "file", out, "sets", len(sets))
			return nil
		},
	}
}

func natsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "nats-url", Sources: cli.EnvVars("NATS_URL")},
		&cli.StringFlag{Name: "subject"},
	}
}

func (a *app) natsConfig(cmd *cli.Command) sched.Config {
	cfg := a.cfg
	if cmd.IsSet("nats-url") {
		cfg.NATS.URL = cmd.String("nats-url")
	}
	if cmd.IsSet("subject") {
		cfg.NATS.Subject = cmd.String("subject")
	}
	return cfg
}

func (a *app) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "answer analysis requests over NATS",
		Flags: natsFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := a.natsConfig(cmd)
			nc, err := natsvc.Connect(cfg.NATS)
			if err != nil {
				return err
			}
			defer nc.Close()
			return natsvc.New(cfg).Serve(ctx, nc)
		},
	}
}

func (a *app) askCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "send every task set of a file to a serve instance and print the replies",
		ArgsUsage: "<file>",
		Flags: append(natsFlags(),
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "wait this long for each reply"},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return cli.Exit("ask needs exactly one task set file", 2)
			}
			sets, err := taskset.Load(cmd.Args().First())
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			cfg := a.natsConfig(cmd)
			nc, err := natsvc.Connect(cfg.NATS)
			if err != nil {
				return err
			}
			defer nc.Close()

			reports := make([]report.SetReport, 0, len(sets))
			for _, s := range sets {
				rctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
				req := natsvc.NewRequest(uuid.NewString(), s.Tasks, cfg.Methods, cfg.Report)
				reply, err := natsvc.Ask(rctx, nc, cfg.NATS.Subject, req)
				cancel()
				if err != nil {
					return err
				}
				if reply.ID != req.ID {
					slog.Warn("reply does not match request", "set", s.ID, "want", req.ID, "got", reply.ID)
				}

				rep := report.SetReport{Error: reply.Error}
				if reply.Report != nil {
					rep = *reply.Report
				} else {
					slog.Warn("task set rejected", "set", s.ID, "err", reply.Error)
				}
				rep.ID, rep.Group, rep.Tasks = s.ID, s.Group, len(s.Tasks)
				reports = append(reports, rep)
			}

			if a.format == report.FormatJSON {
				return report.WriteJSON(os.Stdout, reports)
			}
			for _, r := range reports {
				report.WriteSet(os.Stdout, r)
			}
			return nil
		},
	}
}
