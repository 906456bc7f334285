package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/pierrec/lz4/v4"
	"github.com/tevtrace/tev"
	"github.com/tevtrace/tev/tevjson"
	"gopkg.in/yaml.v3"
)

type recordConfig struct {
	*rootConfig

	output   string
	session  string
	duration time.Duration
	workers  int
	compress bool
}

func (cfg *recordConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{
		ShortName:   'o',
		LongName:    "output",
		Value:       ffval.NewValueDefault(&cfg.output, "-"),
		Usage:       "trace output file, - for stdout",
		Placeholder: "FILE",
	})
	fs.AddFlag(ff.FlagConfig{
		ShortName:   's',
		LongName:    "session",
		Value:       ffval.NewValue(&cfg.session),
		Usage:       "session config YAML file (default: record everything but slow/debug)",
		Placeholder: "FILE",
	})
	fs.AddFlag(ff.FlagConfig{
		ShortName:   'd',
		LongName:    "duration",
		Value:       ffval.NewValueDefault(&cfg.duration, 3*time.Second),
		Usage:       "how long to record",
		Placeholder: "DURATION",
	})
	fs.AddFlag(ff.FlagConfig{
		LongName:    "workers",
		Value:       ffval.NewValueDefault(&cfg.workers, 4),
		Usage:       "workload goroutine count",
		Placeholder: "N",
	})
	fs.AddFlag(ff.FlagConfig{
		LongName:  "compress",
		Value:     ffval.NewValue(&cfg.compress),
		Usage:     "LZ4-compress the output",
		NoDefault: true,
	})
}

func (cfg *recordConfig) Exec(ctx context.Context, args []string) error {
	sessionConfig, err := loadSessionConfig(cfg.session)
	if err != nil {
		return err
	}

	var dst io.Writer = cfg.stdout
	if cfg.output != "-" {
		f, err := os.Create(cfg.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		dst = f
	}

	var lzw *lz4.Writer
	if cfg.compress {
		lzw = lz4.NewWriter(dst)
		dst = lzw
	}

	writer := tevjson.NewWriter(dst)

	src, err := newDemoSource()
	if err != nil {
		return err
	}

	sess, err := src.NewSession(sessionConfig)
	if err != nil {
		return err
	}
	if err := sess.Start(); err != nil {
		return err
	}
	defer sess.Stop()

	cfg.info.Printf("session %s config %s", sess.ID(), sess.Config())
	cfg.info.Printf("recording for %s with %d workers", cfg.duration, cfg.workers)

	var g run.Group

	{
		workloadCtx, cancel := context.WithTimeout(ctx, cfg.duration)
		g.Add(func() error {
			return runWorkload(workloadCtx, src, writer, cfg.workers, cfg.debug)
		}, func(error) {
			cancel()
		})
	}

	{
		g.Add(run.SignalHandler(ctx, os.Interrupt))
	}

	err = g.Run()
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	case errors.As(err, &(run.SignalError{})):
	default:
		return err
	}

	sess.Stop()

	if lzw != nil {
		if err := lzw.Close(); err != nil {
			return fmt.Errorf("flush output: %w", err)
		}
	}

	if err := writer.Err(); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}

	cfg.info.Printf("done")
	return nil
}

// sessionFile is the YAML shape of a --session file.
type sessionFile struct {
	EnabledCategories  []string `yaml:"enabled_categories"`
	DisabledCategories []string `yaml:"disabled_categories"`
	EnabledTags        []string `yaml:"enabled_tags"`
	DisabledTags       []string `yaml:"disabled_tags"`
}

func loadSessionConfig(filename string) (tev.Config, error) {
	if filename == "" {
		return tev.Config{}, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return tev.Config{}, fmt.Errorf("read session config: %w", err)
	}

	var sf sessionFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return tev.Config{}, fmt.Errorf("parse session config: %w", err)
	}

	cfg := tev.Config{
		EnabledCategories:  sf.EnabledCategories,
		DisabledCategories: sf.DisabledCategories,
		EnabledTags:        sf.EnabledTags,
		DisabledTags:       sf.DisabledTags,
	}
	if err := cfg.Normalize(); err != nil {
		return tev.Config{}, err
	}
	return cfg, nil
}
