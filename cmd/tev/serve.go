package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/tevtrace/tev/tevjson"
	"github.com/tevtrace/tev/tevstream"
	"github.com/tevtrace/tev/tevweb"
)

type serveConfig struct {
	*rootConfig

	listenAddr string
	session    string
	workers    int
}

func (cfg *serveConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{
		ShortName:   'a',
		LongName:    "listen-addr",
		Value:       ffval.NewValueDefault(&cfg.listenAddr, "localhost:8080"),
		Usage:       "HTTP listen address",
		Placeholder: "ADDR",
	})
	fs.AddFlag(ff.FlagConfig{
		ShortName:   's',
		LongName:    "session",
		Value:       ffval.NewValue(&cfg.session),
		Usage:       "session config YAML file (default: record everything but slow/debug)",
		Placeholder: "FILE",
	})
	fs.AddFlag(ff.FlagConfig{
		LongName:    "workers",
		Value:       ffval.NewValueDefault(&cfg.workers, 4),
		Usage:       "workload goroutine count",
		Placeholder: "N",
	})
}

func (cfg *serveConfig) Exec(ctx context.Context, args []string) error {
	sessionConfig, err := loadSessionConfig(cfg.session)
	if err != nil {
		return err
	}

	broker := tevstream.NewBroker()

	// Records go nowhere except the broker: subscribers see the live stream,
	// nothing is persisted.
	writer := tevjson.NewWriter(io.Discard, tevjson.WithObserver(broker.Publish))

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

	ln, err := net.Listen("tcp", cfg.listenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	cfg.info.Printf("streaming records on http://%s/stream", ln.Addr())

	mux := http.NewServeMux()
	mux.Handle("/stream", tevweb.NewStreamServer(broker))

	httpServer := &http.Server{
		Handler: mux,
	}

	var g run.Group

	{
		workloadCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return runWorkload(workloadCtx, src, writer, cfg.workers, cfg.debug)
		}, func(error) {
			cancel()
		})
	}

	{
		g.Add(func() error {
			return httpServer.Serve(ln)
		}, func(error) {
			httpServer.Close()
		})
	}

	{
		g.Add(run.SignalHandler(ctx, os.Interrupt))
	}

	return g.Run()
}
