// tev is a demo CLI for the track event engine: it records a synthetic
// workload to a JSON-lines trace file, or serves the live record stream over
// HTTP server-sent events.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/peterbourgon/ff/v4/ffval"
)

func main() {
	var (
		ctx    = context.Background()
		stdout = os.Stdout
		stderr = os.Stderr
		args   = os.Args[1:]
	)
	err := exec(ctx, stdout, stderr, args)
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.As(err, &(run.SignalError{})):
		os.Exit(0)
	case err != nil:
		fmt.Fprintf(stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type rootConfig struct {
	stdout io.Writer
	stderr io.Writer

	logLevel string
	info     *log.Logger
	debug    *log.Logger
}

func (cfg *rootConfig) registerBaseFlags(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{
		ShortName:   'l',
		LongName:    "log",
		Value:       ffval.NewEnum(&cfg.logLevel, "info", "i", "debug", "d", "none", "n"),
		Usage:       "log level: i/info, d/debug, n/none",
		Placeholder: "LEVEL",
	})
}

func exec(ctx context.Context, stdout, stderr io.Writer, args []string) (err error) {
	rootConfig := &rootConfig{
		stdout: stdout,
		stderr: stderr,
	}

	rootFlags := ff.NewFlagSet("tev")
	rootConfig.registerBaseFlags(rootFlags)

	rootCommand := &ff.Command{
		Name:      "tev",
		ShortHelp: "record or stream track events from a synthetic workload",
		Flags:     rootFlags,
	}

	recordConfig := &recordConfig{rootConfig: rootConfig}
	recordFlags := ff.NewFlagSet("record").SetParent(rootFlags)
	recordConfig.register(recordFlags)
	recordCommand := &ff.Command{
		Name:      "record",
		ShortHelp: "run the workload and write a JSON-lines trace",
		Flags:     recordFlags,
		Exec:      recordConfig.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, recordCommand)

	serveConfig := &serveConfig{rootConfig: rootConfig}
	serveFlags := ff.NewFlagSet("serve").SetParent(rootFlags)
	serveConfig.register(serveFlags)
	serveCommand := &ff.Command{
		Name:      "serve",
		ShortHelp: "run the workload and serve the record stream over SSE",
		Flags:     serveFlags,
		Exec:      serveConfig.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, serveCommand)

	showHelp := true
	defer func() {
		errHelp := errors.Is(err, ff.ErrHelp) || errors.Is(err, ff.ErrNoExec)
		if showHelp || errHelp {
			fmt.Fprintf(stderr, "\n%s\n", ffhelp.Command(rootCommand))
		}
		if errHelp {
			err = nil
		}
	}()

	if err := rootCommand.Parse(args, ff.WithEnvVarPrefix("TEV")); err != nil {
		return err
	}

	{
		var infodst, debugdst io.Writer
		switch rootConfig.logLevel {
		case "n", "none":
			infodst, debugdst = io.Discard, io.Discard
		case "i", "info":
			infodst, debugdst = stderr, io.Discard
		case "d", "debug":
			infodst, debugdst = stderr, stderr
		default:
			return fmt.Errorf("invalid log level %q", rootConfig.logLevel)
		}
		rootConfig.info = log.New(infodst, "", 0)
		rootConfig.debug = log.New(debugdst, "[DEBUG] ", log.Lmsgprefix)
	}

	showHelp = false

	return rootCommand.Run(ctx)
}
