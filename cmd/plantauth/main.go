// plantauth logs in against the plant catalogue user pool and calls the
// signed catalogue API from the command line.
//
//	plantauth login --username ada
//	plantauth status
//	plantauth call getPlant '{"plantId":"fern"}'
//	plantauth logout
//
// Every command reads its configuration from --config or $PLANTAUTH_CONFIG.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	auth "github.com/goliatone/go-plantauth"
	"github.com/goliatone/go-plantauth/activitymap"
	"github.com/goliatone/go-plantauth/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if auth.IsSessionExpired(err) {
			fmt.Fprintln(os.Stderr, "hint: run \"plantauth login\" to start a new session")
		}
		os.Exit(1)
	}
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *environment, args []string) error
}

var commands = []command{
	{name: "login", summary: "authenticate and store the identity token", run: runLogin},
	{name: "logout", summary: "forget the stored identity token", run: runLogout},
	{name: "status", summary: "show the session state", run: runStatus},
	{name: "call", summary: "invoke an API operation with a JSON input", run: runCall},
}

// environment carries the process streams so commands can be tested.
type environment struct {
	stdin  *os.File
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdin *os.File, stdout, stderr io.Writer) error {
	env := &environment{stdin: stdin, stdout: stdout, stderr: stderr}

	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		return nil
	}

	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(ctx, env, args[1:])
		}
	}

	printUsage(stderr)
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: plantauth <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Flags common to every command: --config PATH (default $%s), --verbose\n", auth.ConfigEnvVar)
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configPath string
	verbose    bool
}

func (c *commonFlags) add(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&c.configPath, "config", "c", "", "config file (default $"+auth.ConfigEnvVar+")")
	flagSet.BoolVarP(&c.verbose, "verbose", "v", false, "log debug output to stderr")
}

// session is an opened client plus what must be released with it.
type session struct {
	config  *auth.Config
	client  *auth.Client
	closers []func() error
}

func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *commonFlags) open(ctx context.Context, env *environment) (*session, error) {
	cfg, err := auth.LoadConfig(c.configPath)
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := auth.NewSlogLogger(slog.New(slog.NewTextHandler(env.stderr, &slog.HandlerOptions{Level: level})))

	persister, closer, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	s := &session{config: cfg, closers: []func() error{closer.Close}}

	client, err := auth.NewClient(cfg, persister)
	if err != nil {
		s.Close()
		return nil, err
	}
	client.WithLoggerProvider(logger).
		WithActivitySink(activitymap.LogSink(logger.GetLogger("plantauth.activity")))

	verifier, err := cfg.NewIDTokenVerifier(logger.GetLogger("plantauth.jwks"))
	if err != nil {
		s.Close()
		return nil, err
	}
	if verifier != nil {
		client.WithIDTokenVerifier(verifier)
		s.closers = append(s.closers, func() error {
			verifier.Close()
			return nil
		})
	}

	s.client = client
	return s, nil
}

func newFlagSet(name string, env *environment) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("plantauth "+name, pflag.ContinueOnError)
	flagSet.SetOutput(env.stderr)
	return flagSet
}
