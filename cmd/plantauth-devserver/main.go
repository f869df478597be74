// plantauth-devserver runs a local stand-in for the user pool, the identity
// pool and the signed plant catalogue API, so the client and CLI can be
// exercised without a cloud account.
//
//	plantauth-devserver --user ada:secret --print-config > plantauth.yaml
//	PLANTAUTH_CONFIG=plantauth.yaml plantauth login -u ada
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	auth "github.com/goliatone/go-plantauth"
	"github.com/goliatone/go-plantauth/internal/devserver"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var (
		addr        string
		configPath  string
		users       []string
		printConfig bool
		verbose     bool
	)

	flagSet := pflag.NewFlagSet("plantauth-devserver", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&addr, "addr", "127.0.0.1:8573", "listen address")
	flagSet.StringVarP(&configPath, "config", "c", "", "dev server YAML config")
	flagSet.StringArrayVarP(&users, "user", "u", nil, "add a user as name:password (repeatable)")
	flagSet.BoolVar(&printConfig, "print-config", false, "write a matching client config to stdout")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log debug output")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := devserver.LoadConfig(configPath)
	if err != nil {
		return err
	}

	pool, err := devserver.NewUsers(cfg.Users)
	if err != nil {
		return err
	}
	for _, pair := range users {
		if err := pool.AddPair(pair); err != nil {
			return err
		}
	}
	if len(pool.Names()) == 0 {
		return fmt.Errorf("no users configured (use --user name:password)")
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := auth.NewSlogLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	srv, err := devserver.New(cfg, pool)
	if err != nil {
		return err
	}
	srv.WithLogger(logger.GetLogger("plantauth.devserver"))

	if printConfig {
		if err := writeClientConfig(stdout, srv, "http://"+addr); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Listen(addr)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		return srv.Shutdown()
	}
}

// writeClientConfig emits the client config that points at srv.
func writeClientConfig(w io.Writer, srv *devserver.Server, base string) error {
	cfg := srv.Config()
	client := auth.Config{
		Region:           cfg.Region,
		UserPoolID:       cfg.UserPoolID,
		UserPoolClientID: cfg.ClientID,
		IdentityPoolID:   cfg.IdentityPoolID,
		APIURL:           base,
		Service:          cfg.Service,
		Endpoints: auth.EndpointsConfig{
			IdentityProvider: base + "/",
			IdentityBroker:   base + "/",
		},
		VerifyIDToken: true,
		JWKSURL:       base + srv.KeySetPath(),
		Storage: auth.StorageConfig{
			Kind: auth.StorageFile,
			Path: ".plantauth/token.json",
		},
	}
	client.ApplyDefaults()

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(client); err != nil {
		return fmt.Errorf("encode client config: %w", err)
	}
	return encoder.Close()
}
