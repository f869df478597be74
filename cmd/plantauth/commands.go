package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-print"
	"golang.org/x/term"

	auth "github.com/goliatone/go-plantauth"
)

func runLogin(ctx context.Context, env *environment, args []string) error {
	var (
		common       commonFlags
		username     string
		passwordFile string
	)
	flagSet := newFlagSet("login", env)
	common.add(flagSet)
	flagSet.StringVarP(&username, "username", "u", "", "user pool username")
	flagSet.StringVar(&passwordFile, "password-file", "", "read the password from this file (\"-\" prompts)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if username == "" {
		return fmt.Errorf("--username is required")
	}

	password, err := readPassword(env, passwordFile)
	if err != nil {
		return err
	}

	s, err := common.open(ctx, env)
	if err != nil {
		return err
	}
	defer s.Close()

	token, err := s.client.Login(ctx, username, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(env.stdout, "logged in as %s until %s\n", username, token.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

// readPassword reads from passwordFile, or prompts on the terminal when it
// is empty or "-".
func readPassword(env *environment, passwordFile string) (string, error) {
	if passwordFile != "" && passwordFile != "-" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("read password file: %w", err)
		}
		password := strings.TrimRight(string(data), "\r\n")
		if password == "" {
			return "", fmt.Errorf("password file %s is empty", passwordFile)
		}
		return password, nil
	}

	fd := int(env.stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal available for the password prompt (use --password-file)")
	}

	fmt.Fprint(env.stderr, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(env.stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(password), nil
}

func runLogout(ctx context.Context, env *environment, args []string) error {
	var common commonFlags
	flagSet := newFlagSet("logout", env)
	common.add(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	s, err := common.open(ctx, env)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, "logged out")
	return nil
}

type statusReport struct {
	State     auth.SessionState `json:"state"`
	Username  string            `json:"username,omitempty"`
	Subject   string            `json:"subject,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	Region    string            `json:"region"`
	APIURL    string            `json:"api_url"`
	Storage   string            `json:"storage"`
}

func runStatus(ctx context.Context, env *environment, args []string) error {
	var common commonFlags
	flagSet := newFlagSet("status", env)
	common.add(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	s, err := common.open(ctx, env)
	if err != nil {
		return err
	}
	defer s.Close()

	report := statusReport{
		State:   s.client.State(),
		Region:  s.config.Region,
		APIURL:  s.config.APIURL,
		Storage: s.config.Storage.Kind,
	}
	if token, ok := s.client.Tokens().Current(); ok {
		expires := token.ExpiresAt
		report.ExpiresAt = &expires
		if claims, err := token.Claims(); err == nil {
			report.Username = claims.DisplayName()
			report.Subject = claims.UserID()
		}
	}

	fmt.Fprintln(env.stdout, print.MaybePrettyJSON(report))
	return nil
}

func runCall(ctx context.Context, env *environment, args []string) error {
	var common commonFlags
	flagSet := newFlagSet("call", env)
	common.add(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 || len(rest) > 2 {
		return fmt.Errorf("usage: plantauth call <operation> [json-input|-]")
	}
	operation := rest[0]

	var input any
	if len(rest) == 2 {
		raw := []byte(rest[1])
		if rest[1] == "-" {
			var err error
			if raw, err = io.ReadAll(env.stdin); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
		}
		if err := json.Unmarshal(raw, &input); err != nil {
			return fmt.Errorf("input is not valid JSON: %w", err)
		}
	}

	s, err := common.open(ctx, env)
	if err != nil {
		return err
	}
	defer s.Close()

	var out any
	if err := s.client.Call(ctx, operation, input, &out); err != nil {
		return err
	}

	fmt.Fprintln(env.stdout, print.MaybePrettyJSON(out))
	return nil
}
