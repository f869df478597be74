package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	auth "github.com/goliatone/go-plantauth"
	"github.com/goliatone/go-plantauth/internal/devserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startDevServer(t *testing.T) string {
	t.Helper()

	users, err := devserver.NewUsers(nil)
	require.NoError(t, err)
	require.NoError(t, users.Add("ada", "correct horse"))

	srv, err := devserver.New(devserver.DefaultConfig(), users)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	return "http://" + ln.Addr().String()
}

func writeConfig(t *testing.T, base string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := devserver.DefaultConfig()

	configPath := filepath.Join(dir, "plantauth.yaml")
	tokenPath := filepath.Join(dir, "state", "token.json")
	content := fmt.Sprintf(`region: %s
user_pool_id: %s
user_pool_client_id: %s
identity_pool_id: %s
api_url: %s
endpoints:
  identity_provider: %s/
  identity_broker: %s/
storage:
  kind: file
  path: %s
`, cfg.Region, cfg.UserPoolID, cfg.ClientID, cfg.IdentityPoolID, base, base, base, tokenPath)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))

	passwordPath := filepath.Join(dir, "password")
	require.NoError(t, os.WriteFile(passwordPath, []byte("correct horse\n"), 0o600))
	return configPath, passwordPath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, nil, &stdout, &stderr)
	return stdout.String(), err
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestLoginStatusCallLogout(t *testing.T) {
	base := startDevServer(t)
	configPath, passwordPath := writeConfig(t, base)

	out, err := runCLI(t, "status", "--config", configPath)
	require.NoError(t, err)
	assert.Equal(t, "no_session", decode(t, out)["state"])

	out, err = runCLI(t, "login", "-c", configPath, "-u", "ada", "--password-file", passwordPath)
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as ada")

	// state survives across invocations through the token file
	out, err = runCLI(t, "status", "-c", configPath)
	require.NoError(t, err)
	report := decode(t, out)
	assert.Equal(t, "ready", report["state"])
	assert.Equal(t, "ada", report["username"])

	_, err = runCLI(t, "call", "-c", configPath, "putPlant", `{"plant":{"id":"fern","name":"Fern"}}`)
	require.NoError(t, err)

	out, err = runCLI(t, "call", "-c", configPath, "getPlant", `{"plantId":"fern"}`)
	require.NoError(t, err)
	plant, ok := decode(t, out)["plant"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Fern", plant["name"])

	_, err = runCLI(t, "call", "-c", configPath, "getPlant", `{not json`)
	assert.Error(t, err)

	out, err = runCLI(t, "logout", "-c", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "logged out")

	_, err = runCLI(t, "call", "-c", configPath, "getAllPlants")
	require.Error(t, err)
	assert.True(t, auth.IsSessionExpired(err))
}

func TestLoginRejected(t *testing.T) {
	base := startDevServer(t)
	configPath, _ := writeConfig(t, base)

	wrong := filepath.Join(t.TempDir(), "wrong")
	require.NoError(t, os.WriteFile(wrong, []byte("nope"), 0o600))

	_, err := runCLI(t, "login", "-c", configPath, "-u", "ada", "--password-file", wrong)
	require.Error(t, err)
	assert.True(t, auth.IsInvalidCredentials(err))

	_, err = runCLI(t, "login", "-c", configPath, "--password-file", wrong)
	assert.EqualError(t, err, "--username is required")
}

func TestUnknownCommand(t *testing.T) {
	_, err := runCLI(t, "refresh")
	assert.EqualError(t, err, `unknown command "refresh"`)

	_, err = runCLI(t)
	assert.NoError(t, err)
}
