package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"filippo.io/age"

	auth "github.com/goliatone/go-plantauth"
)

// SealedFile stores the token encrypted to an age X25519 key.
type SealedFile struct {
	path     string
	identity *age.X25519Identity
}

var _ auth.TokenPersister = (*SealedFile)(nil)

// NewSealedFile returns a persister writing ciphertext to path.
func NewSealedFile(path string, identity *age.X25519Identity) *SealedFile {
	return &SealedFile{path: path, identity: identity}
}

// Load implements auth.TokenPersister.
func (s *SealedFile) Load(context.Context) (*auth.IdentityToken, error) {
	ciphertext, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sealed token: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), s.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypt sealed token: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read decrypted token: %w", err)
	}
	return decodeToken(plaintext)
}

// Save implements auth.TokenPersister.
func (s *SealedFile) Save(_ context.Context, token *auth.IdentityToken) error {
	if token == nil {
		return s.Clear(context.Background())
	}

	plaintext, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, s.identity.Recipient())
	if err != nil {
		return fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing age encryption: %w", err)
	}

	return writeFileAtomic(s.path, ciphertext.Bytes())
}

// Clear implements auth.TokenPersister.
func (s *SealedFile) Clear(context.Context) error {
	return removeIfExists(s.path)
}

// LoadIdentity reads the first AGE-SECRET-KEY line of an age key file.
func LoadIdentity(path string) (*age.X25519Identity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open key file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identity, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, fmt.Errorf("parse key file %s: %w", path, err)
		}
		return identity, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return nil, fmt.Errorf("key file %s has no identity", path)
}

// LoadOrCreateIdentity reads the key file at path, generating it first when
// it does not exist.
func LoadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	identity, err := LoadIdentity(path)
	if err == nil {
		return identity, nil
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, fs.ErrNotExist) {
		return nil, err
	}

	identity, err = age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age keypair: %w", err)
	}

	contents := fmt.Sprintf("# public key: %s\n%s\n", identity.Recipient(), identity)
	if err := writeFileAtomic(path, []byte(contents)); err != nil {
		return nil, err
	}
	return identity, nil
}
