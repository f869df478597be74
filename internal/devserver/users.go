package devserver

import (
	"errors"
	"sort"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmptyPassword    = goerrors.New("password must not be empty", goerrors.CategoryBadInput)
	ErrUnknownUser      = goerrors.New("unknown user", goerrors.CategoryAuth)
	ErrPasswordMismatch = goerrors.New("password does not match", goerrors.CategoryAuth)
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return err
	}
	return nil
}

// Users holds the emulated user pool.
type Users struct {
	mu     sync.RWMutex
	hashes map[string]string
}

// NewUsers creates a pool from username to bcrypt hash pairs.
func NewUsers(hashes map[string]string) (*Users, error) {
	u := &Users{hashes: map[string]string{}}
	for name, hash := range hashes {
		if err := u.AddHash(name, hash); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Add hashes password and stores it under username.
func (u *Users) Add(username, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return u.AddHash(username, hash)
}

// AddHash stores an existing bcrypt hash.
func (u *Users) AddHash(username, hash string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return goerrors.New("username must not be empty", goerrors.CategoryBadInput)
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid password hash").
			WithMetadata(map[string]any{"username": username})
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.hashes[username] = hash
	return nil
}

// AddPair parses "name:password" and adds the user.
func (u *Users) AddPair(pair string) error {
	name, password, ok := strings.Cut(pair, ":")
	if !ok {
		return goerrors.New("user must be name:password", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"value": name})
	}
	return u.Add(name, password)
}

// Authenticate checks password against the stored hash.
func (u *Users) Authenticate(username, password string) error {
	u.mu.RLock()
	hash, ok := u.hashes[username]
	u.mu.RUnlock()

	if !ok {
		return ErrUnknownUser
	}
	return ComparePasswordAndHash(password, hash)
}

// Names returns the sorted usernames.
func (u *Users) Names() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()

	names := make([]string, 0, len(u.hashes))
	for name := range u.hashes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
