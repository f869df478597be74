package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	auth "github.com/goliatone/go-plantauth"
	"github.com/goliatone/go-plantauth/cognito"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type countingPersister struct {
	*auth.MemoryPersister
	loads  int
	saves  int
	clears int
}

func newCountingPersister() *countingPersister {
	return &countingPersister{MemoryPersister: auth.NewMemoryPersister()}
}

func (p *countingPersister) Load(ctx context.Context) (*auth.IdentityToken, error) {
	p.loads++
	return p.MemoryPersister.Load(ctx)
}

func (p *countingPersister) Save(ctx context.Context, token *auth.IdentityToken) error {
	p.saves++
	return p.MemoryPersister.Save(ctx, token)
}

func (p *countingPersister) Clear(ctx context.Context) error {
	p.clears++
	return p.MemoryPersister.Clear(ctx)
}

type failingPersister struct {
	*auth.MemoryPersister
	saveErr  error
	clearErr error
}

func (p *failingPersister) Save(ctx context.Context, token *auth.IdentityToken) error {
	if p.saveErr != nil {
		return p.saveErr
	}
	return p.MemoryPersister.Save(ctx, token)
}

func (p *failingPersister) Clear(ctx context.Context) error {
	if p.clearErr != nil {
		return p.clearErr
	}
	return p.MemoryPersister.Clear(ctx)
}

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestTokenStoreLogin(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(epoch)
	grant := new(MockPasswordGrant)
	persister := newCountingPersister()

	grant.On("InitiateAuth", mock.Anything, mock.MatchedBy(func(in *cognito.InitiateAuthInput) bool {
		return in.AuthFlow == cognito.AuthFlowUserPassword &&
			in.ClientID == "client-id" &&
			in.AuthParameters["USERNAME"] == "ada" &&
			in.AuthParameters["PASSWORD"] == "hunter2"
	})).Return(authResult("token-1", 3600), nil).Once()

	store := auth.NewTokenStore(grant, "client-id", persister).WithClock(clock)

	token, err := store.Login(ctx, "ada", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "token-1", token.Token)
	assert.Equal(t, "refresh-token-1", token.RefreshToken)
	assert.True(t, epoch.Add(time.Hour).Equal(token.ExpiresAt))

	current, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, *token, current)
	assert.True(t, store.IsValid(time.Minute))

	saved, err := persister.MemoryPersister.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "token-1", saved.Token)
	assert.Equal(t, 1, persister.saves)

	grant.AssertExpectations(t)
}

func TestTokenStoreLoginFailuresKeepPreviousToken(t *testing.T) {
	tests := []struct {
		name  string
		out   *cognito.InitiateAuthOutput
		err   error
		check func(error) bool
	}{
		{
			name:  "rejected password",
			err:   &cognito.APIError{Target: cognito.TargetInitiateAuth, Status: 400, Type: cognito.TypeNotAuthorized, Message: "Incorrect username or password."},
			check: auth.IsInvalidCredentials,
		},
		{
			name:  "unknown user",
			err:   &cognito.APIError{Target: cognito.TargetInitiateAuth, Status: 400, Type: cognito.TypeUserNotFound},
			check: auth.IsInvalidCredentials,
		},
		{
			name:  "unconfirmed user",
			err:   &cognito.APIError{Target: cognito.TargetInitiateAuth, Status: 400, Type: cognito.TypeUserNotConfirmed},
			check: auth.IsInvalidCredentials,
		},
		{
			name:  "unknown app client",
			err:   &cognito.APIError{Target: cognito.TargetInitiateAuth, Status: 400, Type: cognito.TypeResourceNotFound},
			check: auth.IsProtocolError,
		},
		{
			name:  "untyped client error",
			err:   &cognito.APIError{Target: cognito.TargetInitiateAuth, Status: 400, Message: "bad request"},
			check: auth.IsProtocolError,
		},
		{
			name:  "throttled",
			err:   &cognito.APIError{Target: cognito.TargetInitiateAuth, Status: 400, Type: cognito.TypeTooManyRequests},
			check: auth.IsNetworkError,
		},
		{
			name:  "unreachable",
			err:   &cognito.TransportError{Target: cognito.TargetInitiateAuth, Err: errors.New("connection refused")},
			check: auth.IsNetworkError,
		},
		{
			name:  "garbled reply",
			err:   &cognito.DecodeError{Target: cognito.TargetInitiateAuth, Status: 200, Err: errors.New("bad json")},
			check: auth.IsProtocolError,
		},
		{
			name:  "challenge",
			out:   &cognito.InitiateAuthOutput{ChallengeName: "NEW_PASSWORD_REQUIRED", Session: "s"},
			check: auth.IsProtocolError,
		},
		{
			name:  "no lifetime",
			out:   authResult("token-x", 0),
			check: auth.IsProtocolError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			grant := new(MockPasswordGrant)
			grant.On("InitiateAuth", mock.Anything, mock.Anything).Return(authResult("token-1", 3600), nil).Once()
			grant.On("InitiateAuth", mock.Anything, mock.Anything).Return(tt.out, tt.err).Once()

			store := auth.NewTokenStore(grant, "client-id", nil).WithClock(newFakeClock(epoch))

			_, err := store.Login(ctx, "ada", "right")
			require.NoError(t, err)

			_, err = store.Login(ctx, "ada", "wrong")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)

			current, ok := store.Current()
			require.True(t, ok)
			assert.Equal(t, "token-1", current.Token)
		})
	}
}

func TestTokenStoreLoginRejectsBlankInputWithoutNetwork(t *testing.T) {
	grant := new(MockPasswordGrant)
	store := auth.NewTokenStore(grant, "client-id", nil)

	_, err := store.Login(context.Background(), "  ", "secret")
	assert.True(t, auth.IsInvalidCredentials(err))

	_, err = store.Login(context.Background(), "ada", "")
	assert.True(t, auth.IsInvalidCredentials(err))

	grant.AssertNotCalled(t, "InitiateAuth", mock.Anything, mock.Anything)
}

func TestTokenStoreLoginVerifiesToken(t *testing.T) {
	grant := new(MockPasswordGrant)
	grant.On("InitiateAuth", mock.Anything, mock.Anything).Return(authResult("forged", 3600), nil)

	verifier := auth.IDTokenVerifierFunc(func(ctx context.Context, token string) (*auth.IDTokenClaims, error) {
		return nil, errors.New("signature is invalid")
	})
	store := auth.NewTokenStore(grant, "client-id", nil).WithVerifier(verifier)

	_, err := store.Login(context.Background(), "ada", "secret")
	assert.True(t, auth.IsProtocolError(err))

	_, ok := store.Current()
	assert.False(t, ok)
}

func TestTokenStoreIsValidMargin(t *testing.T) {
	clock := newFakeClock(epoch)
	grant := new(MockPasswordGrant)
	grant.On("InitiateAuth", mock.Anything, mock.Anything).Return(authResult("token-1", 3600), nil)

	store := auth.NewTokenStore(grant, "client-id", nil).WithClock(clock)
	assert.False(t, store.IsValid(time.Minute), "no token")

	_, err := store.Login(context.Background(), "ada", "secret")
	require.NoError(t, err)

	expiresAt := epoch.Add(time.Hour)

	clock.Set(expiresAt.Add(-61 * time.Second))
	assert.True(t, store.IsValid(time.Minute))

	clock.Set(expiresAt.Add(-60 * time.Second))
	assert.False(t, store.IsValid(time.Minute), "expiring exactly at now+margin is invalid")

	clock.Set(expiresAt.Add(time.Second))
	assert.False(t, store.IsValid(0))

	_, ok := store.Current()
	assert.True(t, ok, "expired tokens are still returned")
}

func TestTokenStoreLoadsPersistedTokenOnce(t *testing.T) {
	ctx := context.Background()
	persister := newCountingPersister()
	require.NoError(t, persister.MemoryPersister.Save(ctx, &auth.IdentityToken{
		Token:        "persisted",
		RefreshToken: "r",
		ExpiresAt:    epoch.Add(time.Hour),
	}))

	store := auth.NewTokenStore(new(MockPasswordGrant), "client-id", persister).WithClock(newFakeClock(epoch))

	for i := 0; i < 3; i++ {
		current, ok := store.Current()
		require.True(t, ok)
		assert.Equal(t, "persisted", current.Token)
	}
	assert.True(t, store.IsValid(time.Minute))
	assert.Equal(t, 1, persister.loads)
}

func TestTokenStoreLogout(t *testing.T) {
	ctx := context.Background()
	persister := newCountingPersister()
	grant := new(MockPasswordGrant)
	grant.On("InitiateAuth", mock.Anything, mock.Anything).Return(authResult("token-1", 3600), nil)

	store := auth.NewTokenStore(grant, "client-id", persister)
	_, err := store.Login(ctx, "ada", "secret")
	require.NoError(t, err)

	require.NoError(t, store.Logout(ctx))

	_, ok := store.Current()
	assert.False(t, ok)
	assert.Equal(t, 1, persister.clears)

	saved, err := persister.MemoryPersister.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestIdentityTokenJSON(t *testing.T) {
	token := auth.IdentityToken{
		Token:        "header.payload.sig",
		RefreshToken: "refresh",
		ExpiresAt:    time.UnixMilli(1714564800123),
	}

	data, err := token.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"idToken":"header.payload.sig","refreshToken":"refresh","expires":1714564800123}`, string(data))

	var decoded auth.IdentityToken
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.Equal(t, token.Token, decoded.Token)
	assert.Equal(t, token.RefreshToken, decoded.RefreshToken)
	assert.True(t, token.ExpiresAt.Equal(decoded.ExpiresAt))
}

func TestTokenStoreLoginFailsWhenTokenCannotBePersisted(t *testing.T) {
	ctx := context.Background()
	grant := new(MockPasswordGrant)
	grant.On("InitiateAuth", mock.Anything, mock.Anything).Return(authResult("token-1", 3600), nil).Once()
	grant.On("InitiateAuth", mock.Anything, mock.Anything).Return(authResult("token-2", 3600), nil).Once()

	persister := &failingPersister{MemoryPersister: auth.NewMemoryPersister()}
	store := auth.NewTokenStore(grant, "client-id", persister).WithClock(newFakeClock(epoch))

	_, err := store.Login(ctx, "ada", "right")
	require.NoError(t, err)

	persister.saveErr = errors.New("disk full")
	token, err := store.Login(ctx, "ada", "right")
	require.Error(t, err)
	assert.Nil(t, token)
	assert.True(t, auth.IsStorageError(err))

	current, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, "token-1", current.Token)

	// a restarted store sees the same token as the running one
	restarted := auth.NewTokenStore(grant, "client-id", persister).WithClock(newFakeClock(epoch))
	persisted, ok := restarted.Current()
	require.True(t, ok)
	assert.Equal(t, "token-1", persisted.Token)

	grant.AssertExpectations(t)
}

func TestTokenStoreLogoutReportsStorageFailure(t *testing.T) {
	ctx := context.Background()
	grant := new(MockPasswordGrant)
	grant.On("InitiateAuth", mock.Anything, mock.Anything).Return(authResult("token-1", 3600), nil).Once()

	persister := &failingPersister{MemoryPersister: auth.NewMemoryPersister()}
	store := auth.NewTokenStore(grant, "client-id", persister).WithClock(newFakeClock(epoch))

	_, err := store.Login(ctx, "ada", "right")
	require.NoError(t, err)

	persister.clearErr = errors.New("read-only file system")
	err = store.Logout(ctx)
	require.Error(t, err)
	assert.True(t, auth.IsStorageError(err))

	_, ok := store.Current()
	assert.False(t, ok)
}
