package devserver

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-plantauth"
	"github.com/goliatone/go-plantauth/cognito"
	"github.com/goliatone/go-plantauth/sigv4"
	"github.com/google/uuid"
)

const tokenUseAccess = "access"

func fault(kind, message string, status int) *goerrors.Error {
	category := goerrors.CategoryBadInput
	switch {
	case kind == cognito.TypeNotAuthorized:
		category = goerrors.CategoryAuth
	case kind == cognito.TypeResourceNotFound:
		category = goerrors.CategoryNotFound
	case status >= http.StatusInternalServerError:
		category = goerrors.CategoryInternal
	}
	return goerrors.New(message, category).WithTextCode(kind).WithCode(status)
}

func notAuthorized(message string) *goerrors.Error {
	return fault(cognito.TypeNotAuthorized, message, http.StatusBadRequest)
}

// writeFault renders err in the JSON 1.1 error shape.
func (s *Server) writeFault(c *fiber.Ctx, target string, err error) error {
	status := http.StatusInternalServerError
	kind := cognito.TypeInternalError
	message := "internal error"

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode != "" {
		status = richErr.Code
		kind = richErr.TextCode
		message = richErr.Message
	}

	s.logger.Warn("identity request rejected", "target", target, "type", kind, "message", message)
	return c.Status(status).JSON(fiber.Map{
		"__type":  kind,
		"message": message,
	}, cognito.ContentType)
}

func (s *Server) handleIdentity(c *fiber.Ctx) error {
	target := c.Get(cognito.HeaderTarget)

	var (
		out any
		err error
	)
	switch target {
	case cognito.TargetInitiateAuth:
		out, err = s.initiateAuth(c.Body())
	case cognito.TargetGetID:
		out, err = s.getID(c.UserContext(), c.Body())
	case cognito.TargetGetCredentialsForIdentity:
		out, err = s.getCredentialsForIdentity(c.UserContext(), c.Body())
	default:
		err = fault("UnknownOperationException", "unknown target "+target, http.StatusBadRequest)
	}
	if err != nil {
		return s.writeFault(c, target, err)
	}
	return c.JSON(out, cognito.ContentType)
}

func decodeInput(body []byte, in any) error {
	if err := json.Unmarshal(body, in); err != nil {
		return fault("SerializationException", "invalid request body", http.StatusBadRequest)
	}
	return nil
}

func (s *Server) initiateAuth(body []byte) (*cognito.InitiateAuthOutput, error) {
	var in cognito.InitiateAuthInput
	if err := decodeInput(body, &in); err != nil {
		return nil, err
	}

	if in.ClientID != s.config.ClientID {
		return nil, fault(cognito.TypeResourceNotFound, "User pool client "+in.ClientID+" does not exist.", http.StatusBadRequest)
	}
	if in.AuthFlow != cognito.AuthFlowUserPassword {
		return nil, fault(cognito.TypeInvalidParameter, "Unsupported auth flow "+in.AuthFlow, http.StatusBadRequest)
	}

	username := in.AuthParameters["USERNAME"]
	if err := s.users.Authenticate(username, in.AuthParameters["PASSWORD"]); err != nil {
		return nil, notAuthorized("Incorrect username or password.")
	}

	now := s.now()
	idToken, err := s.mintToken(username, auth.TokenUseID, now)
	if err != nil {
		return nil, err
	}
	accessToken, err := s.mintToken(username, tokenUseAccess, now)
	if err != nil {
		return nil, err
	}

	s.logger.Info("issued identity token", "username", username)
	return &cognito.InitiateAuthOutput{
		AuthenticationResult: &cognito.AuthenticationResult{
			AccessToken:  accessToken,
			IDToken:      idToken,
			RefreshToken: uuid.NewString(),
			ExpiresIn:    int64(s.config.TokenTTL / time.Second),
			TokenType:    "Bearer",
		},
	}, nil
}

func (s *Server) subject(username string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(s.issuer+"#"+username)).String()
}

func (s *Server) mintToken(username, use string, now time.Time) (string, error) {
	claims := auth.IDTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   s.subject(username),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
			ID:        uuid.NewString(),
		},
		Username: username,
		TokenUse: use,
		AuthTime: now.Unix(),
	}
	if use == auth.TokenUseID {
		claims.Audience = jwt.ClaimStrings{s.config.ClientID}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyID
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "sign token")
	}
	return signed, nil
}

// identityFor verifies the login token and returns the identity id bound
// to its subject.
func (s *Server) identityFor(ctx context.Context, logins map[string]string) (string, *auth.IDTokenClaims, error) {
	token, ok := logins[s.ProviderName()]
	if !ok || token == "" {
		return "", nil, notAuthorized("Invalid login token. Missing login for " + s.ProviderName())
	}

	claims, err := s.tokens.Verify(ctx, token)
	if err != nil {
		return "", nil, notAuthorized("Invalid login token. Token is not valid.")
	}

	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(s.config.IdentityPoolID+"#"+claims.Subject))
	return s.config.Region + ":" + id.String(), claims, nil
}

func (s *Server) getID(ctx context.Context, body []byte) (*cognito.GetIDOutput, error) {
	var in cognito.GetIDInput
	if err := decodeInput(body, &in); err != nil {
		return nil, err
	}
	if in.IdentityPoolID != s.config.IdentityPoolID {
		return nil, fault(cognito.TypeResourceNotFound, "IdentityPool '"+in.IdentityPoolID+"' not found.", http.StatusBadRequest)
	}

	identityID, _, err := s.identityFor(ctx, in.Logins)
	if err != nil {
		return nil, err
	}
	return &cognito.GetIDOutput{IdentityID: identityID}, nil
}

func (s *Server) getCredentialsForIdentity(ctx context.Context, body []byte) (*cognito.GetCredentialsForIdentityOutput, error) {
	var in cognito.GetCredentialsForIdentityInput
	if err := decodeInput(body, &in); err != nil {
		return nil, err
	}

	identityID, claims, err := s.identityFor(ctx, in.Logins)
	if err != nil {
		return nil, err
	}
	if identityID != in.IdentityID {
		return nil, notAuthorized("Invalid login token. Identity does not match token.")
	}

	issued := issuedCredentials{
		credentials: sigv4.Credentials{
			AccessKeyID:  "ASIA" + strings.ToUpper(randomHex(8)),
			SecretKey:    base64.RawStdEncoding.EncodeToString(randomBytes(30)),
			SessionToken: base64.StdEncoding.EncodeToString(randomBytes(96)),
		},
		identityID: identityID,
		username:   claims.Username,
		expiresAt:  s.now().Add(s.config.CredentialsTTL).Truncate(time.Second),
	}

	s.mu.Lock()
	s.issued[issued.credentials.AccessKeyID] = issued
	s.mu.Unlock()

	s.logger.Info("issued temporary credentials", "identity_id", identityID, "access_key_id", issued.credentials.AccessKeyID)
	return &cognito.GetCredentialsForIdentityOutput{
		IdentityID: identityID,
		Credentials: &cognito.Credentials{
			AccessKeyID:  issued.credentials.AccessKeyID,
			SecretKey:    issued.credentials.SecretKey,
			SessionToken: issued.credentials.SessionToken,
			Expiration:   float64(issued.expiresAt.Unix()),
		},
	}, nil
}

func (s *Server) handleJWKS(c *fiber.Ctx) error {
	if c.Params("pool") != s.config.UserPoolID {
		return c.SendStatus(fiber.StatusNotFound)
	}

	pub := s.key.PublicKey
	return c.JSON(fiber.Map{
		"keys": []fiber.Map{{
			"kty": "RSA",
			"kid": s.keyID,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("devserver: read random bytes: " + err.Error())
	}
	return b
}

func randomHex(n int) string {
	return hex.EncodeToString(randomBytes(n))
}
