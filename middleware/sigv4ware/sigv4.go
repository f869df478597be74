package sigv4ware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-plantauth/sigv4"
)

// ValidationListener is invoked after a signature has been verified and
// before the result is stored on the request.
type ValidationListener func(c *fiber.Ctx, result *sigv4.Result) error

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler
	// Verifier is required.
	Verifier *sigv4.Verifier
	// ContextKey names the fiber local holding the *sigv4.Result.
	ContextKey string

	// ValidationListeners run in order; the first error rejects the request.
	ValidationListeners []ValidationListener
}

// New returns a fiber handler that rejects requests whose SigV4 signature
// does not verify.
func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		result, err := cfg.Verifier.Verify(c.UserContext(), RequestFromContext(c))
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if err := cfg.runValidationListeners(c, result); err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, result)
		c.SetUserContext(WithContext(c.UserContext(), result))

		return cfg.SuccessHandler(c)
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Verifier == nil {
		panic("PLANTAUTH: sigv4 middleware configuration: Verifier is required.")
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"Message": Message(err)})
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "signature"
	}

	return cfg
}

func (cfg *Config) runValidationListeners(c *fiber.Ctx, result *sigv4.Result) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(c, result); err != nil {
			return err
		}
	}
	return nil
}

// Message returns the client facing text of a rejection.
func Message(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Message
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Message
	}
	return err.Error()
}

// RequestFromContext rebuilds the signed view of a fiber request. The path
// is taken before fiber decodes it so the canonical form matches the
// sender's.
func RequestFromContext(c *fiber.Ctx) sigv4.Request {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	header.Set(sigv4.HeaderHost, string(c.Request().Host()))

	return sigv4.Request{
		Method: c.Method(),
		Path:   string(c.Request().URI().PathOriginal()),
		Query:  string(c.Request().URI().QueryString()),
		Header: header,
		Body:   append([]byte(nil), c.Body()...),
	}
}

// FromLocals returns the result stored by the middleware under key.
func FromLocals(c *fiber.Ctx, key string) (*sigv4.Result, bool) {
	if key == "" {
		key = "signature"
	}
	result, ok := c.Locals(key).(*sigv4.Result)
	return result, ok
}

var resultCtxKey = &contextKey{"sigv4"}

type contextKey struct {
	name string
}

// WithContext sets the verified result in the given context.
func WithContext(ctx context.Context, result *sigv4.Result) context.Context {
	return context.WithValue(ctx, resultCtxKey, result)
}

// FromContext finds the verified result in the context.
func FromContext(ctx context.Context) (*sigv4.Result, bool) {
	raw, ok := ctx.Value(resultCtxKey).(*sigv4.Result)
	return raw, ok
}
