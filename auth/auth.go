// server/auth/auth.go
package auth

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const TokenHeader = "X-Memo-Token"

// Checker validates the shared access token. With a bcrypt hash configured
// the plain password is ignored.
type Checker struct {
	password string
	hash     []byte
}

func NewChecker(password, passwordHash string) *Checker {
	c := &Checker{password: password}
	if passwordHash != "" {
		c.hash = []byte(passwordHash)
	}
	return c
}

func (c *Checker) Valid(token string) bool {
	if token == "" {
		return false
	}
	if c.hash != nil {
		return bcrypt.CompareHashAndPassword(c.hash, []byte(token)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(c.password)) == 1
}

// Middleware rejects requests without a valid token. Websocket clients that
// cannot set headers may pass it as the token query parameter.
func Middleware(c *Checker) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		token := ctx.Get(TokenHeader)
		if token == "" {
			token = ctx.Query("token")
		}
		if !c.Valid(token) {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
		}
		return ctx.Next()
	}
}

// HashPassword returns a bcrypt hash suitable for MEMO_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
