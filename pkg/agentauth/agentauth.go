// Package agentauth issues and verifies the bearer tokens cluster agents
// present when polling.
package agentauth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	berr "github.com/spacefab/spacefab/pkg/bindings/errors"
	"github.com/spacefab/spacefab/pkg/domain"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	AgentName string `json:"agent_name"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies agent tokens with a shared HS256 secret.
type Issuer struct {
	Secret []byte
}

// Issue signs a token identifying agent, valid for ttl.
func (i Issuer) Issue(agent domain.Agent, ttl time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AgentName: agent.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(agent.Id, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return tok.SignedString(i.Secret)
}

// Verify parses token and returns the agent it identifies.
//
// Expired, malformed or foreign-signed tokens return ErrInvalidToken.
func (i Issuer) Verify(token string) (domain.Agent, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(
		token, claims,
		func(t *jwt.Token) (interface{}, error) { return i.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)
	if err != nil || !parsed.Valid {
		return domain.Agent{}, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	agentId, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return domain.Agent{}, fmt.Errorf("%w: non-numeric subject", ErrInvalidToken)
	}

	return domain.Agent{Id: agentId, Name: claims.AgentName}, nil
}

const agentContextKey = "spacefab.agent"

// Middleware authenticates the request's bearer token and checks it against
// the :agentId route param, so agent A's token never reconciles agent B.
func (i Issuer) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found {
				return berr.Unauthorized("agent token required", nil)
			}

			agent, err := i.Verify(token)
			if err != nil {
				return berr.Unauthorized("agent token rejected", err)
			}

			if param := c.Param("agentId"); param != "" {
				requested, err := strconv.ParseInt(param, 10, 64)
				if err != nil || requested != agent.Id {
					return berr.Forbidden("token does not belong to this agent", nil)
				}
			}

			SetAgent(c, agent)
			return next(c)
		}
	}
}

// SetAgent stores the authenticated agent on the request context.
func SetAgent(c echo.Context, agent domain.Agent) {
	c.Set(agentContextKey, agent)
}

// AgentFrom reads the authenticated agent the middleware stored.
func AgentFrom(c echo.Context) (domain.Agent, bool) {
	agent, ok := c.Get(agentContextKey).(domain.Agent)
	return agent, ok
}
