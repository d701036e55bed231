package agentauth_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	httptestutil "github.com/spacefab/spacefab/internal/testutils/http"
	"github.com/spacefab/spacefab/pkg/agentauth"
	"github.com/spacefab/spacefab/pkg/domain"
	"github.com/spacefab/spacefab/pkg/utils/try"
)

func TestIssuer(t *testing.T) {
	issuer := agentauth.Issuer{Secret: []byte("test-secret")}
	agent := domain.Agent{Id: 991, Name: "agent-1"}

	t.Run("an issued token verifies to the same agent", func(t *testing.T) {
		token := try.To(issuer.Issue(agent, time.Hour)).OrFatal(t)
		got := try.To(issuer.Verify(token)).OrFatal(t)
		if got != agent {
			t.Errorf("agent: got %+v, want %+v", got, agent)
		}
	})

	t.Run("an expired token is rejected", func(t *testing.T) {
		token := try.To(issuer.Issue(agent, -time.Minute)).OrFatal(t)
		if _, err := issuer.Verify(token); !errors.Is(err, agentauth.ErrInvalidToken) {
			t.Errorf("error: got %+v", err)
		}
	})

	t.Run("a token signed with another secret is rejected", func(t *testing.T) {
		other := agentauth.Issuer{Secret: []byte("other-secret")}
		token := try.To(other.Issue(agent, time.Hour)).OrFatal(t)
		if _, err := issuer.Verify(token); !errors.Is(err, agentauth.ErrInvalidToken) {
			t.Errorf("error: got %+v", err)
		}
	})
}

func TestMiddleware(t *testing.T) {
	issuer := agentauth.Issuer{Secret: []byte("test-secret")}
	agent := domain.Agent{Id: 991, Name: "agent-1"}

	handler := func(c echo.Context) error {
		got, ok := agentauth.AgentFrom(c)
		if !ok {
			t.Error("no agent in context")
		}
		if got != agent {
			t.Errorf("agent: got %+v", got)
		}
		return c.NoContent(http.StatusOK)
	}

	t.Run("a valid token for the routed agent passes", func(t *testing.T) {
		token := try.To(issuer.Issue(agent, time.Hour)).OrFatal(t)
		e := echo.New()
		ectx, resp := httptestutil.Post(
			e, "/api/agents/991/reconcile", nil,
			httptestutil.WithHeader(echo.HeaderAuthorization, "Bearer "+token),
		)
		ectx.SetPath("/api/agents/:agentId/reconcile")
		ectx.SetParamNames("agentId")
		ectx.SetParamValues("991")

		if err := issuer.Middleware()(handler)(ectx); err != nil {
			t.Fatalf("unexpected error: %+v", err)
		}
		if resp.Code != http.StatusOK {
			t.Errorf("status: got %d", resp.Code)
		}
	})

	t.Run("a missing token is unauthorized", func(t *testing.T) {
		e := echo.New()
		ectx, _ := httptestutil.Post(e, "/api/agents/991/reconcile", nil)

		err := issuer.Middleware()(handler)(ectx)
		httpErr := &echo.HTTPError{}
		if !errors.As(err, &httpErr) || httpErr.Code != http.StatusUnauthorized {
			t.Errorf("error: got %+v", err)
		}
	})

	t.Run("a token of another agent is forbidden", func(t *testing.T) {
		token := try.To(issuer.Issue(agent, time.Hour)).OrFatal(t)
		e := echo.New()
		ectx, _ := httptestutil.Post(
			e, "/api/agents/7/reconcile", nil,
			httptestutil.WithHeader(echo.HeaderAuthorization, "Bearer "+token),
		)
		ectx.SetPath("/api/agents/:agentId/reconcile")
		ectx.SetParamNames("agentId")
		ectx.SetParamValues("7")

		err := issuer.Middleware()(handler)(ectx)
		httpErr := &echo.HTTPError{}
		if !errors.As(err, &httpErr) || httpErr.Code != http.StatusForbidden {
			t.Errorf("error: got %+v", err)
		}
	})
}
