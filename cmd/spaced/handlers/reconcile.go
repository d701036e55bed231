package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apireconcile "github.com/spacefab/spacefab-api-types/reconcile"
	"github.com/spacefab/spacefab/pkg/agentauth"
	berr "github.com/spacefab/spacefab/pkg/bindings/errors"
	"github.com/spacefab/spacefab/pkg/license"
	"github.com/spacefab/spacefab/pkg/workspace/reconcile"
)

// ReconcileHandler answers agent polls.
//
// Only request-shell violations (unknown update type, bad enums, missing
// identities) are 400; a workspace failing inside the round degrades that
// workspace and the response is still 200.
func ReconcileHandler(
	processor *reconcile.Processor, checker license.Checker,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		agent, ok := agentauth.AgentFrom(c)
		if !ok {
			return berr.Unauthorized("agent token required", nil)
		}

		if !checker.FeatureAvailable(license.FeatureRemoteDevelopment) {
			return berr.Forbidden(
				"remote_development is not included in the license", nil,
			)
		}

		req := apireconcile.Request{}
		if err := c.Bind(&req); err != nil {
			return berr.BadRequest("malformed reconcile request", err)
		}
		if err := req.Validate(); err != nil {
			return berr.BadRequest(err.Error(), err)
		}

		resp, err := processor.Process(c.Request().Context(), agent, req)
		if err != nil {
			return berr.InternalServerError(err)
		}

		return c.JSON(http.StatusOK, resp)
	}
}
