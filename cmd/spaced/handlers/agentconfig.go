package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	apiagentconfig "github.com/spacefab/spacefab-api-types/agentconfig"
	"github.com/spacefab/spacefab/pkg/agentauth"
	berr "github.com/spacefab/spacefab/pkg/bindings/errors"
	"github.com/spacefab/spacefab/pkg/license"
	"github.com/spacefab/spacefab/pkg/workspace/agentconfig"
)

// AgentConfigHandler takes the agent's config file (as pushed on each config
// sync) and applies its remote_development fragment.
func AgentConfigHandler(
	updater *agentconfig.Updater, checker license.Checker,
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

		content, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return berr.BadRequest("can not read request body", err)
		}
		file, err := apiagentconfig.Unmarshal(content)
		if err != nil {
			return berr.BadRequest("malformed agent config file", err)
		}

		result, err := updater.Update(c.Request().Context(), agent, file)
		if err != nil {
			verr := agentconfig.ValidationError{}
			if errors.As(err, &verr) {
				return c.JSON(http.StatusBadRequest, apiagentconfig.UpdateResult{
					FieldErrors: verr.FieldErrors,
				})
			}
			return berr.InternalServerError(err)
		}

		return c.JSON(http.StatusOK, result)
	}
}
