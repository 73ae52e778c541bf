package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/samber/do"
	"github.com/yz4230/deployhook/internal/entity"
	"github.com/yz4230/deployhook/internal/usecase"
)

const (
	responseOK      = "OK\n"
	responseError   = "ERROR\n"
	responseIllegal = "ILLEGAL REQUEST\n"
)

// RegisterWebhook serves deployment notifications on every path.
func RegisterWebhook(injector *do.Injector, e *echo.Echo) {
	handler := func(c echo.Context) error {
		req := c.Request()
		log := zerolog.Ctx(req.Context())

		if req.Method != http.MethodPost {
			return c.String(http.StatusBadRequest, responseIllegal)
		}

		var body entity.DeploymentRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			log.Debug().Err(err).Msg("undecodable notification body")
			return c.String(http.StatusBadRequest, responseIllegal)
		}
		if err := body.Validate(); err != nil {
			return c.String(http.StatusBadRequest, responseIllegal)
		}

		usecase := do.MustInvoke[usecase.DeployPackageUsecase](injector)
		if err := usecase.Execute(req.Context(), &body); err != nil {
			if errors.Is(err, entity.ErrValidation) {
				return c.String(http.StatusBadRequest, responseIllegal)
			}
			return c.String(http.StatusInternalServerError, responseError+err.Error())
		}
		return c.String(http.StatusOK, responseOK)
	}

	e.Any("/", handler)
	e.Any("/*", handler)
}
