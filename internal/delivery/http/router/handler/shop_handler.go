package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"

	"shopradar/internal/delivery/http/response"
	domainerrors "shopradar/internal/domain/errors"
	"shopradar/internal/usecase"
)

// ShopHandlerParams holds dependencies for ShopHandler, injected by Fx.
type ShopHandlerParams struct {
	fx.In

	SessionUC usecase.SessionUsecase
	Logger    *slog.Logger
}

// ShopHandler holds dependencies for shop directory handlers
type ShopHandler struct {
	sessionUC usecase.SessionUsecase
	logger    *slog.Logger
}

// NewShopHandler is the constructor for ShopHandler
func NewShopHandler(params ShopHandlerParams) *ShopHandler {
	return &ShopHandler{
		sessionUC: params.SessionUC,
		logger:    params.Logger,
	}
}

// ListShops handles listing the session's filtered shop view
func (h *ShopHandler) ListShops(c echo.Context) error {
	shops, err := h.sessionUC.Shops(c.Param("id"), c.QueryParam("query"))
	if err != nil {
		return h.handleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, shops, "Shops retrieved successfully")
}

// ReloadShops handles refreshing the session's shop set from the directory
func (h *ShopHandler) ReloadShops(c echo.Context) error {
	shops, err := h.sessionUC.Reload(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.handleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, shops, "Shops reloaded successfully")
}

// handleAppError handles application errors
func (h *ShopHandler) handleAppError(c echo.Context, err error) error {
	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		return response.Error(c, appErr.HTTPCode(), appErr.ErrorCode(), appErr.Message(), appErr.Details())
	}

	return errors.WithStack(err)
}
