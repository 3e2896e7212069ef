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

// SelectionHandlerParams holds dependencies for SelectionHandler, injected by Fx.
type SelectionHandlerParams struct {
	fx.In

	SessionUC usecase.SessionUsecase
	Logger    *slog.Logger
}

// SelectionHandler holds dependencies for selection and tracking handlers
type SelectionHandler struct {
	sessionUC usecase.SessionUsecase
	logger    *slog.Logger
}

// NewSelectionHandler is the constructor for SelectionHandler
func NewSelectionHandler(params SelectionHandlerParams) *SelectionHandler {
	return &SelectionHandler{
		sessionUC: params.SessionUC,
		logger:    params.Logger,
	}
}

// SelectShop handles selecting a shop and highlighting its marker
func (h *SelectionHandler) SelectShop(c echo.Context) error {
	shop, err := h.sessionUC.Select(c.Request().Context(), c.Param("id"), c.Param("shopID"))
	if err != nil {
		return h.handleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, shop, "Shop selected successfully")
}

// ClearSelection handles clearing the session's selection
func (h *SelectionHandler) ClearSelection(c echo.Context) error {
	if err := h.sessionUC.ClearSelection(c.Param("id")); err != nil {
		return h.handleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Selection cleared"}, "Selection cleared successfully")
}

// ToggleTracking handles flipping route tracking for a shop
func (h *SelectionHandler) ToggleTracking(c echo.Context) error {
	snapshot, err := h.sessionUC.ToggleTracking(c.Request().Context(), c.Param("id"), c.Param("shopID"))
	if err != nil {
		return h.handleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, snapshot, "Tracking toggled successfully")
}

// GetTracking handles reporting the route coordinator state
func (h *SelectionHandler) GetTracking(c echo.Context) error {
	snapshot, err := h.sessionUC.Tracking(c.Param("id"))
	if err != nil {
		return h.handleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, snapshot, "Tracking state retrieved successfully")
}

// RequestRoute handles a one-shot route computation to a shop
func (h *SelectionHandler) RequestRoute(c echo.Context) error {
	var opts usecase.RouteOptions
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&opts); err != nil {
			return response.BindingError(c, "INVALID_INPUT", "Invalid route options")
		}
	}

	route, err := h.sessionUC.RequestRoute(c.Request().Context(), c.Param("id"), c.Param("shopID"), opts)
	if err != nil {
		return h.handleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, route, "Route computed successfully")
}

// handleAppError handles application errors
func (h *SelectionHandler) handleAppError(c echo.Context, err error) error {
	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		return response.Error(c, appErr.HTTPCode(), appErr.ErrorCode(), appErr.Message(), appErr.Details())
	}

	return errors.WithStack(err)
}
