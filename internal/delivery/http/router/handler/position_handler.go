package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"

	"shopradar/internal/delivery/http/response"
	"shopradar/internal/domain/entity"
	domainerrors "shopradar/internal/domain/errors"
	"shopradar/internal/domain/service"
	"shopradar/internal/usecase"
)

// PositionHandlerParams holds dependencies for PositionHandler, injected by Fx.
type PositionHandlerParams struct {
	fx.In

	SessionUC usecase.SessionUsecase
	Logger    *slog.Logger
}

// PositionHandler holds dependencies for geolocation-related handlers
type PositionHandler struct {
	sessionUC usecase.SessionUsecase
	logger    *slog.Logger
}

// NewPositionHandler is the constructor for PositionHandler
func NewPositionHandler(params PositionHandlerParams) *PositionHandler {
	return &PositionHandler{
		sessionUC: params.SessionUC,
		logger:    params.Logger,
	}
}

// PushReadingRequest represents one device position report
type PushReadingRequest struct {
	Lat            float64    `json:"lat" validate:"min=-90,max=90"`
	Lng            float64    `json:"lng" validate:"min=-180,max=180"`
	AccuracyMeters float64    `json:"accuracy_meters" validate:"omitempty,min=0"`
	CapturedAt     *time.Time `json:"captured_at,omitempty"`
}

// PushFailureRequest represents one categorized device geolocation failure
type PushFailureRequest struct {
	Category string `json:"category" validate:"required,oneof=permission_denied position_unavailable timeout"`
	Reason   string `json:"reason"`
}

// Locate handles the one-shot position acquisition flow
func (h *PositionHandler) Locate(c echo.Context) error {
	pos, err := h.sessionUC.Locate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.handleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, pos, "Position acquired successfully")
}

// StartWatch handles starting continuous position acquisition
func (h *PositionHandler) StartWatch(c echo.Context) error {
	if err := h.sessionUC.StartWatch(c.Request().Context(), c.Param("id")); err != nil {
		return h.handleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Watch started"}, "Watch started successfully")
}

// StopWatch handles stopping continuous position acquisition
func (h *PositionHandler) StopWatch(c echo.Context) error {
	if err := h.sessionUC.StopWatch(c.Param("id")); err != nil {
		return h.handleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]string{"message": "Watch stopped"}, "Watch stopped successfully")
}

// PushReading handles ingesting a device position report
func (h *PositionHandler) PushReading(c echo.Context) error {
	var req PushReadingRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid position reading")
	}

	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	reading := entity.UserPosition{
		Coord:          entity.Coordinate{Lat: req.Lat, Lng: req.Lng},
		AccuracyMeters: req.AccuracyMeters,
	}
	if req.CapturedAt != nil {
		reading.CapturedAt = *req.CapturedAt
	}

	if err := h.sessionUC.PushReading(c.Param("id"), reading); err != nil {
		return h.handleAppError(c, err)
	}

	return response.Success(c, http.StatusAccepted, nil, "Reading accepted")
}

// PushFailure handles ingesting a categorized device geolocation failure
func (h *PositionHandler) PushFailure(c echo.Context) error {
	var req PushFailureRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid failure report")
	}

	if err := c.Validate(&req); err != nil {
		return response.BadRequest(c, "VALIDATION_ERROR", err.Error())
	}

	category := service.PositionErrorCategory(req.Category)
	if err := h.sessionUC.PushFailure(c.Param("id"), category, req.Reason); err != nil {
		return h.handleAppError(c, err)
	}

	return response.Success(c, http.StatusAccepted, nil, "Failure accepted")
}

// handleAppError handles application errors
func (h *PositionHandler) handleAppError(c echo.Context, err error) error {
	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		return response.Error(c, appErr.HTTPCode(), appErr.ErrorCode(), appErr.Message(), appErr.Details())
	}

	return errors.WithStack(err)
}
