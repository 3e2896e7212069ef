package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"

	"shopradar/internal/delivery/http/response"
	domainerrors "shopradar/internal/domain/errors"
	"shopradar/internal/domain/service"
	"shopradar/internal/usecase"
)

// InstructionHandlerParams holds dependencies for InstructionHandler, injected by Fx.
type InstructionHandlerParams struct {
	fx.In

	SessionUC usecase.SessionUsecase
	Logger    *slog.Logger
}

// InstructionHandler holds dependencies for rendering instruction handlers
type InstructionHandler struct {
	sessionUC usecase.SessionUsecase
	logger    *slog.Logger
}

// NewInstructionHandler is the constructor for InstructionHandler
func NewInstructionHandler(params InstructionHandlerParams) *InstructionHandler {
	return &InstructionHandler{
		sessionUC: params.SessionUC,
		logger:    params.Logger,
	}
}

// DrainInstructions handles draining pending rendering commands for the client
func (h *InstructionHandler) DrainInstructions(c echo.Context) error {
	max := 0
	if raw := c.QueryParam("max"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return response.BadRequest(c, "VALIDATION_ERROR", "max must be an integer")
		}
		max = parsed
	}

	instructions, err := h.sessionUC.Instructions(c.Param("id"), max)
	if err != nil {
		return h.handleAppError(c, err)
	}

	if instructions == nil {
		instructions = []service.Instruction{}
	}

	return response.Success(c, http.StatusOK, instructions, "Instructions drained successfully")
}

// handleAppError handles application errors
func (h *InstructionHandler) handleAppError(c echo.Context, err error) error {
	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		return response.Error(c, appErr.HTTPCode(), appErr.ErrorCode(), appErr.Message(), appErr.Details())
	}

	return errors.WithStack(err)
}
