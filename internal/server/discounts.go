package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/amrherek/OJO-DynamicDiscount/internal/coordinator"
	requestdomain "github.com/amrherek/OJO-DynamicDiscount/internal/request/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const processInitiated = "Processing initiated. You can check the logs for updates."

type processResponse struct {
	Message string `json:"message"`
	Mode    string `json:"mode"`
	Input   string `json:"input_value"`
}

// ProcessDiscounts validates the trigger and hands the run to the
// coordinator in the background. The outcome is only visible in logs and
// in the persisted request state.
func (s *Server) ProcessDiscounts(c *gin.Context) {
	rawMode := strings.TrimSpace(c.Query("mode"))
	input := strings.TrimSpace(c.Query("inputValue"))

	mode, err := coordinator.ParseMode(rawMode)
	if err != nil {
		AbortWithError(c, invalidField("mode", "invalid_mode", "mode must be one of new, c, resume or r"))
		return
	}
	if input == "" {
		AbortWithError(c, invalidField("inputValue", "required", "inputValue is required"))
		return
	}
	if err := validateInput(mode, input); err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		res := s.runner.ProcessDiscounts(ctx, string(mode), input)
		s.log.Debug("http.process.completed",
			zap.String("mode", string(res.Mode)),
			zap.String("action", string(res.Action)),
			zap.Int64("request_id", res.RequestID),
		)
	}()

	c.JSON(http.StatusAccepted, processResponse{
		Message: processInitiated,
		Mode:    string(mode),
		Input:   input,
	})
}

// validateInput checks the input shape for the mode: a bill cycle code for
// new runs and a request id for resumes.
func validateInput(mode coordinator.Mode, input string) error {
	if mode == coordinator.ModeNew {
		return requestdomain.ValidateBillCycle(input)
	}
	if _, err := strconv.ParseInt(input, 10, 64); err != nil {
		return fmt.Errorf("%w: request id %q", coordinator.ErrInvalidInput, input)
	}
	return nil
}
