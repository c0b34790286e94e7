package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/physio/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Session not found"
	case errors.Is(err, domain.ErrUnknownParticipant):
		return http.StatusNotFound, "Participant not found"
	case errors.Is(err, domain.ErrRoomFull):
		return http.StatusBadRequest, "Session is full"
	case errors.Is(err, domain.ErrRoomEnded):
		return http.StatusConflict, "Session has ended"
	case errors.Is(err, domain.ErrResourceExhausted):
		return http.StatusServiceUnavailable, "No session codes available"
	case errors.Is(err, domain.ErrNameEmpty), errors.Is(err, domain.ErrNameTooLong):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func abortWithError(c *gin.Context, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
