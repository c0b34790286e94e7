package http

import (
	"fmt"
	"net/http"

	"github.com/dkeye/physio/internal/app/orch"
	"github.com/dkeye/physio/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	sessionKeyCode        = "session_code"
	sessionKeyParticipant = "participant_id"
)

type CreateSessionRequest struct {
	TherapistName string `json:"therapist_name" binding:"required"`
}

type JoinSessionRequest struct {
	SessionCode string `json:"session_code" binding:"required"`
	PatientName string `json:"patient_name" binding:"required"`
}

type PoseDataRequest struct {
	SessionCode string         `json:"session_code" binding:"required"`
	UserID      string         `json:"user_id" binding:"required"`
	PoseData    domain.Payload `json:"pose_data"`
	Timestamp   float64        `json:"timestamp"`
}

type sessionHandlers struct {
	orch    *orch.Orchestrator
	limiter *RateLimiter
}

func (h *sessionHandlers) allow(c *gin.Context) bool {
	client := c.GetString("client_token")
	if h.limiter.Allow(client) {
		return true
	}
	log.Warn().Str("module", "adapters.http").Str("client", client).Msg("rate limited")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "Too many requests"})
	return false
}

func remember(c *gin.Context, code domain.SessionCode, id domain.ParticipantID) {
	s := sessions.Default(c)
	s.Set(sessionKeyCode, string(code))
	s.Set(sessionKeyParticipant, string(id))
	if err := s.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("save cookie session")
	}
}

func (h *sessionHandlers) create(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "invalid therapist_name"})
		return
	}
	if !h.allow(c) {
		return
	}
	room, err := h.orch.Registry.CreateRoom(req.TherapistName)
	if err != nil {
		abortWithError(c, err)
		return
	}
	remember(c, room.Code(), room.TherapistID())
	c.JSON(http.StatusOK, gin.H{
		"session_code": room.Code(),
		"therapist_id": room.TherapistID(),
		"message":      "Session created successfully",
	})
}

func (h *sessionHandlers) join(c *gin.Context) {
	var req JoinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "invalid join request"})
		return
	}
	if !h.allow(c) {
		return
	}
	code := domain.SessionCode(req.SessionCode)
	p, err := h.orch.Registry.JoinRoom(code, req.PatientName)
	if err != nil {
		abortWithError(c, err)
		return
	}
	remember(c, code, p.ID)
	c.JSON(http.StatusOK, gin.H{
		"session_code": code,
		"patient_id":   p.ID,
		"message":      "Joined session successfully",
	})
}

func (h *sessionHandlers) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.orch.Registry.List()})
}

func (h *sessionHandlers) get(c *gin.Context) {
	room, err := h.orch.Registry.GetRoom(domain.SessionCode(c.Param("code")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, room.Snapshot())
}

func (h *sessionHandlers) end(c *gin.Context) {
	code := domain.SessionCode(c.Param("code"))
	if _, err := h.orch.Registry.EndRoom(code); err != nil {
		abortWithError(c, err)
		return
	}
	h.report(c)
}

func (h *sessionHandlers) report(c *gin.Context) {
	report, err := h.orch.Telemetry.Summarize(domain.SessionCode(c.Param("code")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *sessionHandlers) discard(c *gin.Context) {
	if !h.orch.Registry.DiscardRoom(domain.SessionCode(c.Param("code"))) {
		abortWithError(c, domain.ErrNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *sessionHandlers) poseData(c *gin.Context) {
	var req PoseDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("invalid pose data: %v", err)})
		return
	}
	_, err := h.orch.Telemetry.RecordSample(domain.SessionCode(req.SessionCode), domain.ParticipantID(req.UserID), req.Timestamp, req.PoseData)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *sessionHandlers) whoami(c *gin.Context) {
	s := sessions.Default(c)
	code, _ := s.Get(sessionKeyCode).(string)
	id, _ := s.Get(sessionKeyParticipant).(string)
	if code == "" || id == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": "no session joined"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_code":   code,
		"participant_id": id,
		"client_token":   c.GetString("client_token"),
	})
}

func (h *sessionHandlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Stats())
}
