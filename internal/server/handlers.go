package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/omnandre07/SchemeSahayak/internal/apperrors"
	"github.com/omnandre07/SchemeSahayak/internal/queue"
)

// APIResponse is the uniform response envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// UtteranceRequest starts or continues a conversation with free text.
type UtteranceRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text" binding:"required"`
	Language  string `json:"language"`
}

// AnswerRequest answers a pending clarification question.
type AnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	Answer     string `json:"answer" binding:"required"`
}

// ReplayRequest carries a batch of offline actions for ordered replay.
type ReplayRequest struct {
	Actions []queue.Action `json:"actions" binding:"required"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC(),
			Uptime:    time.Since(s.startTime).String(),
		},
	})
}

func (s *Server) handleUtterance(c *gin.Context) {
	var req UtteranceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   fmt.Sprintf("invalid request: %v", err),
		})
		return
	}

	result, err := s.controller.SubmitUtterance(c.Request.Context(), req.SessionID, req.Text, req.Language)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Data: result})
}

func (s *Server) handleAnswer(c *gin.Context) {
	sessionID := c.Param("id")

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   fmt.Sprintf("invalid request: %v", err),
		})
		return
	}

	result, err := s.controller.SubmitAnswer(c.Request.Context(), sessionID, req.QuestionID, req.Answer)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Data: result})
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, err := s.controller.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Data: sess})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.controller.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Message: "session deleted"})
}

// handleReplay drains one batch of offline actions in sequence order and
// reports per-action outcomes. A failed action never aborts the batch.
func (s *Server) handleReplay(c *gin.Context) {
	var req ReplayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{
			Success: false,
			Error:   fmt.Sprintf("invalid request: %v", err),
		})
		return
	}

	q := queue.New(s.controller, s.metrics)
	for _, action := range req.Actions {
		if err := q.Enqueue(action); err != nil {
			c.JSON(http.StatusBadRequest, APIResponse{
				Success: false,
				Error:   fmt.Sprintf("invalid batch: %v", err),
			})
			return
		}
	}

	drain, err := q.Drain(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, APIResponse{Success: false, Error: err.Error()})
		return
	}

	results := make([]queue.ActionResult, 0, len(req.Actions))
	for result := range drain {
		results = append(results, result)
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Data: results})
}

// writeError maps the engine's error taxonomy onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrSessionExpired):
		c.JSON(http.StatusNotFound, APIResponse{
			Success: false,
			Error:   "session expired",
			Message: "Please start a new session.",
		})
	case errors.Is(err, apperrors.ErrInvalidAnswer):
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: err.Error()})
	default:
		s.logger.Error("Request failed: %v", err)
		c.JSON(http.StatusInternalServerError, APIResponse{Success: false, Error: "internal error"})
	}
}
