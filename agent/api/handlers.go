package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	orchestratorx "github.com/tanpawarit/parcel-scout/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
	scoutx "github.com/tanpawarit/parcel-scout/agent/scout"
	qstashx "github.com/tanpawarit/parcel-scout/pkg/qstash"
	rpcx "github.com/tanpawarit/parcel-scout/pkg/rpc"
)

// ChatService runs one conversation turn.
type ChatService interface {
	HandleMessage(ctx context.Context, sessionID string, text string) (orchestratorx.Reply, error)
}

// URLEvaluator runs the full evaluation pipeline for one listing URL.
type URLEvaluator interface {
	EvaluateURL(ctx context.Context, url string) (contractx.AggregatedEvaluation, error)
}

// ScoutTrigger starts a batch scout run without waiting for it.
type ScoutTrigger interface {
	Trigger(ctx context.Context) error
}

// SignatureVerifier authenticates scheduled deliveries.
type SignatureVerifier interface {
	Verify(signature string, body []byte, destination string) error
}

type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Input     string `json:"input"`
}

type EvaluateRequest struct {
	URL string `json:"url"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Handlers struct {
	chat      ChatService
	evaluator URLEvaluator

	scout            ScoutTrigger
	verifier         SignatureVerifier
	scoutDestination string
}

// NewHandlers wires the HTTP handlers. evaluator may be nil, which disables /evaluate.
func NewHandlers(chat ChatService, evaluator URLEvaluator) *Handlers {
	return &Handlers{chat: chat, evaluator: evaluator}
}

// WithScout enables POST /scout/run. A nil verifier accepts unsigned requests.
func (h *Handlers) WithScout(trigger ScoutTrigger, verifier SignatureVerifier, destination string) *Handlers {
	h.scout = trigger
	h.verifier = verifier
	h.scoutDestination = destination
	return h
}

// HandleChat handles POST /chat.
func (h *Handlers) HandleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "input is required"})
		return
	}

	reply, err := h.chat.HandleMessage(c.Request.Context(), req.SessionID, req.Input)
	if err != nil {
		status := statusFor(err)
		log.Error().Err(err).Str("session_id", req.SessionID).Int("status", status).Msg("chat turn failed")
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, reply)
}

// HandleEvaluate handles POST /evaluate.
func (h *Handlers) HandleEvaluate(c *gin.Context) {
	if h.evaluator == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "evaluation is not enabled"})
		return
	}

	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "url is required"})
		return
	}

	eval, err := h.evaluator.EvaluateURL(c.Request.Context(), req.URL)
	if err != nil {
		status := statusFor(err)
		log.Error().Err(err).Str("url", req.URL).Int("status", status).Msg("evaluation failed")
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, eval)
}

// HandleScoutRun handles POST /scout/run, the target of the daily schedule.
func (h *Handlers) HandleScoutRun(c *gin.Context) {
	if h.scout == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "scheduled scouting is not enabled"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "read body: " + err.Error()})
		return
	}
	if h.verifier != nil {
		if err := h.verifier.Verify(c.GetHeader(qstashx.SignatureHeader), body, h.scoutDestination); err != nil {
			log.Warn().Err(err).Msg("rejected scout trigger")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
			return
		}
	}

	if err := h.scout.Trigger(c.Request.Context()); err != nil {
		if errors.Is(err, scoutx.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
			return
		}
		if errors.Is(err, scoutx.ErrShutdown) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func statusFor(err error) int {
	var rpcErr *rpcx.Error
	switch {
	case errors.Is(err, contractx.ErrValidation):
		return http.StatusBadRequest
	case errors.As(err, &rpcErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
