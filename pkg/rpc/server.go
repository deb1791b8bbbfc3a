package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type ParamKind string

const (
	ParamString ParamKind = "string"
	ParamNumber ParamKind = "number"
)

type Param struct {
	Name     string
	Kind     ParamKind
	Required bool
}

// Params holds decoded request parameters. Handlers only see params that
// passed validation, so the typed getters never need to report errors.
type Params map[string]any

func (p Params) String(name string) string {
	v, _ := p[name].(string)
	return v
}

func (p Params) Number(name string) float64 {
	v, _ := p[name].(float64)
	return v
}

func (p Params) Has(name string) bool {
	v, ok := p[name]
	return ok && v != nil
}

type Handler func(ctx context.Context, params Params) (any, error)

type Operation struct {
	Name    string
	Params  []Param
	Handler Handler
}

// Server dispatches invoke envelopes to a table of registered operations.
type Server struct {
	name string
	ops  map[string]Operation
}

func NewServer(name string, ops ...Operation) *Server {
	s := &Server{name: name, ops: make(map[string]Operation, len(ops))}
	for _, op := range ops {
		s.Register(op)
	}
	return s
}

func (s *Server) Name() string {
	return s.name
}

func (s *Server) Register(op Operation) {
	name := strings.TrimSpace(op.Name)
	if name == "" || op.Handler == nil {
		panic(fmt.Sprintf("rpc server %s: invalid operation registration %q", s.name, op.Name))
	}
	s.ops[name] = op
}

func (s *Server) Operations() []string {
	names := make([]string, 0, len(s.ops))
	for name := range s.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch resolves the operation, validates params and runs the handler.
func (s *Server) Dispatch(ctx context.Context, req Request) (status int, resp Response) {
	op, ok := s.ops[req.Operation]
	if !ok {
		return notFound(req.Operation)
	}
	return s.run(ctx, op, Params(req.Params))
}

// DispatchRaw is Dispatch for an undecoded params value. The operation is
// resolved before params are read, so an unknown operation is always a 404.
func (s *Server) DispatchRaw(ctx context.Context, operation string, raw json.RawMessage) (status int, resp Response) {
	op, ok := s.ops[operation]
	if !ok {
		return notFound(operation)
	}

	var params Params
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if trimmed[0] != '{' {
			return http.StatusBadRequest, Failure("Invalid parameters: expected an object.", map[string]any{"operation": op.Name})
		}
		if err := json.Unmarshal(trimmed, &params); err != nil {
			return http.StatusBadRequest, Failure("Invalid parameters: expected an object.", map[string]any{"operation": op.Name, "error": err.Error()})
		}
	}
	return s.run(ctx, op, params)
}

func notFound(operation string) (int, Response) {
	return http.StatusNotFound, Failure(fmt.Sprintf("Operation '%s' not found.", operation), nil)
}

func (s *Server) run(ctx context.Context, op Operation, params Params) (status int, resp Response) {
	if params == nil {
		params = Params{}
	}
	if msg := validateParams(op.Params, params); msg != "" {
		return http.StatusBadRequest, Failure(msg, map[string]any{"operation": op.Name})
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("service", s.name).Str("operation", op.Name).Interface("panic", r).Msg("rpc handler panic")
			status = http.StatusInternalServerError
			resp = Failure(fmt.Sprintf("Operation '%s' failed.", op.Name), map[string]any{"error": fmt.Sprint(r)})
		}
	}()

	data, err := op.Handler(ctx, params)
	if err != nil {
		log.Error().Err(err).Str("service", s.name).Str("operation", op.Name).Msg("rpc handler failed")
		return http.StatusInternalServerError, Failure(fmt.Sprintf("Operation '%s' failed.", op.Name), map[string]any{"error": err.Error()})
	}

	out, err := Success(data)
	if err != nil {
		return http.StatusInternalServerError, Failure("Failed to encode operation result.", map[string]any{"error": err.Error()})
	}
	return http.StatusOK, out
}

func validateParams(specs []Param, params Params) string {
	for _, spec := range specs {
		v, present := params[spec.Name]
		if !present || v == nil {
			if spec.Required {
				return fmt.Sprintf("Missing required parameter '%s'.", spec.Name)
			}
			continue
		}
		switch spec.Kind {
		case ParamNumber:
			if _, ok := v.(float64); !ok {
				return fmt.Sprintf("Invalid parameter '%s': expected number.", spec.Name)
			}
		case ParamString:
			str, ok := v.(string)
			if !ok {
				return fmt.Sprintf("Invalid parameter '%s': expected string.", spec.Name)
			}
			if spec.Required && strings.TrimSpace(str) == "" {
				return fmt.Sprintf("Missing required parameter '%s'.", spec.Name)
			}
		}
	}
	return ""
}

// Handler returns the HTTP surface of the server: POST /invoke.
func (s *Server) Handler() http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.POST(InvokePath, s.handleInvoke)
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": s.name, "operations": s.Operations()})
	})
	return engine
}

func (s *Server) handleInvoke(c *gin.Context) {
	var req rawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Failure("Malformed request envelope.", map[string]any{"error": err.Error()}))
		return
	}

	status, resp := s.DispatchRaw(c.Request.Context(), req.Operation, req.Params)
	log.Info().
		Str("service", s.name).
		Str("operation", req.Operation).
		Int("status", status).
		Msg("rpc request handled")
	c.JSON(status, resp)
}
