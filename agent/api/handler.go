package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Retail-Assistant/agent/contract"
	nodex "github.com/tanpawarit/Chative-Retail-Assistant/agent/nodes/orchestrator"
)

const maxBodyBytes = 1 << 20

type Config struct {
	Addr            string        `envconfig:"ADDR" default:":8000"`
	ReadTimeout     time.Duration `split_words:"true" default:"5s"`
	WriteTimeout    time.Duration `split_words:"true" default:"90s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
	AllowedOrigins  []string      `split_words:"true"`
}

// Chatter is the orchestrator as seen by the HTTP boundary.
type Chatter interface {
	Chat(ctx context.Context, req contractx.ChatRequest) (contractx.AgentResponse, error)
	Status() map[string]string
}

type chatContext struct {
	CartItems   []contractx.CartItem `json:"cart_items"`
	PageContext string               `json:"page_context"`
}

type ChatRequest struct {
	Message        string      `json:"message"`
	ConversationID string      `json:"conversation_id,omitempty"`
	CustomerID     string      `json:"customer_id,omitempty"`
	Context        chatContext `json:"context"`
}

type errorBody struct {
	Error string `json:"error"`
}

// NewHandler routes the agent endpoints and wraps them with access logging
// and CORS for the configured origins.
func NewHandler(chat Chatter, cfg Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/agent/chat", chatHandler(chat))
	mux.HandleFunc("GET /api/agent/status", statusHandler(chat))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	var h http.Handler = mux
	h = cors(cfg.AllowedOrigins, h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(h)
	h = hlog.NewHandler(log.Logger)(h)
	return h
}

func chatHandler(chat Chatter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body ChatRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "request body must be a JSON object"})
			return
		}

		resp, err := chat.Chat(r.Context(), contractx.ChatRequest{
			ConversationID: body.ConversationID,
			CustomerID:     body.CustomerID,
			Message:        body.Message,
			CartItems:      body.Context.CartItems,
			PageContext:    body.Context.PageContext,
		})
		switch {
		case errors.Is(err, nodex.ErrInvalidMessage), errors.Is(err, nodex.ErrInvalidConversation):
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		case err != nil:
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("chat failed")
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "the assistant is unavailable, please try again"})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func statusHandler(chat Chatter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"agents": chat.Status()})
	}
}

func cors(origins []string, next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}
	if len(allowed) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed[origin] || allowed["*"] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}
