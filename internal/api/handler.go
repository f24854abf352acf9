package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Environment describes the boot result exposed by the API.
type Environment struct {
	Name           string
	LoggingEnabled bool
	Managed        bool
	InstanceID     string
	ParameterCount int
}

// Settings is the read-only view of the merged application settings.
type Settings interface {
	Keys() []string
	Source(key string) (string, bool)
}

// Handler serves the boot environment and settings introspection endpoints.
type Handler struct {
	environment Environment
	settings    Settings

	clock     func() time.Time
	startedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(env Environment, settings Settings, opts ...HandlerOption) *Handler {
	h := &Handler{
		environment: env,
		settings:    settings,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.startedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:      "ok",
		Environment: h.environment.Name,
		Timestamp:   h.clock(),
		StartedAt:   h.startedAt,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleEnvironment(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := environmentResponse{
		Environment:    h.environment.Name,
		LoggingEnabled: h.environment.LoggingEnabled,
		Managed:        h.environment.Managed,
		InstanceID:     h.environment.InstanceID,
		ParameterCount: h.environment.ParameterCount,
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSettings lists setting keys and the layer that supplied each one.
// Values are never returned since parameters may be decrypted secrets.
func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	_ = r
	keys := h.settings.Keys()
	resp := settingsResponse{
		Environment: h.environment.Name,
		Settings:    make([]settingEntry, 0, len(keys)),
	}
	for _, key := range keys {
		source, _ := h.settings.Source(key)
		resp.Settings = append(resp.Settings, settingEntry{Key: key, Source: source})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSetting(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	source, ok := h.settings.Source(key)
	if !ok {
		writeError(w, http.StatusNotFound, "Setting not found", "no setting named "+key)
		return
	}
	writeJSON(w, http.StatusOK, settingEntry{Key: key, Source: source})
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status      string    `json:"status"`
	Environment string    `json:"environment"`
	Timestamp   time.Time `json:"timestamp"`
	StartedAt   time.Time `json:"startedAt"`
}

type environmentResponse struct {
	Environment    string `json:"environment"`
	LoggingEnabled bool   `json:"loggingEnabled"`
	Managed        bool   `json:"managed"`
	InstanceID     string `json:"instanceId,omitempty"`
	ParameterCount int    `json:"parameterCount"`
}

type settingsResponse struct {
	Environment string         `json:"environment"`
	Settings    []settingEntry `json:"settings"`
}

type settingEntry struct {
	Key    string `json:"key"`
	Source string `json:"source"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}
