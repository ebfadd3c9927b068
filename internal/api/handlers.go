package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"burn.note/config"
	"burn.note/internal/access"
	"burn.note/web"
)

// activeUntilLayout renders the expiry for people, e.g. "March 14 2026, 10:26:53 am".
const activeUntilLayout = "January 2 2006, 3:04:05 pm"

// notAvailable is the single message for unknown, expired and denied tokens.
const notAvailable = "message not available"

type Handler struct {
	engine *access.Engine
	config *config.Config
	log    *zap.Logger
}

func NewHandler(e *access.Engine, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		engine: e,
		config: cfg,
		log:    log,
	}
}

// delaySelector accepts the window as a JSON number or string.
type delaySelector string

func (d *delaySelector) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = delaySelector(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = delaySelector(n.String())
	return nil
}

type CreateRequest struct {
	Message string        `json:"message"`
	Delay   delaySelector `json:"delay"`
}

type CreateResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	URL     string `json:"url,omitempty"`
}

type ViewResponse struct {
	Text                 string    `json:"text"`
	Token                string    `json:"token"`
	ActiveUntil          time.Time `json:"active_until"`
	ActiveUntilTimestamp int64     `json:"active_until_timestamp"`
	ActiveUntilDate      string    `json:"active_until_date"`
	TimeRemaining        string    `json:"time_remaining"`
}

type DestroyResponse struct {
	Success bool `json:"success"`
}

type PurgeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Removed int64  `json:"removed"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Delays(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, h.engine.Delays())
}

func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreate(r)
	if err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		h.error(w, http.StatusBadRequest, "message is required")
		return
	}

	token, err := h.engine.Create(r.Context(), req.Message, string(req.Delay))
	if err != nil {
		h.json(w, http.StatusInternalServerError, CreateResponse{Success: false})
		return
	}

	h.json(w, http.StatusCreated, CreateResponse{
		Success: true,
		Token:   token,
		URL:     strings.TrimRight(h.config.Server.BaseURL, "/") + "/" + token,
	})
}

func (h *Handler) ViewMessage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	res, err := h.engine.View(r.Context(), token, NetworkIdentity(r))
	if err != nil {
		h.error(w, http.StatusInternalServerError, "internal error")
		return
	}

	if res.Outcome != access.OutcomeShown {
		h.error(w, http.StatusNotFound, notAvailable)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	h.json(w, http.StatusOK, ViewResponse{
		Text:                 res.Text,
		Token:                res.Token,
		ActiveUntil:          res.ActiveUntil,
		ActiveUntilTimestamp: res.ActiveUntil.UnixMilli(),
		ActiveUntilDate:      res.ActiveUntil.Format(activeUntilLayout),
		TimeRemaining:        res.RemainingText,
	})
}

func (h *Handler) DestroyMessage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	ok, err := h.engine.Delete(r.Context(), token, NetworkIdentity(r))
	if err != nil {
		h.json(w, http.StatusInternalServerError, DestroyResponse{Success: false})
		return
	}

	h.json(w, http.StatusOK, DestroyResponse{Success: ok})
}

func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	removed, err := h.engine.Purge(r.Context())
	if err != nil {
		h.log.Error("purge failed", zap.Error(err))
		h.json(w, http.StatusInternalServerError, PurgeResponse{Success: false})
		return
	}

	h.json(w, http.StatusOK, PurgeResponse{
		Success: true,
		Message: "Successfully cleared outdated messages",
		Removed: removed,
	})
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "index.html")
}

func (h *Handler) RevealPage(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "reveal.html")
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.error(w, http.StatusNotFound, "Not found")
}

func (h *Handler) serveFile(w http.ResponseWriter, filename string) {
	content, err := web.GetFile(filename)
	if err != nil {
		h.log.Error("embedded file missing", zap.String("file", filename), zap.Error(err))
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(content)
}

func (h *Handler) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) error(w http.ResponseWriter, status int, message string) {
	h.json(w, status, ErrorResponse{Error: message})
}

// decodeCreate reads a JSON body or, for the plain HTML form, url-encoded fields.
func decodeCreate(r *http.Request) (CreateRequest, error) {
	var req CreateRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Message = r.PostForm.Get("message")
	req.Delay = delaySelector(r.PostForm.Get("delay"))
	return req, nil
}
