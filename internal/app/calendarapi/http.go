package calendarapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flowcal/project/internal/app/activity"
	"github.com/flowcal/project/internal/app/assistant"
	"github.com/flowcal/project/internal/app/events"
	"github.com/flowcal/project/internal/app/identity"
	"github.com/flowcal/project/internal/contracts"
	"github.com/flowcal/project/internal/dragdrop"
	platformauth "github.com/flowcal/project/internal/platform/auth"
	"github.com/flowcal/project/internal/platform/metrics"
	"github.com/flowcal/project/internal/timeutil"
)

const (
	assistantRephraseMessage = "There was an issue processing your message. Please try rephrasing your request."
	assistantFailureMessage  = "Sorry, I encountered an error processing your request. Please try again."
)

type ActivityReader interface {
	RecentForUser(ctx context.Context, userID string, limit int) ([]contracts.ActivityRecord, error)
}

type Handler struct {
	Identity      *identity.Service
	Gateway       events.Gateway
	Stores        *StoreRegistry
	Drag          *dragdrop.Manager
	Assistant     *assistant.Service
	Activity      ActivityReader
	Recorder      *activity.Recorder
	AllowedOrigin string
	Now           func() time.Time
}

func NewHandler(identitySvc *identity.Service, gateway events.Gateway, stores *StoreRegistry, drag *dragdrop.Manager, assistantSvc *assistant.Service, activityReader ActivityReader, recorder *activity.Recorder, allowedOrigin string) *Handler {
	return &Handler{
		Identity:      identitySvc,
		Gateway:       gateway,
		Stores:        stores,
		Drag:          drag,
		Assistant:     assistantSvc,
		Activity:      activityReader,
		Recorder:      recorder,
		AllowedOrigin: allowedOrigin,
		Now:           time.Now,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.corsMiddleware)
	r.Use(metricsMiddleware)
	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/api/v1/auth/register", h.handleRegister)
	r.Post("/api/v1/auth/login", h.handleLogin)
	r.Post("/api/v1/auth/refresh", h.handleRefresh)
	r.Post("/api/v1/auth/logout", h.handleLogout)

	r.Group(func(authR chi.Router) {
		authR.Use(h.authMiddleware)
		authR.Get("/api/v1/auth/me", h.handleMe)

		authR.Get("/api/v1/events", h.handleListEvents)
		authR.Post("/api/v1/events", h.handleCreateEvent)
		authR.Put("/api/v1/events/{eventID}", h.handleUpdateEvent)
		authR.Delete("/api/v1/events/{eventID}", h.handleDeleteEvent)

		authR.Post("/api/v1/drag/grab", h.handleDragGrab)
		authR.Post("/api/v1/drag/track", h.handleDragTrack)
		authR.Post("/api/v1/drag/release", h.handleDragRelease)
		authR.Post("/api/v1/drag/cancel", h.handleDragCancel)

		authR.Post("/api/v1/assistant", h.handleAssistant)
		authR.Get("/api/v1/activity", h.handleActivity)
	})

	return r
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	resp, err := h.Identity.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrInvalidPassword):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			if strings.Contains(strings.ToLower(err.Error()), "duplicate") {
				h.writeError(w, http.StatusConflict, "an account with this email already exists")
				return
			}
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.Recorder.Record(resp.UserID, contracts.ActivityUserLogin, map[string]string{"via": "register"})
	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	resp, err := h.Identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.Recorder.Record(resp.UserID, contracts.ActivityUserLogin, nil)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	resp, err := h.Identity.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrRefreshTokenMissing):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrInvalidRefreshToken):
			h.writeError(w, http.StatusUnauthorized, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.Identity.Logout(r.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, identity.ErrRefreshTokenMissing) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if token := platformauth.TokenFromRequest(r); token != "" {
		if claims, err := h.Identity.AuthToken.Parse(token); err == nil {
			h.Recorder.Record(claims.Subject, contracts.ActivityUserLogout, nil)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]string{
		"user_id": claims.Subject,
		"email":   claims.Email,
		"name":    claims.Name,
	})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	store, err := h.Stores.Reload(r.Context(), claims.Subject)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"events": store.Snapshot()})
}

func (h *Handler) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var event events.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := event.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := claimsFromContext(r.Context())
	id, err := h.Gateway.Create(r.Context(), claims.Subject, event)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	event.ID = id

	if _, err := h.Stores.Reload(r.Context(), claims.Subject); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.Recorder.Record(claims.Subject, contracts.ActivityEventCreated, map[string]string{"title": event.Title})
	h.writeJSON(w, http.StatusCreated, event)
}

func (h *Handler) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	var event events.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := event.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := claimsFromContext(r.Context())
	if err := h.Gateway.Update(r.Context(), claims.Subject, eventID, event); err != nil {
		if errors.Is(err, events.ErrEventNotFound) {
			h.writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	event.ID = eventID

	if _, err := h.Stores.Reload(r.Context(), claims.Subject); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.Recorder.Record(claims.Subject, contracts.ActivityEventUpdated, map[string]string{"title": event.Title})
	h.writeJSON(w, http.StatusOK, event)
}

func (h *Handler) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	claims := claimsFromContext(r.Context())

	if err := h.Gateway.Delete(r.Context(), claims.Subject, eventID); err != nil {
		if errors.Is(err, events.ErrEventNotFound) {
			h.writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	store, err := h.Stores.ForUser(r.Context(), claims.Subject)
	if err == nil {
		store.Remove(eventID)
	}
	h.Recorder.Record(claims.Subject, contracts.ActivityEventDeleted, map[string]string{"event_id": eventID})
	w.WriteHeader(http.StatusNoContent)
}

type dragGrabRequest struct {
	EventID  string            `json:"eventId"`
	ViewDate string            `json:"viewDate"`
	Viewport dragdrop.Viewport `json:"viewport"`
}

type pointerRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type sessionView struct {
	State      string         `json:"state"`
	Duration   int            `json:"duration"`
	Ghost      dragdrop.Ghost `json:"ghost"`
	ActiveZone *zoneView      `json:"activeZone,omitempty"`
}

type zoneView struct {
	DayIndex int `json:"dayIndex"`
	Hour     int `json:"hour"`
}

func viewOfSession(s *dragdrop.Session) sessionView {
	view := sessionView{
		State:    s.State().String(),
		Duration: s.Duration(),
		Ghost:    s.Ghost(),
	}
	if zone := s.ActiveZone(); zone != nil {
		view.ActiveZone = &zoneView{DayIndex: zone.DayIndex, Hour: zone.Hour}
	}
	return view
}

func (h *Handler) handleDragGrab(w http.ResponseWriter, r *http.Request) {
	var req dragGrabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	claims := claimsFromContext(r.Context())
	store, err := h.Stores.ForUser(r.Context(), claims.Subject)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	event, ok := store.Get(req.EventID)
	if !ok {
		h.writeError(w, http.StatusNotFound, "event not found")
		return
	}

	viewDate := h.Now()
	if req.ViewDate != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, req.ViewDate, time.Local)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "viewDate must be YYYY-MM-DD")
			return
		}
		viewDate = parsed
	}

	session, err := h.Drag.Grab(claims.Subject, event, viewDate, req.Viewport)
	if err != nil {
		switch {
		case errors.Is(err, dragdrop.ErrSessionActive):
			h.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, timeutil.ErrInvalidClock):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, viewOfSession(session))
}

func (h *Handler) handleDragTrack(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	claims := claimsFromContext(r.Context())
	session, err := h.Drag.Track(claims.Subject, req.X, req.Y)
	if err != nil {
		if errors.Is(err, dragdrop.ErrNoSession) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, viewOfSession(session))
}

func (h *Handler) handleDragRelease(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	claims := claimsFromContext(r.Context())
	store, err := h.Stores.ForUser(r.Context(), claims.Subject)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := h.Drag.Release(r.Context(), claims.Subject, store, req.X, req.Y)
	if err != nil {
		if errors.Is(err, dragdrop.ErrNoSession) || errors.Is(err, dragdrop.ErrNotDragging) {
			h.writeError(w, http.StatusNotFound, "no active drag session")
			return
		}
		metrics.TrackDragSession(string(dragdrop.OutcomeFailed))
		h.writeError(w, http.StatusBadGateway, "could not save the new event time")
		return
	}

	metrics.TrackDragSession(string(result.Outcome))
	if result.Outcome == dragdrop.OutcomeCommitted {
		h.Recorder.Record(claims.Subject, contracts.ActivityEventMoved, map[string]string{
			"title":     result.Event.Title,
			"startTime": result.Event.StartTime,
			"endTime":   result.Event.EndTime,
		})
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleDragCancel(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	cancelled := h.Drag.Cancel(claims.Subject)
	if cancelled {
		metrics.TrackDragSession(string(dragdrop.OutcomeAborted))
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

type assistantRequest struct {
	Messages []assistant.Message `json:"messages"`
}

func (h *Handler) handleAssistant(w http.ResponseWriter, r *http.Request) {
	var req assistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	claims := claimsFromContext(r.Context())
	store, err := h.Stores.ForUser(r.Context(), claims.Subject)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	started := time.Now()
	resp, err := h.Assistant.HandleTurn(r.Context(), claims.Subject, store, h.Now(), req.Messages)
	metrics.ObserveAssistantTurn(time.Since(started).Seconds())
	if err != nil {
		// Failures speak in the chat contract, not the generic error
		// envelope, so the panel can render Message directly.
		if errors.Is(err, assistant.ErrEmptyTranscript) {
			h.writeJSON(w, http.StatusBadRequest, assistant.ChatResponse{Message: assistantRephraseMessage})
			return
		}
		h.writeJSON(w, http.StatusInternalServerError, assistant.ChatResponse{Message: assistantFailureMessage})
		return
	}

	h.recordAssistantOutcome(claims.Subject, resp)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) recordAssistantOutcome(userID string, resp assistant.ChatResponse) {
	switch {
	case resp.EventsAdded:
		metrics.TrackAssistantCommand("add", "ok")
		h.Recorder.Record(userID, contracts.ActivityAIEventsCreated, map[string]int{"count": resp.EventCount})
	case resp.EventsUpdated:
		metrics.TrackAssistantCommand("update", "ok")
		h.Recorder.Record(userID, contracts.ActivityAIEventsUpdated, map[string]int{"count": resp.EventCount})
	case resp.EventsDeleted:
		metrics.TrackAssistantCommand("delete", "ok")
		h.Recorder.Record(userID, contracts.ActivityAIEventsDeleted, map[string]int{"count": resp.EventCount})
	default:
		metrics.TrackAssistantCommand("chat", "ok")
	}
}

func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	if h.Activity == nil {
		h.writeError(w, http.StatusServiceUnavailable, "activity log is not configured")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	claims := claimsFromContext(r.Context())
	records, err := h.Activity.RecentForUser(r.Context(), claims.Subject, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"activity": records})
}

func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin, Access-Control-Request-Headers")
		w.Header().Set("Access-Control-Allow-Origin", h.allowedOriginForRequest(r.Header.Get("Origin")))
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		requestHeaders := strings.TrimSpace(r.Header.Get("Access-Control-Request-Headers"))
		if requestHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", requestHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) allowedOriginForRequest(requestOrigin string) string {
	allowed := strings.TrimSpace(h.AllowedOrigin)
	if allowed == "" || allowed == "*" {
		return "*"
	}

	origin := strings.TrimSpace(requestOrigin)
	if origin == "" {
		return allowed
	}
	if origin == allowed || isEquivalentLoopbackOrigin(origin, allowed) {
		return origin
	}
	return allowed
}

func isEquivalentLoopbackOrigin(originA, originB string) bool {
	a, err := url.Parse(originA)
	if err != nil {
		return false
	}
	b, err := url.Parse(originB)
	if err != nil {
		return false
	}
	if !isLoopbackHost(a.Hostname()) || !isLoopbackHost(b.Hostname()) {
		return false
	}
	if a.Port() != b.Port() {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme)
}

func isLoopbackHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

type claimsContextKey struct{}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := platformauth.TokenFromRequest(r)
		if token == "" {
			h.writeError(w, http.StatusUnauthorized, "missing auth token")
			return
		}
		claims, err := h.Identity.AuthToken.Parse(token)
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithClaims(r.Context(), claims)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		metrics.TrackHTTPRequest(route, r.Method, strconv.Itoa(rec.status))
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func contextWithClaims(ctx context.Context, claims platformauth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

func claimsFromContext(ctx context.Context) platformauth.Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(platformauth.Claims)
	return claims
}
