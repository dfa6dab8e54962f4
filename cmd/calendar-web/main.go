package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/a-h/templ"
	"github.com/nats-io/nats.go"

	"github.com/flowcal/project/internal/app/activity"
	"github.com/flowcal/project/internal/app/identity"
	"github.com/flowcal/project/internal/contracts"
	platformauth "github.com/flowcal/project/internal/platform/auth"
	"github.com/flowcal/project/internal/platform/env"
	"github.com/flowcal/project/internal/platform/natsutil"
	"github.com/flowcal/project/internal/sharding"
	"github.com/flowcal/project/services/frontend"
)

var userStreams = newUserStreamRegistry()

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	webAddr := env.String("CALENDAR_WEB_ADDR", env.DefaultWebAddr)
	jwtSecret := env.String("JWT_SECRET", "dev-insecure-change-me")
	shutdownTimeout := env.Duration("SHUTDOWN_TIMEOUT", 10*time.Second)

	tokenManager := identity.NewTokenManager(jwtSecret)

	client, err := natsutil.ConnectJetStreamWithRetry(env.String("NATS_URL", env.DefaultNATSURL), env.Duration("NATS_CONNECT_TIMEOUT", 90*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()
	js := client.JS
	recorder := activity.NewRecorder(natsutil.JetStreamPublisher{JS: js})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if client.Conn == nil || client.Conn.Status() != nats.CONNECTED {
			http.Error(w, "nats is not connected", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	page := func(name string, component templ.Component) http.Handler {
		rendered := templ.Handler(component)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Page visits are only attributable for signed-in users.
			if token := platformauth.TokenFromRequest(r); token != "" {
				if claims, err := tokenManager.Parse(token); err == nil {
					recorder.Record(claims.Subject, contracts.ActivityPageVisit, map[string]string{"page": name})
				}
			}
			rendered.ServeHTTP(w, r)
		})
	}
	mux.Handle("/", page("login", frontend.LoginPage()))
	mux.Handle("/login", page("login", frontend.LoginPage()))
	mux.Handle("/app", page("calendar", frontend.CalendarPage()))
	mux.Handle("/static/", http.StripPrefix("/static/", frontend.StaticHandler()))

	mux.HandleFunc("/activity/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		claims, ok := claimsFromStreamRequest(w, r, tokenManager)
		if !ok {
			return
		}

		streamCtx, cancelStream := context.WithCancel(r.Context())
		streamID := fmt.Sprintf("%d", time.Now().UnixNano())
		if cancelPrev := userStreams.Replace(claims.Subject, streamID, cancelStream); cancelPrev != nil {
			cancelPrev()
		}
		defer userStreams.Release(claims.Subject, streamID)
		defer cancelStream()

		records := make(chan contracts.ActivityRecord, 64)
		sub, err := js.Subscribe(sharding.ActivitySubject(claims.Subject), func(msg *nats.Msg) {
			var record contracts.ActivityRecord
			if err := json.Unmarshal(msg.Data, &record); err != nil {
				return
			}
			select {
			case records <- record:
			default:
			}
		}, nats.DeliverNew())
		if err != nil {
			http.Error(w, "stream subscription failed", http.StatusInternalServerError)
			return
		}
		defer func() { _ = sub.Unsubscribe() }()

		fmt.Fprint(w, ": connected\n\n")
		flusher.Flush()

		keepalive := time.NewTicker(25 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case <-streamCtx.Done():
				return
			case <-keepalive.C:
				fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
			case record := <-records:
				payload, err := json.Marshal(record)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
				flusher.Flush()
			}
		}
	})

	mux.HandleFunc("/activity/disconnect", func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromStreamRequest(w, r, tokenManager)
		if !ok {
			return
		}
		userStreams.Cancel(claims.Subject)
		w.WriteHeader(http.StatusNoContent)
	})

	server := &http.Server{
		Addr:              webAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Keep WriteTimeout unset for long-lived SSE streams.
		IdleTimeout: 120 * time.Second,
	}

	fmt.Printf("Calendar Web listening on %s\n", webAddr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Fatal(err)
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("calendar-web graceful shutdown failed: %v", err)
	}
}

// claimsFromStreamRequest accepts the token from the Authorization header,
// the session cookie or a ?token= query parameter (EventSource cannot set
// headers).
func claimsFromStreamRequest(w http.ResponseWriter, r *http.Request, tokenManager platformauth.Manager) (platformauth.Claims, bool) {
	token := platformauth.TokenFromRequest(r)
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		http.Error(w, "token is required", http.StatusUnauthorized)
		return platformauth.Claims{}, false
	}
	claims, err := tokenManager.Parse(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return platformauth.Claims{}, false
	}
	return claims, true
}

type userStreamLease struct {
	id     string
	cancel context.CancelFunc
}

// userStreamRegistry keeps one live activity stream per user; a reconnect
// replaces and cancels the previous one.
type userStreamRegistry struct {
	mu     sync.Mutex
	byUser map[string]userStreamLease
}

func newUserStreamRegistry() *userStreamRegistry {
	return &userStreamRegistry{byUser: make(map[string]userStreamLease)}
}

func (r *userStreamRegistry) Replace(userID, streamID string, cancel context.CancelFunc) context.CancelFunc {
	r.mu.Lock()
	defer r.mu.Unlock()

	var prevCancel context.CancelFunc
	if current, ok := r.byUser[userID]; ok {
		prevCancel = current.cancel
	}
	r.byUser[userID] = userStreamLease{id: streamID, cancel: cancel}
	return prevCancel
}

func (r *userStreamRegistry) Release(userID, streamID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byUser[userID]
	if !ok {
		return
	}
	if current.id != streamID {
		return
	}
	delete(r.byUser, userID)
}

func (r *userStreamRegistry) Cancel(userID string) {
	r.mu.Lock()
	lease, ok := r.byUser[userID]
	if ok {
		delete(r.byUser, userID)
	}
	r.mu.Unlock()

	if ok && lease.cancel != nil {
		lease.cancel()
	}
}
