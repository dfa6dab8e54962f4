package calendarapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/flowcal/project/internal/app/assistant"
	"github.com/flowcal/project/internal/app/events"
	"github.com/flowcal/project/internal/app/identity"
	"github.com/flowcal/project/internal/contracts"
	"github.com/flowcal/project/internal/dragdrop"
)

type fakeIdentityRepo struct {
	usersByID    map[string]identity.User
	usersByEmail map[string]identity.User
	tokens       map[string]identity.RefreshToken
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{
		usersByID:    map[string]identity.User{},
		usersByEmail: map[string]identity.User{},
		tokens:       map[string]identity.RefreshToken{},
	}
}

func (f *fakeIdentityRepo) CreateUser(_ context.Context, u identity.User) error {
	if _, ok := f.usersByEmail[u.Email]; ok {
		return errors.New("duplicate key value violates unique constraint")
	}
	f.usersByID[u.ID] = u
	f.usersByEmail[u.Email] = u
	return nil
}

func (f *fakeIdentityRepo) FindUserByID(_ context.Context, id string) (identity.User, error) {
	u, ok := f.usersByID[id]
	if !ok {
		return identity.User{}, identity.ErrNotFound
	}
	return u, nil
}

func (f *fakeIdentityRepo) FindUserByEmail(_ context.Context, email string) (identity.User, error) {
	u, ok := f.usersByEmail[email]
	if !ok {
		return identity.User{}, identity.ErrNotFound
	}
	return u, nil
}

func (f *fakeIdentityRepo) CreateRefreshToken(_ context.Context, t identity.RefreshToken) error {
	f.tokens[t.TokenHash] = t
	return nil
}

func (f *fakeIdentityRepo) FindRefreshTokenByHash(_ context.Context, hash string) (identity.RefreshToken, error) {
	t, ok := f.tokens[hash]
	if !ok {
		return identity.RefreshToken{}, identity.ErrNotFound
	}
	return t, nil
}

func (f *fakeIdentityRepo) RevokeRefreshToken(_ context.Context, tokenID string) error {
	for hash, t := range f.tokens {
		if t.TokenID == tokenID {
			delete(f.tokens, hash)
		}
	}
	return nil
}

type fakeGateway struct {
	mu     sync.Mutex
	nextID int
	items  map[string][]events.Event // per user, in insert order
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{items: map[string][]events.Event{}}
}

func (g *fakeGateway) Create(_ context.Context, userID string, event events.Event) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	event.ID = "ev-" + strconv.Itoa(g.nextID)
	event.Normalize()
	g.items[userID] = append(g.items[userID], event)
	return event.ID, nil
}

func (g *fakeGateway) List(_ context.Context, userID string) ([]events.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]events.Event, len(g.items[userID]))
	copy(out, g.items[userID])
	return out, nil
}

func (g *fakeGateway) Update(_ context.Context, userID, eventID string, event events.Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.items[userID] {
		if g.items[userID][i].ID == eventID {
			event.ID = eventID
			g.items[userID][i] = event
			return nil
		}
	}
	return events.ErrEventNotFound
}

func (g *fakeGateway) Delete(_ context.Context, userID, eventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	list := g.items[userID]
	for i := range list {
		if list[i].ID == eventID {
			g.items[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return events.ErrEventNotFound
}

type scriptedInterpreter struct {
	result assistant.Interpretation
	err    error
}

func (s *scriptedInterpreter) Interpret(_ context.Context, _ []assistant.Message, _ time.Time, _ string) (assistant.Interpretation, error) {
	return s.result, s.err
}

type fakeActivityReader struct {
	records []contracts.ActivityRecord
}

func (f *fakeActivityReader) RecentForUser(_ context.Context, _ string, _ int) ([]contracts.ActivityRecord, error) {
	return f.records, nil
}

type apiFixture struct {
	handler *Handler
	gateway *fakeGateway
	interp  *scriptedInterpreter
	token   string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	repo := newFakeIdentityRepo()
	identitySvc := identity.NewService(repo, identity.NewTokenManager("test-secret"))

	gateway := newFakeGateway()
	interp := &scriptedInterpreter{}
	assistantSvc := assistant.NewService(interp, assistant.NewReconciler(gateway))

	handler := NewHandler(
		identitySvc,
		gateway,
		NewStoreRegistry(gateway),
		dragdrop.NewManager(gateway),
		assistantSvc,
		&fakeActivityReader{},
		nil, // recorder is optional and nil-safe
		"http://localhost:8081",
	)

	resp, err := identitySvc.Register(context.Background(), "Ada", "ada@example.com", "password123")
	if err != nil {
		t.Fatalf("register fixture user: %v", err)
	}
	return &apiFixture{handler: handler, gateway: gateway, interp: interp, token: resp.AccessToken}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token)
	rr := httptest.NewRecorder()
	f.handler.Router().ServeHTTP(rr, req)
	return rr
}

func TestEventsRequireAuth(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	rr := httptest.NewRecorder()
	f.handler.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAuthTokenViaCookie(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.AddCookie(&http.Cookie{Name: "auth-token", Value: f.token})
	rr := httptest.NewRecorder()
	f.handler.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	f := newAPIFixture(t)
	rr := f.do(t, http.MethodPost, "/api/v1/auth/register", registerRequest{
		Name: "Ada Again", Email: "ada@example.com", Password: "password123",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestEventCRUD(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodPost, "/api/v1/events", events.Event{
		Title:     "Standup",
		StartTime: "09:00",
		EndTime:   "10:00",
		Date:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var created events.Event
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid create response: %v", err)
	}
	if created.ID == "" || created.Color != events.DefaultColor {
		t.Fatalf("unexpected created event: %+v", created)
	}

	rr = f.do(t, http.MethodGet, "/api/v1/events", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var listResp struct {
		Events []events.Event `json:"events"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("invalid list response: %v", err)
	}
	if len(listResp.Events) != 1 || listResp.Events[0].Title != "Standup" {
		t.Fatalf("unexpected list: %+v", listResp.Events)
	}

	updated := created
	updated.Title = "Daily Standup"
	rr = f.do(t, http.MethodPut, "/api/v1/events/"+created.ID, updated)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = f.do(t, http.MethodPut, "/api/v1/events/missing", updated)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodDelete, "/api/v1/events/"+created.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = f.do(t, http.MethodDelete, "/api/v1/events/"+created.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on double delete, got %d", rr.Code)
	}
}

func TestCreateEventValidation(t *testing.T) {
	f := newAPIFixture(t)
	rr := f.do(t, http.MethodPost, "/api/v1/events", events.Event{
		StartTime: "09:00",
		EndTime:   "10:00",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing title, got %d", rr.Code)
	}
}

func TestDragLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodPost, "/api/v1/events", events.Event{
		Title:     "Gym",
		StartTime: "14:00",
		EndTime:   "15:30",
		Date:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed event: got %d body=%s", rr.Code, rr.Body.String())
	}
	var seeded events.Event
	_ = json.Unmarshal(rr.Body.Bytes(), &seeded)

	vp := dragdrop.Viewport{Width: 800, Height: 600}
	rr = f.do(t, http.MethodPost, "/api/v1/drag/grab", dragGrabRequest{
		EventID: seeded.ID, ViewDate: "2026-03-04", Viewport: vp,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("grab: expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var view sessionView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("invalid grab response: %v", err)
	}
	if view.State != "dragging" || view.Duration != 1 {
		t.Fatalf("unexpected session view: %+v", view)
	}

	// A second grab while one is live is rejected.
	rr = f.do(t, http.MethodPost, "/api/v1/drag/grab", dragGrabRequest{
		EventID: seeded.ID, ViewDate: "2026-03-04", Viewport: vp,
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("second grab: expected 409, got %d", rr.Code)
	}

	// Track over day 0, hour 9: column width 100, x in [100,200), y = 60+9*60.
	rr = f.do(t, http.MethodPost, "/api/v1/drag/track", pointerRequest{X: 150, Y: 60 + 9*60 + 30})
	if rr.Code != http.StatusOK {
		t.Fatalf("track: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("invalid track response: %v", err)
	}
	if view.ActiveZone == nil || view.ActiveZone.Hour != 9 || view.ActiveZone.DayIndex != 0 {
		t.Fatalf("unexpected active zone: %+v", view.ActiveZone)
	}

	rr = f.do(t, http.MethodPost, "/api/v1/drag/release", pointerRequest{X: 150, Y: 60 + 9*60 + 30})
	if rr.Code != http.StatusOK {
		t.Fatalf("release: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var result dragdrop.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid release response: %v", err)
	}
	if result.Outcome != dragdrop.OutcomeCommitted {
		t.Fatalf("expected committed, got %q", result.Outcome)
	}
	if result.Event.StartTime != "09:00" || result.Event.EndTime != "10:00" {
		t.Fatalf("unexpected committed times: %s-%s", result.Event.StartTime, result.Event.EndTime)
	}

	// Sunday of the week containing Wednesday 2026-03-04 is 2026-03-01.
	if got := result.Event.Date.Format(time.DateOnly); got != "2026-03-01" {
		t.Fatalf("unexpected committed date: %s", got)
	}

	// The session is gone after release.
	rr = f.do(t, http.MethodPost, "/api/v1/drag/track", pointerRequest{X: 150, Y: 150})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("track after release: expected 404, got %d", rr.Code)
	}
}

func TestDragCancel(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodPost, "/api/v1/drag/cancel", nil)
	var out map[string]bool
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if rr.Code != http.StatusOK || out["cancelled"] {
		t.Fatalf("cancel without session: code=%d body=%s", rr.Code, rr.Body.String())
	}

	seed := f.do(t, http.MethodPost, "/api/v1/events", events.Event{
		Title: "Gym", StartTime: "14:00", EndTime: "15:00",
		Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local),
	})
	var seeded events.Event
	_ = json.Unmarshal(seed.Body.Bytes(), &seeded)

	grab := f.do(t, http.MethodPost, "/api/v1/drag/grab", dragGrabRequest{
		EventID: seeded.ID, Viewport: dragdrop.Viewport{Width: 800, Height: 600},
	})
	if grab.Code != http.StatusCreated {
		t.Fatalf("grab: got %d", grab.Code)
	}

	rr = f.do(t, http.MethodPost, "/api/v1/drag/cancel", nil)
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if !out["cancelled"] {
		t.Fatal("expected cancelled=true")
	}
}

func TestAssistantEmptyTranscriptIsBadRequest(t *testing.T) {
	f := newAPIFixture(t)
	f.interp.err = assistant.ErrEmptyTranscript

	rr := f.do(t, http.MethodPost, "/api/v1/assistant", assistantRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body assistant.ChatResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body.Message != assistantRephraseMessage {
		t.Fatalf("unexpected message: %q", body.Message)
	}
	if body.EventsAdded {
		t.Fatal("failure response must not report added events")
	}
}

func TestAssistantInterpreterFailureIsGeneric(t *testing.T) {
	f := newAPIFixture(t)
	f.interp.err = errors.New("upstream model unavailable")

	rr := f.do(t, http.MethodPost, "/api/v1/assistant", assistantRequest{
		Messages: []assistant.Message{{Role: "user", Content: "schedule gym"}},
	})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body assistant.ChatResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body.Message != assistantFailureMessage {
		t.Fatalf("unexpected message: %q", body.Message)
	}
}

func TestAssistantAddFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.interp.result = assistant.Interpretation{
		Command: &assistant.Command{
			Kind: assistant.KindAdd,
			Add: []assistant.AddEntry{
				{Title: "Gym", StartTime: "18:00", EndTime: "19:00", Day: 2},
			},
		},
	}

	rr := f.do(t, http.MethodPost, "/api/v1/assistant", assistantRequest{
		Messages: []assistant.Message{{Role: "user", Content: "add gym monday 6pm"}},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp assistant.ChatResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if !resp.EventsAdded || resp.EventCount != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	listRR := f.do(t, http.MethodGet, "/api/v1/events", nil)
	var listResp struct {
		Events []json.RawMessage `json:"events"`
	}
	_ = json.Unmarshal(listRR.Body.Bytes(), &listResp)
	if len(listResp.Events) != 1 {
		t.Fatalf("expected 1 persisted event, got %d", len(listResp.Events))
	}
}

func TestActivityEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodGet, "/api/v1/activity?limit=abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodGet, "/api/v1/activity", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestOptions_HasCORSHeaders(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/events", nil)
	rr := httptest.NewRecorder()
	f.handler.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:8081" {
		t.Fatalf("unexpected CORS origin: %q", got)
	}
}
