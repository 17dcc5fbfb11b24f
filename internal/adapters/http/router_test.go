package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/manualqa/manual-assistant/internal/core/domain"
	"github.com/manualqa/manual-assistant/internal/observability/metrics"
)

type stubManualQuery struct {
	answer domain.Answer
	err    error

	gotSessionID string
	gotQuery     string
	gotTopK      int
}

func (s *stubManualQuery) Answer(_ context.Context, sessionID, query string, topK int) (domain.Answer, error) {
	s.gotSessionID = sessionID
	s.gotQuery = query
	s.gotTopK = topK
	return s.answer, s.err
}

type stubDashboardQuery struct {
	answer domain.Answer
	err    error

	gotPath string
	gotBox  domain.Rect
}

func (s *stubDashboardQuery) AnswerComponent(_ context.Context, imagePath string, box domain.Rect, _ int) (domain.Answer, error) {
	s.gotPath = imagePath
	s.gotBox = box
	return s.answer, s.err
}

type stubSessionStore struct {
	created   *domain.Session
	createErr error
	deleteErr error
	deletedID string
}

func (s *stubSessionStore) Create(context.Context) (*domain.Session, error) {
	return s.created, s.createErr
}

func (s *stubSessionStore) Get(context.Context, string) (*domain.Session, error) {
	return nil, domain.WrapError(domain.ErrNotFound, "get session", errors.New("not implemented"))
}

func (s *stubSessionStore) SaveContext(context.Context, string, string, domain.ContextBundle) error {
	return nil
}

func (s *stubSessionStore) AppendTurn(context.Context, string, domain.SessionTurn) error {
	return nil
}

func (s *stubSessionStore) Delete(_ context.Context, id string) error {
	s.deletedID = id
	return s.deleteErr
}

func newTestHandler(manual *stubManualQuery, dashboard *stubDashboardQuery, sessions *stubSessionStore) http.Handler {
	return NewRouter(manual, dashboard, sessions, metrics.NewHTTPServerMetrics("test")).Handler()
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(&stubManualQuery{}, &stubDashboardQuery{}, &stubSessionStore{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestTextQueryEndpoint(t *testing.T) {
	manual := &stubManualQuery{answer: domain.Answer{
		Answer:        "Check the dipstick.",
		PageNumbers:   []int{10},
		FigureNumbers: []any{},
	}}
	handler := newTestHandler(manual, &stubDashboardQuery{}, &stubSessionStore{})

	body := `{"query":"how do I check oil","session_id":"s1","top_k":5}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/text-query", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if manual.gotQuery != "how do I check oil" || manual.gotSessionID != "s1" || manual.gotTopK != 5 {
		t.Fatalf("unexpected forwarded args: %+v", manual)
	}

	var resp domain.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "Check the dipstick." || len(resp.PageNumbers) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestTextQueryValidation(t *testing.T) {
	handler := newTestHandler(&stubManualQuery{}, &stubDashboardQuery{}, &stubSessionStore{})

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"blank query", `{"query":"   "}`},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/text-query", strings.NewReader(tc.body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/text-query", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", rec.Code)
	}
}

func TestTextQueryErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("empty")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrNotFound, "answer", errors.New("missing")), http.StatusNotFound},
		{domain.WrapError(domain.ErrTemporary, "answer", errors.New("busy")), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrUpstream, "answer", errors.New("down")), http.StatusBadGateway},
		{errors.New("anything else"), http.StatusInternalServerError},
	}

	for i, tc := range cases {
		handler := newTestHandler(&stubManualQuery{err: tc.err}, &stubDashboardQuery{}, &stubSessionStore{})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/text-query",
			strings.NewReader(`{"query":"q"}`)))
		if rec.Code != tc.want {
			t.Fatalf("case %d: expected %d, got %d", i, tc.want, rec.Code)
		}
	}
}

func TestImageQueryEndpoint(t *testing.T) {
	dashboard := &stubDashboardQuery{answer: domain.Answer{
		Answer:        "That is the speedometer.",
		PageNumbers:   []int{10},
		FigureNumbers: []any{},
	}}
	handler := newTestHandler(&stubManualQuery{}, dashboard, &stubSessionStore{})

	body := `{"image_path":"dash.jpg","box_coordinates":[10,20,110,220],"top_k":3}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/image-query", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if dashboard.gotPath != "dash.jpg" {
		t.Fatalf("unexpected forwarded path: %q", dashboard.gotPath)
	}
	want := domain.Rect{X0: 10, Y0: 20, X1: 110, Y1: 220}
	if dashboard.gotBox != want {
		t.Fatalf("unexpected box: %+v", dashboard.gotBox)
	}
}

func TestImageQueryValidation(t *testing.T) {
	handler := newTestHandler(&stubManualQuery{}, &stubDashboardQuery{}, &stubSessionStore{})

	cases := []string{
		`{"image_path":"","box_coordinates":[1,2,3,4]}`,
		`{"image_path":"dash.jpg","box_coordinates":[1,2,3]}`,
		`{"image_path":"dash.jpg"}`,
	}
	for i, body := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/image-query", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("case %d: expected 400, got %d", i, rec.Code)
		}
	}
}

func TestCreateSessionEndpoint(t *testing.T) {
	sessions := &stubSessionStore{created: &domain.Session{ID: "new-session"}}
	handler := newTestHandler(&stubManualQuery{}, &stubDashboardQuery{}, sessions)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "new-session") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestDeleteSessionEndpoint(t *testing.T) {
	sessions := &stubSessionStore{}
	handler := newTestHandler(&stubManualQuery{}, &stubDashboardQuery{}, sessions)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/sessions/s42", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if sessions.deletedID != "s42" {
		t.Fatalf("unexpected deleted id: %q", sessions.deletedID)
	}
}

func TestDeleteSessionNotFound(t *testing.T) {
	sessions := &stubSessionStore{
		deleteErr: domain.WrapError(domain.ErrNotFound, "delete session", fmt.Errorf("session %q", "ghost")),
	}
	handler := newTestHandler(&stubManualQuery{}, &stubDashboardQuery{}, sessions)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/sessions/ghost", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRequestIDIsPropagatedFromHeader(t *testing.T) {
	handler := newTestHandler(&stubManualQuery{}, &stubDashboardQuery{}, &stubSessionStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-Id", "fixed-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-Id") != "fixed-id" {
		t.Fatalf("expected request id echoed, got %q", rec.Header().Get("X-Request-Id"))
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	handler := newTestHandler(&stubManualQuery{}, &stubDashboardQuery{}, &stubSessionStore{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics, got %d", rec.Code)
	}
}
