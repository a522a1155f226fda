package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hewudi666/maro/types"
)

func newTestServer(t *testing.T) (*PolicyServer, PolicyManager) {
	t.Helper()
	m, err := NewLocalPolicyManager(Config{
		Policies: stubPolicyDict("A", "B"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return NewPolicyServer("127.0.0.1:0", m), m
}

func serve(s *PolicyServer, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestServerVersion(t *testing.T) {
	s, _ := newTestServer(t)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/version", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body := struct {
		Version int `json:"version"`
	}{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Version != 0 {
		t.Errorf("fresh manager should report version 0, got %d", body.Version)
	}
}

func TestServerExperienceAdvancesVersion(t *testing.T) {
	s, m := newTestServer(t)

	payload, _ := json.Marshal(experienceRequest{
		Experiences: map[string]*types.ExperienceBatch{"A": batchOfSize(2)},
	})
	req := httptest.NewRequest(http.MethodPost, "/experience", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if m.Version() != 1 {
		t.Errorf("expected version 1 after one experience post, got %d", m.Version())
	}
}

func TestServerExperienceRejectsBadPayload(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/experience", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	if rec := serve(s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed payload, got %d", rec.Code)
	}
}

func TestServerExperienceUnknownPolicy(t *testing.T) {
	s, _ := newTestServer(t)
	payload, _ := json.Marshal(experienceRequest{
		Experiences: map[string]*types.ExperienceBatch{"Z": batchOfSize(1)},
	})
	req := httptest.NewRequest(http.MethodPost, "/experience", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if rec := serve(s, req); rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for unknown policy, got %d", rec.Code)
	}
}

func TestServerState(t *testing.T) {
	s, m := newTestServer(t)
	if err := m.Update(context.Background(), map[string]*types.ExperienceBatch{"A": batchOfSize(1)}); err != nil {
		t.Fatal(err)
	}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/state?since=0", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body := struct {
		Version int                          `json:"version"`
		States  map[string]types.PolicyState `json:"states"`
	}{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Version != 1 {
		t.Errorf("expected version 1, got %d", body.Version)
	}
	if _, ok := body.States["A"]; !ok {
		t.Errorf("expected A's state since version 0, got %v", body.States)
	}

	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/state?since=bogus", nil)); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unparseable since, got %d", rec.Code)
	}
}

// a manager whose version advances between the handler's first two
// reads, as a concurrent round commit would
type shiftingManager struct {
	versionReads int
}

func (m *shiftingManager) Update(_ context.Context, _ map[string]*types.ExperienceBatch) error {
	return nil
}

func (m *shiftingManager) Version() int {
	m.versionReads++
	if m.versionReads == 1 {
		return 0
	}
	return 1
}

func (m *shiftingManager) GetState(_ int) map[string]types.PolicyState {
	return map[string]types.PolicyState{"A": types.PolicyState(`{}`)}
}

func (m *shiftingManager) Exit() error { return nil }

func TestServerStateVersionPairConsistent(t *testing.T) {
	s := NewPolicyServer("127.0.0.1:0", &shiftingManager{})
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/state", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	body := struct {
		Version int `json:"version"`
	}{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	// the stale first read must be discarded and the pair re-taken
	if body.Version != 1 {
		t.Errorf("response paired states with a stale version %d", body.Version)
	}
}
