package management

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/silc-sh/silc/src/apperror"
	"github.com/silc-sh/silc/src/shelldialect"
)

type fakeController struct {
	sessions       []SessionSummary
	createErr      error
	createResponse SessionSummary
	killedPorts    []uint16
}

func (f *fakeController) CreateSession(req CreateSessionRequest) (SessionSummary, error) {
	return f.createResponse, f.createErr
}
func (f *fakeController) ListSessions() []SessionSummary { return f.sessions }
func (f *fakeController) ResolveSession(name string) (SessionSummary, error) {
	for _, s := range f.sessions {
		if s.Name == name {
			return s, nil
		}
	}
	return SessionSummary{}, apperror.NotFound("session %q not found", name)
}
func (f *fakeController) CloseSession(port uint16) error { return nil }
func (f *fakeController) KillSession(port uint16) error {
	f.killedPorts = append(f.killedPorts, port)
	return nil
}
func (f *fakeController) RestartSession(port uint16) (RestartResult, error) {
	return RestartResult{Port: port, Status: "restored"}, nil
}
func (f *fakeController) Shutdown() error             { return nil }
func (f *fakeController) KillAll() error              { return nil }
func (f *fakeController) RestartServer() error        { return nil }
func (f *fakeController) Resurrect() ResurrectResult  { return ResurrectResult{} }
func (f *fakeController) Health() HealthResponse      { return HealthResponse{Status: "ok"} }

func TestHandleCreateSessionSuccess(t *testing.T) {
	ctl := &fakeController{createResponse: SessionSummary{Port: 20000, Name: "proj-a", Shell: shelldialect.Bash}}
	srv := New(ctl, "")

	body, _ := json.Marshal(CreateSessionRequest{Name: "proj-a"})
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got SessionSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Port != 20000 || got.Name != "proj-a" {
		t.Fatalf("got %+v", got)
	}
}

func TestHandleCreateSessionConflict(t *testing.T) {
	ctl := &fakeController{createErr: apperror.Conflict("session name %q is already taken", "proj-a")}
	srv := New(ctl, "")

	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader([]byte(`{"name":"proj-a"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestHandleListSessions(t *testing.T) {
	ctl := &fakeController{sessions: []SessionSummary{{Port: 20000, Name: "a", Alive: true}}}
	srv := New(ctl, "")

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []SessionSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].Name != "a" {
		t.Fatalf("got %+v", got)
	}
}

func TestHandleResolveNotFound(t *testing.T) {
	ctl := &fakeController{}
	srv := New(ctl, "")

	req := httptest.NewRequest(http.MethodGet, "/resolve/missing", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleKillParsesPort(t *testing.T) {
	ctl := &fakeController{}
	srv := New(ctl, "")

	req := httptest.NewRequest(http.MethodPost, "/sessions/20000/kill", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(ctl.killedPorts) != 1 || ctl.killedPorts[0] != 20000 {
		t.Fatalf("killedPorts = %v", ctl.killedPorts)
	}
}

func TestNonLoopbackRequiresToken(t *testing.T) {
	ctl := &fakeController{sessions: []SessionSummary{}}
	srv := New(ctl, "secret-token")

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.RemoteAddr = "203.0.113.5:54321"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestNonLoopbackWithValidTokenSucceeds(t *testing.T) {
	ctl := &fakeController{sessions: []SessionSummary{}}
	srv := New(ctl, "secret-token")

	req := httptest.NewRequest(http.MethodGet, "/sessions?token=secret-token", nil)
	req.RemoteAddr = "203.0.113.5:54321"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
