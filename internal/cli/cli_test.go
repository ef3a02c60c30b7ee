package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rohzyy/govai/internal/client"
	"github.com/rohzyy/govai/internal/config"
	"github.com/rohzyy/govai/internal/gateway"
)

type backend struct {
	hits atomic.Int32
	// last holds the most recent JSON body sent to an /admin path.
	last map[string]any
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, data any, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload := map[string]any{"success": success, "data": data, "meta": map[string]any{"healthy": true}}
	if code != "" {
		payload["error"] = code
		payload["safeMessage"] = "request rejected"
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.hits.Add(1)
	switch r.URL.Path {
	case "/auth/login":
		var creds struct {
			Email string `json:"email"`
		}
		_ = json.NewDecoder(r.Body).Decode(&creds)
		role := "USER"
		if strings.HasPrefix(creds.Email, "admin") {
			role = "ADMIN"
		}
		writeEnvelope(w, http.StatusOK, true, map[string]any{
			"accessToken":  "access-1",
			"refreshToken": "refresh-1",
			"csrfToken":    "csrf-1",
			"user":         map[string]any{"id": "u-1", "email": creds.Email, "name": "Asha", "role": role},
		}, "")
	case "/admin/officers", "/admin/officers/off-9":
		b.last = nil
		_ = json.NewDecoder(r.Body).Decode(&b.last)
		writeEnvelope(w, http.StatusOK, true, map[string]any{"id": "off-9", "employeeId": "EMP-9", "status": "Active"}, "")
	case "/admin/audit-logs":
		b.last = map[string]any{"query": r.URL.RawQuery}
		writeEnvelope(w, http.StatusOK, true, []map[string]any{{"id": "aud-1", "action": "officer.create"}}, "")
	case "/complaints/g-1/status":
		if r.Header.Get("Authorization") != "Bearer access-1" {
			writeEnvelope(w, http.StatusUnauthorized, false, nil, "UNAUTHORIZED")
			return
		}
		writeEnvelope(w, http.StatusOK, true, map[string]any{
			"complaintId": "g-1",
			"status":      "ASSIGNED",
			"statusLabel": "Assigned to Officer",
		}, "")
	case "/complaints/g-2/withdraw":
		writeEnvelope(w, http.StatusUnprocessableEntity, false, nil, "VALIDATION_ERROR")
	default:
		writeEnvelope(w, http.StatusNotFound, false, nil, "NOT_FOUND")
	}
}

// newTestConfig points the CLI at a fake backend. Each Run reloads the
// session from a file in the test's temp dir, as separate invocations would.
func newTestConfig(t *testing.T) (config.Client, *backend) {
	t.Helper()
	b := &backend{}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return config.Client{
		BaseURL:     srv.URL,
		Timeout:     2 * time.Second,
		SessionFile: filepath.Join(t.TempDir(), "session.json"),
	}, b
}

func run(t *testing.T, cfg config.Client, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Run(context.Background(), strings.NewReader(stdin), &out, &errOut, append([]string{"govai"}, args...), cfg)
	return code, out.String(), errOut.String()
}

func TestLoginThenStatus(t *testing.T) {
	cfg, _ := newTestConfig(t)

	code, out, errOut := run(t, cfg, "hunter22\n", "login", "--email", "asha@example.com", "--password-stdin")
	if code != 0 {
		t.Fatalf("login exit %d: %s", code, errOut)
	}
	if strings.Contains(out, "access-1") {
		t.Fatalf("login output leaked the token: %s", out)
	}
	if !strings.Contains(out, `"role": "USER"`) {
		t.Fatalf("login output: %s", out)
	}

	code, out, errOut = run(t, cfg, "", "status", "g-1")
	if code != 0 {
		t.Fatalf("status exit %d: %s", code, errOut)
	}
	var view client.StatusView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode status output: %v\n%s", err, out)
	}
	if view.ComplaintID != "g-1" || view.Status != "ASSIGNED" {
		t.Fatalf("unexpected status view: %+v", view)
	}
}

func TestAdminCommandRejectedLocallyForCitizen(t *testing.T) {
	cfg, b := newTestConfig(t)
	if code, _, errOut := run(t, cfg, "", "login", "--email", "asha@example.com", "--password", "hunter22"); code != 0 {
		t.Fatalf("login: %s", errOut)
	}
	before := b.hits.Load()

	code, _, errOut := run(t, cfg, "", "assign", "g-1", "--officer", "o-1")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(errOut, string(gateway.ErrForbidden)) {
		t.Fatalf("expected FORBIDDEN, got %q", errOut)
	}
	if b.hits.Load() != before {
		t.Fatal("role check should run before any request")
	}
}

func TestBackendErrorSurfacesSafeMessage(t *testing.T) {
	cfg, _ := newTestConfig(t)
	run(t, cfg, "", "login", "--email", "asha@example.com", "--password", "hunter22")

	code, _, errOut := run(t, cfg, "", "withdraw", "g-2", "--reason", "fixed already")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(errOut, "request rejected") || !strings.Contains(errOut, "HTTP 422") {
		t.Fatalf("unexpected stderr %q", errOut)
	}
}

func TestArgumentErrors(t *testing.T) {
	cfg, _ := newTestConfig(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing id", []string{"status"}, errIDRequired.Error()},
		{"missing password", []string{"login", "--email", "a@b.c"}, errPasswordRequired.Error()},
		{"bad field status", []string{"field-event", "g-1", "--status", "teleported"}, "unknown status"},
		{"bad list scope", []string{"list", "--scope", "everything"}, "unknown scope"},
		{"reject needs reason", []string{"reject", "g-1"}, errReasonRequired.Error()},
		{"unknown flag", []string{"stats", "--verbose"}, "unknown flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := run(t, cfg, "", tt.args...)
			if code != 1 {
				t.Fatalf("expected exit 1, got %d", code)
			}
			if !strings.Contains(errOut, tt.want) {
				t.Fatalf("stderr %q does not mention %q", errOut, tt.want)
			}
		})
	}
}

func TestUnknownCommandAndHelp(t *testing.T) {
	cfg, _ := newTestConfig(t)

	code, _, errOut := run(t, cfg, "", "frobnicate")
	if code != 1 || !strings.Contains(errOut, "unknown command") {
		t.Fatalf("exit %d stderr %q", code, errOut)
	}

	code, out, _ := run(t, cfg, "", "--help")
	if code != 0 || !strings.Contains(out, "field-event") {
		t.Fatalf("help exit %d: %s", code, out)
	}

	code, out, _ = run(t, cfg, "", "reassign", "--help")
	if code != 0 || !strings.Contains(out, "--reason") {
		t.Fatalf("command help exit %d: %s", code, out)
	}
}

func TestHashPasswordFromStdin(t *testing.T) {
	code, out, errOut := run(t, config.Client{SessionFile: filepath.Join(t.TempDir(), "s.json")}, "s3cret-pass\n", "hash-password", "--password-stdin")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	hash := strings.TrimSpace(out)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret-pass")); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
}

func TestSessionFileLifecycle(t *testing.T) {
	cfg, _ := newTestConfig(t)
	baseURL := cfg.BaseURL
	cfg.BaseURL = "http://127.0.0.1:1"

	// The global flag wins over the configured URL.
	code, _, errOut := run(t, cfg, "", "--base-url", baseURL, "login", "--email", "asha@example.com", "--password", "hunter22")
	if code != 0 {
		t.Fatalf("login exit %d: %s", code, errOut)
	}
	if _, err := os.Stat(cfg.SessionFile); err != nil {
		t.Fatalf("session file not written: %v", err)
	}

	code, out, _ := run(t, cfg, "", "--base-url", baseURL, "logout")
	if code != 0 || !strings.Contains(out, "signed out") {
		t.Fatalf("logout exit %d: %s", code, out)
	}
	if _, err := os.Stat(cfg.SessionFile); !os.IsNotExist(err) {
		t.Fatalf("session file should be gone, stat err = %v", err)
	}
}

func TestOfficerAdminCommands(t *testing.T) {
	cfg, b := newTestConfig(t)
	if code, _, errOut := run(t, cfg, "", "login", "--email", "admin@city.gov", "--password", "hunter22"); code != 0 {
		t.Fatalf("login: %s", errOut)
	}

	code, out, errOut := run(t, cfg, "s3cret-pass\n", "officer-create",
		"--name", "Ravi Kumar", "--email", "ravi@city.gov", "--employee-id", "EMP-9", "--ward", "Ward 4", "--password-stdin")
	if code != 0 {
		t.Fatalf("officer-create exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "off-9") {
		t.Fatalf("officer-create output: %s", out)
	}
	if b.last["password"] != "s3cret-pass" || b.last["employeeId"] != "EMP-9" || b.last["ward"] != "Ward 4" {
		t.Fatalf("create body: %v", b.last)
	}

	code, _, errOut = run(t, cfg, "", "officer-update", "off-9", "--status", "On Leave", "--ward", "")
	if code != 0 {
		t.Fatalf("officer-update exit %d: %s", code, errOut)
	}
	want := map[string]any{"status": "On Leave", "ward": ""}
	if len(b.last) != len(want) || b.last["status"] != want["status"] || b.last["ward"] != want["ward"] {
		t.Fatalf("update body = %v, want %v", b.last, want)
	}

	code, _, errOut = run(t, cfg, "", "audit-logs", "--action", "officer.", "--limit", "5")
	if code != 0 {
		t.Fatalf("audit-logs exit %d: %s", code, errOut)
	}
	if b.last["query"] != "action=officer.&limit=5" {
		t.Fatalf("audit-logs query = %v", b.last["query"])
	}
}

func TestOfficerCommandArgumentErrors(t *testing.T) {
	cfg, b := newTestConfig(t)
	run(t, cfg, "", "login", "--email", "admin@city.gov", "--password", "hunter22")
	before := b.hits.Load()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"create needs employee id", []string{"officer-create", "--name", "Ravi", "--email", "ravi@city.gov", "--password", "x"}, "--employee-id"},
		{"create needs password", []string{"officer-create", "--name", "Ravi", "--email", "ravi@city.gov", "--employee-id", "EMP-9"}, errPasswordRequired.Error()},
		{"update needs id", []string{"officer-update", "--status", "Active"}, errIDRequired.Error()},
		{"update needs a field", []string{"officer-update", "off-9"}, "nothing to update"},
		{"negative limit", []string{"audit-logs", "--limit", "-1"}, "--limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := run(t, cfg, "", tt.args...)
			if code != 1 {
				t.Fatalf("expected exit 1, got %d", code)
			}
			if !strings.Contains(errOut, tt.want) {
				t.Fatalf("stderr %q does not mention %q", errOut, tt.want)
			}
		})
	}
	if b.hits.Load() != before {
		t.Fatal("invalid commands should not reach the server")
	}
}
