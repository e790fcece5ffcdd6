package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/scrubworks/redactgate/internal/audit"
	"github.com/scrubworks/redactgate/internal/config"
	"github.com/scrubworks/redactgate/internal/logger"
	"github.com/scrubworks/redactgate/internal/policy"
	"github.com/scrubworks/redactgate/internal/redaction"
)

func newTestServer(t *testing.T, store *policy.MemoryStore, sink *audit.MemorySink) *Server {
	t.Helper()

	cfg := config.GetDefaults()
	cfg.RateLimit.Enabled = false

	log := &logger.Logger{Logger: zap.NewNop()}
	return New(cfg, log, store, sink)
}

func seedStore() *policy.MemoryStore {
	store := policy.NewMemoryStore()
	store.Put(&redaction.Policy{
		ID:     "pol-mask",
		OrgID:  "org-1",
		Status: redaction.PolicyActive,
		Rules:  []redaction.Rule{{PatternType: redaction.PatternEmail, Replacement: redaction.StrategyMask}},
	})
	store.Put(&redaction.Policy{
		ID:             "pol-pii",
		OrgID:          "org-1",
		Status:         redaction.PolicyActive,
		DataCategories: []string{redaction.CategoryPII},
	})
	store.Put(&redaction.Policy{
		ID:     "pol-off",
		OrgID:  "org-1",
		Status: redaction.PolicyInactive,
	})
	store.Put(&redaction.Policy{
		ID:     "pol-bad",
		OrgID:  "org-1",
		Status: redaction.PolicyActive,
		Rules:  []redaction.Rule{{PatternType: redaction.PatternCustomRegex, Regex: "[unclosed", Replacement: redaction.StrategyMask}},
	})
	return store
}

func postRedact(t *testing.T, srv *Server, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/redact", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleRedact(t *testing.T) {
	t.Run("MaskEmailSuccess", func(t *testing.T) {
		sink := audit.NewMemorySink()
		srv := newTestServer(t, seedStore(), sink)

		rec := postRedact(t, srv, map[string]interface{}{
			"content":   "Contact me at a@b.com please",
			"policy_id": "pol-mask",
			"agent_id":  "agent-7",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp redactResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if !resp.Success {
			t.Error("Expected success")
		}
		if resp.RedactedContent != "Contact me at ******* please" {
			t.Errorf("Unexpected content: %q", resp.RedactedContent)
		}
		if resp.RedactionCount != 1 {
			t.Errorf("Expected count 1, got %d", resp.RedactionCount)
		}
		if len(resp.PatternsMatched) != 1 || resp.PatternsMatched[0] != "email" {
			t.Errorf("Unexpected patterns: %v", resp.PatternsMatched)
		}
		if len(resp.OriginalHash) != 64 {
			t.Errorf("Unexpected hash: %q", resp.OriginalHash)
		}

		records := sink.Records()
		if len(records) != 1 {
			t.Fatalf("Expected 1 audit record, got %d", len(records))
		}
		record := records[0]
		if record.PolicyID != "pol-mask" || record.OrgID != "org-1" || record.AgentID != "agent-7" {
			t.Errorf("Bad attribution: %+v", record)
		}
		if record.DataType != "prompt" {
			t.Errorf("Expected default data_type prompt, got %q", record.DataType)
		}
		if strings.Contains(record.RedactedPreview, "a@b.com") {
			t.Error("Audit preview contains raw content")
		}
		if record.OriginalHash != resp.OriginalHash {
			t.Error("Audit hash differs from response hash")
		}
	})

	t.Run("BuiltinPIIPass", func(t *testing.T) {
		srv := newTestServer(t, seedStore(), audit.NewMemorySink())

		rec := postRedact(t, srv, map[string]interface{}{
			"content":   "call +1-555-123-4567",
			"policy_id": "pol-pii",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}

		var resp redactResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if !strings.Contains(resp.RedactedContent, "[PHONE_REDACTED]") {
			t.Errorf("Phone not redacted: %q", resp.RedactedContent)
		}
	})

	t.Run("MissingContent", func(t *testing.T) {
		sink := audit.NewMemorySink()
		srv := newTestServer(t, seedStore(), sink)

		rec := postRedact(t, srv, map[string]interface{}{"policy_id": "pol-mask"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", rec.Code)
		}

		var resp errorResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Code != CodeValidation {
			t.Errorf("Expected %s, got %s", CodeValidation, resp.Code)
		}
		if resp.TraceID == "" {
			t.Error("Missing trace id")
		}
		if len(sink.Records()) != 0 {
			t.Error("Audit record written for rejected request")
		}
	})

	t.Run("MissingPolicyID", func(t *testing.T) {
		srv := newTestServer(t, seedStore(), audit.NewMemorySink())

		rec := postRedact(t, srv, map[string]interface{}{"content": "hello"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("UnknownPolicy", func(t *testing.T) {
		srv := newTestServer(t, seedStore(), audit.NewMemorySink())

		rec := postRedact(t, srv, map[string]interface{}{
			"content":   "hello",
			"policy_id": "pol-404",
		})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", rec.Code)
		}

		var resp errorResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Code != CodePolicyNotFound {
			t.Errorf("Expected %s, got %s", CodePolicyNotFound, resp.Code)
		}
	})

	t.Run("InactivePolicy", func(t *testing.T) {
		srv := newTestServer(t, seedStore(), audit.NewMemorySink())

		rec := postRedact(t, srv, map[string]interface{}{
			"content":   "hello",
			"policy_id": "pol-off",
		})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", rec.Code)
		}
	})

	t.Run("InvalidCustomPattern", func(t *testing.T) {
		sink := audit.NewMemorySink()
		srv := newTestServer(t, seedStore(), sink)

		rec := postRedact(t, srv, map[string]interface{}{
			"content":   "secret things",
			"policy_id": "pol-bad",
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("Expected 422, got %d", rec.Code)
		}

		var resp errorResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Code != CodeConfig {
			t.Errorf("Expected %s, got %s", CodeConfig, resp.Code)
		}
		if len(sink.Records()) != 0 {
			t.Error("Audit record written for failed-closed call")
		}
	})

	t.Run("AuditFailureStillReturnsResult", func(t *testing.T) {
		sink := audit.NewMemorySink()
		sink.FailWith(errors.New("audit db down"))
		srv := newTestServer(t, seedStore(), sink)

		rec := postRedact(t, srv, map[string]interface{}{
			"content":   "Contact me at a@b.com please",
			"policy_id": "pol-mask",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200 despite audit failure, got %d", rec.Code)
		}

		var resp redactResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.RedactionCount != 1 {
			t.Errorf("Expected redaction result despite audit failure: %+v", resp)
		}
	})

	t.Run("MalformedBody", func(t *testing.T) {
		srv := newTestServer(t, seedStore(), audit.NewMemorySink())

		req := httptest.NewRequest(http.MethodPost, "/v1/redact", strings.NewReader("{not json"))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", rec.Code)
		}
	})
}

func TestSystemStatusSnapshot(t *testing.T) {
	srv := newTestServer(t, seedStore(), audit.NewMemorySink())

	for i := 0; i < 3; i++ {
		rec := postRedact(t, srv, map[string]interface{}{
			"content":   "Contact me at a@b.com please",
			"policy_id": "pol-mask",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
	}

	status := srv.systemStatus()
	if status.Status != "healthy" {
		t.Errorf("Unexpected status: %q", status.Status)
	}
	if status.TotalRequests != 3 {
		t.Errorf("Expected 3 requests counted, got %d", status.TotalRequests)
	}
	if status.TotalRedactions != 3 {
		t.Errorf("Expected 3 redactions counted, got %d", status.TotalRedactions)
	}
	if status.ConnectedClients != 0 {
		t.Errorf("Expected no stream clients, got %d", status.ConnectedClients)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := config.GetDefaults()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerMin = 60
	cfg.RateLimit.Burst = 1

	log := &logger.Logger{Logger: zap.NewNop()}
	srv := New(cfg, log, seedStore(), audit.NewMemorySink())

	body := map[string]interface{}{"content": "hello", "policy_id": "pol-mask"}

	first := postRedact(t, srv, body)
	if first.Code != http.StatusOK {
		t.Fatalf("First request expected 200, got %d", first.Code)
	}

	second := postRedact(t, srv, body)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("Second request expected 429, got %d", second.Code)
	}

	var resp errorResponse
	json.Unmarshal(second.Body.Bytes(), &resp)
	if resp.Code != CodeRateLimited {
		t.Errorf("Expected %s, got %s", CodeRateLimited, resp.Code)
	}
}

func TestHealthAndInfo(t *testing.T) {
	srv := newTestServer(t, seedStore(), audit.NewMemorySink())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("info: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "credit_card") {
		t.Errorf("info missing builtin categories: %s", rec.Body.String())
	}
}
