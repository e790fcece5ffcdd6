package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/scrubworks/redactgate/internal/audit"
	"github.com/scrubworks/redactgate/internal/events"
	"github.com/scrubworks/redactgate/internal/policy"
	"github.com/scrubworks/redactgate/internal/redaction"
)

// redactRequest is the wire shape of a redaction call.
type redactRequest struct {
	Content  string `json:"content"`
	PolicyID string `json:"policy_id"`
	DataType string `json:"data_type"`
	AgentID  string `json:"agent_id"`
	RunID    string `json:"run_id"`
}

// redactResponse is the wire shape of a successful redaction.
type redactResponse struct {
	Success         bool     `json:"success"`
	RedactedContent string   `json:"redacted_content"`
	RedactionCount  int      `json:"redaction_count"`
	PatternsMatched []string `json:"patterns_matched"`
	OriginalHash    string   `json:"original_hash"`
}

// handleRedact runs one redaction call: validate, resolve the policy, apply
// the engine, append the audit record, respond. The raw content lives only in
// the request-scoped variables here and in the engine call; it is never
// logged, broadcast, or persisted.
func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	traceID := getTraceID(r.Context())
	log := s.logger.WithTraceID(traceID)

	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxContentBytes)

	var req redactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidation, "malformed request body", traceID)
		return
	}

	if req.Content == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "content is required", traceID)
		return
	}
	if req.PolicyID == "" {
		writeError(w, http.StatusBadRequest, CodeValidation, "policy_id is required", traceID)
		return
	}
	if req.DataType == "" {
		req.DataType = "prompt"
	}

	pol, err := s.policies.GetActive(r.Context(), req.PolicyID)
	if err != nil {
		if errors.Is(err, policy.ErrNotFound) {
			writeError(w, http.StatusNotFound, CodePolicyNotFound, "no active policy found for id", traceID)
			return
		}
		log.Error("Policy fetch failed", zap.String("policy_id", req.PolicyID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "policy lookup failed", traceID)
		return
	}

	start := time.Now()
	result, err := s.engine.Apply(req.Content, pol)
	if err != nil {
		switch {
		case errors.Is(err, redaction.ErrInvalidPattern):
			// A bad rule fails the whole call closed rather than silently
			// skipping a redaction.
			log.Warn("Policy has invalid custom pattern",
				zap.String("policy_id", pol.ID), zap.Error(err))
			writeError(w, http.StatusUnprocessableEntity, CodeConfig, "policy contains an invalid custom pattern", traceID)
		case errors.Is(err, redaction.ErrEmptyContent):
			writeError(w, http.StatusBadRequest, CodeValidation, "content is required", traceID)
		case errors.Is(err, redaction.ErrPolicyNotActive):
			writeError(w, http.StatusNotFound, CodePolicyNotFound, "no active policy found for id", traceID)
		default:
			log.Error("Redaction failed", zap.String("policy_id", pol.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, CodeInternal, "redaction failed", traceID)
		}
		return
	}
	processing := time.Since(start)

	s.totalRedactions.Add(int64(result.RedactionCount))

	orgID := r.Header.Get("X-Org-ID")
	if orgID == "" {
		orgID = pol.OrgID
	}

	record := &audit.Record{
		OrgID:           orgID,
		PolicyID:        pol.ID,
		AgentID:         req.AgentID,
		RunID:           req.RunID,
		DataType:        req.DataType,
		RedactionCount:  result.RedactionCount,
		PatternsMatched: result.PatternsMatched,
		OriginalHash:    result.OriginalHash,
		RedactedPreview: audit.Preview(result.RedactedContent),
	}
	if err := s.sink.Write(r.Context(), record); err != nil {
		// The redaction already happened; losing the audit write is a
		// reconciliation problem, not a reason to withhold the result.
		log.Warn("Audit write failed, result returned anyway",
			zap.String("policy_id", pol.ID),
			zap.String("original_hash", result.OriginalHash),
			zap.Error(err))
	}

	log.Info("Content redacted",
		zap.String("policy_id", pol.ID),
		zap.String("org_id", orgID),
		zap.String("data_type", req.DataType),
		zap.Int("redaction_count", result.RedactionCount),
		zap.Strings("patterns_matched", result.PatternsMatched),
		zap.Duration("processing", processing),
	)

	s.hub.BroadcastEvent(events.Event{
		Type:      events.EventTypeRedaction,
		Timestamp: time.Now(),
		TraceID:   traceID,
		Data: events.RedactionEvent{
			TraceID:         traceID,
			OrgID:           orgID,
			PolicyID:        pol.ID,
			DataType:        req.DataType,
			RedactionCount:  result.RedactionCount,
			PatternsMatched: result.PatternsMatched,
			ProcessingMS:    float64(processing.Nanoseconds()) / 1e6,
		},
	})

	writeJSON(w, http.StatusOK, redactResponse{
		Success:         true,
		RedactedContent: result.RedactedContent,
		RedactionCount:  result.RedactionCount,
		PatternsMatched: result.PatternsMatched,
		OriginalHash:    result.OriginalHash,
	})
}
