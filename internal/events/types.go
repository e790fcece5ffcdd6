package events

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of event on the stream
type EventType string

const (
	// EventTypeRedaction represents a completed redaction
	EventTypeRedaction EventType = "redaction"
	// EventTypeRequestLog represents a request logging event
	EventTypeRequestLog EventType = "request_log"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents an event sent to stream clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// RedactionEvent describes a completed redaction. It carries counts and
// category names only; no content, redacted or otherwise, goes on the wire.
type RedactionEvent struct {
	TraceID         string   `json:"trace_id"`
	OrgID           string   `json:"org_id"`
	PolicyID        string   `json:"policy_id"`
	DataType        string   `json:"data_type"`
	RedactionCount  int      `json:"redaction_count"`
	PatternsMatched []string `json:"patterns_matched"`
	ProcessingMS    float64  `json:"processing_ms"`
}

// RequestLogEvent represents a request logging event
type RequestLogEvent struct {
	TraceID    string        `json:"trace_id"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	StatusCode int           `json:"status_code"`
	ClientIP   string        `json:"client_ip"`
	UserAgent  string        `json:"user_agent,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalRequests    int64  `json:"total_requests"`
	TotalRedactions  int64  `json:"total_redactions"`
	ConnectedClients int    `json:"connected_clients"`
}

// ConnectionEvent represents stream connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
	Message  string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
}

// Client represents a connected stream client
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string
	Subscription *SubscriptionRequest
}
