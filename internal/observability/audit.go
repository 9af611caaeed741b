// Package observability provides audit logging for compliance tracking.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventAnalyzeStart    AuditEventType = "analyze.start"
	AuditEventAnalyzeComplete AuditEventType = "analyze.complete"
	AuditEventAnalyzeError    AuditEventType = "analyze.error"
	AuditEventQuestionAsked   AuditEventType = "question.asked"
	AuditEventSummaryGenerate AuditEventType = "summary.generate"
	AuditEventLLMRequest      AuditEventType = "llm.request"
	AuditEventLLMResponse     AuditEventType = "llm.response"
	AuditEventLLMError        AuditEventType = "llm.error"
	AuditEventServerStart     AuditEventType = "server.start"
	AuditEventServerStop      AuditEventType = "server.stop"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp   time.Time              `json:"timestamp"`
	EventType   AuditEventType         `json:"event_type"`
	SessionID   string                 `json:"session_id"`
	Source      string                 `json:"source,omitempty"`
	UserID      string                 `json:"user_id,omitempty"`
	Success     bool                   `json:"success"`
	Duration    time.Duration          `json:"duration_ms,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	ErrorCode   string                 `json:"error_code,omitempty"`
	ErrorDetail string                 `json:"error_detail,omitempty"`
}

// AuditLogger handles audit event logging.
type AuditLogger struct {
	mu        sync.Mutex
	writer    io.Writer
	sessionID string
	userID    string
	enabled   bool
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Enabled    bool
	OutputPath string // File path or "stdout"/"stderr"
	SessionID  string
	UserID     string
}

// DefaultAuditConfig returns default audit configuration.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		Enabled:    true,
		OutputPath: "stdout",
	}
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(config *AuditConfig) (*AuditLogger, error) {
	if config == nil {
		config = DefaultAuditConfig()
	}

	var writer io.Writer
	switch config.OutputPath {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		writer = f
	}

	sessionID := config.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}

	return &AuditLogger{
		writer:    writer,
		sessionID: sessionID,
		userID:    config.UserID,
		enabled:   config.Enabled,
	}, nil
}

// Log writes an audit event.
func (l *AuditLogger) Log(event *AuditEvent) error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Fill in defaults
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}
	if event.UserID == "" {
		event.UserID = l.userID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	_, err = fmt.Fprintf(l.writer, "%s\n", data)
	return err
}

// LogAnalyzeStart logs the start of a document analysis.
func (l *AuditLogger) LogAnalyzeStart(ctx context.Context, source, sourceType string) {
	l.Log(&AuditEvent{
		EventType: AuditEventAnalyzeStart,
		Source:    source,
		Success:   true,
		Message:   fmt.Sprintf("Analysis started for %s source", sourceType),
		Details: map[string]interface{}{
			"source_type": sourceType,
		},
	})
}

// LogAnalyzeComplete logs a completed document analysis.
func (l *AuditLogger) LogAnalyzeComplete(ctx context.Context, source string, duration time.Duration, chunkCount, contentLength int) {
	l.Log(&AuditEvent{
		EventType: AuditEventAnalyzeComplete,
		Source:    source,
		Success:   true,
		Duration:  duration,
		Message:   fmt.Sprintf("Analysis indexed %d chunks", chunkCount),
		Details: map[string]interface{}{
			"chunk_count":    chunkCount,
			"content_length": contentLength,
		},
	})
}

// LogAnalyzeError logs a failed document analysis.
func (l *AuditLogger) LogAnalyzeError(ctx context.Context, source string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventAnalyzeError,
		Source:      source,
		Success:     false,
		Message:     "Analysis failed",
		ErrorDetail: err.Error(),
	})
}

// LogQuestion logs an answered question.
func (l *AuditLogger) LogQuestion(ctx context.Context, question, answerKind string, duration time.Duration, contextCount int) {
	l.Log(&AuditEvent{
		EventType: AuditEventQuestionAsked,
		Success:   answerKind != "degraded",
		Duration:  duration,
		Message:   fmt.Sprintf("Question answered (%s)", answerKind),
		Details: map[string]interface{}{
			"question":      question,
			"answer_kind":   answerKind,
			"context_count": contextCount,
		},
	})
}

// LogSummary logs a summarization run.
func (l *AuditLogger) LogSummary(ctx context.Context, duration time.Duration, total, summarized, dropped int, mergeFailed bool) {
	l.Log(&AuditEvent{
		EventType: AuditEventSummaryGenerate,
		Success:   !mergeFailed,
		Duration:  duration,
		Message:   fmt.Sprintf("Summary covered %d/%d chunks", summarized, total),
		Details: map[string]interface{}{
			"chunks_total":      total,
			"chunks_summarized": summarized,
			"chunks_dropped":    dropped,
			"merge_failed":      mergeFailed,
		},
	})
}

// LogLLMRequest logs an LLM request event. Token counts are only known once
// the response arrives, so the request side records the prompt size in chars.
func (l *AuditLogger) LogLLMRequest(ctx context.Context, provider, model string, promptChars int) {
	l.Log(&AuditEvent{
		EventType: AuditEventLLMRequest,
		Success:   true,
		Message:   fmt.Sprintf("LLM request to %s/%s", provider, model),
		Details: map[string]interface{}{
			"provider":     provider,
			"model":        model,
			"prompt_chars": promptChars,
		},
	})
}

// LogLLMResponse logs an LLM response event.
func (l *AuditLogger) LogLLMResponse(ctx context.Context, provider, model string, duration time.Duration, inputTokens, outputTokens int) {
	l.Log(&AuditEvent{
		EventType: AuditEventLLMResponse,
		Success:   true,
		Duration:  duration,
		Message:   fmt.Sprintf("LLM response from %s/%s", provider, model),
		Details: map[string]interface{}{
			"provider":      provider,
			"model":         model,
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
			"total_tokens":  inputTokens + outputTokens,
		},
	})
}

// LogLLMError logs an LLM error event.
func (l *AuditLogger) LogLLMError(ctx context.Context, provider, model string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventLLMError,
		Success:     false,
		Message:     fmt.Sprintf("LLM error from %s/%s", provider, model),
		ErrorDetail: err.Error(),
		Details: map[string]interface{}{
			"provider": provider,
			"model":    model,
		},
	})
}

// LogServerStart logs a server start event.
func (l *AuditLogger) LogServerStart(ctx context.Context, addr, vectorBackend string) {
	l.Log(&AuditEvent{
		EventType: AuditEventServerStart,
		Success:   true,
		Message:   fmt.Sprintf("Server listening on %s", addr),
		Details: map[string]interface{}{
			"addr":           addr,
			"vector_backend": vectorBackend,
		},
	})
}

// LogServerStop logs a server shutdown event.
func (l *AuditLogger) LogServerStop(ctx context.Context, uptime time.Duration) {
	l.Log(&AuditEvent{
		EventType: AuditEventServerStop,
		Success:   true,
		Duration:  uptime,
		Message:   "Server stopped",
	})
}

// Close closes the audit logger (if using a file).
func (l *AuditLogger) Close() error {
	if closer, ok := l.writer.(io.Closer); ok {
		if closer != os.Stdout && closer != os.Stderr {
			return closer.Close()
		}
	}
	return nil
}

// Global audit logger instance
var globalAuditLogger *AuditLogger
var auditOnce sync.Once

// InitGlobalAuditLogger initializes the global audit logger.
func InitGlobalAuditLogger(config *AuditConfig) error {
	var err error
	auditOnce.Do(func() {
		globalAuditLogger, err = NewAuditLogger(config)
	})
	return err
}

// Audit returns the global audit logger.
func Audit() *AuditLogger {
	if globalAuditLogger == nil {
		// Return a disabled logger if not initialized
		return &AuditLogger{enabled: false}
	}
	return globalAuditLogger
}
