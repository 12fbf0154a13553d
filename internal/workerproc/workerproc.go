package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"construction-monitor/internal/obras"
	"construction-monitor/internal/queue"
	"construction-monitor/internal/reports"
	"construction-monitor/internal/shared/telemetry"
	"construction-monitor/internal/virag"
)

// Processor generates (or confirms) the stored report for an analysis.
type Processor interface {
	RetrieveByAnalysisID(ctx context.Context, analysisID string) (reports.Retrieval, error)
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingAnalysisID indicates a message missing the analysis id.
type ErrMissingAnalysisID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingAnalysisID) Error() string { return "missing analysis id" }

// ErrProcess indicates report generation failed after successful parsing.
type ErrProcess struct {
	AnalysisID string
	RequestID  string
	Err        error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "prefetch report"
	}
	return "prefetch report: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Result describes a successful prefetch.
type Result struct {
	AnalysisID string
	RequestID  string
	Generated  bool
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.AnalysisID) == "" {
		return msg, meta, ErrMissingAnalysisID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// HandleMessage parses a payload and runs the report pipeline for it.
func HandleMessage(ctx context.Context, proc Processor, body string) (Result, error) {
	if proc == nil {
		return Result{}, errors.New("report service not configured")
	}

	msg, _, err := ParseMessage(body)
	if err != nil {
		return Result{}, err
	}

	res := Result{AnalysisID: strings.TrimSpace(msg.AnalysisID), RequestID: msg.RequestID}
	ctx = telemetry.WithRequestID(ctx, msg.RequestID)
	out, err := proc.RetrieveByAnalysisID(ctx, res.AnalysisID)
	if err != nil {
		return res, ErrProcess{AnalysisID: res.AnalysisID, RequestID: msg.RequestID, Err: err}
	}
	res.Generated = out.Generated
	return res, nil
}

// Unrecoverable reports whether redelivering the message cannot succeed.
func Unrecoverable(err error) bool {
	if err == nil {
		return false
	}
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		missing ErrMissingAnalysisID
	)
	if errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing) {
		return true
	}
	if errors.Is(err, obras.ErrNotFound) || errors.Is(err, reports.ErrInvalidInput) {
		return true
	}
	var upstream *virag.UpstreamError
	if errors.As(err, &upstream) && upstream.Status == http.StatusNotFound {
		return true
	}
	return false
}
