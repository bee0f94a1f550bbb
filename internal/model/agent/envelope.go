package agent

import (
	"encoding/json"
	"errors"
)

// ErrorKind classifies a failed envelope.
type ErrorKind string

const (
	ErrorKindConfig     ErrorKind = "configuration"
	ErrorKindInit       ErrorKind = "initialization"
	ErrorKindCredential ErrorKind = "credential"
	ErrorKindRemote     ErrorKind = "remote"
	ErrorKindRunFailed  ErrorKind = "run_failed"
	ErrorKindTimeout    ErrorKind = "timeout"
)

// RecordList wraps raw remote records the same way the remote list endpoints do.
type RecordList struct {
	Data []json.RawMessage `json:"data"`
}

// Envelope is returned for every question, successful or not.
//
// A successful envelope carries the raw run, step and message records. A failed one
// carries Error and ErrorKind and never any raw records.
type Envelope struct {
	Question     string          `json:"question"`
	Success      bool            `json:"success"`
	RunStatus    RunStatus       `json:"run_status,omitempty"`
	Run          json.RawMessage `json:"run,omitempty"`
	Steps        *RecordList     `json:"steps,omitempty"`
	Messages     *RecordList     `json:"messages,omitempty"`
	FinalMessage *string         `json:"final_message,omitempty"`
	ThreadName   string          `json:"thread_name,omitempty"`
	ThreadID     string          `json:"thread_id,omitempty"`
	Timestamp    float64         `json:"timestamp,omitempty"`
	Error        string          `json:"error,omitempty"`
	ErrorKind    ErrorKind       `json:"error_kind,omitempty"`
	Timeout      *float64        `json:"timeout,omitempty"`
}

// Answer returns the extracted final message, empty when none was found.
func (e Envelope) Answer() string {
	if e.FinalMessage == nil {
		return ""
	}
	return *e.FinalMessage
}

// Err converts a failed envelope into an error. It returns nil on success.
func (e Envelope) Err() error {
	if e.Success {
		return nil
	}
	msg := e.Error
	if msg == "" {
		msg = "unknown error occurred"
	}
	return &EnvelopeError{Kind: e.ErrorKind, Message: msg}
}

// EnvelopeError is the error form of a failed envelope.
type EnvelopeError struct {
	Kind    ErrorKind
	Message string
}

func (e *EnvelopeError) Error() string {
	return e.Message
}

// KindOf extracts the failure kind from err, defaulting to ErrorKindRemote.
func KindOf(err error) ErrorKind {
	var kinded interface{ ErrorKind() ErrorKind }
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}
	var envErr *EnvelopeError
	if errors.As(err, &envErr) && envErr.Kind != "" {
		return envErr.Kind
	}
	return ErrorKindRemote
}
