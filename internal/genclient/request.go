package genclient

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind enumerates the supported generation modalities.
type Kind string

const (
	KindText   Kind = "text"
	KindImage  Kind = "image"
	KindVideo  Kind = "video"
	KindSpeech Kind = "speech"
)

// MinPromptTokens is the smallest prompt accepted before dispatch.
const MinPromptTokens = 3

// Request captures a single generation submission. It is immutable once
// built; Submit never mutates it.
type Request struct {
	Kind   Kind
	Prompt string
	// SourceAsset carries the conditioning image bytes. Required for image
	// and video generations.
	SourceAsset []byte
	// SourceName is the filename reported in the multipart part. Optional.
	SourceName string
	// VoiceID selects the speech voice. Required for speech generations.
	VoiceID string
	// ProviderParams are provider tunables (cfg_scale, stability, seed, ...)
	// that are passed through to the wire unchanged and never interpreted.
	ProviderParams map[string]any
}

// Validate enforces the input invariants that must hold before any network
// call is made. Violations come back as a classified invalid_input error.
func (r Request) Validate() error {
	switch r.Kind {
	case KindText, KindImage, KindVideo, KindSpeech:
	default:
		return newError(KindInvalidInput, "unsupported generation kind")
	}
	if len(strings.Fields(r.Prompt)) < MinPromptTokens {
		return newError(KindInvalidInput, "prompt must contain at least 3 words")
	}
	if (r.Kind == KindImage || r.Kind == KindVideo) && len(r.SourceAsset) == 0 {
		return newError(KindInvalidInput, "source asset is required for image and video generation")
	}
	if r.Kind == KindSpeech && strings.TrimSpace(r.VoiceID) == "" {
		return newError(KindInvalidInput, "voice id is required for speech generation")
	}
	return nil
}

// Status is the terminal state of a generation call.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Result is the normalized output contract shared by every provider shape.
// Exactly one Result is produced per Submit call.
type Result struct {
	Status Status
	// ResultURL points at the produced asset for image and video generations.
	ResultURL string
	// ResultBytes holds inline binary output (speech audio).
	ResultBytes []byte
	// Text holds generated text for text-kind calls.
	Text string
	// Metadata preserves every auxiliary field the provider reported, as raw
	// JSON so opaque values keep their exact wire representation.
	Metadata map[string]json.RawMessage
	// ErrorKind and Message are populated when Status is not succeeded.
	ErrorKind ErrorKind
	Message   string
}

// JobHandle identifies an asynchronous job between submission and its
// terminal result. It is owned by the polling loop and discarded afterwards.
type JobHandle struct {
	JobID     string
	PollURL   string
	CreatedAt time.Time
}

func failedResult(kind ErrorKind, message string) *Result {
	return &Result{Status: StatusFailed, ErrorKind: kind, Message: message}
}

func failedResultWithMeta(kind ErrorKind, message string, metadata map[string]json.RawMessage) *Result {
	return &Result{Status: StatusFailed, ErrorKind: kind, Message: message, Metadata: metadata}
}

func timedOutResult(message string, metadata map[string]json.RawMessage) *Result {
	return &Result{Status: StatusTimedOut, ErrorKind: KindTimedOut, Message: message, Metadata: metadata}
}
