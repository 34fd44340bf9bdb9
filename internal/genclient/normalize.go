package genclient

import (
	"encoding/json"
	"strings"
)

// Provider payloads are heterogeneous: some name the asset url image_url,
// others video_url, url, or output[0]; async handles arrive as
// generation_id or task_id; status strings differ per backend. All field
// mapping lives in the tables below so provider drift stays out of the
// submit and polling code paths.

var resultURLFields = []string{"image_url", "video_url", "url"}

var jobIDFields = []string{"generation_id", "task_id", "job_id"}

var textFields = []string{"text", "output_text"}

var errorMessageFields = []string{"error", "message", "detail", "error_message"}

// fields consumed by the extraction rules; everything else is auxiliary and
// is preserved verbatim in Result.Metadata.
var controlFields = map[string]struct{}{
	"image_url":     {},
	"video_url":     {},
	"url":           {},
	"output":        {},
	"generation_id": {},
	"task_id":       {},
	"job_id":        {},
	"text":          {},
	"output_text":   {},
	"status":        {},
	"state":         {},
	"error":         {},
	"message":       {},
	"detail":        {},
	"error_message": {},
	"metadata":      {},
}

// statusBucket collapses every provider status string into the three
// outcomes the polling loop cares about.
type statusBucket int

const (
	statusUnknown statusBucket = iota
	statusInProgress
	statusSucceededBucket
	statusFailedBucket
)

var inProgressStatuses = map[string]struct{}{
	"in_progress": {},
	"processing":  {},
	"pending":     {},
	"queued":      {},
	"running":     {},
	"starting":    {},
	"submitted":   {},
}

var succeededStatuses = map[string]struct{}{
	"succeeded": {},
	"success":   {},
	"complete":  {},
	"completed": {},
	"done":      {},
	"finished":  {},
}

var failedStatuses = map[string]struct{}{
	"failed":    {},
	"failure":   {},
	"error":     {},
	"canceled":  {},
	"cancelled": {},
}

func classifyStatus(raw string) statusBucket {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	if s == "" {
		return statusUnknown
	}
	if _, ok := inProgressStatuses[s]; ok {
		return statusInProgress
	}
	if _, ok := succeededStatuses[s]; ok {
		return statusSucceededBucket
	}
	if _, ok := failedStatuses[s]; ok {
		return statusFailedBucket
	}
	return statusUnknown
}

// envelope is a decoded provider response body. Values stay raw so opaque
// metadata keeps its exact wire representation.
type envelope map[string]json.RawMessage

func decodeEnvelope(body []byte) (envelope, bool) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env == nil {
		return nil, false
	}
	return env, true
}

func (e envelope) stringField(names ...string) string {
	for _, name := range names {
		raw, ok := e[name]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// resultURL resolves the produced asset location, including the output[0]
// array shape some video backends use.
func (e envelope) resultURL() string {
	if u := e.stringField(resultURLFields...); u != "" {
		return u
	}
	if raw, ok := e["output"]; ok {
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 && strings.TrimSpace(list[0]) != "" {
			return strings.TrimSpace(list[0])
		}
	}
	return ""
}

func (e envelope) jobID() string {
	return e.stringField(jobIDFields...)
}

func (e envelope) text() string {
	return e.stringField(textFields...)
}

func (e envelope) status() statusBucket {
	return classifyStatus(e.stringField("status", "state"))
}

// errorMessage digs out the most descriptive provider-supplied message,
// tolerating both bare strings and {"error": {"message": ...}} nesting.
func (e envelope) errorMessage() string {
	for _, name := range errorMessageFields {
		raw, ok := e[name]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err == nil {
			if msg := envelope(nested).stringField("message", "detail", "reason"); msg != "" {
				return msg
			}
		}
	}
	return ""
}

// progress reports a provider progress field as display text, tolerating
// both numeric and string encodings.
func (e envelope) progress() string {
	raw, ok := e["progress"]
	if !ok {
		return ""
	}
	return strings.Trim(strings.TrimSpace(string(raw)), `"`)
}

// metadata returns every auxiliary field untouched: the nested metadata
// object when present, plus any top-level field not consumed by the
// extraction rules (prompt echo, seed, strength, usage counters).
func (e envelope) metadata() map[string]json.RawMessage {
	out := map[string]json.RawMessage{}
	if raw, ok := e["metadata"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err == nil {
			for k, v := range nested {
				out[k] = v
			}
		}
	}
	for k, v := range e {
		if _, consumed := controlFields[k]; consumed {
			continue
		}
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
