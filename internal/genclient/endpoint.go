package genclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strings"
)

// WireFormat selects how a submit request is encoded.
type WireFormat string

const (
	// WireJSON posts a JSON body. Used by text and speech endpoints.
	WireJSON WireFormat = "json"
	// WireMultipart posts a multipart form with the binary source asset.
	// Used by image and video endpoints.
	WireMultipart WireFormat = "multipart"
)

// Placeholders substituted into endpoint URL templates.
const (
	jobIDPlaceholder   = "{id}"
	voiceIDPlaceholder = "{voice_id}"
)

// Endpoint describes one provider surface: where to submit, how to encode
// the request, where to poll, and on what schedule.
type Endpoint struct {
	// SubmitURL is the POST target. Speech endpoints may embed {voice_id}.
	SubmitURL string
	// Wire selects the submit encoding.
	Wire WireFormat
	// Accept is sent as the Accept header when non-empty (audio/mpeg for
	// speech, whose result arrives as inline binary).
	Accept string
	// PollURL is the status endpoint template with an {id} placeholder.
	// Empty for providers that always answer synchronously.
	PollURL string
	// Poll bounds the asynchronous path. Ignored when PollURL is empty.
	Poll PollPolicy
}

func (e Endpoint) submitURL(req Request) string {
	url := e.SubmitURL
	if strings.Contains(url, voiceIDPlaceholder) {
		url = strings.ReplaceAll(url, voiceIDPlaceholder, req.VoiceID)
	}
	return url
}

func (e Endpoint) pollURL(jobID string) string {
	return strings.ReplaceAll(e.PollURL, jobIDPlaceholder, jobID)
}

// encodeSubmit builds the wire body for a validated request. ProviderParams
// are forwarded unchanged: as JSON values on JSON endpoints and as stringified
// form fields on multipart endpoints.
func (e Endpoint) encodeSubmit(req Request) (body []byte, contentType string, err error) {
	switch e.Wire {
	case WireMultipart:
		return encodeMultipart(req)
	case WireJSON, "":
		return e.encodeJSON(req)
	default:
		return nil, "", fmt.Errorf("genclient: unsupported wire format %q", e.Wire)
	}
}

func (e Endpoint) encodeJSON(req Request) ([]byte, string, error) {
	payload := map[string]any{}
	for k, v := range req.ProviderParams {
		payload[k] = v
	}
	switch req.Kind {
	case KindSpeech:
		payload["text"] = req.Prompt
	default:
		payload["prompt"] = req.Prompt
	}
	if req.Kind == KindSpeech && !strings.Contains(e.SubmitURL, voiceIDPlaceholder) {
		// Providers that do not encode the voice in the URL expect it in the body.
		if _, ok := payload["voice_id"]; !ok {
			payload["voice_id"] = req.VoiceID
		}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("genclient: encode request: %w", err)
	}
	return raw, "application/json", nil
}

func encodeMultipart(req Request) ([]byte, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	if err := mw.WriteField("prompt", req.Prompt); err != nil {
		return nil, "", fmt.Errorf("genclient: encode prompt field: %w", err)
	}
	for k, v := range req.ProviderParams {
		if err := mw.WriteField(k, fmt.Sprint(v)); err != nil {
			return nil, "", fmt.Errorf("genclient: encode %s field: %w", k, err)
		}
	}
	if len(req.SourceAsset) > 0 {
		name := strings.TrimSpace(req.SourceName)
		if name == "" {
			name = "source.png"
		}
		part, err := mw.CreateFormFile("image", name)
		if err != nil {
			return nil, "", fmt.Errorf("genclient: create file part: %w", err)
		}
		if _, err := part.Write(req.SourceAsset); err != nil {
			return nil, "", fmt.Errorf("genclient: write file part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("genclient: finalize multipart body: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
