package genclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

type stubResponse struct {
	status      int
	contentType string
	body        string
	err         error
}

// scriptedTransport answers the submit POST with one canned response and
// subsequent status GETs with a scripted sequence (the last entry repeats).
type scriptedTransport struct {
	mu      sync.Mutex
	submit  stubResponse
	polls   []stubResponse
	submits []*http.Request

	submitCount int
	pollCount   int
	submitBody  []byte
}

func (t *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if req.Method == http.MethodPost {
		t.submitCount++
		t.submits = append(t.submits, req)
		if req.Body != nil {
			t.submitBody, _ = io.ReadAll(req.Body)
		}
		return makeResponse(req, t.submit)
	}
	t.pollCount++
	idx := t.pollCount - 1
	if idx >= len(t.polls) {
		idx = len(t.polls) - 1
	}
	if idx < 0 {
		return nil, fmt.Errorf("unexpected poll %s", req.URL)
	}
	return makeResponse(req, t.polls[idx])
}

func makeResponse(req *http.Request, stub stubResponse) (*http.Response, error) {
	if stub.err != nil {
		return nil, stub.err
	}
	status := stub.status
	if status == 0 {
		status = http.StatusOK
	}
	contentType := stub.contentType
	if contentType == "" {
		contentType = "application/json"
	}
	header := http.Header{}
	header.Set("Content-Type", contentType)
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(stub.body)),
		Request:    req,
	}, nil
}

func newTestClient(t *testing.T, transport *scriptedTransport) (*Client, *[]time.Duration) {
	t.Helper()
	client, err := NewClient(Options{
		Endpoints: map[Kind]Endpoint{
			KindImage: {
				SubmitURL: "https://img.example.com/generate",
				Wire:      WireMultipart,
				PollURL:   "https://img.example.com/image-result/{id}",
				Poll:      ImagePollPolicy,
			},
			KindVideo: {
				SubmitURL: "https://vid.example.com/generate",
				Wire:      WireMultipart,
				PollURL:   "https://vid.example.com/video-status/{id}",
				Poll:      VideoPollPolicy,
			},
			KindSpeech: {
				SubmitURL: "https://tts.example.com/speech/{voice_id}",
				Wire:      WireJSON,
				Accept:    "audio/mpeg",
			},
			KindText: {
				SubmitURL: "https://llm.example.com/complete",
				Wire:      WireJSON,
			},
		},
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	delays := &[]time.Duration{}
	client.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
	return client, delays
}

func imageRequest() Request {
	return Request{
		Kind:        KindImage,
		Prompt:      "make it look professional",
		SourceAsset: []byte{0x89, 'P', 'N', 'G'},
	}
}

func TestSubmitSynchronousImageSuccess(t *testing.T) {
	transport := &scriptedTransport{
		submit: stubResponse{body: `{"image_url":"https://x/y.png","metadata":{"seed":7}}`},
	}
	client, _ := newTestClient(t, transport)

	res, err := client.Submit(context.Background(), "tok", imageRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Status != StatusSucceeded {
		t.Fatalf("status = %s, want succeeded", res.Status)
	}
	if res.ResultURL != "https://x/y.png" {
		t.Fatalf("result url = %q", res.ResultURL)
	}
	if got := string(res.Metadata["seed"]); got != "7" {
		t.Fatalf("metadata seed = %q, want 7", got)
	}
	if transport.submitCount != 1 || transport.pollCount != 0 {
		t.Fatalf("made %d submits and %d polls, want 1 and 0", transport.submitCount, transport.pollCount)
	}
}

func TestSubmitSendsBearerAndMultipartPrompt(t *testing.T) {
	transport := &scriptedTransport{
		submit: stubResponse{body: `{"image_url":"https://x/y.png"}`},
	}
	client, _ := newTestClient(t, transport)

	if _, err := client.Submit(context.Background(), "secret-token", imageRequest()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	req := transport.submits[0]
	if got := req.Header.Get("Authorization"); got != "Bearer secret-token" {
		t.Fatalf("authorization = %q", got)
	}
	if ct := req.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/form-data") {
		t.Fatalf("content type = %q, want multipart", ct)
	}
	if !bytes.Contains(transport.submitBody, []byte("make it look professional")) {
		t.Fatalf("prompt missing from multipart body")
	}
	if !bytes.Contains(transport.submitBody, []byte{0x89, 'P', 'N', 'G'}) {
		t.Fatalf("source asset missing from multipart body")
	}
}

func TestSubmitAsyncVideoEventualSuccess(t *testing.T) {
	inProgress := stubResponse{body: `{"status":"IN_PROGRESS"}`}
	transport := &scriptedTransport{
		submit: stubResponse{body: `{"task_id":"abc"}`},
		polls: []stubResponse{
			inProgress, inProgress, inProgress,
			{body: `{"status":"SUCCEEDED","video_url":"https://x/v.mp4"}`},
		},
	}
	client, delays := newTestClient(t, transport)

	req := Request{Kind: KindVideo, Prompt: "pan across the shelf", SourceAsset: []byte{1, 2}}
	res, err := client.Submit(context.Background(), "tok", req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Status != StatusSucceeded || res.ResultURL != "https://x/v.mp4" {
		t.Fatalf("result = %+v", res)
	}
	if transport.pollCount != 4 {
		t.Fatalf("poll count = %d, want 4", transport.pollCount)
	}
	for i, d := range *delays {
		if d != 5*time.Second {
			t.Fatalf("delay %d = %s, want fixed 5s", i, d)
		}
	}
}

func TestSubmitAsyncImageTimeoutWithBackoff(t *testing.T) {
	transport := &scriptedTransport{
		submit: stubResponse{body: `{"generation_id":"gen-1"}`},
		polls:  []stubResponse{{body: `{"status":"processing"}`}},
	}
	client, delays := newTestClient(t, transport)

	res, err := client.Submit(context.Background(), "tok", imageRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Status != StatusTimedOut {
		t.Fatalf("status = %s, want timed_out (never failed)", res.Status)
	}
	if res.ErrorKind != KindTimedOut {
		t.Fatalf("error kind = %s", res.ErrorKind)
	}
	if transport.pollCount != 30 {
		t.Fatalf("poll count = %d, want exactly 30", transport.pollCount)
	}
	for i, d := range *delays {
		want := time.Second << i
		if want > 30*time.Second {
			want = 30 * time.Second
		}
		if d != want {
			t.Fatalf("delay before attempt %d = %s, want %s", i+1, d, want)
		}
	}
}

func TestPollUnauthorizedStopsImmediately(t *testing.T) {
	transport := &scriptedTransport{
		submit: stubResponse{body: `{"generation_id":"gen-2"}`},
		polls: []stubResponse{
			{body: `{"status":"processing"}`},
			{status: http.StatusUnauthorized, body: `{"error":"token expired"}`},
		},
	}
	client, _ := newTestClient(t, transport)

	res, err := client.Submit(context.Background(), "tok", imageRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Status != StatusFailed || res.ErrorKind != KindUnauthorized {
		t.Fatalf("result = %+v, want failed/unauthorized", res)
	}
	if res.Message != "token expired" {
		t.Fatalf("message = %q", res.Message)
	}
	if transport.pollCount != 2 {
		t.Fatalf("poll count = %d, want 2 (no polling after the 401)", transport.pollCount)
	}
}

func TestSubmitMalformedBodyDoesNotPoll(t *testing.T) {
	transport := &scriptedTransport{
		submit: stubResponse{body: `{"note":"nothing useful here"}`},
	}
	client, _ := newTestClient(t, transport)

	res, err := client.Submit(context.Background(), "tok", imageRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Status != StatusFailed || res.ErrorKind != KindMalformedResponse {
		t.Fatalf("result = %+v, want failed/malformed_response", res)
	}
	if transport.pollCount != 0 {
		t.Fatalf("poll count = %d, want 0", transport.pollCount)
	}
}

func TestSubmitUnparsableBodyIsMalformed(t *testing.T) {
	transport := &scriptedTransport{
		submit: stubResponse{body: `not json at all`},
	}
	client, _ := newTestClient(t, transport)

	res, err := client.Submit(context.Background(), "tok", imageRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.ErrorKind != KindMalformedResponse {
		t.Fatalf("error kind = %s", res.ErrorKind)
	}
}

func TestCancellationStopsPolling(t *testing.T) {
	transport := &scriptedTransport{
		submit: stubResponse{body: `{"task_id":"abc"}`},
		polls:  []stubResponse{{body: `{"status":"IN_PROGRESS"}`}},
	}
	client, _ := newTestClient(t, transport)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	client.sleep = func(ctx context.Context, d time.Duration) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return ctx.Err()
	}

	req := Request{Kind: KindVideo, Prompt: "pan across the shelf", SourceAsset: []byte{1}}
	res, err := client.Submit(ctx, "tok", req)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res != nil {
		t.Fatalf("expected no result after cancellation, got %+v", res)
	}
	if transport.pollCount != 1 {
		t.Fatalf("poll count = %d, want 1 (nothing after cancel)", transport.pollCount)
	}
}

func TestMetadataRoundTripPreservesRawValues(t *testing.T) {
	transport := &scriptedTransport{
		submit: stubResponse{body: `{"image_url":"https://x/y.png","metadata":{"prompt":"p","seed":42}}`},
	}
	client, _ := newTestClient(t, transport)

	res, err := client.Submit(context.Background(), "tok", imageRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := string(res.Metadata["prompt"]); got != `"p"` {
		t.Fatalf("metadata prompt = %s", got)
	}
	if got := string(res.Metadata["seed"]); got != "42" {
		t.Fatalf("metadata seed = %s, want raw 42", got)
	}
}

func TestSubmitSpeechInlineAudio(t *testing.T) {
	audio := string([]byte{0xff, 0xfb, 0x90, 0x00})
	transport := &scriptedTransport{
		submit: stubResponse{contentType: "audio/mpeg", body: audio},
	}
	client, _ := newTestClient(t, transport)

	req := Request{Kind: KindSpeech, Prompt: "welcome to the store", VoiceID: "voice-7"}
	res, err := client.Submit(context.Background(), "tok", req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Status != StatusSucceeded {
		t.Fatalf("status = %s", res.Status)
	}
	if !bytes.Equal(res.ResultBytes, []byte(audio)) {
		t.Fatalf("audio bytes mismatch")
	}
	submitted := transport.submits[0]
	if submitted.URL.String() != "https://tts.example.com/speech/voice-7" {
		t.Fatalf("speech url = %s", submitted.URL)
	}
	if got := submitted.Header.Get("Accept"); got != "audio/mpeg" {
		t.Fatalf("accept = %q", got)
	}
	var payload map[string]any
	if err := json.Unmarshal(transport.submitBody, &payload); err != nil {
		t.Fatalf("speech body not json: %v", err)
	}
	if payload["text"] != "welcome to the store" {
		t.Fatalf("speech text = %v", payload["text"])
	}
}

func TestSubmitTextSynchronous(t *testing.T) {
	transport := &scriptedTransport{
		submit: stubResponse{body: `{"text":"a polished caption","usage":{"total_tokens":12}}`},
	}
	client, _ := newTestClient(t, transport)

	req := Request{Kind: KindText, Prompt: "write a product caption"}
	res, err := client.Submit(context.Background(), "tok", req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Status != StatusSucceeded || res.Text != "a polished caption" {
		t.Fatalf("result = %+v", res)
	}
	if got := string(res.Metadata["usage"]); got != `{"total_tokens":12}` {
		t.Fatalf("usage metadata = %s", got)
	}
}

func TestValidateRejectsBeforeAnyNetworkCall(t *testing.T) {
	transport := &scriptedTransport{}
	client, _ := newTestClient(t, transport)

	cases := []Request{
		{Kind: KindImage, Prompt: "too short", SourceAsset: []byte{1}},
		{Kind: KindImage, Prompt: "make it look professional"},
		{Kind: KindSpeech, Prompt: "welcome to the store"},
		{Kind: "hologram", Prompt: "make it look professional"},
	}
	for i, req := range cases {
		res, err := client.Submit(context.Background(), "tok", req)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if res.Status != StatusFailed || res.ErrorKind != KindInvalidInput {
			t.Fatalf("case %d: result = %+v, want failed/invalid_input", i, res)
		}
	}
	if transport.submitCount != 0 || transport.pollCount != 0 {
		t.Fatalf("network was touched: %d submits, %d polls", transport.submitCount, transport.pollCount)
	}
}

func TestSubmitNetworkErrorIsNotRetried(t *testing.T) {
	transport := &scriptedTransport{
		submit: stubResponse{err: errors.New("connection reset")},
	}
	client, _ := newTestClient(t, transport)

	res, err := client.Submit(context.Background(), "tok", imageRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Status != StatusFailed || res.ErrorKind != KindNetwork {
		t.Fatalf("result = %+v, want failed/network_error", res)
	}
	if transport.submitCount != 1 {
		t.Fatalf("submit count = %d, want 1 (submits are never retried)", transport.submitCount)
	}
}

func TestSubmitProviderRejection(t *testing.T) {
	transport := &scriptedTransport{
		submit: stubResponse{status: http.StatusUnprocessableEntity, body: `{"error":{"message":"prompt flagged"}}`},
	}
	client, _ := newTestClient(t, transport)

	res, err := client.Submit(context.Background(), "tok", imageRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.ErrorKind != KindProviderRejected {
		t.Fatalf("error kind = %s", res.ErrorKind)
	}
	if res.Message != "prompt flagged" {
		t.Fatalf("message = %q", res.Message)
	}
}

func TestPollGenerationFailure(t *testing.T) {
	transport := &scriptedTransport{
		submit: stubResponse{body: `{"generation_id":"gen-3"}`},
		polls: []stubResponse{
			{body: `{"status":"processing"}`},
			{body: `{"status":"FAILED","error":"nsfw content detected"}`},
		},
	}
	client, _ := newTestClient(t, transport)

	res, err := client.Submit(context.Background(), "tok", imageRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Status != StatusFailed || res.ErrorKind != KindGenerationFailed {
		t.Fatalf("result = %+v", res)
	}
	if res.Message != "nsfw content detected" {
		t.Fatalf("message = %q", res.Message)
	}
	if transport.pollCount != 2 {
		t.Fatalf("poll count = %d, want 2", transport.pollCount)
	}
}

func TestPollTransientErrorsConsumeBudget(t *testing.T) {
	transport := &scriptedTransport{
		submit: stubResponse{body: `{"task_id":"abc"}`},
		polls: []stubResponse{
			{err: errors.New("dns lookup failed")},
			{status: http.StatusBadGateway, body: "upstream unavailable"},
			{body: `{"status":"SUCCEEDED","url":"https://x/v.mp4"}`},
		},
	}
	client, _ := newTestClient(t, transport)

	req := Request{Kind: KindVideo, Prompt: "pan across the shelf", SourceAsset: []byte{1}}
	res, err := client.Submit(context.Background(), "tok", req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Status != StatusSucceeded || res.ResultURL != "https://x/v.mp4" {
		t.Fatalf("result = %+v", res)
	}
	if transport.pollCount != 3 {
		t.Fatalf("poll count = %d, want 3", transport.pollCount)
	}
}
