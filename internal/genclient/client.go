// Package genclient talks to long-running, job-based generation backends.
// It converts one generation request into exactly one terminal result,
// hiding whether the provider answered synchronously or handed back a job
// id that has to be polled, and hiding every provider-specific response
// shape behind a single normalized contract.
package genclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// Options configures the generation client.
type Options struct {
	// Endpoints maps each modality to its provider surface. Kinds without an
	// endpoint are rejected as invalid input.
	Endpoints map[Kind]Endpoint
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	Logger     *infra.Logger
	// RequestTimeout bounds a single HTTP round-trip when no HTTPClient is
	// supplied. The overall call is bounded by the poll policy, not by this.
	RequestTimeout time.Duration
}

// Client issues generation requests and drives the status-polling protocol.
// It holds no mutable state; concurrent Submit calls are independent.
type Client struct {
	endpoints  map[Kind]Endpoint
	httpClient *http.Client
	logger     *infra.Logger

	// sleep is swapped out by tests to observe cadence without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if len(opts.Endpoints) == 0 {
		return nil, fmt.Errorf("genclient: at least one endpoint is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	endpoints := make(map[Kind]Endpoint, len(opts.Endpoints))
	for kind, ep := range opts.Endpoints {
		if strings.TrimSpace(ep.SubmitURL) == "" {
			return nil, fmt.Errorf("genclient: endpoint for %s has no submit url", kind)
		}
		if ep.PollURL != "" && ep.Poll.MaxAttempts <= 0 {
			return nil, fmt.Errorf("genclient: endpoint for %s polls without an attempt cap", kind)
		}
		endpoints[kind] = ep
	}
	return &Client{
		endpoints:  endpoints,
		httpClient: httpClient,
		logger:     logger,
		sleep:      sleepContext,
	}, nil
}

// Submit dispatches one generation request with the caller's bearer token and
// returns a terminal Result. Classified failures (including timeouts) come
// back inside the Result; the error return is reserved for context
// cancellation, in which case no further polling happens and no Result is
// produced.
//
// The initial submission is never retried: a duplicate submit risks duplicate
// billable work upstream. Only the read-only status polls are repeated.
func (c *Client) Submit(ctx context.Context, token string, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		cerr := err.(*Error)
		return failedResult(cerr.Kind, cerr.Message), nil
	}
	ep, ok := c.endpoints[req.Kind]
	if !ok {
		return failedResult(KindInvalidInput, fmt.Sprintf("no endpoint configured for %s generation", req.Kind)), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, contentType, err := ep.encodeSubmit(req)
	if err != nil {
		return failedResult(KindInvalidInput, err.Error()), nil
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.submitURL(req), bytes.NewReader(body))
	if err != nil {
		return failedResult(KindInvalidInput, fmt.Sprintf("build request: %v", err)), nil
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if ep.Accept != "" {
		httpReq.Header.Set("Accept", ep.Accept)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return failedResult(KindNetwork, fmt.Sprintf("submit %s generation: %v", req.Kind, err)), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return failedResult(KindNetwork, fmt.Sprintf("read response: %v", err)), nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return failedResult(KindUnauthorized, extractBodyMessage(raw, "credential rejected by provider")), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := extractBodyMessage(raw, fmt.Sprintf("provider returned status %d", resp.StatusCode))
		return failedResult(KindProviderRejected, msg), nil
	}

	// Inline binary responses (speech audio) are always synchronous.
	if isBinaryResponse(resp.Header.Get("Content-Type")) {
		return &Result{Status: StatusSucceeded, ResultBytes: raw}, nil
	}

	env, ok := decodeEnvelope(raw)
	if !ok {
		return failedResult(KindMalformedResponse, "provider returned an unparsable body"), nil
	}
	if res, done := terminalFromEnvelope(env); done {
		return res, nil
	}
	jobID := env.jobID()
	if jobID == "" {
		return failedResultWithMeta(KindMalformedResponse, "provider returned neither a result nor a job id", env.metadata()), nil
	}
	if ep.PollURL == "" {
		return failedResultWithMeta(KindMalformedResponse, "provider returned a job id on a synchronous endpoint", env.metadata()), nil
	}

	handle := JobHandle{JobID: jobID, PollURL: ep.pollURL(jobID), CreatedAt: time.Now()}
	c.logger.Debug().
		Str("kind", string(req.Kind)).
		Str("job_id", handle.JobID).
		Int("max_attempts", ep.Poll.MaxAttempts).
		Msg("genclient: provider answered asynchronously, entering poll loop")
	return c.pollUntilTerminal(ctx, token, ep.Poll, handle)
}

// pollUntilTerminal drives the bounded status loop for one job handle.
// Attempts are strictly sequential; the handle is discarded once a terminal
// result is produced.
func (c *Client) pollUntilTerminal(ctx context.Context, token string, policy PollPolicy, handle JobHandle) (*Result, error) {
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := c.sleep(ctx, policy.Cadence(attempt)); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := c.pollOnce(ctx, token, handle, attempt)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}
	msg := fmt.Sprintf("job %s still processing after %d status checks", handle.JobID, policy.MaxAttempts)
	return timedOutResult(msg, nil), nil
}

// pollOnce performs a single status check. A nil result with no error means
// the job is still in progress (or the check failed transiently) and the
// attempt budget keeps ticking down; credential rejections terminate the
// loop immediately since waiting will not fix them.
func (c *Client) pollOnce(ctx context.Context, token string, handle JobHandle, attempt int) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, handle.PollURL, nil)
	if err != nil {
		return failedResult(KindInvalidInput, fmt.Sprintf("build poll request: %v", err)), nil
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Debug().Err(err).Str("job_id", handle.JobID).Int("attempt", attempt).
			Msg("genclient: poll transport error")
		return nil, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return failedResult(KindUnauthorized, extractBodyMessage(raw, "credential rejected while polling")), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug().Int("status", resp.StatusCode).Str("job_id", handle.JobID).Int("attempt", attempt).
			Msg("genclient: poll returned non-2xx, will retry")
		return nil, nil
	}
	env, ok := decodeEnvelope(raw)
	if !ok {
		return nil, nil
	}
	switch env.status() {
	case statusSucceededBucket:
		if res, done := terminalFromEnvelope(env); done {
			return res, nil
		}
		return failedResultWithMeta(KindMalformedResponse, "provider reported success without a result", env.metadata()), nil
	case statusFailedBucket:
		return failedResultWithMeta(KindGenerationFailed, extractEnvelopeMessage(env, "provider reported job failure"), env.metadata()), nil
	default:
		if progress := env.progress(); progress != "" {
			c.logger.Debug().Str("job_id", handle.JobID).Int("attempt", attempt).Str("progress", progress).
				Msg("genclient: job in progress")
		}
		return nil, nil
	}
}

// terminalFromEnvelope builds a success Result when the envelope carries a
// direct result field. The second return reports whether it did.
func terminalFromEnvelope(env envelope) (*Result, bool) {
	if url := env.resultURL(); url != "" {
		return &Result{Status: StatusSucceeded, ResultURL: url, Metadata: env.metadata()}, true
	}
	if text := env.text(); text != "" {
		return &Result{Status: StatusSucceeded, Text: text, Metadata: env.metadata()}, true
	}
	return nil, false
}

func extractEnvelopeMessage(env envelope, fallback string) string {
	if msg := env.errorMessage(); msg != "" {
		return msg
	}
	return fallback
}

func extractBodyMessage(raw []byte, fallback string) string {
	if env, ok := decodeEnvelope(raw); ok {
		if msg := env.errorMessage(); msg != "" {
			return msg
		}
	}
	if trimmed := strings.TrimSpace(string(raw)); trimmed != "" && len(trimmed) <= 200 && !strings.HasPrefix(trimmed, "<") {
		return trimmed
	}
	return fallback
}

func isBinaryResponse(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(contentType, "audio/") ||
		strings.HasPrefix(contentType, "video/") ||
		strings.HasPrefix(contentType, "image/") ||
		contentType == "application/octet-stream"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
