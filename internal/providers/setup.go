// Package providers wires generation backends for the API server and the
// worker: endpoint construction per modality and credential resolution.
package providers

import (
	"context"
	"strings"

	"server/internal/genclient"
	"server/internal/infra/credentials"
)

// ImageEndpoint describes the asynchronous image surface rooted at baseURL.
// Submissions are multipart (prompt plus conditioning image), status checks
// poll with exponential backoff.
func ImageEndpoint(baseURL string) genclient.Endpoint {
	base := strings.TrimRight(baseURL, "/")
	return genclient.Endpoint{
		SubmitURL: base + "/generations",
		Wire:      genclient.WireMultipart,
		PollURL:   base + "/jobs/{id}",
		Poll:      genclient.ImagePollPolicy,
	}
}

// VideoEndpoint describes the asynchronous video surface rooted at baseURL.
// Polling runs on a fixed cadence; video jobs are billed per submission.
func VideoEndpoint(baseURL string) genclient.Endpoint {
	base := strings.TrimRight(baseURL, "/")
	return genclient.Endpoint{
		SubmitURL: base + "/generations",
		Wire:      genclient.WireMultipart,
		PollURL:   base + "/tasks/{id}",
		Poll:      genclient.VideoPollPolicy,
	}
}

// SpeechEndpoint describes the synchronous text-to-speech surface. The voice
// is encoded in the URL and the result arrives as inline audio bytes.
func SpeechEndpoint(baseURL string) genclient.Endpoint {
	base := strings.TrimRight(baseURL, "/")
	return genclient.Endpoint{
		SubmitURL: base + "/voices/{voice_id}/synthesize",
		Wire:      genclient.WireJSON,
		Accept:    "audio/mpeg",
	}
}

// TextEndpoint describes the synchronous text surface used for prompt
// enhancement.
func TextEndpoint(baseURL string) genclient.Endpoint {
	base := strings.TrimRight(baseURL, "/")
	return genclient.Endpoint{
		SubmitURL: base + "/generations",
		Wire:      genclient.WireJSON,
	}
}

// StoredToken resolves a provider credential, preferring the value configured
// through the environment and falling back to the integration_tokens table so
// keys rotated at runtime take effect without a restart.
func StoredToken(configured string, store *credentials.Store, provider string) func(ctx context.Context) (string, error) {
	configured = strings.TrimSpace(configured)
	return func(ctx context.Context) (string, error) {
		if configured != "" {
			return configured, nil
		}
		if store == nil {
			return "", nil
		}
		return store.Token(ctx, provider)
	}
}
