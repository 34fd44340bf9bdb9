package genclient

import "testing"

func TestClassifyStatusBuckets(t *testing.T) {
	cases := []struct {
		raw  string
		want statusBucket
	}{
		{"IN_PROGRESS", statusInProgress},
		{"in-progress", statusInProgress},
		{"processing", statusInProgress},
		{"Queued", statusInProgress},
		{"SUCCEEDED", statusSucceededBucket},
		{"completed", statusSucceededBucket},
		{"done", statusSucceededBucket},
		{"FAILED", statusFailedBucket},
		{"error", statusFailedBucket},
		{"cancelled", statusFailedBucket},
		{"", statusUnknown},
		{"warming-up-gpu", statusUnknown},
	}
	for _, tc := range cases {
		if got := classifyStatus(tc.raw); got != tc.want {
			t.Fatalf("classifyStatus(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestResultURLVariants(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"image_url":"https://x/a.png"}`, "https://x/a.png"},
		{`{"video_url":"https://x/a.mp4"}`, "https://x/a.mp4"},
		{`{"url":"https://x/b.mp4"}`, "https://x/b.mp4"},
		{`{"output":["https://x/c.mp4","https://x/d.mp4"]}`, "https://x/c.mp4"},
		{`{"output":[]}`, ""},
		{`{"status":"processing"}`, ""},
	}
	for _, tc := range cases {
		env, ok := decodeEnvelope([]byte(tc.body))
		if !ok {
			t.Fatalf("decode %s", tc.body)
		}
		if got := env.resultURL(); got != tc.want {
			t.Fatalf("resultURL(%s) = %q, want %q", tc.body, got, tc.want)
		}
	}
}

func TestJobIDVariants(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"generation_id":"g1"}`, "g1"},
		{`{"task_id":"t1"}`, "t1"},
		{`{"job_id":"j1"}`, "j1"},
		{`{"id":"ambient"}`, ""},
	}
	for _, tc := range cases {
		env, _ := decodeEnvelope([]byte(tc.body))
		if got := env.jobID(); got != tc.want {
			t.Fatalf("jobID(%s) = %q, want %q", tc.body, got, tc.want)
		}
	}
}

func TestErrorMessageExtraction(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"error":"plain text"}`, "plain text"},
		{`{"error":{"message":"nested"}}`, "nested"},
		{`{"message":"top level"}`, "top level"},
		{`{"detail":"detail text"}`, "detail text"},
		{`{"status":"failed"}`, ""},
	}
	for _, tc := range cases {
		env, _ := decodeEnvelope([]byte(tc.body))
		if got := env.errorMessage(); got != tc.want {
			t.Fatalf("errorMessage(%s) = %q, want %q", tc.body, got, tc.want)
		}
	}
}

func TestMetadataMergesNestedAndAuxiliaryFields(t *testing.T) {
	body := `{"image_url":"https://x/y.png","status":"succeeded","seed":11,"strength":"0.35","metadata":{"prompt":"p"}}`
	env, _ := decodeEnvelope([]byte(body))
	md := env.metadata()
	if got := string(md["prompt"]); got != `"p"` {
		t.Fatalf("prompt = %s", got)
	}
	if got := string(md["seed"]); got != "11" {
		t.Fatalf("seed = %s", got)
	}
	if got := string(md["strength"]); got != `"0.35"` {
		t.Fatalf("strength = %s, want original string form", got)
	}
	if _, ok := md["image_url"]; ok {
		t.Fatalf("control field image_url leaked into metadata")
	}
	if _, ok := md["status"]; ok {
		t.Fatalf("control field status leaked into metadata")
	}
}

func TestMetadataEmptyIsNil(t *testing.T) {
	env, _ := decodeEnvelope([]byte(`{"image_url":"https://x/y.png"}`))
	if md := env.metadata(); md != nil {
		t.Fatalf("metadata = %v, want nil", md)
	}
}
