package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/fan-lens/analytics/fileutils"
	"github.com/theimaginaryfoundation/fan-lens/analytics/profile"
)

func testClient(t *testing.T, h http.HandlerFunc) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := openai.NewClient(
		option.WithAPIKey("test"),
		option.WithBaseURL(srv.URL+"/v1/"),
		option.WithMaxRetries(0),
	)
	return &c
}

func TestBuildProfilePrompt(t *testing.T) {
	t.Parallel()

	p := buildProfilePrompt([]string{"hi there", "buy now"})
	for _, want := range []string{"Fan #1 messages:\nhi there", "Fan #2 messages:\nbuy now", `"age_indicators" (Age indicators)`, "exactly 2 objects"} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestProfileEnvelopeSchema_IsStrict(t *testing.T) {
	t.Parallel()

	require.Equal(t, "object", profileEnvelopeSchema["type"])
	require.Equal(t, false, profileEnvelopeSchema["additionalProperties"])

	props := profileEnvelopeSchema["properties"].(map[string]interface{})
	items := props["profiles"].(map[string]interface{})["items"].(map[string]interface{})
	require.Equal(t, false, items["additionalProperties"])
	require.ElementsMatch(t, profile.Fields, items["required"])
}

func TestRetry_NonRetryableErrorReturnsImmediately(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := retry(context.Background(), func() (int, error) {
		calls++
		return 0, errors.New("400 bad request")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRetry_CancelledWhileBackingOff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := retry(ctx, func() (int, error) {
		calls++
		return 0, errors.New("500 internal server error")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestOpenAIProfiler_ReturnsOutputText(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/responses") {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "resp_1",
			"object": "response",
			"created_at": 0,
			"model": "gpt-test",
			"status": "completed",
			"output": [{
				"type": "message",
				"id": "msg_1",
				"role": "assistant",
				"status": "completed",
				"content": [{"type": "output_text", "text": "[{\"Job or career\": \"nurse\"},]", "annotations": []}]
			}]
		}`)
	})

	p, err := NewOpenAIProfiler(client, ProfilerConfig{Model: "gpt-test"})
	require.NoError(t, err)

	out, err := p.ProfileTranscripts(context.Background(), []string{"I work nights at the hospital"})
	require.NoError(t, err)

	res := fileutils.DecodeModelArray(out)
	require.True(t, res.OK, res.Reason)
	require.Equal(t, "nurse", res.Items[0]["Job or career"])

	require.Equal(t, "gpt-test", gotBody["model"])
	require.Equal(t, profilerSystemPrompt, gotBody["instructions"])
	require.NotContains(t, gotBody, "text", "plain mode must not send a response format")
}

func TestOpenAIProfiler_StructuredOutputSendsSchema(t *testing.T) {
	t.Parallel()

	p, err := NewOpenAIProfiler(&openai.Client{}, ProfilerConfig{Model: "m", StructuredOutput: true, Flex: true})
	require.NoError(t, err)

	params := p.params([]string{"x"})
	require.NotNil(t, params.Text.Format.OfJSONSchema)
	require.Equal(t, "FanProfiles", params.Text.Format.OfJSONSchema.Name)
	require.Equal(t, "flex", string(params.ServiceTier))
}

func TestOpenAIEmbedder_OrdersByIndex(t *testing.T) {
	t.Parallel()

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"object": "list",
			"model": "emb-test",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.2, 0.2]},
				{"object": "embedding", "index": 0, "embedding": [0.1, 0.1]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`)
	})

	e, err := NewOpenAIEmbedder(client, "emb-test", 0)
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, [][]float64{{0.1, 0.1}, {0.2, 0.2}}, vecs)

	_, err = e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err, "count mismatch must not be truncated")
}

func TestConstructorsValidate(t *testing.T) {
	t.Parallel()

	_, err := NewOpenAIProfiler(nil, ProfilerConfig{Model: "m"})
	require.Error(t, err)
	_, err = NewOpenAIProfiler(&openai.Client{}, ProfilerConfig{})
	require.Error(t, err)
	_, err = NewOpenAIEmbedder(&openai.Client{}, "", 0)
	require.Error(t, err)
}
