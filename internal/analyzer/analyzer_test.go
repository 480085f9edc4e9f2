package analyzer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/gemini-analyzer/internal/llm"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/models"
	"github.com/BetterCallFirewall/gemini-analyzer/internal/storage"
)

type fakeProvider struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (f *fakeProvider) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.reply(prompt)
}

func (f *fakeProvider) GetName() string  { return "fake" }
func (f *fakeProvider) GetModel() string { return "fake-model" }

type recordingOutput struct {
	mu     sync.Mutex
	output []string
	errors []string
}

func (r *recordingOutput) PrintOutput(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.output = append(r.output, msg)
}

func (r *recordingOutput) PrintError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

type recordingBroadcaster struct {
	results []*models.AnalysisResult
}

func (b *recordingBroadcaster) BroadcastResult(result *models.AnalysisResult) {
	b.results = append(b.results, result)
}

func replyWith(text string, err error) func(string) (string, error) {
	return func(string) (string, error) { return text, err }
}

func message(id, url, raw string) *models.HTTPExchange {
	msg := &models.HTTPExchange{
		ID:      id,
		Request: models.RequestPart{Method: "GET", URL: url},
	}
	if raw != "" {
		msg.Response = &models.ResponsePart{StatusCode: 200, Raw: []byte(raw)}
	}
	return msg
}

const rawHTML = "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nX-Secret-Header: hidden\r\n\r\n<html><body>hi</body></html>"

func TestProcessHTTPMessage_IgnoredWithoutTrigger(t *testing.T) {
	provider := &fakeProvider{reply: replyWith("x", nil)}
	out := &recordingOutput{}
	a := New(provider, out)

	result := a.ProcessHTTPMessage(context.Background(), ToolProxy, false, message("1", "https://a.test/", rawHTML))

	assert.Nil(t, result)
	assert.Empty(t, provider.prompts)
	assert.Empty(t, out.output)
}

func TestProcessHTTPMessage_IgnoresRequests(t *testing.T) {
	provider := &fakeProvider{reply: replyWith("x", nil)}
	out := &recordingOutput{}
	a := New(provider, out)

	ctx := withManualTrigger(context.Background())
	result := a.ProcessHTTPMessage(ctx, ToolProxy, true, message("1", "https://a.test/", rawHTML))

	assert.Nil(t, result)
	assert.Empty(t, provider.prompts)
}

func TestTrigger_Success(t *testing.T) {
	provider := &fakeProvider{reply: replyWith("Reflected XSS in q", nil)}
	out := &recordingOutput{}
	store := storage.NewMemoryResultStore()
	feed := &recordingBroadcaster{}
	a := New(provider, out, WithResultStore(store), WithBroadcaster(feed))

	results := a.Trigger(context.Background(), ToolRepeater, []*models.HTTPExchange{
		message("ex-1", "https://a.test/search?q=1", rawHTML),
	})

	require.Len(t, results, 1)
	assert.Equal(t, []string{
		"[*] Sending request to AI Studio for analysis...",
		"[*] AI Studio Analysis Result: \nReflected XSS in q",
	}, out.output)
	assert.Empty(t, out.errors)

	require.Len(t, provider.prompts, 1)
	prompt := provider.prompts[0]
	assert.Contains(t, prompt, "for the URL https://a.test/search?q=1:\n\n<html><body>hi</body></html>")
	assert.NotContains(t, prompt, "X-Secret-Header", "only the body after the header block is sent")

	r := results[0]
	assert.Equal(t, "ex-1", r.ExchangeID)
	assert.Equal(t, "fake", r.Provider)
	assert.Equal(t, "fake-model", r.Model)
	assert.True(t, r.Succeeded())
	assert.NotEmpty(t, r.ID)

	saved, err := store.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Reflected XSS in q", saved.Text)
	require.Len(t, feed.results, 1)
	assert.Equal(t, r.ID, feed.results[0].ID)
}

func TestTrigger_MarkerDoesNotLeak(t *testing.T) {
	provider := &fakeProvider{reply: replyWith("ok", nil)}
	a := New(provider, &recordingOutput{})
	ctx := context.Background()

	a.Trigger(ctx, ToolProxy, []*models.HTTPExchange{message("1", "https://a.test/", rawHTML)})
	result := a.ProcessHTTPMessage(ctx, ToolProxy, false, message("2", "https://a.test/", rawHTML))

	assert.Nil(t, result, "listener calls after Trigger stay ignored")
	assert.Len(t, provider.prompts, 1)
}

func TestTrigger_Failures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantError string
	}{
		{
			name:      "http error",
			err:       &llm.APIError{StatusCode: 403, Reason: "Forbidden"},
			wantError: "[-] HTTPError: 403 - Forbidden",
		},
		{
			name:      "network error",
			err:       &llm.NetworkError{Err: errors.New("connection refused")},
			wantError: "[-] URLError: connection refused",
		},
		{
			name:      "empty candidates",
			err:       llm.ErrEmptyCandidates,
			wantError: "[-] Unexpected error: response contains no candidates",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &recordingOutput{}
			a := New(&fakeProvider{reply: replyWith("", tt.err)}, out)

			results := a.Trigger(context.Background(), ToolProxy, []*models.HTTPExchange{
				message("1", "https://a.test/", rawHTML),
			})

			assert.Equal(t, []string{tt.wantError}, out.errors)
			assert.Equal(t, []string{
				"[*] Sending request to AI Studio for analysis...",
				"[-] No result returned from AI Studio.",
			}, out.output)
			require.Len(t, results, 1)
			assert.Equal(t, tt.err.Error(), results[0].Error)
		})
	}
}

func TestTrigger_EmptyText(t *testing.T) {
	out := &recordingOutput{}
	a := New(&fakeProvider{reply: replyWith("", nil)}, out)

	a.Trigger(context.Background(), ToolProxy, []*models.HTTPExchange{message("1", "https://a.test/", rawHTML)})

	assert.Empty(t, out.errors)
	assert.Equal(t, "[-] No result returned from AI Studio.", out.output[len(out.output)-1])
}

func TestTrigger_SkipsMessagesWithoutResponse(t *testing.T) {
	provider := &fakeProvider{reply: replyWith("ok", nil)}
	out := &recordingOutput{}
	a := New(provider, out)

	results := a.Trigger(context.Background(), ToolProxy, []*models.HTTPExchange{
		message("no-resp", "https://a.test/a", ""),
		{ID: "empty", Request: models.RequestPart{URL: "https://a.test/b"}, Response: &models.ResponsePart{}},
		message("ok", "https://a.test/c", rawHTML),
	})

	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].ExchangeID)
	assert.Len(t, provider.prompts, 1)
	assert.Empty(t, out.errors)
}

func TestTrigger_PanicDoesNotStopOthers(t *testing.T) {
	calls := 0
	provider := &fakeProvider{reply: func(string) (string, error) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return "second ok", nil
	}}
	out := &recordingOutput{}
	a := New(provider, out)

	results := a.Trigger(context.Background(), ToolProxy, []*models.HTTPExchange{
		message("1", "https://a.test/1", rawHTML),
		message("2", "https://a.test/2", rawHTML),
	})

	assert.Equal(t, []string{"[-] Error processing HTTP message: boom"}, out.errors)
	require.Len(t, results, 2)
	assert.Equal(t, "boom", results[0].Error)
	assert.Equal(t, "second ok", results[1].Text)
}

func TestTrigger_NilMessage(t *testing.T) {
	out := &recordingOutput{}
	a := New(&fakeProvider{reply: replyWith("ok", nil)}, out)

	results := a.Trigger(context.Background(), ToolProxy, []*models.HTTPExchange{nil})

	assert.Empty(t, results)
	assert.Equal(t, []string{"[-] Error processing HTTP message: nil message"}, out.errors)
}

func TestTrigger_StopsOnCancelledContext(t *testing.T) {
	provider := &fakeProvider{reply: replyWith("ok", nil)}
	a := New(provider, &recordingOutput{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := a.Trigger(ctx, ToolProxy, []*models.HTTPExchange{message("1", "https://a.test/", rawHTML)})

	assert.Empty(t, results)
	assert.Empty(t, provider.prompts)
}

func TestTrigger_MaxBodyBytes(t *testing.T) {
	provider := &fakeProvider{reply: replyWith("ok", nil)}
	a := New(provider, &recordingOutput{}, WithMaxBodyBytes(500))

	raw := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\n" + strings.Repeat("A", 400) + strings.Repeat("-", 5000) + "END"
	a.Trigger(context.Background(), ToolProxy, []*models.HTTPExchange{message("1", "https://a.test/", raw)})

	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "TRUNCATED")
	assert.True(t, strings.HasSuffix(provider.prompts[0], "END"))
}

func TestAnnounce(t *testing.T) {
	out := &recordingOutput{}
	New(&fakeProvider{}, out).Announce()
	assert.Equal(t, []string{"[*] Gemini AI Plugin loaded successfully"}, out.output)
}

func TestConsoleOutput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewWriterOutput(&stdout, &stderr)

	out.PrintOutput("[*] hello")
	out.PrintError("[-] oops")

	assert.Equal(t, "[*] hello\n", stdout.String())
	assert.Equal(t, "[-] oops\n", stderr.String())
}

func TestToolFlag(t *testing.T) {
	assert.Equal(t, "repeater", ToolRepeater.String())
	assert.Equal(t, "unknown", ToolFlag(0).String())
	assert.Equal(t, ToolRepeater, ParseToolFlag("Repeater"))
	assert.Equal(t, ToolProxy, ParseToolFlag("???"))
}
