package llm

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareContent_UnlimitedKeepsBody(t *testing.T) {
	body := strings.Repeat("a", 100000)
	assert.Equal(t, body, PrepareContent(body, "text/plain", 0))
	assert.Equal(t, body, PrepareContent(body, "text/plain", len(body)))
}

func TestPrepareContent_HTML(t *testing.T) {
	html := `<!DOCTYPE html><html><head><title>Admin</title>
<meta name="csrf-token" content="abc123">
<script src="/static/app.js"></script>
<script>var apiKey = "k";</script>
</head><body>
<!-- TODO: remove debug endpoint /internal/debug -->
<form action="/transfer" method="post">
  <input type="hidden" name="csrf" value="abc123">
  <input type="text" name="amount">
  <textarea name="note"></textarea>
</form>
<a href="/admin/users">users</a>
<iframe src="https://ads.test/frame"></iframe>
` + strings.Repeat("<p>filler paragraph</p>", 500) + `</body></html>`

	out := PrepareContent(html, "text/html; charset=utf-8", 4000)

	assert.LessOrEqual(t, len(out), 4000)
	assert.Contains(t, out, "[HTML SECURITY EXTRACT]")
	assert.Contains(t, out, "[TITLE] Admin")
	assert.Contains(t, out, "action: /transfer")
	assert.Contains(t, out, "method: POST")
	assert.Contains(t, out, "input [HIDDEN]: name=csrf type=hidden value=abc123")
	assert.Contains(t, out, "textarea: name=note")
	assert.Contains(t, out, "name=csrf-token content=abc123")
	assert.Contains(t, out, "src=/static/app.js")
	assert.Contains(t, out, `inline[1]: var apiKey = "k";`)
	assert.Contains(t, out, "a: /admin/users")
	assert.Contains(t, out, "src=https://ads.test/frame")
	assert.Contains(t, out, "TODO: remove debug endpoint")
	assert.NotContains(t, out, "filler paragraph")
}

func TestPrepareContent_JSON(t *testing.T) {
	doc := map[string]interface{}{
		"user":  map[string]interface{}{"id": 7, "role": "admin"},
		"blob":  strings.Repeat("x", 5000),
		"items": []interface{}{"a", strings.Repeat("y", 1000)},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	out := PrepareContent(string(raw), "application/json", 2000)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed), "structure must survive")
	assert.Equal(t, "admin", parsed["user"].(map[string]interface{})["role"])
	assert.Contains(t, parsed["blob"], "[TRUNCATED: 4800 chars]")
	assert.Len(t, parsed["items"], 2)
}

func TestPrepareContent_JSONSniffedWithoutContentType(t *testing.T) {
	raw := `{"token":"` + strings.Repeat("z", 3000) + `"}`
	out := PrepareContent(raw, "", 1000)
	assert.True(t, json.Valid([]byte(out)))
}

func TestPrepareContent_Binary(t *testing.T) {
	body := string([]byte{0x89, 'P', 'N', 'G'}) + strings.Repeat("\x00\xff", 4000)
	out := PrepareContent(body, "image/png", 2000)

	assert.Contains(t, out, "[TRUNCATED BINARY:")
	assert.Contains(t, out, "image/png")
	assert.LessOrEqual(t, len(out), 2000)
}

func TestPrepareContent_Base64Masking(t *testing.T) {
	blob := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("image-bytes", 300)))
	body := "prefix " + blob + " suffix"

	out := PrepareContent(body, "text/plain", 500)

	assert.Contains(t, out, "[BASE64_DATA_")
	assert.Contains(t, out, "prefix")
	assert.Contains(t, out, "suffix")
}

func TestPrepareContent_HeadTail(t *testing.T) {
	body := "HEAD" + strings.Repeat("-", 10000) + "TAIL"
	out := PrepareContent(body, "text/plain", 600)

	assert.LessOrEqual(t, len(out), 600)
	assert.True(t, strings.HasPrefix(out, "HEAD"))
	assert.True(t, strings.HasSuffix(out, "TAIL"))
	assert.Contains(t, out, "TRUNCATED")
}

func TestSmartTruncateHeadTail_ReportsOmittedBytes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		maxBytes int
	}{
		{"ascii", strings.Repeat("x", 10000), 600},
		{"multibyte", strings.Repeat("я", 5000), 601},
		{"small limit", strings.Repeat("z", 100000), 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := smartTruncateHeadTail(tt.body, tt.maxBytes)
			require.LessOrEqual(t, len(out), tt.maxBytes)

			start := strings.Index(out, "\n\n[... TRUNCATED ")
			require.GreaterOrEqual(t, start, 0)
			end := strings.Index(out, " bytes ...]\n\n")
			require.Greater(t, end, start)

			omitted, err := strconv.Atoi(out[start+len("\n\n[... TRUNCATED "):end])
			require.NoError(t, err)

			kept := len(out) - len(headTailMarker(omitted))
			assert.Equal(t, len(tt.body)-kept, omitted)
			assert.True(t, utf8.ValidString(out))
		})
	}
}

func TestTruncateStringUTF8(t *testing.T) {
	s := "привет"
	for n := 0; n <= len(s); n++ {
		out := truncateStringUTF8(s, n)
		assert.True(t, utf8.ValidString(out), "n=%d", n)
		assert.LessOrEqual(t, len(out), n)
	}
}

func TestContentKind(t *testing.T) {
	assert.Equal(t, kindHTML, contentKind("text/html; charset=utf-8", ""))
	assert.Equal(t, kindHTML, contentKind("", "  <!DOCTYPE html><html></html>"))
	assert.Equal(t, kindJSON, contentKind("application/problem+json", ""))
	assert.Equal(t, kindBinary, contentKind("application/octet-stream", ""))
	assert.Equal(t, kindBinary, contentKind("", "\xff\xfe\xfd"))
	assert.Equal(t, kindText, contentKind("text/plain", "hello"))
	assert.Equal(t, kindText, contentKind("", "{not json"))
}
