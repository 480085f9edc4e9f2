package capture

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

var (
	crlfTerminator = []byte("\r\n\r\n")
	lfTerminator   = []byte("\n\n")
)

// BodyOffset возвращает смещение тела в сыром HTTP сообщении: позицию сразу после
// первой пустой строки. Если заголовки не завершены, тела нет и возвращается len(raw).
func BodyOffset(raw []byte) int {
	crlf := bytes.Index(raw, crlfTerminator)
	lf := bytes.Index(raw, lfTerminator)

	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return crlf + len(crlfTerminator)
	case lf >= 0:
		return lf + len(lfTerminator)
	default:
		return len(raw)
	}
}

// ExtractBody отдаёт тело как есть: без де-чанкинга и распаковки
func ExtractBody(raw []byte) []byte {
	return raw[BodyOffset(raw):]
}

// ParseResponse разбирает статусную строку и заголовки сырого ответа
func ParseResponse(raw []byte) (int, map[string]string, error) {
	head := raw[:BodyOffset(raw)]
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(head)), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("parsing response head: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode, HeadersToMap(resp.Header), nil
}

// URLFromRequest восстанавливает абсолютный URL по стартовой строке и Host
func URLFromRequest(raw []byte, scheme string) (string, error) {
	head := raw[:BodyOffset(raw)]
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(head)))
	if err != nil {
		return "", fmt.Errorf("parsing request head: %w", err)
	}

	if req.URL.IsAbs() {
		return req.URL.String(), nil
	}
	if req.Host == "" {
		return "", fmt.Errorf("request has no Host header")
	}
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + req.Host + req.URL.RequestURI(), nil
}

// BuildRawResponse собирает ответ в том виде, в котором его видит хост.
// Тело уже декодировано из chunked, поэтому Transfer-Encoding выбрасывается.
func BuildRawResponse(proto string, statusCode int, headers http.Header, body []byte) []byte {
	if proto == "" {
		proto = "HTTP/1.1"
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + 256)
	fmt.Fprintf(&buf, "%s %d %s\r\n", proto, statusCode, http.StatusText(statusCode))

	h := headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Del("Transfer-Encoding")
	if h.Get("Content-Length") != "" {
		h.Set("Content-Length", strconv.Itoa(len(body)))
	}
	_ = h.Write(&buf)

	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes()
}

// BuildRawResponseFromMap - вариант для логов, где заголовки хранятся плоской картой
func BuildRawResponseFromMap(statusCode int, headers map[string]string, body []byte) []byte {
	h := make(http.Header, len(headers))
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Set(k, headers[k])
	}
	return BuildRawResponse("HTTP/1.1", statusCode, h, body)
}

// HeadersToMap сворачивает http.Header в map[string]string (первое значение)
func HeadersToMap(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for k, v := range headers {
		if len(v) > 0 {
			result[k] = v[0]
		}
	}
	return result
}

// ContentType достаёт Content-Type без учёта регистра ключа
func ContentType(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "Content-Type") {
			return v
		}
	}
	return ""
}
