package llm

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// maxJSONValueLen - максимальная длина строкового значения JSON после усечения
	maxJSONValueLen = 200

	// binaryMaxSize - от бинарного тела оставляем только начало
	binaryMaxSize = 1024

	// base64Pattern - длинные base64 блобы (картинки, файлы) бесполезны для анализа
	base64Pattern = `[A-Za-z0-9+/]{100,}={0,2}`
)

var base64Regex = regexp.MustCompile(base64Pattern)

// PrepareContent уменьшает тело ответа перед отправкой модели.
// maxBytes <= 0 - тело уходит без изменений, как в исходном плагине.
func PrepareContent(body, contentType string, maxBytes int) string {
	if maxBytes <= 0 || len(body) <= maxBytes {
		return body
	}

	var reduced string
	switch contentKind(contentType, body) {
	case kindHTML:
		reduced = extractHTMLSecurityElements(body, maxBytes)
	case kindJSON:
		reduced = truncateJSONPreservingStructure(body, maxBytes)
	case kindBinary:
		reduced = truncateBinaryAggressively(body, contentType)
	default:
		reduced = body
	}

	if len(reduced) > maxBytes && base64Regex.MatchString(reduced) {
		reduced = maskBase64(reduced)
	}
	if len(reduced) > maxBytes {
		reduced = smartTruncateHeadTail(reduced, maxBytes)
	}
	return reduced
}

type kind int

const (
	kindText kind = iota
	kindHTML
	kindJSON
	kindBinary
)

func contentKind(contentType, body string) kind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	switch {
	case mediaType == "text/html", mediaType == "application/xhtml+xml":
		return kindHTML
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return kindJSON
	case strings.HasPrefix(mediaType, "image/"),
		strings.HasPrefix(mediaType, "video/"),
		strings.HasPrefix(mediaType, "audio/"),
		strings.HasPrefix(mediaType, "font/"),
		mediaType == "application/octet-stream",
		mediaType == "application/pdf",
		mediaType == "application/zip":
		return kindBinary
	}

	// Content-Type может отсутствовать - смотрим на само тело
	trimmed := strings.TrimSpace(body)
	lower := strings.ToLower(trimmed[:min(len(trimmed), 64)])
	switch {
	case strings.HasPrefix(lower, "<!doctype html"), strings.HasPrefix(lower, "<html"):
		return kindHTML
	case (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && json.Valid([]byte(trimmed)):
		return kindJSON
	case !utf8.ValidString(body):
		return kindBinary
	}
	return kindText
}

// truncateJSONPreservingStructure усекает строковые значения, сохраняя ключи и вложенность.
// При невалидном JSON - усечение голова/хвост.
func truncateJSONPreservingStructure(body string, maxBytes int) string {
	var data interface{}
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return smartTruncateHeadTail(body, maxBytes)
	}

	result, err := json.Marshal(truncateJSONValues(data, maxJSONValueLen))
	if err != nil {
		return smartTruncateHeadTail(body, maxBytes)
	}
	return string(result)
}

func truncateJSONValues(data interface{}, maxLen int) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			result[key] = truncateJSONValues(value, maxLen)
		}
		return result

	case []interface{}:
		result := make([]interface{}, len(v))
		for i, elem := range v {
			result[i] = truncateJSONValues(elem, maxLen)
		}
		return result

	case string:
		if len(v) <= maxLen {
			return v
		}
		truncated := truncateStringUTF8(v, maxLen)
		return truncated + fmt.Sprintf(" [TRUNCATED: %d chars]", len(v)-len(truncated))

	default:
		return v
	}
}

// maskBase64 заменяет валидные base64 блобы на плейсхолдер с размером
func maskBase64(body string) string {
	return base64Regex.ReplaceAllStringFunc(body, func(match string) string {
		if _, err := base64.StdEncoding.DecodeString(match); err != nil {
			return match
		}
		return fmt.Sprintf("[BASE64_DATA_%d_BYTES]", len(match)*3/4)
	})
}

func truncateBinaryAggressively(body, mimeType string) string {
	if len(body) <= binaryMaxSize {
		return body
	}
	head := truncateStringUTF8(body, binaryMaxSize)
	omitted := len(body) - len(head)
	return head + fmt.Sprintf("\n\n[TRUNCATED BINARY: %d bytes omitted - Content-Type: %s]", omitted, mimeType)
}

// smartTruncateHeadTail оставляет 2/3 лимита с начала и 1/3 с конца
func smartTruncateHeadTail(body string, maxBytes int) string {
	if len(body) <= maxBytes {
		return body
	}

	// длина маркера с запасом: число пропущенных байт не больше len(body)
	budget := maxBytes - len(headTailMarker(len(body)))
	if budget <= 0 {
		return truncateStringUTF8(body, maxBytes)
	}

	headLen := budget * 2 / 3
	tailLen := budget - headLen

	head := truncateStringUTF8(body, headLen)
	tail := body[len(body)-tailLen:]
	for len(tail) > 0 && !utf8.RuneStart(tail[0]) {
		tail = tail[1:]
	}
	return head + headTailMarker(len(body)-len(head)-len(tail)) + tail
}

func headTailMarker(omitted int) string {
	return fmt.Sprintf("\n\n[... TRUNCATED %d bytes ...]\n\n", omitted)
}

// truncateStringUTF8 обрезает строку до maxLen байт, не разрывая многобайтовые символы
func truncateStringUTF8(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen]
}
