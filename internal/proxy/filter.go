package proxy

import (
	"net/url"
	"path"
	"strings"
)

// StaticFilter не пускает в историю статику: картинки, шрифты, стили, медиа.
// Такие ответы не несут ничего интересного для анализа.
type StaticFilter struct {
	staticExtensions     map[string]struct{}
	contentTypeBlacklist []string
	staticFiles          []string
}

// NewStaticFilter создает фильтр со стандартными списками
func NewStaticFilter() *StaticFilter {
	extensions := []string{
		"css", "png", "jpg", "jpeg", "gif", "ico", "svg", "webp", "bmp",
		"woff", "woff2", "ttf", "eot", "otf",
		"mp3", "mp4", "avi", "mov", "wmv", "flv", "webm",
		"zip", "rar", "tar", "gz",
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		set[ext] = struct{}{}
	}

	return &StaticFilter{
		staticExtensions: set,
		contentTypeBlacklist: []string{
			"image/", "video/", "audio/",
			"font/", "application/font", "text/css",
		},
		staticFiles: []string{
			"/favicon.ico", "/browserconfig.xml",
		},
	}
}

// ShouldSkip определяет, нужно ли пропустить обмен, и возвращает причину
func (f *StaticFilter) ShouldSkip(method, rawURL, contentType string) (bool, string) {
	if method == "OPTIONS" {
		return true, "technical method: " + method
	}

	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	lowerPath := strings.ToLower(p)

	// 1. Статические файлы по расширению
	if ext := strings.TrimPrefix(path.Ext(lowerPath), "."); ext != "" {
		if _, ok := f.staticExtensions[ext]; ok {
			return true, "static file extension: ." + ext
		}
	}

	// 2. Известные служебные файлы
	for _, file := range f.staticFiles {
		if lowerPath == file {
			return true, "known static file: " + file
		}
	}

	// 3. Content-Type
	lowerCT := strings.ToLower(contentType)
	for _, ct := range f.contentTypeBlacklist {
		if strings.HasPrefix(lowerCT, ct) {
			return true, "blacklisted content-type: " + ct
		}
	}

	return false, ""
}
