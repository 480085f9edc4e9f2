package llm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	commentRegex         = regexp.MustCompile(`(?s)<!--(.+?)-->`)
	securityKeywordRegex = regexp.MustCompile(`(?i)debug|todo|fixme|hack|xxx|bug|security|auth|token|csrf|password|secret|key|deprecated|remove|temporary`)
)

// SecurityElementExtractor вытаскивает из HTML то, что интересно при поиске уязвимостей:
// формы (CSRF, валидация), meta, скрипты (XSS), ссылки, iframe (clickjacking), комментарии.
type SecurityElementExtractor struct {
	maxForms       int
	maxScripts     int
	maxLinks       int
	maxMetaTags    int
	maxComments    int
	maxElementSize int
}

// NewSecurityElementExtractor - лимиты по умолчанию
func NewSecurityElementExtractor() *SecurityElementExtractor {
	return &SecurityElementExtractor{
		maxForms:       20,
		maxScripts:     30,
		maxLinks:       20,
		maxMetaTags:    15,
		maxComments:    10,
		maxElementSize: 500,
	}
}

// extractHTMLSecurityElements заменяет большой HTML выжимкой элементов.
// Если разбор не удался - усечение голова/хвост.
func extractHTMLSecurityElements(htmlBody string, maxBytes int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return smartTruncateHeadTail(htmlBody, maxBytes)
	}

	e := NewSecurityElementExtractor()
	sections := []string{
		"[HTML SECURITY EXTRACT]",
		e.extractTitle(doc),
		e.extractForms(doc),
		e.extractMetaTags(doc),
		e.extractScripts(doc),
		e.extractLinks(doc),
		e.extractIframes(doc),
		e.extractSecurityComments(htmlBody),
		fmt.Sprintf("[ORIGINAL SIZE: %d bytes]", len(htmlBody)),
	}

	var result []string
	for _, section := range sections {
		if section != "" {
			result = append(result, section)
		}
	}
	return strings.Join(result, "\n")
}

func (e *SecurityElementExtractor) extractTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return ""
	}
	return "[TITLE] " + truncateValue(title, e.maxElementSize)
}

func (e *SecurityElementExtractor) extractForms(doc *goquery.Document) string {
	var forms []string

	doc.Find("form").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= e.maxForms {
			return false
		}

		action, _ := s.Attr("action")
		method, _ := s.Attr("method")
		if method == "" {
			method = "GET"
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Form #%d:\n", i+1)
		fmt.Fprintf(&b, "  action: %s\n", truncateValue(action, e.maxElementSize))
		fmt.Fprintf(&b, "  method: %s\n", strings.ToUpper(method))

		s.Find("input").Each(func(_ int, input *goquery.Selection) {
			name, _ := input.Attr("name")
			inputType, _ := input.Attr("type")
			value, _ := input.Attr("value")

			hidden := ""
			if strings.EqualFold(inputType, "hidden") {
				hidden = " [HIDDEN]"
			}
			fmt.Fprintf(&b, "    input%s: name=%s type=%s value=%s\n",
				hidden, truncateValue(name, 100), truncateValue(inputType, 50), truncateValue(value, 100))
		})
		s.Find("textarea, select").Each(func(_ int, field *goquery.Selection) {
			name, _ := field.Attr("name")
			fmt.Fprintf(&b, "    %s: name=%s\n", goquery.NodeName(field), truncateValue(name, 100))
		})

		forms = append(forms, b.String())
		return true
	})

	if len(forms) == 0 {
		return ""
	}
	return "[FORMS]\n" + strings.Join(forms, "\n")
}

func (e *SecurityElementExtractor) extractMetaTags(doc *goquery.Document) string {
	var metaTags []string

	doc.Find("meta").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= e.maxMetaTags {
			return false
		}

		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		httpEquiv, _ := s.Attr("http-equiv")

		switch {
		case name != "":
			metaTags = append(metaTags, fmt.Sprintf("  name=%s content=%s",
				truncateValue(name, 100), truncateValue(content, e.maxElementSize)))
		case httpEquiv != "":
			metaTags = append(metaTags, fmt.Sprintf("  http-equiv=%s content=%s",
				truncateValue(httpEquiv, 100), truncateValue(content, e.maxElementSize)))
		}
		return true
	})

	if len(metaTags) == 0 {
		return ""
	}
	return "[META TAGS]\n" + strings.Join(metaTags, "\n")
}

// extractScripts - внешние скрипты списком, инлайновые только считаем и показываем начало
func (e *SecurityElementExtractor) extractScripts(doc *goquery.Document) string {
	var scripts []string
	inline := 0

	doc.Find("script").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= e.maxScripts {
			return false
		}

		if src, ok := s.Attr("src"); ok && src != "" {
			script := fmt.Sprintf("  script[%d]: src=%s", i+1, truncateValue(src, e.maxElementSize))
			if integrity, ok := s.Attr("integrity"); ok {
				script += " integrity=" + truncateValue(integrity, 100)
			}
			scripts = append(scripts, script)
			return true
		}

		code := strings.TrimSpace(s.Text())
		if code != "" {
			inline++
			scripts = append(scripts, fmt.Sprintf("  inline[%d]: %s", inline, truncateValue(code, e.maxElementSize)))
		}
		return true
	})

	if len(scripts) == 0 {
		return ""
	}
	return "[SCRIPTS]\n" + strings.Join(scripts, "\n")
}

func (e *SecurityElementExtractor) extractLinks(doc *goquery.Document) string {
	var links []string

	doc.Find("a[href], link[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= e.maxLinks {
			return false
		}
		href, _ := s.Attr("href")
		links = append(links, fmt.Sprintf("  %s: %s", goquery.NodeName(s), truncateValue(href, e.maxElementSize)))
		return true
	})

	if len(links) == 0 {
		return ""
	}
	return "[LINKS]\n" + strings.Join(links, "\n")
}

func (e *SecurityElementExtractor) extractIframes(doc *goquery.Document) string {
	var iframes []string

	doc.Find("iframe").Each(func(i int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		iframes = append(iframes, fmt.Sprintf("  iframe[%d]: src=%s", i+1, truncateValue(src, e.maxElementSize)))
	})

	if len(iframes) == 0 {
		return ""
	}
	return "[IFRAMES]\n" + strings.Join(iframes, "\n")
}

// extractSecurityComments ищет комментарии в исходном HTML: goquery не отдаёт comment-ноды через Find
func (e *SecurityElementExtractor) extractSecurityComments(htmlBody string) string {
	var comments []string

	for _, match := range commentRegex.FindAllStringSubmatch(htmlBody, -1) {
		comment := strings.TrimSpace(match[1])
		if !securityKeywordRegex.MatchString(comment) {
			continue
		}
		comments = append(comments, "  "+truncateValue(comment, e.maxElementSize))
		if len(comments) >= e.maxComments {
			break
		}
	}

	if len(comments) == 0 {
		return ""
	}
	return "[SECURITY COMMENTS]\n" + strings.Join(comments, "\n")
}

func truncateValue(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return truncateStringUTF8(s, maxLen) + "..."
}
