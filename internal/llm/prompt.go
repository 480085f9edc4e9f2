package llm

import "fmt"

// BuildPrompt собирает фиксированный промпт с URL и телом ответа.
// Текст менять осторожно: от него напрямую зависит качество ответа модели.
func BuildPrompt(url, content string) string {
	return "Analyze the following HTTP response content for OWASP vulnerabilities. " +
		"Look for XSS, SSRF, etc and give payloads [with the given url] to assist in identifying vulnerabilities." +
		"Be serious and truly look at the content for web app vulns for bug bounties." +
		"Make sure you stay within the scope of the URL of the ACTUAL response host, nothing more nothing less." +
		fmt.Sprintf("Here is the HTTP response content for the URL %s:\n\n%s", url, content)
}
