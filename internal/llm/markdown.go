package llm

import "strings"

// StripFences removes a markdown code fence wrapping the whole response.
// Models sometimes return the requested markdown inside ```markdown fences;
// the stored draft should be the bare document.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}

	endIdx := -1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	if endIdx <= 0 {
		return text
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}
