package usecase

import "strings"

// Model output for keyword extraction tends to arrive wrapped in chatty
// framing despite the prompt. The cleanup is a fixed table of leading
// prefixes to strip plus intro phrases whose trailing colon marks where
// the real list starts, applied in order.
var keywordPrefixes = []string{
	"Here are", "These are", "The technical", "Technical key",
	"Key terms", "Terms:", "1.", "•", "-", "*",
}

var keywordIntroPhrases = []string{
	"technical key terms", "key terms", "terms extracted",
	"extracted from", "from the text", "that appear", "would appear",
}

// cleanKeywords strips the known framing from a keyword-extraction
// response, leaving the bare comma-separated term list.
func cleanKeywords(raw string) string {
	cleaned := strings.TrimSpace(raw)

	for _, prefix := range keywordPrefixes {
		if strings.HasPrefix(cleaned, prefix) {
			cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, prefix))
		}
	}

	for _, phrase := range keywordIntroPhrases {
		idx := strings.Index(strings.ToLower(cleaned), phrase)
		if idx < 0 {
			continue
		}
		colon := strings.Index(cleaned[idx:], ":")
		if colon < 0 {
			continue
		}
		cleaned = strings.TrimSpace(cleaned[idx+colon+1:])
	}

	return cleaned
}
