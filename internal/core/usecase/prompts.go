package usecase

import (
	"fmt"
	"strings"

	"github.com/manualqa/manual-assistant/internal/core/domain"
)

func buildExpansionPrompt(query string) string {
	return fmt.Sprintf(`I need to expand this search query to improve retrieval results: %q

Please generate:
1. 2-3 synonymous ways to phrase the same query
2. 3-4 related keywords that could help in document retrieval
3. Any potentially disambiguating terms if the query is unclear

Format the output as a single line with all terms separated by spaces.
Only include relevant terms, no explanations or other text.`, query)
}

func buildDescriptionPrompt() string {
	return "Describe briefly and technically what component of the vehicle dashboard is shown in this image. " +
		"Be specific and use technical terms. Don't explain the component, just describe it."
}

func buildKeywordsPrompt(description string) string {
	return "Extract exactly 3-5 technical key terms from this text that appear in the official vehicle manual. " +
		"Return ONLY the terms as a comma-separated list with NO introductory text, NO numbering, and NO bullet points: " +
		description
}

func buildAnswerPrompt(query, contextText string) string {
	return fmt.Sprintf(`Answer the user question using only the document context below.
If the context doesn't contain enough information to answer, say you don't have enough information.
Always cite the page numbers from the context you used. Be concise.

Format your response as a valid JSON object with these fields:
- "answer": the answer text
- "page_numbers": an array of page numbers that contain relevant information
- "figure_numbers": an array of figure references if any are mentioned in the context

Return ONLY the JSON object without any other text or code formatting.

%s

User Question: %q`, contextText, query)
}

func buildComponentPrompt(description, contextText string) string {
	return fmt.Sprintf(`Based on the following document context about the vehicle dashboard:

%s

Answer this user question: %q

Format your response as a valid JSON object with these fields:
- "answer": an expert yet conversational description of this dashboard component. Cover its name, function, how it enhances the driving experience, and any unique features that distinguish it. Be very concise and don't mention that you have used provided context.
- "page_numbers": an array of page numbers that contain relevant information
- "figure_numbers": an array of figure references if any are mentioned in the context

Return ONLY the JSON object without any other text or code formatting.`, contextText, description)
}

// formatContextText renders an assembled bundle the way the model prompt
// expects it: numbered text contexts with page and section, then the
// ranked images with their captions.
func formatContextText(bundle domain.ContextBundle) string {
	var b strings.Builder
	b.WriteString("Document Context:\n\n")
	for i, ctx := range bundle.TextContexts {
		fmt.Fprintf(&b, "[Context %d - Page %d - %s]\n%s\n\n", i+1, ctx.StartPage, ctx.SectionTitle, ctx.Text)
	}
	if len(bundle.ImageContexts) > 0 {
		b.WriteString("Relevant Images:\n\n")
		for i, img := range bundle.ImageContexts {
			fmt.Fprintf(&b, "[Image %d - Page %d]\nDescription: %s\n\n", i+1, img.PageNum, img.NearbyText)
		}
	}
	return strings.TrimSpace(b.String())
}
