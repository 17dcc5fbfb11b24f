package domain

// Chunk is a page/section-scoped span of manual text used as a retrieval
// unit. Identity is ID; Text, SectionTitle and StartPage are immutable after
// load. Score is recomputed per query by the reranker and never persisted.
type Chunk struct {
	ID           string  `json:"id"`
	Text         string  `json:"text"`
	SectionTitle string  `json:"section_title"`
	StartPage    int     `json:"start_page"`
	Score        float64 `json:"score,omitempty"`
}

// Rect is a pixel-space bounding box [x0,y0,x1,y1].
type Rect struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// ManualImage is an image extracted from the source document, read-only
// during retrieval. Path is unique within a manual.
type ManualImage struct {
	Path       string `json:"path"`
	PageNum    int    `json:"page_num"`
	NearbyText string `json:"nearby_text"`
	Position   *Rect  `json:"position,omitempty"`
}

// SimilarityResult is one visual-ranking hit; Score is cosine similarity
// in [-1,1].
type SimilarityResult struct {
	ImagePath string  `json:"image_path"`
	Score     float64 `json:"score"`
}

// TextContext is one text entry of an assembled context bundle.
type TextContext struct {
	Text         string  `json:"text"`
	SectionTitle string  `json:"section_title"`
	StartPage    int     `json:"start_page"`
	Score        float64 `json:"score"`
}

// ImageContext is one image entry of an assembled context bundle.
type ImageContext struct {
	ImagePath  string  `json:"image_path"`
	PageNum    int     `json:"page_num"`
	NearbyText string  `json:"nearby_text"`
	Score      float64 `json:"score"`
}

// ContextBundle is the fused set of text and image evidence assembled for
// one query. Constructed fresh per query; becomes the session's current
// context for follow-up resolution.
type ContextBundle struct {
	TextContexts  []TextContext  `json:"text_contexts"`
	ImageContexts []ImageContext `json:"image_contexts"`
}

// Empty reports whether the bundle carries no evidence at all.
func (b ContextBundle) Empty() bool {
	return len(b.TextContexts) == 0 && len(b.ImageContexts) == 0
}

// Pages returns the distinct start pages of the text contexts in
// first-seen order.
func (b ContextBundle) Pages() []int {
	seen := make(map[int]struct{}, len(b.TextContexts))
	out := make([]int, 0, len(b.TextContexts))
	for _, ctx := range b.TextContexts {
		if _, ok := seen[ctx.StartPage]; ok {
			continue
		}
		seen[ctx.StartPage] = struct{}{}
		out = append(out, ctx.StartPage)
	}
	return out
}

// Answer is the caller-facing response contract. FigureNumbers are opaque
// identifiers resolved by the front end; they may be ints or strings.
type Answer struct {
	Answer        string `json:"answer"`
	PageNumbers   []int  `json:"page_numbers"`
	FigureNumbers []any  `json:"figure_numbers"`
}
