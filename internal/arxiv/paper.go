// Package arxiv defines the domain types shared by the explorer: partitions,
// selections, papers, the category taxonomy, and the error taxonomy.
package arxiv

// MaxTextLength caps the text handed to the embedding model, in characters.
const MaxTextLength = 2000

// Paper is one arXiv record as stored in a partition.
type Paper struct {
	ArxivID        string   `json:"arxiv_id"`
	Category       string   `json:"primary_subject"`
	SubmissionDate string   `json:"submission_date"`
	Title          string   `json:"title"`
	Abstract       string   `json:"abstract"`
	Authors        []string `json:"authors"`

	// Embedding is populated only when a paper is part of a loaded corpus.
	Embedding []float32 `json:"-"`
}

// EmbeddingText is the text the model embeds for this paper: the abstract,
// or the title when the abstract is empty, truncated to MaxTextLength runes.
func (p Paper) EmbeddingText() string {
	text := p.Abstract
	if text == "" {
		text = p.Title
	}
	r := []rune(text)
	if len(r) > MaxTextLength {
		return string(r[:MaxTextLength])
	}
	return text
}
