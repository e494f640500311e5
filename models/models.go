package models

// Message roles used in the research conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in the research conversation.
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source is one gathered web source. Label and ShortURL carry the
// branch-local "[n]" marker assigned when the source was gathered; URL is the
// real link. Sources are comparable records: deduplication during answer
// finalization is by full value equality, not just URL.
type Source struct {
	Label    string `json:"label"`
	ShortURL string `json:"short_url"`
	URL      string `json:"value"`
	Title    string `json:"title"`
}
