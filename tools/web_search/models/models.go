package models

// Source is one raw search hit before the research layer assigns citation labels.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Result is the normalized output of one search call: a formatted text body
// plus the sources it was built from, in rank order.
type Result struct {
	Content string   `json:"content"`
	Sources []Source `json:"sources"`
}
