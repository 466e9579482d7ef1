package models

// SearchResult represents a single ranked frame hit.
type SearchResult struct {
	Episode    string  `json:"episode"`
	Frame      string  `json:"frame"`
	Path       string  `json:"path"`
	Timestamp  float64 `json:"timestamp"`
	Score      float64 `json:"score"`
	Caption    string  `json:"caption,omitempty"`
	Characters string  `json:"characters,omitempty"`
	ImageURL   string  `json:"image_url"`
	ThumbURL   string  `json:"thumb_url"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
	Mode      SearchMode      `json:"mode"`
}

// CharacterCount is one row of the character frequency table.
type CharacterCount struct {
	Character string `json:"character"`
	Frames    int64  `json:"frames"`
}
