package types

type SearchRequest struct {
	Query    string  `json:"query"`
	K        int     `json:"k,omitempty"`
	MinScore float32 `json:"min_score,omitempty"`
	Hybrid   bool    `json:"hybrid,omitempty"`
}

type SearchResult struct {
	ID      string   `json:"id"`
	Content string   `json:"content"`
	Labels  []string `json:"labels,omitempty"`

	// Score is the cosine similarity of the result to the query.
	Score float32 `json:"score"`

	// KeywordScore and CombinedScore are populated only for hybrid searches.
	KeywordScore  float32 `json:"keyword_score,omitempty"`
	CombinedScore float32 `json:"combined_score,omitempty"`
}

type SearchResponse struct {
	OK         bool           `json:"ok"`
	Results    []SearchResult `json:"results"`
	ServerTime string         `json:"server_time"`
}
