package types

type IngestRequest struct {
	ID       string            `json:"id,omitempty"` // assigned by the server when empty
	Content  string            `json:"content"`
	Labels   []string          `json:"labels,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type IngestResponse struct {
	OK         bool   `json:"ok"`
	ID         string `json:"id"`
	Updated    bool   `json:"updated"` // true when an existing document was re-ingested
	ServerTime string `json:"server_time"`
}

type DocumentResponse struct {
	OK        bool              `json:"ok"`
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Labels    []string          `json:"labels,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

type DeleteResponse struct {
	OK      bool   `json:"ok"`
	ID      string `json:"id"`
	Removed bool   `json:"removed"`
}
