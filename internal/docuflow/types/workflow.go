package types

type WorkflowRequest struct {
	Text string `json:"text"`
}

type WorkflowResponse struct {
	OK             bool    `json:"ok"`
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
	Action         string  `json:"action"`
	Status         string  `json:"status"`
	Message        string  `json:"message,omitempty"`
}

type AuditEntry struct {
	Seq        int64  `json:"seq"`
	Timestamp  string `json:"timestamp"`
	Role       string `json:"role"`
	Operation  string `json:"operation"`
	DocumentID string `json:"document_id,omitempty"`
	Decision   string `json:"decision"`
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason,omitempty"`
}

type AuditListResponse struct {
	OK      bool         `json:"ok"`
	Entries []AuditEntry `json:"entries"`
}
