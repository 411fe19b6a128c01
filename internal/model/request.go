package model

type ResolveConflictRequest struct {
	StepID int            `json:"step_id"`
	Action ConflictAction `json:"action"`
	Scope  ConflictScope  `json:"scope"`
}

type RestoreRequest struct {
	IDs []string `json:"ids"`
}

type RestoreFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type RestoreResponse struct {
	Restored []TrashEntry     `json:"restored"`
	Failed   []RestoreFailure `json:"failed"`
}

type IssueTokenRequest struct {
	Subject string `json:"subject"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}
