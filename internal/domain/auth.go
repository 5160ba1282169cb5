package domain

import "time"

// Subject is the authenticated principal signed into access tokens.
type Subject struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email,omitempty"`
	WorkspaceID string `json:"workspace_id"`
}

// Identity is a workspace member known to the identity lookup.
type Identity struct {
	UserID    string
	Email     string
	CreatedAt time.Time
}

// Challenge is the opaque reference handed to a client after a PIN was sent.
type Challenge struct {
	ID        string
	Email     string
	ExpiresAt time.Time
}

// TokenSet is the result of a successful code or refresh exchange.
type TokenSet struct {
	AccessToken  string
	TokenType    string
	ExpiresAt    time.Time
	RefreshToken string
}

// UserInfo is the userinfo response shape.
type UserInfo struct {
	Sub         string `json:"sub"`
	Email       string `json:"email,omitempty"`
	UserID      string `json:"userID"`
	WorkspaceID string `json:"workspaceID"`
}
