package jwt

import (
	"encoding/json"
	"strings"
)

// ClientAuthMessage is the first frame a client sends over a channel:
// { "type":"auth", "token":"Bearer <jwt>" }
type ClientAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// AuthFrame builds the first frame for a raw token.
func AuthFrame(token string) ([]byte, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrEmptyToken
	}
	if !strings.HasPrefix(token, "Bearer ") {
		token = "Bearer " + token
	}
	return json.Marshal(ClientAuthMessage{Type: "auth", Token: token})
}
