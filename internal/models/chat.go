package models

// ChatMessage is one broadcast chat message. Timestamp is epoch milliseconds.
type ChatMessage struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
