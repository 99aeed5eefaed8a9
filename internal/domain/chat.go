package domain

// ChatRole identifies who wrote a chat message
type ChatRole string

const (
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleUser      ChatRole = "user"
)

// ChatMessage is one transcript entry
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// DefaultGreeting opens every chat transcript
const DefaultGreeting = "Hi! I'm here to help you refactor this code. Ask me anything!"
