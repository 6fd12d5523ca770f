package models

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Label returns the prefix used when a turn is rendered into a transcript.
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Turn is a single utterance in a conversation. Turns are append-only.
type Turn struct {
	Role    Role   `json:"role"`
	Text    string `json:"text"`
	Ordinal int64  `json:"timestamp_ordinal"`
}

// Answer is the result of one orchestrated question.
type Answer struct {
	Text        string   `json:"answer"`
	UsedContext []string `json:"used_context"`
}
