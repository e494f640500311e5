package research

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/prosearch/models"
)

// researchTopic derives the topic under investigation from the conversation.
// A single message is used verbatim, otherwise the exchange is flattened into
// role-prefixed lines so follow-up questions keep their context.
func researchTopic(messages []models.Message) string {
	if len(messages) == 0 {
		return ""
	}
	if len(messages) == 1 {
		return messages[len(messages)-1].Content
	}
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleUser:
			fmt.Fprintf(&b, "User: %s\n", msg.Content)
		case models.RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n", msg.Content)
		}
	}
	return b.String()
}
