package dataagent

import (
	"encoding/json"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/fabric-agent/backend/internal/model/agent"
)

// Transcript converts remote messages into eino messages, preserving order.
// Messages without a text part carry nothing readable and are skipped.
func Transcript(messages []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		text, ok := m.FirstText()
		if !ok {
			continue
		}

		var role schema.RoleType
		switch m.Role {
		case "assistant":
			role = schema.Assistant
		case "user":
			role = schema.User
		default:
			continue
		}

		out = append(out, &schema.Message{Role: role, Content: text})
	}
	return out
}

// FinalAnswer returns the text of the first assistant message carrying text.
// The remote lists newest first, so this is the latest answer.
func FinalAnswer(messages []Message) string {
	for _, msg := range Transcript(messages) {
		if msg.Role == schema.Assistant {
			return msg.Content
		}
	}
	return ""
}

func stepRecords(steps []Step) *agent.RecordList {
	list := &agent.RecordList{Data: make([]json.RawMessage, 0, len(steps))}
	for _, s := range steps {
		list.Data = append(list.Data, s.Raw)
	}
	return list
}

func messageRecords(messages []Message) *agent.RecordList {
	list := &agent.RecordList{Data: make([]json.RawMessage, 0, len(messages))}
	for _, m := range messages {
		list.Data = append(list.Data, m.Raw)
	}
	return list
}
