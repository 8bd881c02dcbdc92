package delivery

import "github.com/axt-team/axtgate/pkg/event"

// Markdown renders a templated markdown message.
type Markdown struct {
	Content          string              `json:"content,omitempty"`
	CustomTemplateID string              `json:"custom_template_id,omitempty"`
	Params           map[string][]string `json:"params,omitempty"`
}

// Keyboard attaches interactive buttons to a message.
type Keyboard struct {
	Content KeyboardContent `json:"content"`
}

type KeyboardContent struct {
	Rows []map[string]interface{} `json:"rows"`
}

// Ark is a structured card message.
type Ark struct {
	TemplateID string                   `json:"template_id"`
	KV         []map[string]interface{} `json:"kv"`
}

// Media references a previously uploaded rich-media resource.
type Media struct {
	FileUUID string `json:"file_uuid,omitempty"`
	FileInfo string `json:"file_info,omitempty"`
	TTL      int    `json:"ttl,omitempty"`
	ID       string `json:"id,omitempty"`
}

// Intent is the wire payload for one outgoing message. MsgID links the
// send to the inbound message it replies to; the platform rejects
// unsolicited sends without it on most channels.
type Intent struct {
	Content  string    `json:"content"`
	MsgType  int       `json:"msg_type"`
	MsgID    string    `json:"msg_id"`
	MsgSeq   int       `json:"msg_seq"`
	EventID  string    `json:"event_id,omitempty"`
	Markdown *Markdown `json:"markdown,omitempty"`
	Keyboard *Keyboard `json:"keyboard,omitempty"`
	Ark      *Ark      `json:"ark,omitempty"`
	Media    *Media    `json:"media,omitempty"`
}

// Reply builds a plain-text reply to an inbound message.
func Reply(ev *event.Event, content string) Intent {
	return Intent{
		Content: content,
		MsgID:   ev.MsgID,
		MsgSeq:  1,
	}
}
