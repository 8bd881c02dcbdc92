package event

import "encoding/json"

// Operation codes used on the webhook wire.
const (
	OpDispatch   = 0  // server push of a platform event
	OpAck        = 12 // HTTP callback acknowledgement (our reply)
	OpValidation = 13 // platform verifying our endpoint
)

// Type tags carried under OpDispatch.
const (
	TypeGuildMessage   = "MESSAGE_CREATE"        // member-visible channel message
	TypeGuildMention   = "AT_MESSAGE_CREATE"     // channel message mentioning the bot
	TypeGuildDirect    = "DIRECT_MESSAGE_CREATE" // guild direct message
	TypeGroupMessage   = "GROUP_AT_MESSAGE_CREATE"
	TypePrivateMessage = "C2C_MESSAGE_CREATE"
	TypeGuildCreate    = "GUILD_CREATE"
	TypeGuildUpdate    = "GUILD_UPDATE"
	TypeGuildDelete    = "GUILD_DELETE"
)

// Envelope is the raw inbound webhook payload. It is immutable once
// parsed; one envelope lives for one HTTP request.
type Envelope struct {
	ID   string `json:"id"`
	Op   int    `json:"op"`
	Seq  int64  `json:"s"`
	Type string `json:"t"`
	Data *Node  `json:"d"`
}

// ParseEnvelope decodes the raw webhook body.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		env.Data = nullNode
	}
	return &env, nil
}

// IsDispatch reports whether the envelope carries a platform event.
func (e *Envelope) IsDispatch() bool { return e.Op == OpDispatch }

// IsValidation reports whether the envelope is an endpoint challenge.
func (e *Envelope) IsValidation() bool { return e.Op == OpValidation }
