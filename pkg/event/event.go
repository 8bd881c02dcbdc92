package event

import (
	"fmt"
	"strings"

	"github.com/axt-team/axtgate/pkg/logger"
)

// Kind is the classified variant of an inbound event.
type Kind int

const (
	// KindGeneric is the fallthrough for dispatch events the table does
	// not know. Generic events carry raw fields but cannot be replied to.
	KindGeneric Kind = iota
	KindGroupMessage
	KindPrivateMessage
	KindGuildMessage
	KindDirectMessage
	KindGuildLifecycle
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindGroupMessage:
		return "group_message"
	case KindPrivateMessage:
		return "private_message"
	case KindGuildMessage:
		return "guild_message"
	case KindDirectMessage:
		return "direct_message"
	case KindGuildLifecycle:
		return "guild_lifecycle"
	case KindValidation:
		return "validation"
	default:
		return "generic"
	}
}

// IsMessage reports whether the kind carries user content the command
// pipeline should route.
func (k Kind) IsMessage() bool {
	switch k {
	case KindGroupMessage, KindPrivateMessage, KindGuildMessage, KindDirectMessage:
		return true
	}
	return false
}

// ReplyTarget is the addressing of an event's reply. Exactly one target
// is populated for message variants: the group, the channel+guild pair,
// the guild (for direct messages), or the user.
type ReplyTarget struct {
	GroupID   string
	ChannelID string
	GuildID   string
	UserID    string
}

// IsZero reports whether no target is set (generic / lifecycle events).
func (t ReplyTarget) IsZero() bool {
	return t.GroupID == "" && t.ChannelID == "" && t.GuildID == "" && t.UserID == ""
}

// Event is one classified inbound event.
type Event struct {
	Kind     Kind
	Envelope *Envelope

	// MsgID is the platform message id, used both as the inbound unique
	// key and as the passive-reply reference on outbound sends.
	MsgID    string
	Content  string
	SenderID string
	Target   ReplyTarget

	// Mention marks the channel-mention variant (self-mention stripped).
	Mention bool

	// Validation challenge fields.
	PlainToken string
	EventTS    string

	// Guild lifecycle extras.
	GuildName    string
	GuildOwnerID string
}

// Classifier turns raw envelopes into events. It knows the bot's own
// mention marker so channel mentions can be normalized.
type Classifier struct {
	selfMention string
}

// NewClassifier builds a classifier for the given bot account id.
func NewClassifier(botQQ string) *Classifier {
	c := &Classifier{}
	if botQQ != "" {
		c.selfMention = fmt.Sprintf("<@!%s>", botQQ)
	}
	return c
}

// Classify selects the concrete variant for an envelope. It is total:
// every envelope maps to exactly one variant, with unknown dispatch tags
// falling through to a non-repliable generic event. Classification is
// pure; call Audit separately to emit the arrival log line.
func (c *Classifier) Classify(env *Envelope) *Event {
	if env.IsValidation() {
		return &Event{
			Kind:       KindValidation,
			Envelope:   env,
			PlainToken: env.Data.Field("plain_token").Str(),
			EventTS:    env.Data.Field("event_ts").Str(),
		}
	}
	if !env.IsDispatch() {
		return &Event{Kind: KindGeneric, Envelope: env}
	}

	switch env.Type {
	case TypeGuildMessage, TypeGuildMention:
		ev := c.messageEvent(env, KindGuildMessage)
		ev.Mention = env.Type == TypeGuildMention
		ev.Target = ReplyTarget{
			ChannelID: env.Data.Field("channel_id").Str(),
			GuildID:   env.Data.Field("guild_id").Str(),
		}
		return ev
	case TypeGuildDirect:
		ev := c.messageEvent(env, KindDirectMessage)
		ev.Target = ReplyTarget{GuildID: env.Data.Field("guild_id").Str()}
		return ev
	case TypeGroupMessage:
		ev := c.messageEvent(env, KindGroupMessage)
		ev.Target = ReplyTarget{GroupID: env.Data.Field("group_id").Str()}
		return ev
	case TypePrivateMessage:
		ev := c.messageEvent(env, KindPrivateMessage)
		ev.Target = ReplyTarget{UserID: ev.SenderID}
		return ev
	case TypeGuildCreate, TypeGuildUpdate, TypeGuildDelete:
		return &Event{
			Kind:         KindGuildLifecycle,
			Envelope:     env,
			GuildName:    env.Data.Field("name").Str(),
			GuildOwnerID: env.Data.Field("owner_id").Str(),
			Target:       ReplyTarget{},
			SenderID:     env.Data.Field("op_user_id").Str(),
		}
	default:
		return &Event{Kind: KindGeneric, Envelope: env}
	}
}

func (c *Classifier) messageEvent(env *Envelope, kind Kind) *Event {
	ev := &Event{
		Kind:     kind,
		Envelope: env,
		MsgID:    env.Data.Field("id").Str(),
		SenderID: env.Data.Field("author").Field("union_openid").Str(),
	}
	content := env.Data.Field("content").Str()
	if env.Type == TypeGuildMention && c.selfMention != "" {
		content = strings.ReplaceAll(content, c.selfMention, "")
	}
	ev.Content = normalizeContent(content, env.Data.Field("attachments"))
	return ev
}

// normalizeContent folds attachments into the text as a bracketed
// descriptor. Only the first attachment is described; additional ones are
// dropped. That matches the platform-facing behavior users already rely
// on, so it is covered by a test rather than changed here.
func normalizeContent(content string, attachments *Node) string {
	if attachments.Len() == 0 {
		return content
	}
	first := attachments.Index(0)
	filename := first.Field("filename").Str()
	url := first.Field("url").Str()
	contentType := first.Field("content_type").Str()

	var descriptor string
	switch {
	case strings.Contains(contentType, "image"):
		descriptor = fmt.Sprintf("[image:%s][URL: %s]", filename, url)
	case strings.Contains(contentType, "file"):
		descriptor = fmt.Sprintf("[file:%s][URL: %s]", filename, url)
	case strings.Contains(contentType, "voice"):
		descriptor = fmt.Sprintf("[voice:%s][URL: %s]", filename, url)
	case strings.Contains(contentType, "video"):
		descriptor = fmt.Sprintf("[video:%s][URL: %s]", filename, url)
	default:
		descriptor = fmt.Sprintf("[%s attachment:%s][URL: %s]", contentType, filename, url)
	}
	return strings.TrimSpace(content + " " + descriptor)
}

// Audit emits the one-line arrival record for an event. Kept out of
// Classify so construction stays side-effect free.
func Audit(ev *Event) {
	switch ev.Kind {
	case KindGroupMessage:
		logger.InfoCF("event", "group message", map[string]interface{}{
			"group":   ev.Target.GroupID,
			"user":    ev.SenderID,
			"content": ev.Content,
		})
	case KindPrivateMessage:
		logger.InfoCF("event", "private message", map[string]interface{}{
			"user":    ev.SenderID,
			"content": ev.Content,
		})
	case KindGuildMessage:
		logger.InfoCF("event", "guild message", map[string]interface{}{
			"channel": ev.Target.ChannelID,
			"guild":   ev.Target.GuildID,
			"user":    ev.SenderID,
			"content": ev.Content,
		})
	case KindDirectMessage:
		logger.InfoCF("event", "guild direct message", map[string]interface{}{
			"guild":   ev.Target.GuildID,
			"user":    ev.SenderID,
			"content": ev.Content,
		})
	case KindGuildLifecycle:
		logger.InfoCF("event", "guild lifecycle", map[string]interface{}{
			"type":  ev.Envelope.Type,
			"guild": ev.Envelope.Data.Field("guild_id").Str(),
			"owner": ev.GuildOwnerID,
			"name":  ev.GuildName,
		})
	case KindValidation:
		logger.DebugCF("event", "validation challenge", map[string]interface{}{
			"event_ts": ev.EventTS,
		})
	default:
		logger.DebugCF("event", "unclassified dispatch event", map[string]interface{}{
			"op":   ev.Envelope.Op,
			"type": ev.Envelope.Type,
		})
	}
}
