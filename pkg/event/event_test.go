package event

import (
	"fmt"
	"strings"
	"testing"
)

func mustEnvelope(t *testing.T, body string) *Envelope {
	t.Helper()
	env, err := ParseEnvelope([]byte(body))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	return env
}

func TestClassifyTable(t *testing.T) {
	tests := []struct {
		op   int
		tag  string
		want Kind
	}{
		{0, "MESSAGE_CREATE", KindGuildMessage},
		{0, "AT_MESSAGE_CREATE", KindGuildMessage},
		{0, "DIRECT_MESSAGE_CREATE", KindDirectMessage},
		{0, "GROUP_AT_MESSAGE_CREATE", KindGroupMessage},
		{0, "C2C_MESSAGE_CREATE", KindPrivateMessage},
		{0, "GUILD_CREATE", KindGuildLifecycle},
		{0, "GUILD_UPDATE", KindGuildLifecycle},
		{0, "GUILD_DELETE", KindGuildLifecycle},
		{13, "", KindValidation},
		{0, "SOMETHING_ELSE", KindGeneric},
		{0, "", KindGeneric},
		{7, "MESSAGE_CREATE", KindGeneric}, // unknown op is not dispatch
	}

	c := NewClassifier("10001")
	for _, tt := range tests {
		t.Run(fmt.Sprintf("op%d_%s", tt.op, tt.tag), func(t *testing.T) {
			body := fmt.Sprintf(`{"id":"e1","op":%d,"s":1,"t":"%s","d":{}}`, tt.op, tt.tag)
			ev := c.Classify(mustEnvelope(t, body))
			if ev.Kind != tt.want {
				t.Errorf("Classify kind = %v, want %v", ev.Kind, tt.want)
			}
		})
	}
}

func TestClassifyReplyTargetExclusive(t *testing.T) {
	c := NewClassifier("10001")

	tests := []struct {
		name string
		body string
		// which of the four target fields must be the populated one(s)
		check func(t *testing.T, tgt ReplyTarget)
	}{
		{
			name: "group message targets the group",
			body: `{"op":0,"t":"GROUP_AT_MESSAGE_CREATE","d":{"id":"m1","content":"hi","group_id":"g42","author":{"union_openid":"u1"}}}`,
			check: func(t *testing.T, tgt ReplyTarget) {
				if tgt.GroupID != "g42" || tgt.UserID != "" || tgt.ChannelID != "" || tgt.GuildID != "" {
					t.Errorf("target = %+v, want only GroupID", tgt)
				}
			},
		},
		{
			name: "private message targets the sender",
			body: `{"op":0,"t":"C2C_MESSAGE_CREATE","d":{"id":"m2","content":"hi","author":{"union_openid":"u7"}}}`,
			check: func(t *testing.T, tgt ReplyTarget) {
				if tgt.UserID != "u7" || tgt.GroupID != "" || tgt.ChannelID != "" || tgt.GuildID != "" {
					t.Errorf("target = %+v, want only UserID", tgt)
				}
			},
		},
		{
			name: "channel message targets the channel+guild pair",
			body: `{"op":0,"t":"AT_MESSAGE_CREATE","d":{"id":"m3","content":"hi","channel_id":"c9","guild_id":"gu5","author":{"union_openid":"u1"}}}`,
			check: func(t *testing.T, tgt ReplyTarget) {
				if tgt.ChannelID != "c9" || tgt.GuildID != "gu5" || tgt.GroupID != "" || tgt.UserID != "" {
					t.Errorf("target = %+v, want ChannelID+GuildID", tgt)
				}
			},
		},
		{
			name: "direct message targets the guild only",
			body: `{"op":0,"t":"DIRECT_MESSAGE_CREATE","d":{"id":"m4","content":"hi","channel_id":"c9","guild_id":"gu5","author":{"union_openid":"u1"}}}`,
			check: func(t *testing.T, tgt ReplyTarget) {
				if tgt.GuildID != "gu5" || tgt.ChannelID != "" || tgt.GroupID != "" || tgt.UserID != "" {
					t.Errorf("target = %+v, want only GuildID", tgt)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := c.Classify(mustEnvelope(t, tt.body))
			tt.check(t, ev.Target)
		})
	}
}

func TestClassifyGenericHasNoTarget(t *testing.T) {
	c := NewClassifier("10001")
	ev := c.Classify(mustEnvelope(t, `{"op":0,"t":"INTERACTION_CREATE","d":{"id":"x"}}`))
	if ev.Kind != KindGeneric {
		t.Fatalf("kind = %v, want generic", ev.Kind)
	}
	if !ev.Target.IsZero() {
		t.Errorf("generic event has reply target %+v", ev.Target)
	}
}

func TestMentionStripping(t *testing.T) {
	c := NewClassifier("10001")

	mention := `{"op":0,"t":"AT_MESSAGE_CREATE","d":{"id":"m1","content":"<@!10001> ping","channel_id":"c1","guild_id":"g1","author":{"union_openid":"u1"}}}`
	ev := c.Classify(mustEnvelope(t, mention))
	if got := strings.TrimSpace(ev.Content); got != "ping" {
		t.Errorf("mention content = %q, want %q", got, "ping")
	}
	if !ev.Mention {
		t.Error("Mention flag not set for AT_MESSAGE_CREATE")
	}

	// The marker is stripped only for the mention variant.
	plain := `{"op":0,"t":"MESSAGE_CREATE","d":{"id":"m2","content":"<@!10001> ping","channel_id":"c1","guild_id":"g1","author":{"union_openid":"u1"}}}`
	ev = c.Classify(mustEnvelope(t, plain))
	if !strings.Contains(ev.Content, "<@!10001>") {
		t.Errorf("non-mention content = %q, marker should survive", ev.Content)
	}
}

func TestAttachmentFolding(t *testing.T) {
	c := NewClassifier("10001")

	tests := []struct {
		name        string
		contentType string
		wantWord    string
	}{
		{"image", "image/png", "[image:pic.png]"},
		{"file", "file/zip", "[file:pic.png]"},
		{"voice", "voice/silk", "[voice:pic.png]"},
		{"video", "video/mp4", "[video:pic.png]"},
		{"other", "application/x-thing", "[application/x-thing attachment:pic.png]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := fmt.Sprintf(`{"op":0,"t":"GROUP_AT_MESSAGE_CREATE","d":{"id":"m1","content":"look","group_id":"g1","author":{"union_openid":"u1"},"attachments":[{"filename":"pic.png","url":"https://cdn/x","content_type":"%s"}]}}`, tt.contentType)
			ev := c.Classify(mustEnvelope(t, body))
			if !strings.Contains(ev.Content, tt.wantWord) {
				t.Errorf("content = %q, want descriptor %q", ev.Content, tt.wantWord)
			}
			if !strings.Contains(ev.Content, "[URL: https://cdn/x]") {
				t.Errorf("content = %q, missing URL descriptor", ev.Content)
			}
		})
	}
}

// Only the first attachment is folded into content. This mirrors the
// platform-facing behavior the product has shipped with; a change here is
// a product decision, not a bug fix.
func TestAttachmentFoldingFirstOnly(t *testing.T) {
	c := NewClassifier("10001")
	body := `{"op":0,"t":"GROUP_AT_MESSAGE_CREATE","d":{"id":"m1","content":"two","group_id":"g1","author":{"union_openid":"u1"},"attachments":[
		{"filename":"a.png","url":"https://cdn/a","content_type":"image/png"},
		{"filename":"b.png","url":"https://cdn/b","content_type":"image/png"}]}}`
	ev := c.Classify(mustEnvelope(t, body))
	if !strings.Contains(ev.Content, "a.png") {
		t.Errorf("content = %q, first attachment missing", ev.Content)
	}
	if strings.Contains(ev.Content, "b.png") {
		t.Errorf("content = %q, second attachment should not be folded", ev.Content)
	}
}

func TestClassifyValidation(t *testing.T) {
	c := NewClassifier("")
	ev := c.Classify(mustEnvelope(t, `{"op":13,"d":{"plain_token":"tok","event_ts":"1725000000"}}`))
	if ev.Kind != KindValidation {
		t.Fatalf("kind = %v, want validation", ev.Kind)
	}
	if ev.PlainToken != "tok" || ev.EventTS != "1725000000" {
		t.Errorf("challenge fields = %q/%q", ev.PlainToken, ev.EventTS)
	}
}
