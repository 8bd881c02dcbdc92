package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axt-team/axtgate/pkg/event"
	"github.com/axt-team/axtgate/pkg/registry"
	"github.com/axt-team/axtgate/pkg/store"
)

type recordingStore struct {
	saved []string
	err   error
}

func (r *recordingStore) SaveInbound(ev *event.Event) error {
	r.saved = append(r.saved, ev.MsgID)
	return r.err
}

func groupMessage(content string) *event.Event {
	return &event.Event{
		Kind:    event.KindGroupMessage,
		MsgID:   "m1",
		Content: content,
		Target:  event.ReplyTarget{GroupID: "g1"},
	}
}

func TestDispatchHandled(t *testing.T) {
	reg := registry.New()
	var got *event.Event
	reg.Register("test", []string{"ping"}, nil, func(ctx context.Context, ev *event.Event) error {
		got = ev
		return nil
	})

	st := &recordingStore{}
	d := New(reg, st, nil)

	out := d.Dispatch(context.Background(), groupMessage("ping extra args"))
	assert.Equal(t, Handled, out)
	require.NotNil(t, got)
	assert.Equal(t, "m1", got.MsgID)
	assert.Equal(t, []string{"m1"}, st.saved)
}

func TestDispatchUnknownToken(t *testing.T) {
	d := New(registry.New(), &recordingStore{}, nil)
	out := d.Dispatch(context.Background(), groupMessage("nosuch"))
	assert.Equal(t, Unknown, out)
}

func TestDispatchEmptyContentIsUnknown(t *testing.T) {
	reg := registry.New()
	reg.Register("test", []string{"ping"}, nil, func(ctx context.Context, ev *event.Event) error { return nil })
	d := New(reg, &recordingStore{}, nil)

	for _, content := range []string{"", "   ", "\t\n"} {
		out := d.Dispatch(context.Background(), groupMessage(content))
		assert.Equal(t, Unknown, out)
	}
}

func TestDispatchHandlerErrorIsFailed(t *testing.T) {
	reg := registry.New()
	reg.Register("test", []string{"boom"}, nil, func(ctx context.Context, ev *event.Event) error {
		return errors.New("no luck")
	})
	d := New(reg, &recordingStore{}, nil)

	out := d.Dispatch(context.Background(), groupMessage("boom"))
	assert.Equal(t, Failed, out)
}

func TestDispatchHandlerPanicIsFailed(t *testing.T) {
	reg := registry.New()
	reg.Register("test", []string{"panic"}, nil, func(ctx context.Context, ev *event.Event) error {
		panic("oh no")
	})
	d := New(reg, &recordingStore{}, nil)

	out := d.Dispatch(context.Background(), groupMessage("panic"))
	assert.Equal(t, Failed, out)
}

func TestDispatchDuplicateStillRoutes(t *testing.T) {
	reg := registry.New()
	called := false
	reg.Register("test", []string{"ping"}, nil, func(ctx context.Context, ev *event.Event) error {
		called = true
		return nil
	})
	st := &recordingStore{err: store.ErrDuplicateMessage}
	d := New(reg, st, nil)

	out := d.Dispatch(context.Background(), groupMessage("ping"))
	assert.Equal(t, Handled, out)
	assert.True(t, called)
}

func TestDispatchLifecycleRouting(t *testing.T) {
	reg := registry.New()
	called := false
	reg.RegisterLifecycle("test", func(ctx context.Context, ev *event.Event) error {
		called = true
		return nil
	})
	d := New(reg, &recordingStore{}, nil)

	ev := &event.Event{Kind: event.KindGuildLifecycle, MsgID: "l1", GuildName: "demo"}
	out := d.Dispatch(context.Background(), ev)
	assert.Equal(t, Handled, out)
	assert.True(t, called)
}

func TestDispatchLifecycleWithoutHandlerIsUnknown(t *testing.T) {
	d := New(registry.New(), &recordingStore{}, nil)
	ev := &event.Event{Kind: event.KindGuildLifecycle, MsgID: "l1"}
	assert.Equal(t, Unknown, d.Dispatch(context.Background(), ev))
}

func TestDispatchKindFilter(t *testing.T) {
	reg := registry.New()
	reg.Register("test", []string{"grouponly"}, []event.Kind{event.KindGroupMessage},
		func(ctx context.Context, ev *event.Event) error { return nil })
	d := New(reg, &recordingStore{}, nil)

	ev := &event.Event{
		Kind:    event.KindPrivateMessage,
		MsgID:   "m2",
		Content: "grouponly",
		Target:  event.ReplyTarget{UserID: "u1"},
	}
	assert.Equal(t, Unknown, d.Dispatch(context.Background(), ev))
}
