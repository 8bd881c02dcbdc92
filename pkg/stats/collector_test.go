package stats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axt-team/axtgate/pkg/bus"
	"github.com/axt-team/axtgate/pkg/store"
)

type staticSource map[store.Channel]store.ChannelCounts

func (s staticSource) Counts() (map[store.Channel]store.ChannelCounts, error) {
	return s, nil
}

type failingSource struct{}

func (failingSource) Counts() (map[store.Channel]store.ChannelCounts, error) {
	return nil, errors.New("db closed")
}

type capturePublisher struct {
	events []bus.SystemEvent
}

func (c *capturePublisher) PublishSystem(ev bus.SystemEvent) {
	c.events = append(c.events, ev)
}

func TestNewCollectorRejectsBadSchedule(t *testing.T) {
	_, err := NewCollector("not a cron", staticSource{}, nil)
	require.Error(t, err)
}

func TestRefreshUpdatesSnapshot(t *testing.T) {
	src := staticSource{store.ChannelGroup: {Received: 3, Sent: 2, Failed: 1}}
	pub := &capturePublisher{}
	c, err := NewCollector("*/5 * * * *", src, pub)
	require.NoError(t, err)

	assert.True(t, c.Snapshot().TakenAt.IsZero())

	require.NoError(t, c.Refresh())

	snap := c.Snapshot()
	assert.False(t, snap.TakenAt.IsZero())
	assert.Equal(t, 3, snap.Channels[store.ChannelGroup].Received)

	require.Len(t, pub.events, 1)
	assert.Equal(t, bus.EventStatsSnapshot, pub.events[0].Type)
}

func TestRefreshKeepsLastSnapshotOnError(t *testing.T) {
	c, err := NewCollector("* * * * *", failingSource{}, nil)
	require.NoError(t, err)

	require.Error(t, c.Refresh())
	assert.True(t, c.Snapshot().TakenAt.IsZero())
}
