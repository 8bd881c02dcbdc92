// Package plugins carries the commands that ship with the gateway.
// Everything else arrives through registry.Register at wiring time.
package plugins

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/axt-team/axtgate/pkg/delivery"
	"github.com/axt-team/axtgate/pkg/event"
	"github.com/axt-team/axtgate/pkg/logger"
	"github.com/axt-team/axtgate/pkg/registry"
	"github.com/axt-team/axtgate/pkg/store"
)

// Replier sends a reply back on the event's origin channel.
// *delivery.Router satisfies it.
type Replier interface {
	Send(ctx context.Context, ev *event.Event, intent delivery.Intent) (*delivery.Result, error)
}

// StatsSource reports per-channel message counters.
type StatsSource interface {
	Counts() (map[store.Channel]store.ChannelCounts, error)
}

const source = "builtin"

// Version string shown in the help footer.
const Version = "AxTGate v1.0"

// RegisterBuiltins installs the stock commands: help, ping and stats,
// plus a lifecycle handler that records guild membership changes.
func RegisterBuiltins(reg *registry.Registry, replier Replier, stats StatsSource) {
	reg.Register(source, []string{"help", "/help"}, nil, helpHandler(reg, replier))
	reg.Register(source, []string{"ping", "/ping"}, nil, pingHandler(replier))
	reg.Register(source, []string{"stats", "/stats"}, nil, statsHandler(replier, stats))
	reg.RegisterLifecycle(source, lifecycleHandler())
}

var commandHints = map[string]string{
	"help":  "show this menu",
	"ping":  "check the bot is alive",
	"stats": "show message counters",
}

func helpHandler(reg *registry.Registry, replier Replier) registry.Handler {
	return func(ctx context.Context, ev *event.Event) error {
		var b strings.Builder
		b.WriteString("=======AxT Community Bot=======\n")
		for _, name := range reg.Commands() {
			if strings.HasPrefix(name, "/") {
				continue // slash aliases share a line with their base command
			}
			hint := commandHints[name]
			if hint == "" {
				hint = "no description"
			}
			fmt.Fprintf(&b, "| %s | - %s\n", name, hint)
		}
		b.WriteString("===============\n")
		b.WriteString(Version)
		_, err := replier.Send(ctx, ev, delivery.Reply(ev, b.String()))
		return err
	}
}

var pingMenu = strings.Join([]string{
	"========Ping Menu========",
	"/ping - check the bot is responding",
	"=========================",
	"pong!",
	"=========================",
}, "\n")

func pingHandler(replier Replier) registry.Handler {
	return func(ctx context.Context, ev *event.Event) error {
		_, err := replier.Send(ctx, ev, delivery.Reply(ev, pingMenu))
		return err
	}
}

func lifecycleHandler() registry.Handler {
	return func(ctx context.Context, ev *event.Event) error {
		logger.InfoCF("plugins", "guild membership change", map[string]interface{}{
			"type":  ev.Envelope.Type,
			"guild": ev.GuildName,
			"owner": ev.GuildOwnerID,
		})
		return nil
	}
}

func statsHandler(replier Replier, stats StatsSource) registry.Handler {
	return func(ctx context.Context, ev *event.Event) error {
		counts, err := stats.Counts()
		if err != nil {
			_, sendErr := replier.Send(ctx, ev, delivery.Reply(ev, "statistics are unavailable right now"))
			if sendErr != nil {
				return sendErr
			}
			return err
		}

		var b strings.Builder
		b.WriteString("=======Message Stats=======\n")
		for _, ch := range []store.Channel{store.ChannelGroup, store.ChannelUser, store.ChannelGuild, store.ChannelGuildDM} {
			c := counts[ch]
			fmt.Fprintf(&b, "| %s | in %d / out %d / failed %d\n", ch, c.Received, c.Sent, c.Failed)
		}
		fmt.Fprintf(&b, "as of %s", time.Now().Format("2006-01-02 15:04:05"))
		_, err = replier.Send(ctx, ev, delivery.Reply(ev, b.String()))
		return err
	}
}
