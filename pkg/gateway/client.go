// Package gateway builds and runs the outbound connection to the Discord
// gateway, the process's primary duty.
//
// The connection itself is owned by discordgo. This package only decides how
// many shard sessions to open, binds them to the store, and exposes the whole
// thing as one blocking Run call.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/chiraitori/spoticord/internal/logger"
	"github.com/chiraitori/spoticord/pkg/store"
)

// ErrMissingToken is returned by Build when no bot token is configured.
var ErrMissingToken = errors.New("discord bot token is required")

// Client is a configured, not yet running gateway connection.
type Client interface {
	// Run connects and blocks until ctx is cancelled or the connection fails
	// fatally. It may be called at most once.
	Run(ctx context.Context) error
}

// Builder creates the Client bound to an open store.
type Builder interface {
	Build(ctx context.Context, st store.Handle) (Client, error)
}

// Config describes the gateway identity.
type Config struct {
	// Token is the bot token, without the "Bot " prefix.
	Token string

	// Intents lists the gateway intents by name (see ParseIntents).
	Intents []string

	// Shards is the number of shard sessions to open. 0 asks Discord for the
	// recommended count.
	Shards int
}

// shardSession is the part of *discordgo.Session the client drives.
type shardSession interface {
	Open() error
	Close() error
}

// DiscordBuilder builds discordgo-backed clients.
type DiscordBuilder struct {
	Config Config

	// Handlers are registered on every shard session; the command layer
	// hooks in here.
	Handlers []any
}

// Build validates the configuration and returns a client that owns st.
// On error st is left untouched; the caller keeps ownership.
func (b *DiscordBuilder) Build(_ context.Context, st store.Handle) (Client, error) {
	if b.Config.Token == "" {
		return nil, ErrMissingToken
	}
	if st == nil {
		return nil, errors.New("gateway client requires an open store")
	}
	if b.Config.Shards < 0 {
		return nil, fmt.Errorf("invalid shard count %d", b.Config.Shards)
	}
	intents, err := ParseIntents(b.Config.Intents)
	if err != nil {
		return nil, err
	}

	installLogBridge()

	token := "Bot " + b.Config.Token
	handlers := append([]any{onReady}, b.Handlers...)

	newSession := func() (*discordgo.Session, error) {
		s, err := discordgo.New(token)
		if err != nil {
			return nil, fmt.Errorf("failed to create discord session: %w", err)
		}
		s.Identify.Intents = intents
		s.LogLevel = sessionLogLevel()
		return s, nil
	}

	// Fail here rather than in Run if the token cannot produce a session.
	if _, err := newSession(); err != nil {
		return nil, err
	}

	return &discordClient{
		store:  st,
		shards: b.Config.Shards,
		recommendedShards: func() (int, error) {
			s, err := newSession()
			if err != nil {
				return 0, err
			}
			gb, err := s.GatewayBot()
			if err != nil {
				return 0, fmt.Errorf("failed to query recommended shard count: %w", err)
			}
			return gb.Shards, nil
		},
		newShard: func(id, count int) (shardSession, error) {
			s, err := newSession()
			if err != nil {
				return nil, err
			}
			s.ShardID = id
			s.ShardCount = count
			for _, h := range handlers {
				s.AddHandler(h)
			}
			return s, nil
		},
	}, nil
}

type discordClient struct {
	store  store.Handle
	shards int

	recommendedShards func() (int, error)
	newShard          func(id, count int) (shardSession, error)

	runOnce sync.Once
}

// Run opens every shard, waits for ctx, then closes the shards and releases
// the store.
func (c *discordClient) Run(ctx context.Context) error {
	err := errors.New("gateway client already ran")
	c.runOnce.Do(func() {
		defer func() {
			if cerr := c.store.Close(); cerr != nil {
				logger.Warn("Failed to close database", "error", cerr)
			}
		}()
		err = c.run(ctx)
	})
	return err
}

func (c *discordClient) run(ctx context.Context) error {
	count := c.shards
	if count == 0 {
		n, err := c.recommendedShards()
		if err != nil {
			return err
		}
		count = max(n, 1)
	}
	logger.Info("Connecting to Discord gateway", "shards", count)

	opened := make([]shardSession, 0, count)
	defer func() {
		for i, s := range opened {
			if err := s.Close(); err != nil {
				logger.Warn("Failed to close shard", "shard", i, "error", err)
			}
		}
	}()

	for id := 0; id < count; id++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		s, err := c.newShard(id, count)
		if err != nil {
			return err
		}
		if err := s.Open(); err != nil {
			return fmt.Errorf("failed to open shard %d/%d: %w", id, count, err)
		}
		opened = append(opened, s)
	}

	<-ctx.Done()
	logger.Info("Disconnecting from Discord gateway", "shards", len(opened))
	return nil
}

func onReady(s *discordgo.Session, r *discordgo.Ready) {
	name := ""
	if r.User != nil {
		name = r.User.Username
	}
	logger.Info("Gateway session ready",
		"user", name,
		"shard", s.ShardID,
		"shard_count", s.ShardCount,
		"guilds", len(r.Guilds))
}
