package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/talgya/chronicle/internal/turn"
)

// RedisOptions configures the Redis publisher.
type RedisOptions struct {
	Addr        string        `yaml:"addr" env:"ADDR"`
	Password    string        `yaml:"password" env:"PASSWORD"`
	DB          int           `yaml:"db" env:"DB"`
	PoolSize    int           `yaml:"pool_size" env:"POOL_SIZE"`
	RecentTurns int           `yaml:"recent_turns" env:"RECENT_TURNS"`
	RecentTTL   time.Duration `yaml:"recent_ttl" env:"RECENT_TTL"`
}

const (
	defaultRecentTurns = 50
	defaultRecentTTL   = 24 * time.Hour
)

// ChannelFor is the pub/sub channel carrying a campaign's turns.
func ChannelFor(campaignID string) string {
	return "chronicle:turns:" + campaignID
}

func recentKey(campaignID string) string {
	return "chronicle:recent:" + campaignID
}

// RedisPublisher publishes committed turns and keeps a short recent list
// per campaign.
type RedisPublisher struct {
	client redis.UniversalClient
	recent int64
	ttl    time.Duration
	log    *slog.Logger
}

// NewRedisPublisher connects and pings Redis.
func NewRedisPublisher(ctx context.Context, opts RedisOptions, log *slog.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		PoolSize:    opts.PoolSize,
		DialTimeout: 2 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return newRedisPublisher(client, opts, log), nil
}

func newRedisPublisher(client redis.UniversalClient, opts RedisOptions, log *slog.Logger) *RedisPublisher {
	if opts.RecentTurns <= 0 {
		opts.RecentTurns = defaultRecentTurns
	}
	if opts.RecentTTL <= 0 {
		opts.RecentTTL = defaultRecentTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisPublisher{client: client, recent: int64(opts.RecentTurns), ttl: opts.RecentTTL, log: log}
}

// Close releases the connection pool.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// TurnCommitted publishes the summary and records it in the recent list.
func (p *RedisPublisher) TurnCommitted(ctx context.Context, s turn.Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	key := recentKey(s.CampaignID)
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, ChannelFor(s.CampaignID), data)
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, p.recent-1)
		pipe.Expire(ctx, key, p.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish turn %d: %w", s.Turn, err)
	}
	return nil
}

// Recent returns up to n of the campaign's latest turn summaries, newest
// first.
func (p *RedisPublisher) Recent(ctx context.Context, campaignID string, n int64) ([]turn.Summary, error) {
	if n <= 0 || n > p.recent {
		n = p.recent
	}
	raw, err := p.client.LRange(ctx, recentKey(campaignID), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	out := make([]turn.Summary, 0, len(raw))
	for _, r := range raw {
		var s turn.Summary
		if err := json.Unmarshal([]byte(r), &s); err != nil {
			p.log.Warn("skip malformed recent turn", "campaign", campaignID, "error", err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Subscribe streams a campaign's turn summaries until ctx ends.
func (p *RedisPublisher) Subscribe(ctx context.Context, campaignID string) (<-chan turn.Summary, error) {
	sub := p.client.Subscribe(ctx, ChannelFor(campaignID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	out := make(chan turn.Summary)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var s turn.Summary
				if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
					p.log.Warn("skip malformed turn message", "campaign", campaignID, "error", err)
					continue
				}
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
