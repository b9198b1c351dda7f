package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"consolefwd/pkg/config"
	"consolefwd/pkg/engine"

	"github.com/redis/go-redis/v9"
)

// Manifest is the JSON document stored under the config key.
type Manifest struct {
	Version    string                 `json:"version"`
	Processors []config.ProcessorRule `json:"processors"`
}

// ParseManifest decodes a manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// ChainUpdater receives rebuilt processor chains.
type ChainUpdater interface {
	UpdateChain(chain *engine.ProcessorChain)
}

// Watcher keeps a processor chain in sync with a manifest in Redis. The
// manifest is read at start and again whenever anything is published
// on the update channel.
type Watcher struct {
	client  *redis.Client
	target  ChainUpdater
	key     string
	channel string
	logger  *slog.Logger

	lastVersion string
}

func NewWatcher(cfg config.RedisConfig, target ChainUpdater, logger *slog.Logger) *Watcher {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Watcher{
		client:  rdb,
		target:  target,
		key:     cfg.ConfigKey,
		channel: cfg.Channel,
		logger:  logger.With("component", "control"),
	}
}

// Run loads the manifest and then follows update signals until ctx is
// done. A failed reload keeps the current chain.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("starting config watcher", "key", w.key, "channel", w.channel)

	if err := w.Reload(ctx); err != nil {
		w.logger.Warn("initial config load failed", "error", err)
	}

	pubsub := w.client.Subscribe(ctx, w.channel)
	defer pubsub.Close()
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			w.logger.Info("received update signal", "payload", msg.Payload)
			if err := w.Reload(ctx); err != nil {
				w.logger.Warn("config reload failed", "error", err)
			}
		}
	}
}

// Reload fetches the manifest and swaps the chain. A missing key keeps
// the current chain, as does a manifest whose version was already applied.
func (w *Watcher) Reload(ctx context.Context) error {
	val, err := w.client.Get(ctx, w.key).Bytes()
	if errors.Is(err, redis.Nil) {
		w.logger.Info("no config found in redis, keeping current state", "key", w.key)
		return nil
	} else if err != nil {
		return fmt.Errorf("fetch %s: %w", w.key, err)
	}

	manifest, err := ParseManifest(val)
	if err != nil {
		return err
	}
	w.Apply(manifest)
	return nil
}

// Apply builds the manifest's chain and hands it to the target.
func (w *Watcher) Apply(m *Manifest) {
	if m.Version != "" && m.Version == w.lastVersion {
		w.logger.Debug("manifest unchanged", "version", m.Version)
		return
	}
	chain := BuildChain(m.Processors, w.logger)
	w.target.UpdateChain(chain)
	w.lastVersion = m.Version
	w.logger.Info("processor chain updated", "version", m.Version, "processors", chain.Len())
}

func (w *Watcher) Close() error {
	return w.client.Close()
}
