package publishers

import (
	"context"
	"fmt"
	"strings"

	"github.com/samvad-hq/samvad-news-digest/internal/logger"
)

// Builder creates a Publisher from a config entry.
type Builder func(ctx context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error)

// Registry maps publisher types to builders.
type Registry map[string]Builder

// DefaultRegistry knows every built-in sink.
func DefaultRegistry() Registry {
	return Registry{
		TypeHTTP:      newHTTPPublisher,
		TypeSQS:       newSQSPublisher,
		TypeSNS:       newSNSPublisher,
		TypeGCPPubSub: newGCPPubSubPublisher,
	}
}

// BuildAll instantiates one publisher per config. Already built publishers are closed on failure.
func BuildAll(ctx context.Context, reg Registry, cfgs []PublisherConfig, log logger.Logger) ([]Publisher, error) {
	log = logger.Ensure(log)
	var pubs []Publisher
	for _, cfg := range cfgs {
		builder := reg[strings.ToLower(cfg.Type)]
		if builder == nil {
			closeAll(pubs)
			return nil, fmt.Errorf("no publisher registered for type %q", cfg.Type)
		}
		pub, err := builder(ctx, cfg, log)
		if err != nil {
			closeAll(pubs)
			return nil, fmt.Errorf("build publisher %q: %w", cfg.ID, err)
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

func closeAll(pubs []Publisher) {
	for _, p := range pubs {
		if c, ok := p.(Closer); ok {
			_ = c.Close()
		}
	}
}
