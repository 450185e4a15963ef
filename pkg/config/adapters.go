package config

import (
	"fmt"

	"github.com/marmos91/fsbridge/pkg/metrics"
	"github.com/marmos91/fsbridge/pkg/transport"
	"github.com/marmos91/fsbridge/pkg/transport/httpapi"
	"github.com/marmos91/fsbridge/pkg/transport/stream"
)

// CreateAdapters creates all enabled transport adapters. The caller sets
// their handler.
func CreateAdapters(cfg *Config, m metrics.TransportMetrics) ([]transport.Adapter, error) {
	var adapters []transport.Adapter

	if cfg.Adapters.Stream.Enabled {
		srv, err := stream.NewServer(cfg.Adapters.Stream, m)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, srv)
	}

	if cfg.Adapters.HTTP.Enabled {
		srv, err := httpapi.NewServer(cfg.Adapters.HTTP, m)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, srv)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}
