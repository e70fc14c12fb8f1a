package service

import (
	"context"
	"time"

	"onbrand-chat-be/internal/pkg/logger"

	"github.com/patrickmn/go-cache"
)

const toolCatalogCacheKey = "tool_servers"

// ToolServer describes one configured tool integration a turn may invoke.
type ToolServer struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ToolSource lists the currently configured tool servers. Typically backed
// by configuration or a registry call, which is why the catalog caches it.
type ToolSource interface {
	ListToolServers(ctx context.Context) ([]ToolServer, error)
}

// IToolCatalogService answers which tool servers exist. Lookups hit a
// short-lived cache so every send does not re-read the registry.
type IToolCatalogService interface {
	List(ctx context.Context) ([]ToolServer, error)
	Known(ctx context.Context, id string) bool
}

type toolCatalogService struct {
	source ToolSource
	cache  *cache.Cache
	logger logger.ILogger
}

func NewToolCatalogService(source ToolSource, log logger.ILogger) IToolCatalogService {
	return &toolCatalogService{
		source: source,
		cache:  cache.New(5*time.Minute, 10*time.Minute),
		logger: log,
	}
}

func (s *toolCatalogService) List(ctx context.Context) ([]ToolServer, error) {
	if cached, found := s.cache.Get(toolCatalogCacheKey); found {
		return cached.([]ToolServer), nil
	}

	servers, err := s.source.ListToolServers(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(toolCatalogCacheKey, servers, cache.DefaultExpiration)
	return servers, nil
}

func (s *toolCatalogService) Known(ctx context.Context, id string) bool {
	servers, err := s.List(ctx)
	if err != nil {
		s.logger.Warn("ToolCatalog", "Listing tool servers failed", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	for _, server := range servers {
		if server.Id == id {
			return true
		}
	}
	return false
}

// StaticToolSource serves a fixed tool server list from configuration.
type StaticToolSource struct {
	Servers []ToolServer
}

func (s StaticToolSource) ListToolServers(ctx context.Context) ([]ToolServer, error) {
	return s.Servers, nil
}
