package realtime

import (
	"context"
	"time"

	"onbrand-chat-be/internal/constant"
	"onbrand-chat-be/internal/pkg/logger"
	"onbrand-chat-be/internal/repository/specification"
	"onbrand-chat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Directory resolves an authoring identity to display name/email. Lookups are
// best-effort: a miss or failure yields a generic label, never an error.
type Directory interface {
	Lookup(ctx context.Context, userId uuid.UUID) (name, email string)
}

type cachedDirectory struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *cache.Cache
	logger     logger.ILogger
}

type directoryEntry struct {
	Name  string
	Email string
}

func NewCachedDirectory(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) Directory {
	return &cachedDirectory{
		uowFactory: uowFactory,
		cache:      cache.New(1*time.Hour, 10*time.Minute),
		logger:     log,
	}
}

func (d *cachedDirectory) Lookup(ctx context.Context, userId uuid.UUID) (string, string) {
	key := userId.String()
	if x, found := d.cache.Get(key); found {
		entry := x.(directoryEntry)
		return entry.Name, entry.Email
	}

	uow := d.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		d.logger.Warn("Directory", "Lookup failed, using fallback label", map[string]interface{}{
			"user_id": userId,
			"error":   err.Error(),
		})
		return constant.UnknownSenderLabel, ""
	}
	if user == nil {
		// Cache the miss too: unknown identities stay unknown for a while.
		d.cache.Set(key, directoryEntry{Name: constant.UnknownSenderLabel}, cache.DefaultExpiration)
		return constant.UnknownSenderLabel, ""
	}

	entry := directoryEntry{Name: user.Name, Email: user.Email}
	d.cache.Set(key, entry, cache.DefaultExpiration)
	return entry.Name, entry.Email
}
