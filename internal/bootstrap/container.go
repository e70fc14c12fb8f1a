package bootstrap

import (
	"context"
	"log"
	"strings"

	"onbrand-chat-be/internal/chat"
	"onbrand-chat-be/internal/collab"
	"onbrand-chat-be/internal/config"
	"onbrand-chat-be/internal/controller"
	"onbrand-chat-be/internal/handler"
	"onbrand-chat-be/internal/pkg/logger"
	"onbrand-chat-be/internal/pkg/mailer"
	"onbrand-chat-be/internal/realtime"
	"onbrand-chat-be/internal/repository/unitofwork"
	"onbrand-chat-be/internal/service"
	"onbrand-chat-be/internal/websocket"
	"onbrand-chat-be/pkg/llm/factory"
	pktNats "onbrand-chat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ConversationController controller.IConversationController
	ShareController        controller.IShareController

	// Background Services (Exposed for main.go to run)
	TitleService service.ITitleService

	// WebSockets
	ChatHandler  *handler.ChatHandler
	WebSocketHub *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// Initialize LLM Provider based on Config
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.Provider,
		cfg.Ai.Model,
		cfg.Ai.BaseURL,
		cfg.Ai.APIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.Provider, cfg.Ai.Model)

	// 2.5 Infrastructure
	// NATS JetStream row feed
	feed, err := pktNats.NewFeed(cfg.App.NatsURL)
	if err != nil {
		log.Fatalf("[FATAL] Failed to connect to NATS: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// 3. Realtime delivery plumbing shared by all sessions
	rtLogger := logger.NewIsolatedLogger("logs/realtime.log")
	broadcaster := realtime.NewBroadcaster(rdb, rtLogger)
	rowFeed := realtime.NewJetStreamRowFeed(feed)
	directory := realtime.NewCachedDirectory(uowFactory, rtLogger)

	// 4. Services
	chatStore := service.NewChatStoreService(uowFactory, feed, broadcaster, sysLogger)
	conversationService := service.NewConversationService(uowFactory, chatStore, feed, sysLogger)
	shareService := service.NewShareService(uowFactory, feed, emailService, sysLogger)
	titleService := service.NewTitleService(pubSub, cfg.App.TitleTopicName, uowFactory, llmProvider, cfg.Ai.TitleModel)
	toolCatalog := service.NewToolCatalogService(staticToolSource(cfg.Ai.ToolServers), sysLogger)

	// 5. WebSocket hub. Each connection gets its own session, reconciler and
	// mode detector; their subscriptions are torn down with the session.
	sessionFactory := func(userId uuid.UUID, userName, userEmail string, sink chat.Sink) *chat.Session {
		reconciler := realtime.NewReconciler(rowFeed, broadcaster, directory, rtLogger)
		uow := uowFactory.NewUnitOfWork(context.Background())
		grants := collab.NewRepositoryGrantSource(uow.ShareRepository(), uow.ProjectRepository())
		detector := collab.NewDetector(grants, feed, rtLogger)
		return chat.NewSession(userId, userName, userEmail, chat.SessionDeps{
			Store:      chatStore,
			Provider:   llmProvider,
			Reconciler: reconciler,
			Detector:   detector,
			Titles:     titleService,
			Catalog:    toolCatalog,
			Sink:       sink,
			Logger:     sysLogger,
		})
	}
	wsHub := websocket.NewHub(sessionFactory, rtLogger)
	go wsHub.Run()

	chatHandler := handler.NewChatHandler(wsHub, toolCatalog, sysLogger)

	return &Container{
		ConversationController: controller.NewConversationController(conversationService),
		ShareController:        controller.NewShareController(shareService),
		TitleService:           titleService,
		ChatHandler:            chatHandler,
		WebSocketHub:           wsHub,
	}
}

func staticToolSource(ids string) service.StaticToolSource {
	src := service.StaticToolSource{}
	for _, id := range strings.Split(ids, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		src.Servers = append(src.Servers, service.ToolServer{Id: id, Name: id})
	}
	return src
}
