package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"onbrand-chat-be/internal/constant"
	"onbrand-chat-be/internal/entity"
	"onbrand-chat-be/internal/repository/specification"
	"onbrand-chat-be/internal/repository/unitofwork"
	"onbrand-chat-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	// Verify Wiring
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.ConversationRepository())
	assert.NotNil(t, uow.MessageRepository())
	assert.NotNil(t, uow.ShareRepository())

	// Basic Ping
	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)
	t.Log("Successfully connected to DB and initialized UnitOfWork Factory")

	t.Run("Check Conversation Repository", func(t *testing.T) {
		count, err := uow.ConversationRepository().Count(context.Background())
		assert.NoError(t, err)
		t.Logf("Conversation count: %d", count)
	})

	t.Run("Conversation And Message Round Trip", func(t *testing.T) {
		ctx := context.Background()
		userId := uuid.New()

		conv := &entity.Conversation{
			Id:             uuid.New(),
			UserId:         userId,
			Title:          "Integration Conversation",
			Visibility:     constant.VisibilityPrivate,
			LastActivityAt: time.Now().UTC(),
			CreatedAt:      time.Now().UTC(),
		}
		require.NoError(t, uow.ConversationRepository().Create(ctx, conv))

		msg := &entity.Message{
			Id:             uuid.New(),
			ConversationId: conv.Id,
			Role:           constant.MessageRoleUser,
			Content:        "integration hello",
			AuthorUserId:   &userId,
			CreatedAt:      time.Now().UTC(),
		}
		require.NoError(t, uow.MessageRepository().Create(ctx, msg))

		loaded, err := uow.MessageRepository().FindAll(ctx,
			specification.ByConversationID{ConversationID: conv.Id},
		)
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, "integration hello", loaded[0].Content)

		// Cleanup: messages first, then the conversation.
		require.NoError(t, uow.MessageRepository().DeleteByConversationId(ctx, conv.Id))
		require.NoError(t, uow.ConversationRepository().Delete(ctx, conv.Id))
	})
}
