package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"onbrand-chat-be/internal/collab"
	"onbrand-chat-be/internal/constant"
	"onbrand-chat-be/internal/dto"
	"onbrand-chat-be/internal/entity"
	"onbrand-chat-be/internal/realtime"
	"onbrand-chat-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*entity.Conversation
	messages      map[uuid.UUID][]entity.Message
	saved         []entity.Message
	touched       int
	saveErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[uuid.UUID]*entity.Conversation),
		messages:      make(map[uuid.UUID][]entity.Message),
	}
}

func (f *fakeStore) GetConversation(ctx context.Context, conversationId, userId uuid.UUID) (*entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conversations[conversationId], nil
}

func (f *fakeStore) CreateConversation(ctx context.Context, userId uuid.UUID, projectId *uuid.UUID, title string) (*entity.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv := &entity.Conversation{Id: uuid.New(), UserId: userId, ProjectId: projectId, Title: title}
	f.conversations[conv.Id] = conv
	return conv, nil
}

func (f *fakeStore) ListMessages(ctx context.Context, conversationId uuid.UUID) ([]entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[conversationId], nil
}

func (f *fakeStore) SaveMessage(ctx context.Context, msg *entity.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, *msg)
	return nil
}

func (f *fakeStore) TouchLastActivity(ctx context.Context, conversationId uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched++
	return nil
}

func (f *fakeStore) savedMessages() []entity.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.Message, len(f.saved))
	copy(out, f.saved)
	return out
}

type scriptedHandle struct {
	chunks     chan string
	cancel     chan struct{}
	cancelOnce sync.Once
}

func newScriptedHandle() *scriptedHandle {
	return &scriptedHandle{chunks: make(chan string, 16), cancel: make(chan struct{})}
}

func (h *scriptedHandle) Recv() (string, error) {
	select {
	case c, ok := <-h.chunks:
		if !ok {
			return "", io.EOF
		}
		return c, nil
	case <-h.cancel:
		return "", io.EOF
	}
}

func (h *scriptedHandle) Cancel() {
	h.cancelOnce.Do(func() { close(h.cancel) })
}

type fakeProvider struct {
	mu        sync.Mutex
	handle    *scriptedHandle
	streamErr error
	history   []llm.Message
}

func (f *fakeProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return "", nil
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return "", nil
}

func (f *fakeProvider) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (llm.StreamHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = history
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return f.handle, nil
}

type openCall struct {
	conversationId uuid.UUID
	withBroadcast  bool
}

type fakeDeliverer struct {
	mu             sync.Mutex
	events         chan realtime.Event
	opens          []openCall
	broadcastOpens int
	closes         int
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{events: make(chan realtime.Event, 16)}
}

func (f *fakeDeliverer) Open(conversationId uuid.UUID, withBroadcast bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens = append(f.opens, openCall{conversationId, withBroadcast})
	return nil
}

func (f *fakeDeliverer) OpenBroadcast() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcastOpens++
	return nil
}

func (f *fakeDeliverer) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
}

func (f *fakeDeliverer) Events() <-chan realtime.Event {
	return f.events
}

func (f *fakeDeliverer) Merge(ctx context.Context, list realtime.MessageList, localUserId uuid.UUID, ev realtime.Event) (entity.Message, bool) {
	msg := ev.Message
	if msg.AuthorUserId != nil && *msg.AuthorUserId == localUserId {
		return entity.Message{}, false
	}
	if list.Contains(msg.Id) {
		return entity.Message{}, false
	}
	list.Append(msg)
	return msg, true
}

type fakeDetector struct {
	mu      sync.Mutex
	mode    collab.Mode
	changes chan collab.Mode
	watched *entity.Conversation
}

func newFakeDetector() *fakeDetector {
	return &fakeDetector{changes: make(chan collab.Mode, 8)}
}

func (f *fakeDetector) Watch(ctx context.Context, conv *entity.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watched = conv
	return nil
}

func (f *fakeDetector) Changes() <-chan collab.Mode { return f.changes }

func (f *fakeDetector) Mode() collab.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

func (f *fakeDetector) Close() {}

type fakeSink struct {
	frames chan dto.ServerFrame
}

func newFakeSink() *fakeSink {
	return &fakeSink{frames: make(chan dto.ServerFrame, 128)}
}

func (f *fakeSink) Push(frame dto.ServerFrame) {
	f.frames <- frame
}

// next returns the next frame of the given type, skipping others.
func (f *fakeSink) next(t *testing.T, frameType string) dto.ServerFrame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case frame := <-f.frames:
			if frame.Type == frameType {
				return frame
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q frame", frameType)
		}
	}
}

// collectUntil gathers frames in order until one of the given type arrives.
func (f *fakeSink) collectUntil(t *testing.T, frameType string) []dto.ServerFrame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	var out []dto.ServerFrame
	for {
		select {
		case frame := <-f.frames:
			out = append(out, frame)
			if frame.Type == frameType {
				return out
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q frame", frameType)
		}
	}
}

type fakeTitles struct {
	mu       sync.Mutex
	requests []uuid.UUID
}

func (f *fakeTitles) RequestTitle(conversationId uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, conversationId)
}

type fakeCatalog struct {
	known map[string]bool
}

func (f *fakeCatalog) Known(ctx context.Context, id string) bool {
	return f.known[id]
}

type sessionFixture struct {
	session    *Session
	store      *fakeStore
	provider   *fakeProvider
	reconciler *fakeDeliverer
	detector   *fakeDetector
	sink       *fakeSink
	titles     *fakeTitles
	userId     uuid.UUID
	cancel     context.CancelFunc
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	fx := &sessionFixture{
		store:      newFakeStore(),
		provider:   &fakeProvider{handle: newScriptedHandle()},
		reconciler: newFakeDeliverer(),
		detector:   newFakeDetector(),
		sink:       newFakeSink(),
		titles:     &fakeTitles{},
		userId:     uuid.New(),
	}
	fx.session = NewSession(fx.userId, "Dewi", "dewi@example.com", SessionDeps{
		Store:      fx.store,
		Provider:   fx.provider,
		Reconciler: fx.reconciler,
		Detector:   fx.detector,
		Titles:     fx.titles,
		Catalog:    &fakeCatalog{known: map[string]bool{"search": true}},
		Sink:       fx.sink,
		Logger:     nopLogger{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	fx.cancel = cancel
	go fx.session.Run(ctx)
	t.Cleanup(cancel)
	return fx
}

func (fx *sessionFixture) send(content string) {
	fx.session.Inbox() <- dto.ClientFrame{Type: "send", Send: &dto.SendPayload{Content: content}}
}

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

func TestSession_FullTurnRoundTrip(t *testing.T) {
	fx := newSessionFixture(t)

	fx.send("hello there")

	// The user message is persisted and echoed before any chunk arrives.
	frames := fx.collectStreamingFrames(t)
	var sawUserMessage, sawChunk bool
	for _, frame := range frames {
		switch frame.Type {
		case "message":
			require.False(t, sawChunk, "user message must precede chunks")
			assert.Equal(t, constant.MessageRoleUser, frame.Message.Role)
			assert.Equal(t, "hello there", frame.Message.Content)
			sawUserMessage = true
		case "chunk":
			sawChunk = true
		}
	}
	require.True(t, sawUserMessage)

	fx.provider.handle.chunks <- "Hi [TOOL_CALL:search] looking"
	chunk := fx.sink.next(t, "chunk")
	assert.Equal(t, "Hi  looking", chunk.Chunk.Text)
	assert.Equal(t, "search", chunk.Chunk.ActiveTool)
	assert.True(t, chunk.Chunk.ToolChanged)

	fx.provider.handle.chunks <- " [TOOL_RESULT:search] done"
	close(fx.provider.handle.chunks)

	done := fx.sink.next(t, "turn_done")
	require.NotNil(t, done.TurnDone.Message)
	assert.False(t, done.TurnDone.Cancelled)
	assert.Equal(t, "Hi  looking  done", done.TurnDone.Message.Content)
	assert.Equal(t, constant.MessageRoleAssistant, done.TurnDone.Message.Role)

	saved := fx.store.savedMessages()
	require.Len(t, saved, 2)
	assert.Equal(t, constant.MessageRoleUser, saved[0].Role)
	assert.Equal(t, constant.MessageRoleAssistant, saved[1].Role)
	assert.Equal(t, "Hi  looking  done", saved[1].Content)

	// First exchange queues title generation.
	fx.titles.mu.Lock()
	assert.Len(t, fx.titles.requests, 1)
	fx.titles.mu.Unlock()
}

// collectStreamingFrames waits for the streaming phase, pushing nothing.
func (fx *sessionFixture) collectStreamingFrames(t *testing.T) []dto.ServerFrame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	var out []dto.ServerFrame
	for {
		select {
		case frame := <-fx.sink.frames:
			out = append(out, frame)
			if frame.Type == "state" && frame.State.Phase == "streaming" {
				return out
			}
		case <-deadline:
			t.Fatal("timed out waiting for streaming phase")
		}
	}
}

func TestSession_CancelPreservesPartialOutput(t *testing.T) {
	fx := newSessionFixture(t)

	fx.send("write me a poem")
	fx.collectStreamingFrames(t)

	fx.provider.handle.chunks <- "Roses are red"
	fx.sink.next(t, "chunk")

	fx.session.Inbox() <- dto.ClientFrame{Type: "cancel"}

	done := fx.sink.next(t, "turn_done")
	assert.True(t, done.TurnDone.Cancelled)
	require.NotNil(t, done.TurnDone.Message)
	assert.Equal(t, "Roses are red"+constant.GenerationStoppedSuffix, done.TurnDone.Message.Content)

	saved := fx.store.savedMessages()
	require.Len(t, saved, 2)
	assert.True(t, strings.HasSuffix(saved[1].Content, constant.GenerationStoppedSuffix))
}

func TestSession_CancelBeforeAnyOutputDropsAssistantMessage(t *testing.T) {
	fx := newSessionFixture(t)

	fx.send("never mind")
	fx.collectStreamingFrames(t)

	fx.session.Inbox() <- dto.ClientFrame{Type: "cancel"}

	done := fx.sink.next(t, "turn_done")
	assert.True(t, done.TurnDone.Cancelled)
	assert.Nil(t, done.TurnDone.Message)

	// Only the user message was persisted.
	saved := fx.store.savedMessages()
	require.Len(t, saved, 1)
	assert.Equal(t, constant.MessageRoleUser, saved[0].Role)
}

func TestSession_ProviderErrorBecomesWarningMessage(t *testing.T) {
	fx := newSessionFixture(t)
	fx.provider.streamErr = &llm.ProviderError{StatusCode: 429, Message: "rate limited"}

	fx.send("hi")

	done := fx.sink.next(t, "turn_done")
	require.NotNil(t, done.TurnDone.Message)
	assert.True(t, strings.HasPrefix(done.TurnDone.Message.Content, constant.GenerationFailedPrefix))
	assert.Contains(t, done.TurnDone.Message.Content, "rate limited")
	assert.Equal(t, constant.MessageRoleAssistant, done.TurnDone.Message.Role)

	// The failure is a genuine persisted message, visible after reload.
	saved := fx.store.savedMessages()
	require.Len(t, saved, 2)
	assert.True(t, strings.HasPrefix(saved[1].Content, constant.GenerationFailedPrefix))
}

func TestSession_SendPersistFailureKeepsOptimisticMessage(t *testing.T) {
	fx := newSessionFixture(t)
	fx.store.mu.Lock()
	fx.store.saveErr = errors.New("db down")
	fx.store.mu.Unlock()

	fx.send("important user text")

	// The optimistic echo arrives before the persist failure is surfaced.
	frame := fx.sink.next(t, "message")
	assert.Equal(t, "important user text", frame.Message.Content)
	errFrame := fx.sink.next(t, "error")
	assert.Equal(t, "send_failed", errFrame.Error.Code)

	// Nothing was persisted, but the optimistic copy stays in local state:
	// a retry carries it to the model as part of the history.
	assert.Empty(t, fx.store.savedMessages())

	fx.store.mu.Lock()
	fx.store.saveErr = nil
	fx.store.mu.Unlock()

	fx.send("try again")
	fx.collectStreamingFrames(t)
	close(fx.provider.handle.chunks)
	fx.sink.next(t, "turn_done")

	fx.provider.mu.Lock()
	contents := make([]string, 0, len(fx.provider.history))
	for _, msg := range fx.provider.history {
		contents = append(contents, msg.Content)
	}
	fx.provider.mu.Unlock()
	assert.Contains(t, contents, "important user text")
	assert.Contains(t, contents, "try again")
}

func TestSession_SendWhileStreamingIsRejected(t *testing.T) {
	fx := newSessionFixture(t)

	fx.send("first")
	fx.collectStreamingFrames(t)

	fx.send("second")
	errFrame := fx.sink.next(t, "error")
	assert.Equal(t, "busy", errFrame.Error.Code)

	close(fx.provider.handle.chunks)
	fx.sink.next(t, "turn_done")

	// Only the first user message made it through.
	saved := fx.store.savedMessages()
	for _, msg := range saved {
		assert.NotEqual(t, "second", msg.Content)
	}
}

func TestSession_CancelWhenIdleIsRejected(t *testing.T) {
	fx := newSessionFixture(t)

	fx.session.Inbox() <- dto.ClientFrame{Type: "cancel"}
	errFrame := fx.sink.next(t, "error")
	assert.Equal(t, "not_streaming", errFrame.Error.Code)
}

func TestSession_LazyConversationCreation(t *testing.T) {
	fx := newSessionFixture(t)

	// Opening without an id creates nothing yet.
	fx.session.Inbox() <- dto.ClientFrame{Type: "open", Open: &dto.OpenPayload{}}
	state := fx.sink.next(t, "state")
	assert.Nil(t, state.State.ConversationId)
	assert.Equal(t, "private", state.State.Mode)

	fx.store.mu.Lock()
	assert.Empty(t, fx.store.conversations)
	fx.store.mu.Unlock()

	// The first send creates the conversation exactly once.
	fx.send("hello")
	fx.collectStreamingFrames(t)
	close(fx.provider.handle.chunks)
	fx.sink.next(t, "turn_done")

	fx.store.mu.Lock()
	assert.Len(t, fx.store.conversations, 1)
	fx.store.mu.Unlock()

	// Owner-created conversations start with broadcast deferred.
	fx.reconciler.mu.Lock()
	require.Len(t, fx.reconciler.opens, 1)
	assert.False(t, fx.reconciler.opens[0].withBroadcast)
	fx.reconciler.mu.Unlock()
}

func TestSession_OpenExistingConversationAsGuest(t *testing.T) {
	fx := newSessionFixture(t)

	owner := uuid.New()
	conv := &entity.Conversation{Id: uuid.New(), UserId: owner, Title: "Planning"}
	fx.store.mu.Lock()
	fx.store.conversations[conv.Id] = conv
	fx.store.messages[conv.Id] = []entity.Message{
		{Id: uuid.New(), ConversationId: conv.Id, Role: constant.MessageRoleUser, Content: "hey"},
	}
	fx.store.mu.Unlock()

	fx.session.Inbox() <- dto.ClientFrame{Type: "open", Open: &dto.OpenPayload{ConversationId: &conv.Id}}

	state := fx.sink.next(t, "state")
	require.NotNil(t, state.State.ConversationId)
	assert.Equal(t, conv.Id, *state.State.ConversationId)
	require.Len(t, state.State.Messages, 1)
	assert.Equal(t, "hey", state.State.Messages[0].Content)

	// A guest subscribes to both channels immediately.
	fx.reconciler.mu.Lock()
	require.Len(t, fx.reconciler.opens, 1)
	assert.True(t, fx.reconciler.opens[0].withBroadcast)
	fx.reconciler.mu.Unlock()
}

func TestSession_OpenUnknownConversation(t *testing.T) {
	fx := newSessionFixture(t)

	missing := uuid.New()
	fx.session.Inbox() <- dto.ClientFrame{Type: "open", Open: &dto.OpenPayload{ConversationId: &missing}}

	errFrame := fx.sink.next(t, "error")
	assert.Equal(t, "not_found", errFrame.Error.Code)
}

func TestSession_DeliveredMessageIsEmitted(t *testing.T) {
	fx := newSessionFixture(t)

	conv := &entity.Conversation{Id: uuid.New(), UserId: fx.userId}
	fx.store.mu.Lock()
	fx.store.conversations[conv.Id] = conv
	fx.store.mu.Unlock()

	fx.session.Inbox() <- dto.ClientFrame{Type: "open", Open: &dto.OpenPayload{ConversationId: &conv.Id}}
	fx.sink.next(t, "state")

	other := uuid.New()
	incoming := entity.Message{
		Id:             uuid.New(),
		ConversationId: conv.Id,
		Role:           constant.MessageRoleUser,
		Content:        "from a teammate",
		AuthorUserId:   &other,
		AuthorName:     "Rizky",
	}
	fx.reconciler.events <- realtime.Event{Kind: realtime.RowInsertEvent, Message: incoming}

	frame := fx.sink.next(t, "message")
	assert.Equal(t, "from a teammate", frame.Message.Content)
	assert.Equal(t, "Rizky", frame.Message.AuthorName)

	// The same message from the other channel is silently absorbed.
	fx.reconciler.events <- realtime.Event{Kind: realtime.BroadcastEvent, Message: incoming}
	select {
	case frame := <-fx.sink.frames:
		t.Fatalf("unexpected frame %q after duplicate delivery", frame.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSession_CollaborativeTransitionOpensBroadcast(t *testing.T) {
	fx := newSessionFixture(t)

	conv := &entity.Conversation{Id: uuid.New(), UserId: fx.userId}
	fx.store.mu.Lock()
	fx.store.conversations[conv.Id] = conv
	fx.store.mu.Unlock()

	fx.session.Inbox() <- dto.ClientFrame{Type: "open", Open: &dto.OpenPayload{ConversationId: &conv.Id}}
	fx.sink.next(t, "state")

	fx.detector.mu.Lock()
	fx.detector.mode = collab.ModeCollaborative
	fx.detector.mu.Unlock()
	fx.detector.changes <- collab.ModeCollaborative

	state := fx.sink.next(t, "state")
	assert.Equal(t, "collaborative", state.State.Mode)

	fx.reconciler.mu.Lock()
	assert.Equal(t, 1, fx.reconciler.broadcastOpens)
	fx.reconciler.mu.Unlock()
}
