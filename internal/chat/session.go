package chat

import (
	"context"
	"errors"
	"io"
	"time"

	"onbrand-chat-be/internal/collab"
	"onbrand-chat-be/internal/constant"
	"onbrand-chat-be/internal/dto"
	"onbrand-chat-be/internal/entity"
	"onbrand-chat-be/internal/pkg/logger"
	"onbrand-chat-be/internal/realtime"
	"onbrand-chat-be/pkg/llm"

	"github.com/google/uuid"
)

const defaultConversationTitle = "New Conversation"

// Store is the persistence surface a session needs. SaveMessage is expected
// to both persist the row and publish it to the row-change feed.
type Store interface {
	GetConversation(ctx context.Context, conversationId, userId uuid.UUID) (*entity.Conversation, error)
	CreateConversation(ctx context.Context, userId uuid.UUID, projectId *uuid.UUID, title string) (*entity.Conversation, error)
	ListMessages(ctx context.Context, conversationId uuid.UUID) ([]entity.Message, error)
	SaveMessage(ctx context.Context, msg *entity.Message) error
	TouchLastActivity(ctx context.Context, conversationId uuid.UUID) error
}

// Deliverer merges the two real-time channels for the open conversation.
// Satisfied by realtime.Reconciler.
type Deliverer interface {
	Open(conversationId uuid.UUID, withBroadcast bool) error
	OpenBroadcast() error
	Close()
	Events() <-chan realtime.Event
	Merge(ctx context.Context, list realtime.MessageList, localUserId uuid.UUID, ev realtime.Event) (entity.Message, bool)
}

// ModeDetector classifies the open conversation. Satisfied by collab.Detector.
type ModeDetector interface {
	Watch(ctx context.Context, conv *entity.Conversation) error
	Changes() <-chan collab.Mode
	Mode() collab.Mode
	Close()
}

// TitleRequester queues background title generation for a conversation.
type TitleRequester interface {
	RequestTitle(conversationId uuid.UUID)
}

// ToolCatalog answers whether a tool server id is known and usable.
type ToolCatalog interface {
	Known(ctx context.Context, id string) bool
}

// Sink receives outbound frames for the connected client. Push must not
// block the session loop; transports buffer internally.
type Sink interface {
	Push(frame dto.ServerFrame)
}

type streamItem struct {
	turnId uuid.UUID
	text   string
	err    error
}

// Session owns one client's chat connection. A single goroutine (Run) applies
// every input - client frames, reconciler deliveries, mode transitions, and
// model stream chunks - so conversation state never needs locking.
type Session struct {
	userId    uuid.UUID
	userName  string
	userEmail string

	store      Store
	provider   llm.LLMProvider
	reconciler Deliverer
	detector   ModeDetector
	titles     TitleRequester
	catalog    ToolCatalog
	sink       Sink
	logger     logger.ILogger

	inbox    chan dto.ClientFrame
	streamCh chan streamItem
	done     chan struct{}

	state          *State
	phase          Phase
	turn           *Turn
	pendingProject *uuid.UUID
}

type SessionDeps struct {
	Store      Store
	Provider   llm.LLMProvider
	Reconciler Deliverer
	Detector   ModeDetector
	Titles     TitleRequester
	Catalog    ToolCatalog
	Sink       Sink
	Logger     logger.ILogger
}

func NewSession(userId uuid.UUID, userName, userEmail string, deps SessionDeps) *Session {
	return &Session{
		userId:     userId,
		userName:   userName,
		userEmail:  userEmail,
		store:      deps.Store,
		provider:   deps.Provider,
		reconciler: deps.Reconciler,
		detector:   deps.Detector,
		titles:     deps.Titles,
		catalog:    deps.Catalog,
		sink:       deps.Sink,
		logger:     deps.Logger,
		inbox:      make(chan dto.ClientFrame, 16),
		streamCh:   make(chan streamItem, 16),
		done:       make(chan struct{}),
		state:      NewState(),
		phase:      PhaseIdle,
	}
}

// Inbox is where the transport delivers parsed client frames.
func (s *Session) Inbox() chan<- dto.ClientFrame {
	return s.inbox
}

// Run drives the session until ctx is cancelled or the inbox closes.
func (s *Session) Run(ctx context.Context) {
	defer s.teardown()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-s.inbox:
			if !ok {
				return
			}
			s.handleFrame(ctx, frame)
		case ev := <-s.reconciler.Events():
			s.handleDelivery(ctx, ev)
		case mode := <-s.detector.Changes():
			s.handleMode(mode)
		case item := <-s.streamCh:
			s.handleStream(ctx, item)
		}
	}
}

func (s *Session) teardown() {
	close(s.done)
	if s.turn != nil && s.turn.Handle != nil {
		s.turn.Handle.Cancel()
	}
	s.reconciler.Close()
	s.detector.Close()
}

func (s *Session) handleFrame(ctx context.Context, frame dto.ClientFrame) {
	switch frame.Type {
	case "open":
		payload := frame.Open
		if payload == nil {
			payload = &dto.OpenPayload{}
		}
		s.handleOpen(ctx, payload)
	case "send":
		if frame.Send == nil {
			s.emitError("bad_frame", "send frame without payload")
			return
		}
		s.handleSend(ctx, frame.Send)
	case "cancel":
		s.handleCancel()
	default:
		s.emitError("bad_frame", "unknown frame type: "+frame.Type)
	}
}

func (s *Session) handleOpen(ctx context.Context, payload *dto.OpenPayload) {
	if !s.phase.CanSend() {
		s.emitError("busy", "cannot switch conversations while a turn is in flight")
		return
	}

	s.reconciler.Close()
	s.detector.Close()
	s.state.Clear()
	s.pendingProject = payload.ProjectId

	if payload.ConversationId == nil {
		// A fresh conversation is created lazily on the first send, so a
		// client that opens and walks away leaves no row behind.
		s.emitStateSnapshot()
		return
	}

	conv, err := s.store.GetConversation(ctx, *payload.ConversationId, s.userId)
	if err != nil {
		s.emitError("open_failed", "could not load conversation")
		s.logger.Error("ChatSession", "Open failed", map[string]interface{}{
			"conversation_id": payload.ConversationId,
			"error":           err.Error(),
		})
		return
	}
	if conv == nil {
		s.emitError("not_found", "conversation not found")
		return
	}

	messages, err := s.store.ListMessages(ctx, conv.Id)
	if err != nil {
		s.emitError("open_failed", "could not load messages")
		return
	}
	s.state.Load(conv, messages)

	// Owners start with broadcast deferred: until the detector resolves the
	// mode, only the durable row feed is subscribed. Guests always subscribe
	// to both, since a shared conversation is collaborative for them.
	withBroadcast := conv.UserId != s.userId
	if err := s.reconciler.Open(conv.Id, withBroadcast); err != nil {
		s.emitError("open_failed", "could not subscribe to deliveries")
		return
	}
	if err := s.detector.Watch(ctx, conv); err != nil {
		s.logger.Warn("ChatSession", "Mode detection unavailable", map[string]interface{}{
			"conversation_id": conv.Id,
			"error":           err.Error(),
		})
	}

	s.emitStateSnapshot()
}

func (s *Session) handleSend(ctx context.Context, payload *dto.SendPayload) {
	if !s.phase.CanSend() {
		s.emitError("busy", "a turn is already in flight")
		return
	}

	if s.state.Conversation() == nil {
		conv, err := s.store.CreateConversation(ctx, s.userId, s.pendingProject, defaultConversationTitle)
		if err != nil {
			s.emitError("send_failed", "could not create conversation")
			return
		}
		s.state.SetConversation(conv)
		if err := s.reconciler.Open(conv.Id, false); err != nil {
			s.logger.Warn("ChatSession", "Delivery subscribe failed for new conversation", map[string]interface{}{
				"conversation_id": conv.Id,
				"error":           err.Error(),
			})
		}
		if err := s.detector.Watch(ctx, conv); err != nil {
			s.logger.Warn("ChatSession", "Mode detection unavailable", map[string]interface{}{
				"conversation_id": conv.Id,
				"error":           err.Error(),
			})
		}
	}
	conv := s.state.Conversation()

	s.setPhase(PhaseSending)

	userMsg := entity.Message{
		Id:             uuid.New(),
		ConversationId: conv.Id,
		Role:           constant.MessageRoleUser,
		Content:        payload.Content,
		Attachments:    payload.Attachments,
		AuthorUserId:   &s.userId,
		AuthorName:     s.userName,
		AuthorEmail:    s.userEmail,
		CreatedAt:      time.Now().UTC(),
	}
	// Optimistic append: the user's text is visible locally before any round
	// trip. A persist failure leaves the optimistic copy in place so the user
	// can retry the send without retyping.
	s.state.Append(userMsg)
	s.emitMessage(userMsg)
	if err := s.store.SaveMessage(ctx, &userMsg); err != nil {
		s.emitError("send_failed", "could not persist message")
		s.setPhase(PhaseIdle)
		return
	}

	s.turn = NewTurn(userMsg.Id)

	opts := s.buildOptions(ctx, payload)
	handle, err := s.provider.ChatStream(ctx, s.buildHistory(), opts...)
	if err != nil {
		s.failTurn(ctx, err)
		return
	}

	s.turn.Handle = handle
	s.setPhase(PhaseStreaming)
	go s.pump(s.turn.Id, handle)
}

func (s *Session) handleCancel() {
	if s.turn == nil || !s.phase.CanCancel() {
		s.emitError("not_streaming", "no turn is streaming")
		return
	}
	s.turn.Cancelled = true
	s.setPhase(PhaseCancelling)
	s.turn.Handle.Cancel()
	// The pump observes EOF from the cancelled handle and finalization
	// proceeds through the normal path.
}

func (s *Session) handleStream(ctx context.Context, item streamItem) {
	if s.turn == nil || item.turnId != s.turn.Id {
		return // stale chunk from a finished turn
	}

	if item.err != nil {
		if errors.Is(item.err, io.EOF) {
			s.finalizeTurn(ctx)
			return
		}
		s.failTurn(ctx, item.err)
		return
	}

	delta := s.turn.Assembler.Push(item.text)
	if delta.Text == "" && !delta.ToolChanged {
		return
	}
	s.sink.Push(dto.ServerFrame{
		Type: "chunk",
		Chunk: &dto.ChunkPayload{
			TurnId:      s.turn.Id,
			Text:        delta.Text,
			ActiveTool:  delta.ActiveTool,
			ToolChanged: delta.ToolChanged,
		},
	})
}

func (s *Session) handleDelivery(ctx context.Context, ev realtime.Event) {
	msg, applied := s.reconciler.Merge(ctx, s.state, s.userId, ev)
	if applied {
		s.emitMessage(msg)
	}
}

func (s *Session) handleMode(mode collab.Mode) {
	if mode == collab.ModeCollaborative {
		if err := s.reconciler.OpenBroadcast(); err != nil {
			s.logger.Warn("ChatSession", "Retroactive broadcast subscribe failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	s.emitState()
}

// finalizeTurn persists the assembled output and returns the session to Idle.
func (s *Session) finalizeTurn(ctx context.Context) {
	turn := s.turn
	s.setPhase(PhaseFinalizing)

	final := turn.Assembler.Finalize()
	cancelled := turn.Cancelled
	if cancelled && final != "" {
		final += constant.GenerationStoppedSuffix
	}

	var finalMsg *dto.MessageResponse
	if final != "" {
		msg := entity.Message{
			Id:             uuid.New(),
			ConversationId: s.state.Conversation().Id,
			Role:           constant.MessageRoleAssistant,
			Content:        final,
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.store.SaveMessage(ctx, &msg); err != nil {
			// The client already saw the streamed text; keep it locally and
			// surface the persistence problem instead of discarding output.
			s.emitError("persist_failed", "could not persist assistant message")
			s.logger.Error("ChatSession", "Assistant message persist failed", map[string]interface{}{
				"conversation_id": msg.ConversationId,
				"error":           err.Error(),
			})
		}
		s.state.Append(msg)
		resp := dto.MessageResponseFromEntity(msg)
		finalMsg = &resp
	}

	s.finishTurn(ctx, turn, cancelled, finalMsg)
}

// failTurn converts a provider failure into a visible assistant message, so
// the error survives reloads like any other message.
func (s *Session) failTurn(ctx context.Context, cause error) {
	turn := s.turn
	s.setPhase(PhaseFinalizing)

	content := constant.GenerationFailedPrefix + providerFailureText(cause)
	if partial := turn.Assembler.Finalize(); partial != "" {
		content = partial + "\n\n" + content
	}

	msg := entity.Message{
		Id:             uuid.New(),
		ConversationId: s.state.Conversation().Id,
		Role:           constant.MessageRoleAssistant,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.SaveMessage(ctx, &msg); err != nil {
		s.logger.Error("ChatSession", "Failure message persist failed", map[string]interface{}{
			"conversation_id": msg.ConversationId,
			"error":           err.Error(),
		})
	}
	s.state.Append(msg)

	s.logger.Warn("ChatSession", "Turn failed", map[string]interface{}{
		"conversation_id": msg.ConversationId,
		"turn_id":         turn.Id,
		"error":           cause.Error(),
	})

	resp := dto.MessageResponseFromEntity(msg)
	s.finishTurn(ctx, turn, false, &resp)
}

func (s *Session) finishTurn(ctx context.Context, turn *Turn, cancelled bool, finalMsg *dto.MessageResponse) {
	conv := s.state.Conversation()
	if err := s.store.TouchLastActivity(ctx, conv.Id); err != nil {
		s.logger.Warn("ChatSession", "Touch last activity failed", map[string]interface{}{
			"conversation_id": conv.Id,
			"error":           err.Error(),
		})
	}

	s.sink.Push(dto.ServerFrame{
		Type: "turn_done",
		TurnDone: &dto.TurnDonePayload{
			TurnId:    turn.Id,
			Cancelled: cancelled,
			Message:   finalMsg,
		},
	})

	// First completed exchange: queue background title generation.
	if s.titles != nil && s.state.Len() <= 2 {
		s.titles.RequestTitle(conv.Id)
	}

	s.turn = nil
	s.setPhase(PhaseIdle)
}

func (s *Session) pump(turnId uuid.UUID, handle llm.StreamHandle) {
	for {
		text, err := handle.Recv()
		item := streamItem{turnId: turnId, text: text, err: err}
		select {
		case s.streamCh <- item:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) buildHistory() []llm.Message {
	msgs := s.state.Messages()
	history := make([]llm.Message, 0, len(msgs))
	for _, msg := range msgs {
		lm := llm.Message{Role: msg.Role, Content: msg.Content}
		for _, att := range msg.Attachments {
			if att.Kind == constant.AttachmentKindImage && att.Preview != "" {
				lm.Images = append(lm.Images, att.Preview)
			}
		}
		history = append(history, lm)
	}
	return history
}

func (s *Session) buildOptions(ctx context.Context, payload *dto.SendPayload) []llm.Option {
	var opts []llm.Option
	conv := s.state.Conversation()
	if conv.SystemPrompt != "" {
		opts = append(opts, llm.WithSystemPrompt(conv.SystemPrompt))
	}
	// A per-send model overrides the conversation default.
	switch {
	case payload.Model != "":
		opts = append(opts, llm.WithModel(payload.Model))
	case conv.Model != "":
		opts = append(opts, llm.WithModel(conv.Model))
	}
	if payload.WebSearch {
		opts = append(opts, llm.WithWebSearch(true))
	}
	if payload.DeepResearch {
		opts = append(opts, llm.WithDeepResearch(true))
	}
	if len(payload.ToolServers) > 0 {
		known := make([]string, 0, len(payload.ToolServers))
		for _, id := range payload.ToolServers {
			if s.catalog == nil || s.catalog.Known(ctx, id) {
				known = append(known, id)
				continue
			}
			s.logger.Warn("ChatSession", "Dropping unknown tool server", map[string]interface{}{
				"tool_server": id,
			})
		}
		if len(known) > 0 {
			opts = append(opts, llm.WithToolServers(known))
		}
	}
	return opts
}

func (s *Session) setPhase(phase Phase) {
	if s.phase == phase {
		return
	}
	s.phase = phase
	s.emitState()
}

func (s *Session) currentMode() string {
	if s.state.Conversation() == nil {
		return collab.ModePrivate.String()
	}
	return s.detector.Mode().String()
}

// emitState sends a lightweight phase/mode update.
func (s *Session) emitState() {
	payload := &dto.StatePayload{
		Phase: s.phase.String(),
		Mode:  s.currentMode(),
	}
	if conv := s.state.Conversation(); conv != nil {
		payload.ConversationId = &conv.Id
	}
	s.sink.Push(dto.ServerFrame{Type: "state", State: payload})
}

// emitStateSnapshot sends the full conversation snapshot after an open.
func (s *Session) emitStateSnapshot() {
	payload := &dto.StatePayload{
		Phase: s.phase.String(),
		Mode:  s.currentMode(),
	}
	if conv := s.state.Conversation(); conv != nil {
		payload.ConversationId = &conv.Id
		msgs := s.state.Messages()
		payload.Messages = make([]dto.MessageResponse, 0, len(msgs))
		for _, msg := range msgs {
			payload.Messages = append(payload.Messages, dto.MessageResponseFromEntity(msg))
		}
	}
	s.sink.Push(dto.ServerFrame{Type: "state", State: payload})
}

func (s *Session) emitMessage(msg entity.Message) {
	resp := dto.MessageResponseFromEntity(msg)
	s.sink.Push(dto.ServerFrame{Type: "message", Message: &resp})
}

func (s *Session) emitError(code, message string) {
	s.sink.Push(dto.ServerFrame{Type: "error", Error: &dto.ErrorPayload{Code: code, Message: message}})
}

func providerFailureText(err error) string {
	var provErr *llm.ProviderError
	if errors.As(err, &provErr) && provErr.Message != "" {
		return "Generation failed: " + provErr.Message
	}
	return "Generation failed: the model provider could not be reached."
}
