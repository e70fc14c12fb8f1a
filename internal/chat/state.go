package chat

import (
	"onbrand-chat-be/internal/entity"

	"github.com/google/uuid"
)

// State is the in-memory mirror of one open conversation. It is owned by a
// single session goroutine and is not safe for concurrent use; everything
// that mutates it runs on the session loop.
type State struct {
	conversation *entity.Conversation
	messages     []entity.Message
	index        map[uuid.UUID]int
}

func NewState() *State {
	return &State{index: make(map[uuid.UUID]int)}
}

// Load replaces the state with a freshly fetched snapshot.
func (s *State) Load(conv *entity.Conversation, messages []entity.Message) {
	s.conversation = conv
	s.messages = make([]entity.Message, 0, len(messages))
	s.index = make(map[uuid.UUID]int, len(messages))
	for _, msg := range messages {
		s.Append(msg)
	}
}

// Clear drops the open conversation, leaving the state empty.
func (s *State) Clear() {
	s.conversation = nil
	s.messages = nil
	s.index = make(map[uuid.UUID]int)
}

func (s *State) Conversation() *entity.Conversation {
	return s.conversation
}

func (s *State) SetConversation(conv *entity.Conversation) {
	s.conversation = conv
}

func (s *State) Contains(id uuid.UUID) bool {
	_, ok := s.index[id]
	return ok
}

func (s *State) Append(msg entity.Message) {
	if s.Contains(msg.Id) {
		return
	}
	s.index[msg.Id] = len(s.messages)
	s.messages = append(s.messages, msg)
}

// Update overwrites an existing message in place, keeping its position.
func (s *State) Update(msg entity.Message) {
	if i, ok := s.index[msg.Id]; ok {
		s.messages[i] = msg
	}
}

func (s *State) Messages() []entity.Message {
	return s.messages
}

func (s *State) Len() int {
	return len(s.messages)
}
