package chat

import (
	"testing"

	"onbrand-chat-be/internal/constant"
	"onbrand-chat-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestState_AppendIsIdempotent(t *testing.T) {
	state := NewState()
	msg := entity.Message{Id: uuid.New(), Role: constant.MessageRoleUser, Content: "once"}

	state.Append(msg)
	state.Append(msg)

	assert.Equal(t, 1, state.Len())
	assert.True(t, state.Contains(msg.Id))
}

func TestState_LoadReplacesEverything(t *testing.T) {
	state := NewState()
	state.Append(entity.Message{Id: uuid.New(), Content: "old"})

	conv := &entity.Conversation{Id: uuid.New()}
	fresh := []entity.Message{
		{Id: uuid.New(), Content: "first"},
		{Id: uuid.New(), Content: "second"},
	}
	state.Load(conv, fresh)

	assert.Equal(t, conv, state.Conversation())
	assert.Equal(t, 2, state.Len())
	assert.Equal(t, "first", state.Messages()[0].Content)
}

func TestState_UpdateKeepsPosition(t *testing.T) {
	state := NewState()
	first := entity.Message{Id: uuid.New(), Content: "a"}
	second := entity.Message{Id: uuid.New(), Content: "b"}
	state.Append(first)
	state.Append(second)

	first.Content = "a-edited"
	state.Update(first)

	assert.Equal(t, "a-edited", state.Messages()[0].Content)
	assert.Equal(t, "b", state.Messages()[1].Content)
}

func TestState_ClearDropsConversation(t *testing.T) {
	state := NewState()
	state.Load(&entity.Conversation{Id: uuid.New()}, []entity.Message{{Id: uuid.New()}})

	state.Clear()

	assert.Nil(t, state.Conversation())
	assert.Equal(t, 0, state.Len())
}
