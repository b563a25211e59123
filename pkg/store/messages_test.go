package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vladislav-moscow/Social/pkg/api"
)

func msg(id, sender, text string) api.Message {
	return api.Message{ID: id, ConversationID: "c1", Sender: sender, Text: text, CreatedAt: time.Now()}
}

func TestFetchMessagesReplacesList(t *testing.T) {
	m := new(mockAPI)
	m.On("GetMessages", mock.Anything, "c1").Return([]api.Message{msg("m1", "alice", "a"), msg("m2", "bob", "b")}, nil)

	s := NewMessageStore(m)
	s.UpdateMessages("c1", LiveEvent{SenderID: "bob", Text: "stale"})

	list, err := s.FetchMessages(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "m1", list[0].ID)
	assert.Equal(t, "m2", list[1].ID)
	assert.False(t, s.IsFetching())
}

func TestIsFetchingWhileInFlight(t *testing.T) {
	m := new(mockAPI)
	release := make(chan struct{})
	m.On("GetMessages", mock.Anything, "c1").
		Run(func(mock.Arguments) { <-release }).
		Return([]api.Message{}, nil)

	s := NewMessageStore(m)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.FetchMessages(context.Background(), "c1")
	}()

	assert.Eventually(t, s.IsFetching, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()
	assert.False(t, s.IsFetching())
}

func TestSendMessageAppendsServerRecord(t *testing.T) {
	m := new(mockAPI)
	stored := msg("m1", "alice", "hi")
	m.On("CreateMessage", mock.Anything, api.CreateMessageRequest{ConversationID: "c1", Sender: "alice", Text: "hi"}).
		Return(&stored, nil)

	s := NewMessageStore(m)
	got, err := s.SendMessage(context.Background(), NewMessage{ConversationID: "c1", Sender: "alice", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ID)

	list := s.Messages("c1")
	require.Len(t, list, 1)
	assert.False(t, list[0].Live)
	m.AssertNotCalled(t, "UploadImage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageUploadsImageFirst(t *testing.T) {
	m := new(mockAPI)
	m.On("UploadImage", mock.Anything, "/tmp/cat.PNG", mock.MatchedBy(func(name string) bool {
		return len(name) > len(".png") && name[len(name)-4:] == ".png"
	})).Return(&api.UploadResult{Name: "generated.png"}, nil)
	m.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req api.CreateMessageRequest) bool {
		return req.Img == "generated.png"
	})).Return(&api.Message{ID: "m1", ConversationID: "c1", Sender: "alice", Img: "generated.png"}, nil)

	s := NewMessageStore(m)
	got, err := s.SendMessage(context.Background(), NewMessage{ConversationID: "c1", Sender: "alice", ImagePath: "/tmp/cat.PNG"})
	require.NoError(t, err)
	assert.Equal(t, "generated.png", got.Img)
	m.AssertExpectations(t)
}

func TestSendMessageFailureLeavesNoTrace(t *testing.T) {
	m := new(mockAPI)
	m.On("UploadImage", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("upload failed"))

	s := NewMessageStore(m)
	_, err := s.SendMessage(context.Background(), NewMessage{ConversationID: "c1", Sender: "alice", ImagePath: "x.png"})
	assert.Error(t, err)
	assert.Equal(t, "upload failed", s.Err())
	assert.Empty(t, s.Messages("c1"))
	m.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)

	m2 := new(mockAPI)
	m2.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("[403] FORBIDDEN"))
	s = NewMessageStore(m2)
	_, err = s.SendMessage(context.Background(), NewMessage{ConversationID: "c1", Sender: "eve", Text: "x"})
	assert.Error(t, err)
	assert.Equal(t, "[403] FORBIDDEN", s.Err())
	assert.Empty(t, s.Messages("c1"))
}

func TestUpdateMessagesAppendsInArrivalOrder(t *testing.T) {
	s := NewMessageStore(new(mockAPI))
	assert.True(t, s.UpdateMessages("c1", LiveEvent{SenderID: "bob", Text: "one"}))
	assert.True(t, s.UpdateMessages("c1", LiveEvent{SenderID: "bob", Text: "two"}))

	list := s.Messages("c1")
	require.Len(t, list, 2)
	assert.Equal(t, "one", list[0].Text)
	assert.Equal(t, "two", list[1].Text)
	assert.True(t, list[0].Live)
}

func TestLiveEventWithKnownIDIsIgnored(t *testing.T) {
	s := NewMessageStore(new(mockAPI))
	s.ApplyPersisted(msg("m1", "bob", "hi"))

	assert.False(t, s.UpdateMessages("c1", LiveEvent{SenderID: "bob", Text: "hi", MessageID: "m1"}))
	assert.Len(t, s.Messages("c1"), 1)
}

func TestPersistedReplacesLiveEventWithSameID(t *testing.T) {
	s := NewMessageStore(new(mockAPI))
	s.UpdateMessages("c1", LiveEvent{SenderID: "bob", Text: "hi", MessageID: "m1"})
	s.UpdateMessages("c1", LiveEvent{SenderID: "bob", Text: "after"})

	assert.False(t, s.ApplyPersisted(msg("m1", "bob", "hi")))

	list := s.Messages("c1")
	require.Len(t, list, 2)
	assert.Equal(t, "m1", list[0].ID)
	assert.False(t, list[0].Live)
}

func TestPersistedReplacesIDLessLiveEventInPlace(t *testing.T) {
	s := NewMessageStore(new(mockAPI))
	s.UpdateMessages("c1", LiveEvent{SenderID: "bob", Text: "hi"})
	s.UpdateMessages("c1", LiveEvent{SenderID: "bob", Text: "next"})

	assert.False(t, s.ApplyPersisted(msg("m1", "bob", "hi")))
	assert.True(t, s.ApplyPersisted(msg("m3", "alice", "new")))

	list := s.Messages("c1")
	require.Len(t, list, 3)
	assert.Equal(t, "m1", list[0].ID)
	assert.Equal(t, "next", list[1].Text)
	assert.Equal(t, "m3", list[2].ID)
}

func TestApplyPersistedTwiceKeepsOneEntry(t *testing.T) {
	s := NewMessageStore(new(mockAPI))
	assert.True(t, s.ApplyPersisted(msg("m1", "alice", "hi")))
	assert.False(t, s.ApplyPersisted(msg("m1", "alice", "hi")))
	assert.Len(t, s.Messages("c1"), 1)
}

func TestClearMessages(t *testing.T) {
	s := NewMessageStore(new(mockAPI))
	s.ApplyPersisted(msg("m1", "alice", "hi"))
	s.ApplyPersisted(api.Message{ID: "m2", ConversationID: "c2", Sender: "bob", Text: "yo"})

	s.ClearMessages("c1")
	assert.Empty(t, s.Messages("c1"))
	assert.Len(t, s.Messages("c2"), 1)

	s.ClearMessages("")
	assert.Empty(t, s.Messages("c2"))
}
