package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"hustconnect/internal/model"
	"hustconnect/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrCreateConversation_Direct(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.createUser(t, "alice", model.RoleNormal)
	b := env.createUser(t, "bob", model.RoleNormal)

	first, err := env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{b.ID})
	require.NoError(t, err)
	assert.True(t, first.IsNew)
	require.NotNil(t, first.OtherParticipant)
	assert.Equal(t, b.ID, first.OtherParticipant.ID)
	assert.Len(t, first.Participants, 2)

	// 调用者出现在列表中会被忽略
	second, err := env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{a.ID, b.ID, b.ID})
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.ID, second.ID)

	fromB, err := env.conversations.FindOrCreateConversation(ctx, b.ID, []uint{a.ID})
	require.NoError(t, err)
	assert.False(t, fromB.IsNew)
	assert.Equal(t, first.ID, fromB.ID)
	assert.Equal(t, a.ID, fromB.OtherParticipant.ID)
}

func TestFindOrCreateConversation_Invalid(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.createUser(t, "alice", model.RoleNormal)

	_, err := env.conversations.FindOrCreateConversation(ctx, a.ID, nil)
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
	_, err = env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{a.ID})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
	_, err = env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{404})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestFindOrCreateConversation_ConcurrentConverges(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.createUser(t, "alice", model.RoleNormal)
	b := env.createUser(t, "bob", model.RoleNormal)

	const n = 6
	var wg sync.WaitGroup
	ids := make([]uint, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller, other := a.ID, b.ID
			if i%2 == 1 {
				caller, other = b.ID, a.ID
			}
			res, err := env.conversations.FindOrCreateConversation(ctx, caller, []uint{other})
			errs[i] = err
			if err == nil {
				ids[i] = res.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	var count int64
	require.NoError(t, env.db.Model(&model.Conversation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFindOrCreateConversation_GroupAlwaysNew(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.createUser(t, "alice", model.RoleNormal)
	b := env.createUser(t, "bob", model.RoleNormal)
	c := env.createUser(t, "carol", model.RoleNormal)

	g1, err := env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{b.ID, c.ID})
	require.NoError(t, err)
	assert.True(t, g1.IsNew)
	assert.Len(t, g1.Participants, 3)

	g2, err := env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{c.ID, b.ID})
	require.NoError(t, err)
	assert.True(t, g2.IsNew)
	assert.NotEqual(t, g1.ID, g2.ID)

	direct, err := env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{b.ID})
	require.NoError(t, err)
	assert.True(t, direct.IsNew, "群聊不算一对一会话")
}

func TestSendMessage_Validation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.createUser(t, "alice", model.RoleNormal)
	b := env.createUser(t, "bob", model.RoleNormal)
	outsider := env.createUser(t, "eve", model.RoleNormal)
	conv, err := env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{b.ID})
	require.NoError(t, err)

	_, err = env.conversations.SendMessage(ctx, a.ID, 999, "hi")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = env.conversations.SendMessage(ctx, outsider.ID, conv.ID, "hi")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Equal(t, apperr.ReasonNotParticipant, apperr.ReasonOf(err))

	_, err = env.conversations.SendMessage(ctx, a.ID, conv.ID, "   ")
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	msg, err := env.conversations.SendMessage(ctx, a.ID, conv.ID, " hi ")
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Content)
	assert.False(t, msg.IsRead)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "alice", msg.Sender.Name)

	var stored model.Message
	require.NoError(t, env.db.First(&stored, msg.ID).Error)
	assert.Equal(t, "hi", stored.Content)
}

func TestSendMessage_BumpsUpdatedAtAndPublishes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.createUser(t, "alice", model.RoleNormal)
	b := env.createUser(t, "bob", model.RoleNormal)
	conv, err := env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{b.ID})
	require.NoError(t, err)

	base := time.Now().Add(time.Hour)
	env.conversations.now = func() time.Time { return base }
	msg, err := env.conversations.SendMessage(ctx, a.ID, conv.ID, "hello")
	require.NoError(t, err)

	var stored model.Conversation
	require.NoError(t, env.db.First(&stored, conv.ID).Error)
	assert.False(t, stored.UpdatedAt.Before(msg.Timestamp))

	// 较早时间戳的消息晚提交，不会让 updated_at 回退
	env.conversations.now = func() time.Time { return base.Add(-time.Minute) }
	_, err = env.conversations.SendMessage(ctx, b.ID, conv.ID, "late commit")
	require.NoError(t, err)
	require.NoError(t, env.db.First(&stored, conv.ID).Error)
	assert.False(t, stored.UpdatedAt.Before(base))

	env.publisher.mu.Lock()
	defer env.publisher.mu.Unlock()
	require.Len(t, env.publisher.messages, 2)
	assert.Equal(t, conv.ID, env.publisher.messages[0].target)
	assert.Equal(t, msg.ID, env.publisher.messages[0].payload.(*MessageView).ID)
}

func TestSendMessage_PublishFailureKeepsMessage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.createUser(t, "alice", model.RoleNormal)
	b := env.createUser(t, "bob", model.RoleNormal)
	conv, err := env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{b.ID})
	require.NoError(t, err)

	env.publisher.err = errors.New("broker down")
	msg, err := env.conversations.SendMessage(ctx, a.ID, conv.ID, "still saved")
	require.NoError(t, err)

	var count int64
	require.NoError(t, env.db.Model(&model.Message{}).Where("id = ?", msg.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestListConversations_BothSidesSeeLastMessage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.createUser(t, "alice", model.RoleNormal)
	b := env.createUser(t, "bob", model.RoleNormal)
	c := env.createUser(t, "carol", model.RoleNormal)

	ab, err := env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{b.ID})
	require.NoError(t, err)
	ac, err := env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{c.ID})
	require.NoError(t, err)

	base := time.Now()
	tick := 0
	env.conversations.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	_, err = env.conversations.SendMessage(ctx, a.ID, ab.ID, "hi bob")
	require.NoError(t, err)
	last, err := env.conversations.SendMessage(ctx, b.ID, ab.ID, "hi alice")
	require.NoError(t, err)
	_, err = env.conversations.SendMessage(ctx, c.ID, ac.ID, "older")
	require.NoError(t, err)
	_, err = env.conversations.SendMessage(ctx, b.ID, ab.ID, "newest")
	require.NoError(t, err)

	forA, err := env.conversations.ListConversations(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, forA, 2)
	assert.Equal(t, ab.ID, forA[0].ID, "最近活跃的在前")
	assert.Equal(t, ac.ID, forA[1].ID)
	assert.Equal(t, b.ID, forA[0].OtherParticipant.ID)
	assert.Equal(t, "newest", forA[0].LastMessage.Content)
	assert.Equal(t, int64(2), forA[0].UnreadCount)
	assert.Equal(t, int64(1), forA[1].UnreadCount)

	forB, err := env.conversations.ListConversations(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, forB, 1)
	assert.Equal(t, ab.ID, forB[0].ID)
	assert.Equal(t, forA[0].LastMessage.ID, forB[0].LastMessage.ID)
	assert.Equal(t, forA[0].LastMessage.Content, forB[0].LastMessage.Content)
	assert.Equal(t, a.ID, forB[0].OtherParticipant.ID)
	assert.Equal(t, int64(1), forB[0].UnreadCount)
	assert.NotEqual(t, last.ID, forB[0].LastMessage.ID)
}

func TestListConversations_LastMessagePerConversation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.createUser(t, "alice", model.RoleNormal)
	others := make([]*model.User, 3)
	convIDs := make([]uint, 3)
	for i := range others {
		others[i] = env.createUser(t, fmt.Sprintf("user%d", i), model.RoleNormal)
		res, err := env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{others[i].ID})
		require.NoError(t, err)
		convIDs[i] = res.ID
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			_, err := env.conversations.SendMessage(ctx, others[i].ID, convIDs[i], fmt.Sprintf("c%d-m%d", i, j))
			require.NoError(t, err)
		}
	}

	list, err := env.conversations.ListConversations(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	byID := make(map[uint]ConversationView, len(list))
	for _, v := range list {
		byID[v.ID] = v
	}
	for i := 0; i < 2; i++ {
		last := byID[convIDs[i]].LastMessage
		require.NotNil(t, last)
		assert.Equal(t, fmt.Sprintf("c%d-m2", i), last.Content)
		require.NotNil(t, last.Sender)
		assert.Equal(t, others[i].Name, last.Sender.Name)
	}
	assert.Nil(t, byID[convIDs[2]].LastMessage, "没有消息的会话")
}

func TestDeleteConversation_CascadesMessages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.createUser(t, "alice", model.RoleNormal)
	b := env.createUser(t, "bob", model.RoleNormal)
	conv, err := env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{b.ID})
	require.NoError(t, err)
	_, err = env.conversations.SendMessage(ctx, a.ID, conv.ID, "hello")
	require.NoError(t, err)
	_, err = env.conversations.SendMessage(ctx, b.ID, conv.ID, "hi")
	require.NoError(t, err)

	require.NoError(t, env.db.Where("conversation_id = ?", conv.ID).Delete(&model.ConversationParticipant{}).Error)
	require.NoError(t, env.db.Delete(&model.Conversation{}, conv.ID).Error)

	var count int64
	require.NoError(t, env.db.Model(&model.Message{}).Where("conversation_id = ?", conv.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestOpenConversation_MarksReadAndPaginates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.createUser(t, "alice", model.RoleNormal)
	b := env.createUser(t, "bob", model.RoleNormal)
	outsider := env.createUser(t, "eve", model.RoleNormal)
	conv, err := env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{b.ID})
	require.NoError(t, err)

	base := time.Now()
	tick := 0
	env.conversations.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}
	for i := 0; i < 5; i++ {
		_, err := env.conversations.SendMessage(ctx, a.ID, conv.ID, "from a")
		require.NoError(t, err)
	}
	mine, err := env.conversations.SendMessage(ctx, b.ID, conv.ID, "from b")
	require.NoError(t, err)

	_, err = env.conversations.OpenConversation(ctx, outsider.ID, conv.ID, 1, 20)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = env.conversations.OpenConversation(ctx, a.ID, 999, 1, 20)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	page, err := env.conversations.OpenConversation(ctx, b.ID, conv.ID, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 1, PerPage: 4, Total: 6, Pages: 2}, page.Pagination)
	require.Len(t, page.Messages, 4)
	assert.Equal(t, mine.ID, page.Messages[0].ID, "最新的在前")
	for i := 1; i < len(page.Messages); i++ {
		assert.False(t, page.Messages[i].Timestamp.After(page.Messages[i-1].Timestamp))
	}

	var unreadFromA, unreadFromB int64
	require.NoError(t, env.db.Model(&model.Message{}).Where("sender_id = ? AND is_read = ?", a.ID, false).Count(&unreadFromA).Error)
	require.NoError(t, env.db.Model(&model.Message{}).Where("sender_id = ? AND is_read = ?", b.ID, false).Count(&unreadFromB).Error)
	assert.Equal(t, int64(0), unreadFromA)
	assert.Equal(t, int64(1), unreadFromB, "自己发送的消息不会被自己标记为已读")

	page2, err := env.conversations.OpenConversation(ctx, b.ID, conv.ID, 2, 4)
	require.NoError(t, err)
	assert.Len(t, page2.Messages, 2)

	// 页码与页大小被修正到合法范围
	clamped, err := env.conversations.OpenConversation(ctx, b.ID, conv.ID, -3, 10_000)
	require.NoError(t, err)
	assert.Equal(t, 1, clamped.Pagination.Page)
	assert.Equal(t, 50, clamped.Pagination.PerPage)
	defaulted, err := env.conversations.OpenConversation(ctx, b.ID, conv.ID, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, defaulted.Pagination.PerPage)
}

func TestReadStateIsMonotonic(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.createUser(t, "alice", model.RoleNormal)
	b := env.createUser(t, "bob", model.RoleNormal)
	conv, err := env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{b.ID})
	require.NoError(t, err)

	msg, err := env.conversations.SendMessage(ctx, a.ID, conv.ID, "read me")
	require.NoError(t, err)
	_, err = env.conversations.OpenConversation(ctx, b.ID, conv.ID, 1, 20)
	require.NoError(t, err)

	// 后续的任何操作都不会把已读改回未读
	_, err = env.conversations.OpenConversation(ctx, a.ID, conv.ID, 1, 20)
	require.NoError(t, err)
	_, err = env.conversations.SendMessage(ctx, a.ID, conv.ID, "another")
	require.NoError(t, err)
	_, err = env.conversations.ListConversations(ctx, a.ID)
	require.NoError(t, err)

	var stored model.Message
	require.NoError(t, env.db.First(&stored, msg.ID).Error)
	assert.True(t, stored.IsRead)
}

func TestIsParticipant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.createUser(t, "alice", model.RoleNormal)
	b := env.createUser(t, "bob", model.RoleNormal)
	c := env.createUser(t, "carol", model.RoleNormal)
	conv, err := env.conversations.FindOrCreateConversation(ctx, a.ID, []uint{b.ID})
	require.NoError(t, err)

	ok, err := env.conversations.IsParticipant(ctx, conv.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = env.conversations.IsParticipant(ctx, conv.ID, c.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
