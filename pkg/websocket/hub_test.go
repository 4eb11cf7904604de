package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"hustconnect/pkg/broker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg, ok := <-c.Send():
		require.True(t, ok, "发送通道已关闭")
		return msg
	case <-time.After(time.Second):
		t.Fatal("超时未收到消息")
		return nil
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	// ClientCount 经过 Hub 协程，保证此前的投递已处理
	select {
	case msg := <-c.Send():
		t.Fatalf("不应收到消息: %s", msg)
	default:
	}
}

func TestHub_RoomFanOut(t *testing.T) {
	hub := startHub(t)
	a := NewClient(1, 8)
	b := NewClient(2, 8)
	outsider := NewClient(3, 8)
	for _, c := range []*Client{a, b, outsider} {
		hub.Register(c)
	}
	hub.Join(a, 10)
	hub.Join(b, 10)
	require.Equal(t, 2, hub.RoomSize(10))

	hub.Deliver(broker.ConversationTopic(10), []byte("hello"))
	assert.Equal(t, "hello", string(receive(t, a)))
	assert.Equal(t, "hello", string(receive(t, b)))
	hub.ClientCount()
	assertNothing(t, outsider)

	hub.Leave(b, 10)
	assert.Equal(t, 1, hub.RoomSize(10))
	hub.Deliver(broker.ConversationTopic(10), []byte("again"))
	assert.Equal(t, "again", string(receive(t, a)))
	hub.ClientCount()
	assertNothing(t, b)
}

func TestHub_UserTopicReachesAllConnections(t *testing.T) {
	hub := startHub(t)
	phone := NewClient(5, 8)
	laptop := NewClient(5, 8)
	hub.Register(phone)
	hub.Register(laptop)
	require.Equal(t, 2, hub.UserConnections(5))

	hub.Deliver(broker.UserTopic(5), []byte("ping"))
	assert.Equal(t, "ping", string(receive(t, phone)))
	assert.Equal(t, "ping", string(receive(t, laptop)))
}

func TestHub_UnregisterCleansRooms(t *testing.T) {
	hub := startHub(t)
	c := NewClient(1, 8)
	hub.Register(c)
	hub.Join(c, 7)
	hub.Join(c, 8)

	hub.Unregister(c)
	hub.Unregister(c)
	assert.Equal(t, 0, hub.RoomSize(7))
	assert.Equal(t, 0, hub.RoomSize(8))
	assert.Equal(t, 0, hub.ClientCount())

	_, ok := <-c.Send()
	assert.False(t, ok)
}

func TestHub_JoinIgnoredForUnknownClient(t *testing.T) {
	hub := startHub(t)
	hub.Join(NewClient(1, 8), 3)
	assert.Equal(t, 0, hub.RoomSize(3))
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := startHub(t)
	slow := NewClient(1, 1)
	fast := NewClient(2, 8)
	hub.Register(slow)
	hub.Register(fast)
	hub.Join(slow, 1)
	hub.Join(fast, 1)

	hub.Deliver(broker.ConversationTopic(1), []byte("1"))
	hub.Deliver(broker.ConversationTopic(1), []byte("2"))

	assert.Equal(t, "1", string(receive(t, fast)))
	assert.Equal(t, "2", string(receive(t, fast)))
	assert.Equal(t, 1, hub.RoomSize(1))

	assert.Equal(t, "1", string(<-slow.Send()))
	_, ok := <-slow.Send()
	assert.False(t, ok)
}

func TestHub_QueryObservesQueuedDeliveries(t *testing.T) {
	hub := startHub(t)
	slow := NewClient(1, 1)
	hub.Register(slow)
	hub.Join(slow, 1)

	for i := 0; i < 3; i++ {
		hub.Deliver(broker.ConversationTopic(1), []byte("x"))
	}
	// 投递尚在队列中也不影响查询结果
	assert.Equal(t, 0, hub.RoomSize(1))
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_SendTo(t *testing.T) {
	hub := startHub(t)
	a := NewClient(1, 8)
	b := NewClient(1, 8)
	hub.Register(a)
	hub.Register(b)

	hub.SendTo(a, []byte("only-a"))
	assert.Equal(t, "only-a", string(receive(t, a)))
	hub.ClientCount()
	assertNothing(t, b)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	c := NewClient(1, 8)
	hub.Register(c)
	cancel()
	<-done

	_, ok := <-c.Send()
	assert.False(t, ok)

	// 停止后的调用立即返回
	hub.Register(NewClient(2, 8))
	hub.Deliver(broker.UserTopic(2), nil)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestPublisher_ThroughLocalBroker(t *testing.T) {
	hub := startHub(t)
	b := broker.NewLocal()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Subscribe(ctx, b) }()
	require.Eventually(t, func() bool { return b.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	c := NewClient(4, 8)
	hub.Register(c)
	hub.Join(c, 12)

	pub := NewPublisher(b)
	require.NoError(t, pub.PublishNewMessage(ctx, 12, map[string]interface{}{"content": "hi"}))

	var env Envelope
	require.NoError(t, json.Unmarshal(receive(t, c), &env))
	assert.Equal(t, EventNewMessage, env.Type)
	assert.Equal(t, uint(12), env.ConversationID)
	assert.Equal(t, "hi", env.Message.(map[string]interface{})["content"])

	require.NoError(t, pub.PublishNotification(ctx, 4, map[string]interface{}{"title": "t"}))
	require.NoError(t, json.Unmarshal(receive(t, c), &env))
	assert.Equal(t, EventNotification, env.Type)
}
