package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -------------------- 统计 --------------------

type LatencyStats struct {
	Total   int
	Success int
	Failed  int
	Max     time.Duration
	Min     time.Duration
	sum     time.Duration
	mu      sync.Mutex
}

func (s *LatencyStats) Add(success bool, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Total++
	if !success {
		s.Failed++
		return
	}
	s.Success++
	s.sum += latency
	if latency > s.Max {
		s.Max = latency
	}
	if s.Min == 0 || latency < s.Min {
		s.Min = latency
	}
}

func (s *LatencyStats) Print(title string, took time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Printf("\n=== %s ===\n", title)
	fmt.Printf("总数: %d 成功: %d 失败: %d\n", s.Total, s.Success, s.Failed)
	if s.Success > 0 {
		fmt.Printf("延迟 平均: %v 最大: %v 最小: %v\n", s.sum/time.Duration(s.Success), s.Max, s.Min)
	}
	if took > 0 {
		fmt.Printf("吞吐: %.2f/s\n", float64(s.Success)/took.Seconds())
	}
}

// -------------------- HTTP --------------------

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) call(method, path string, body, out interface{}) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, env.Message)
	}
	if out != nil {
		return resp.StatusCode, json.Unmarshal(env.Data, out)
	}
	return resp.StatusCode, nil
}

type user struct {
	*client
	ID uint
}

func register(base, run string, i int) (*user, error) {
	c := &client{base: base, http: &http.Client{Timeout: 8 * time.Second}}
	var res struct {
		User  struct{ ID uint } `json:"user"`
		Token string            `json:"token"`
	}
	_, err := c.call(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name":     fmt.Sprintf("bench-%d", i),
		"email":    fmt.Sprintf("bench-%s-%d@example.com", run, i),
		"password": "bench-password",
	}, &res)
	if err != nil {
		return nil, err
	}
	c.token = res.Token
	return &user{client: c, ID: res.User.ID}, nil
}

// -------------------- WebSocket --------------------

func dialWS(base, token string, conversationID uint) (*websocket.Conn, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}
	join := map[string]interface{}{"type": "join", "conversationId": conversationID}
	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		return nil, err
	}
	// 等待 joined 确认
	for {
		var ev struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			conn.Close()
			return nil, err
		}
		if ev.Type == "joined" {
			return conn, nil
		}
		if ev.Type == "error" {
			conn.Close()
			return nil, fmt.Errorf("join rejected")
		}
	}
}

// -------------------- 压测 --------------------

func runPair(base, run string, id, messages int, httpStats, deliveryStats *LatencyStats) error {
	sender, err := register(base, run, id*2)
	if err != nil {
		return err
	}
	receiver, err := register(base, run, id*2+1)
	if err != nil {
		return err
	}

	var conv struct {
		ID uint `json:"id"`
	}
	if _, err := sender.call(http.MethodPost, "/api/v1/conversations", map[string]interface{}{
		"participantIds": []uint{receiver.ID},
	}, &conv); err != nil {
		return err
	}

	conn, err := dialWS(base, receiver.token, conv.ID)
	if err != nil {
		return err
	}
	defer conn.Close()

	sentAt := make(map[string]time.Time, messages)
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		defer close(done)
		received := 0
		for received < messages {
			_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
			var ev struct {
				Type    string `json:"type"`
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			}
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			if ev.Type != "new_message" {
				continue
			}
			mu.Lock()
			start, ok := sentAt[ev.Message.Content]
			mu.Unlock()
			deliveryStats.Add(ok, time.Since(start))
			received++
		}
	}()

	for j := 0; j < messages; j++ {
		content := uuid.NewString()
		mu.Lock()
		sentAt[content] = time.Now()
		mu.Unlock()

		start := time.Now()
		_, err := sender.call(http.MethodPost, fmt.Sprintf("/api/v1/conversations/%d/messages", conv.ID),
			map[string]string{"content": content}, nil)
		httpStats.Add(err == nil, time.Since(start))
	}
	<-done
	return nil
}

// -------------------- 入口 --------------------

func main() {
	base := flag.String("base", "http://localhost:8080", "服务地址")
	pairs := flag.Int("pairs", 5, "并发会话数（每个会话两名用户）")
	messages := flag.Int("messages", 20, "每个会话发送的消息数")
	flag.Parse()

	run := uuid.NewString()[:8]
	fmt.Println("=== HustConnect 消息压测 ===")
	fmt.Printf("开始时间: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Printf("目标: %s 会话: %d 每会话消息: %d\n", *base, *pairs, *messages)

	httpStats := &LatencyStats{}
	deliveryStats := &LatencyStats{}
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < *pairs; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := runPair(*base, run, id, *messages, httpStats, deliveryStats); err != nil {
				fmt.Printf("会话 %d 失败: %v\n", id, err)
			}
		}(i)
	}
	wg.Wait()
	took := time.Since(start)

	httpStats.Print("发送消息（HTTP）", took)
	deliveryStats.Print("实时投递（WebSocket）", took)
	fmt.Println("\n=== 测试完成 ===")
}
