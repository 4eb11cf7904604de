package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceData 在线状态数据
type PresenceData struct {
	UserID      uint      `json:"userId"`
	Online      bool      `json:"online"`
	LastSeen    time.Time `json:"lastSeen"`
	Connections int64     `json:"connections"` // 当前活跃的WebSocket连接数
}

// 在线状态相关常量
const (
	PresenceKeyPrefix = "hc:presence:user:" // 用户在线状态key前缀
	OnlineUsersKey    = "hc:online:users"   // 在线用户集合key
	PresenceTTL       = 2 * time.Minute     // 在线状态TTL（2倍心跳周期）
)

// Presence 基于Redis的在线状态；同一用户多端连接时按连接数计数
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresence 创建在线状态存储，client 为 nil 时所有操作为空操作
func NewPresence(client *redis.Client) *Presence {
	return &Presence{client: client, ttl: PresenceTTL}
}

func presenceKey(userID uint) string {
	return PresenceKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// Enabled 是否配置了Redis
func (p *Presence) Enabled() bool {
	return p != nil && p.client != nil
}

// SetOnline 新连接建立
func (p *Presence) SetOnline(ctx context.Context, userID uint) error {
	if !p.Enabled() {
		return nil
	}
	key := presenceKey(userID)

	pipe := p.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "connections", 1)
	pipe.HSet(ctx, key, "lastSeen", time.Now().Unix())
	pipe.Expire(ctx, key, p.ttl)
	pipe.SAdd(ctx, OnlineUsersKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("设置用户在线状态失败: %w", err)
	}
	return nil
}

// Refresh 心跳刷新（延长TTL）
func (p *Presence) Refresh(ctx context.Context, userID uint) error {
	if !p.Enabled() {
		return nil
	}
	key := presenceKey(userID)

	ok, err := p.client.Expire(ctx, key, p.ttl).Result()
	if err != nil {
		return fmt.Errorf("刷新用户在线状态失败: %w", err)
	}
	if !ok {
		// 状态已过期，按新连接重新登记
		return p.SetOnline(ctx, userID)
	}
	return p.client.HSet(ctx, key, "lastSeen", time.Now().Unix()).Err()
}

// SetOffline 连接断开；最后一个连接断开时移除在线状态
func (p *Presence) SetOffline(ctx context.Context, userID uint) error {
	if !p.Enabled() {
		return nil
	}
	key := presenceKey(userID)

	remaining, err := p.client.HIncrBy(ctx, key, "connections", -1).Result()
	if err != nil {
		return fmt.Errorf("更新用户连接数失败: %w", err)
	}
	if remaining > 0 {
		return nil
	}

	pipe := p.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, OnlineUsersKey, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("删除用户在线状态失败: %w", err)
	}
	return nil
}

// IsOnline 检查用户是否在线
func (p *Presence) IsOnline(ctx context.Context, userID uint) (bool, error) {
	if !p.Enabled() {
		return false, nil
	}
	n, err := p.client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("检查用户在线状态失败: %w", err)
	}
	return n > 0, nil
}

// Get 获取用户在线状态；不在线时返回 Online=false
func (p *Presence) Get(ctx context.Context, userID uint) (*PresenceData, error) {
	data := &PresenceData{UserID: userID}
	if !p.Enabled() {
		return data, nil
	}

	fields, err := p.client.HGetAll(ctx, presenceKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("获取用户在线状态失败: %w", err)
	}
	if len(fields) == 0 {
		return data, nil
	}

	data.Connections, _ = strconv.ParseInt(fields["connections"], 10, 64)
	data.Online = data.Connections > 0
	if ts, err := strconv.ParseInt(fields["lastSeen"], 10, 64); err == nil {
		data.LastSeen = time.Unix(ts, 0)
	}
	return data, nil
}

// OnlineUsers 获取所有在线用户ID，顺带清理已过期的成员
func (p *Presence) OnlineUsers(ctx context.Context) ([]uint, error) {
	if !p.Enabled() {
		return nil, nil
	}
	members, err := p.client.SMembers(ctx, OnlineUsersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("获取在线用户列表失败: %w", err)
	}

	userIDs := make([]uint, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			continue
		}
		online, err := p.IsOnline(ctx, uint(id))
		if err != nil {
			return nil, err
		}
		if !online {
			// TTL过期的用户从集合中移除
			p.client.SRem(ctx, OnlineUsersKey, member)
			continue
		}
		userIDs = append(userIDs, uint(id))
	}
	return userIDs, nil
}
