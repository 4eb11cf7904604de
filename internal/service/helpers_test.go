package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"hustconnect/config"
	"hustconnect/internal/model"
	"hustconnect/internal/repository"
	"hustconnect/pkg/db/dbtest"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type published struct {
	target  uint
	payload interface{}
}

type fakePublisher struct {
	mu            sync.Mutex
	messages      []published
	notifications []published
	err           error
}

func (p *fakePublisher) PublishNewMessage(_ context.Context, conversationID uint, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{conversationID, message})
	return p.err
}

func (p *fakePublisher) PublishNotification(_ context.Context, userID uint, notification interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, published{userID, notification})
	return p.err
}

type testEnv struct {
	db            *gorm.DB
	publisher     *fakePublisher
	users         *repository.UserRepository
	notifications *NotificationService
	relations     *RelationshipService
	companies     *CompanyService
	conversations *ConversationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := dbtest.New(t)
	tx := repository.NewTransactor(gdb)
	users := repository.NewUserRepository(gdb)
	companyRepo := repository.NewCompanyRepository(gdb)
	pub := &fakePublisher{}

	notifications := NewNotificationService(repository.NewNotificationRepository(gdb), pub)
	relations := NewRelationshipService(tx, repository.NewRelationshipRepository(gdb), users, companyRepo, notifications)
	return &testEnv{
		db:            gdb,
		publisher:     pub,
		users:         users,
		notifications: notifications,
		relations:     relations,
		companies:     NewCompanyService(tx, companyRepo, users, relations),
		conversations: NewConversationService(tx,
			repository.NewConversationRepository(gdb),
			repository.NewMessageRepository(gdb),
			users, pub,
			config.MessagingConfig{DefaultPageSize: 20, MaxPageSize: 50},
		),
	}
}

// createUser 直接写库，跳过 bcrypt
func (e *testEnv) createUser(t *testing.T, name, role string) *model.User {
	t.Helper()
	u := &model.User{
		Name:         name,
		Email:        fmt.Sprintf("%s@example.com", name),
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *testEnv) createCompany(t *testing.T, owner *model.User, name string) *CompanyView {
	t.Helper()
	c, err := e.companies.Create(context.Background(), owner.ID, CreateCompanyInput{Name: name})
	require.NoError(t, err)
	return c
}

func (e *testEnv) reloadUser(t *testing.T, id uint) *model.User {
	t.Helper()
	u, err := e.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

// dataInt 通知 data 从数据库读回后数字为 json.Number
func dataInt(t *testing.T, v interface{}) int64 {
	t.Helper()
	n, ok := v.(json.Number)
	require.True(t, ok, "expected json.Number, got %T", v)
	i, err := n.Int64()
	require.NoError(t, err)
	return i
}

// afterUserRead 在读到指定用户之后、调用方拿到结果之前执行一次 fn，
// fn 与该次读取使用同一连接（事务内则在同一事务中）
func (e *testEnv) afterUserRead(t *testing.T, userID uint, fn func(tx *gorm.DB)) {
	t.Helper()
	var once sync.Once
	name := fmt.Sprintf("test:after_user_read_%d", userID)
	require.NoError(t, e.db.Callback().Query().After("gorm:query").Register(name, func(tx *gorm.DB) {
		u, ok := tx.Statement.Dest.(*model.User)
		if !ok || tx.Error != nil || u.ID != userID {
			return
		}
		once.Do(func() { fn(tx.Session(&gorm.Session{NewDB: true})) })
	}))
	t.Cleanup(func() { _ = e.db.Callback().Query().Remove(name) })
}
