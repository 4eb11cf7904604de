package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"hustconnect/config"
	"hustconnect/internal/model"
	"hustconnect/internal/repository"
	"hustconnect/pkg/apperr"
	"hustconnect/pkg/db"
	"hustconnect/pkg/logger"

	"go.uber.org/zap"
)

// ConversationService 会话与消息
type ConversationService struct {
	tx        *repository.Transactor
	convs     *repository.ConversationRepository
	messages  *repository.MessageRepository
	users     *repository.UserRepository
	publisher MessagePublisher
	paging    config.MessagingConfig
	now       func() time.Time
}

func NewConversationService(
	tx *repository.Transactor,
	convs *repository.ConversationRepository,
	messages *repository.MessageRepository,
	users *repository.UserRepository,
	publisher MessagePublisher,
	paging config.MessagingConfig,
) *ConversationService {
	if paging.DefaultPageSize <= 0 {
		paging.DefaultPageSize = 20
	}
	if paging.MaxPageSize <= 0 {
		paging.MaxPageSize = 50
	}
	if paging.DefaultPageSize > paging.MaxPageSize {
		paging.DefaultPageSize = paging.MaxPageSize
	}
	return &ConversationService{
		tx:        tx,
		convs:     convs,
		messages:  messages,
		users:     users,
		publisher: publisher,
		paging:    paging,
		now:       time.Now,
	}
}

// normalizeParticipants 去重、去掉调用者本身和无效ID
func normalizeParticipants(callerID uint, ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || id == callerID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FindOrCreateConversation 一对一会话查找或创建；多人会话总是新建
func (s *ConversationService) FindOrCreateConversation(ctx context.Context, callerID uint, participantIDs []uint) (*CreateConversationResult, error) {
	others := normalizeParticipants(callerID, participantIDs)
	if len(others) == 0 {
		return nil, apperr.InvalidArgument("at least one other participant is required")
	}

	found, err := s.users.ListByIDs(ctx, others)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load participants")
	}
	if len(found) != len(others) {
		return nil, apperr.NotFound("participant not found")
	}

	var key *string
	if len(others) == 1 {
		k := model.DirectKey(callerID, others[0])
		key = &k
		if existing, err := s.convs.GetByDirectKey(ctx, k); err == nil {
			return &CreateConversationResult{ConversationView: toConversationView(existing, callerID), IsNew: false}, nil
		} else if !db.IsNotFound(err) {
			return nil, apperr.Internal(err, "failed to find conversation")
		}
	}

	conv := &model.Conversation{DirectKey: key}
	members := append([]uint{callerID}, others...)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.convs.Create(ctx, conv, members)
	})
	if err != nil {
		if key != nil && db.IsDuplicateKey(err) {
			// 并发创建，返回已存在的会话
			existing, gerr := s.convs.GetByDirectKey(ctx, *key)
			if gerr != nil {
				return nil, apperr.Internal(gerr, "failed to find conversation")
			}
			return &CreateConversationResult{ConversationView: toConversationView(existing, callerID), IsNew: false}, nil
		}
		return nil, apperr.Internal(err, "failed to create conversation")
	}

	created, err := s.convs.GetByID(ctx, conv.ID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load conversation")
	}
	logger.Info("会话已创建", zap.Uint("conversation_id", created.ID), zap.Uint("creator_id", callerID), zap.Int("participants", len(members)))
	return &CreateConversationResult{ConversationView: toConversationView(created, callerID), IsNew: true}, nil
}

// ListConversations 用户的会话列表，最近活跃的在前
func (s *ConversationService) ListConversations(ctx context.Context, userID uint) ([]ConversationView, error) {
	convs, err := s.convs.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list conversations")
	}
	ids := make([]uint, 0, len(convs))
	for i := range convs {
		ids = append(ids, convs[i].ID)
	}
	unread, err := s.messages.UnreadCounts(ctx, ids, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to count unread messages")
	}
	latest, err := s.messages.LatestFor(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load last messages")
	}

	views := make([]ConversationView, 0, len(convs))
	for i := range convs {
		view := toConversationView(&convs[i], userID)
		view.LastMessage = toMessageView(latest[convs[i].ID])
		view.UnreadCount = unread[convs[i].ID]
		views = append(views, *view)
	}
	return views, nil
}

// loadForParticipant 会话不存在返回 NotFound，非参与者返回 Forbidden
func (s *ConversationService) loadForParticipant(ctx context.Context, userID, conversationID uint) (*model.Conversation, error) {
	conv, err := s.convs.GetByID(ctx, conversationID)
	if err != nil {
		return nil, notFoundOr(err, "conversation not found")
	}
	if !conv.HasParticipant(userID) {
		return nil, apperr.Forbidden("not authorized").WithReason(apperr.ReasonNotParticipant)
	}
	return conv, nil
}

// OpenConversation 打开会话：标记他人消息为已读，返回分页消息（最新的在前）
func (s *ConversationService) OpenConversation(ctx context.Context, userID, conversationID uint, page, perPage int) (*ConversationPage, error) {
	conv, err := s.loadForParticipant(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = s.paging.DefaultPageSize
	}
	if perPage > s.paging.MaxPageSize {
		perPage = s.paging.MaxPageSize
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		_, err := s.messages.MarkReadFor(ctx, conversationID, userID)
		return err
	})
	if err != nil {
		return nil, apperr.Internal(err, "failed to mark messages as read")
	}

	total, err := s.messages.Count(ctx, conversationID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to count messages")
	}
	items, err := s.messages.ListPage(ctx, conversationID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list messages")
	}

	messages := make([]MessageView, 0, len(items))
	for i := range items {
		messages = append(messages, *toMessageView(&items[i]))
	}
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return &ConversationPage{
		Conversation: toConversationView(conv, userID),
		Messages:     messages,
		Pagination:   Pagination{Page: page, PerPage: perPage, Total: total, Pages: pages},
	}, nil
}

// SendMessage 发送消息：消息写入与会话 updated_at 更新在同一事务中，
// 提交后尽力推送到会话房间，推送失败不影响结果
func (s *ConversationService) SendMessage(ctx context.Context, senderID, conversationID uint, content string) (*MessageView, error) {
	conv, err := s.loadForParticipant(ctx, senderID, conversationID)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.InvalidArgument("message content is required")
	}

	msg := &model.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      s.now(),
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.messages.Create(ctx, msg); err != nil {
			return err
		}
		return s.convs.Touch(ctx, conversationID, msg.CreatedAt)
	})
	if err != nil {
		return nil, apperr.Internal(err, "failed to send message")
	}

	for i := range conv.Participants {
		if conv.Participants[i].ID == senderID {
			msg.Sender = &conv.Participants[i]
			break
		}
	}
	view := toMessageView(msg)

	if s.publisher != nil {
		if err := s.publisher.PublishNewMessage(ctx, conversationID, view); err != nil {
			logger.Warn("实时推送消息失败",
				zap.Uint("conversation_id", conversationID),
				zap.Uint("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}
	return view, nil
}

// IsParticipant 用于 WebSocket 加入房间前的校验
func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error) {
	ok, err := s.convs.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return false, apperr.Internal(err, "failed to check participant")
	}
	return ok, nil
}
