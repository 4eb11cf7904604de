package service

import (
	"context"
	"fmt"

	"hustconnect/internal/model"
	"hustconnect/internal/repository"
	"hustconnect/pkg/apperr"
	"hustconnect/pkg/db"
	"hustconnect/pkg/logger"

	"go.uber.org/zap"
)

// 处理动作
const (
	ActionAccept  = "accept"
	ActionReject  = "reject"
	ActionApprove = "approve"
)

// RelationshipService 好友连接、关注公司、加入公司申请
//
// 唯一性由 relationship_edge.active_key 的唯一索引保证，
// 并发请求中只有一个能写入，其余得到 Conflict。
type RelationshipService struct {
	tx        *repository.Transactor
	edges     *repository.RelationshipRepository
	users     *repository.UserRepository
	companies *repository.CompanyRepository
	notifier  Notifier
}

func NewRelationshipService(
	tx *repository.Transactor,
	edges *repository.RelationshipRepository,
	users *repository.UserRepository,
	companies *repository.CompanyRepository,
	notifier Notifier,
) *RelationshipService {
	return &RelationshipService{tx: tx, edges: edges, users: users, companies: companies, notifier: notifier}
}

func connectionConflict(e *model.RelationshipEdge) error {
	if e.Status == model.EdgeAccepted {
		return apperr.Conflict("already connected").WithReason(apperr.ReasonAlreadyConnected)
	}
	return apperr.Conflict("connection request already pending").WithReason(apperr.ReasonConnectionPending)
}

// RequestConnection 发起好友连接请求
func (s *RelationshipService) RequestConnection(ctx context.Context, requesterID, targetID uint) (*ConnectionView, error) {
	if requesterID == targetID {
		return nil, apperr.InvalidArgument("cannot connect with yourself").WithReason(apperr.ReasonSelfRequest)
	}
	requester, err := s.users.GetByID(ctx, requesterID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}

	key := model.ConnectionKey(requesterID, targetID)
	if existing, err := s.edges.GetByActiveKey(ctx, key); err == nil {
		return nil, connectionConflict(existing)
	} else if !db.IsNotFound(err) {
		return nil, apperr.Internal(err, "failed to check connection")
	}

	edge := &model.RelationshipEdge{
		Kind:        model.EdgeConnection,
		RequesterID: requesterID,
		TargetID:    targetID,
		Status:      model.EdgePending,
		ActiveKey:   &key,
	}
	if err := s.edges.Create(ctx, edge); err != nil {
		if db.IsDuplicateKey(err) {
			// 并发请求已抢先写入
			if existing, rerr := s.edges.GetByActiveKey(ctx, key); rerr == nil {
				return nil, connectionConflict(existing)
			}
			return nil, apperr.Conflict("connection request already pending").WithReason(apperr.ReasonConnectionPending)
		}
		return nil, apperr.Internal(err, "failed to create connection request")
	}

	s.notifier.Notify(ctx, targetID, model.NotifyConnectionRequest,
		"New connection request",
		fmt.Sprintf("%s wants to connect with you", requester.Name),
		"/network",
		map[string]interface{}{"requesterId": requesterID, "requestId": edge.ID},
	)

	return &ConnectionView{ID: edge.ID, User: toUserBrief(target), Status: string(edge.Status), CreatedAt: edge.CreatedAt}, nil
}

// RespondToConnection 接受或拒绝收到的连接请求
func (s *RelationshipService) RespondToConnection(ctx context.Context, targetID, requesterID uint, action string) (*ConnectionView, error) {
	var to model.EdgeStatus
	switch action {
	case ActionAccept:
		to = model.EdgeAccepted
	case ActionReject:
		to = model.EdgeRejected
	default:
		return nil, apperr.InvalidArgument("action must be accept or reject")
	}

	edge, err := s.edges.GetDirected(ctx, model.EdgeConnection, requesterID, targetID, model.EdgePending)
	if err != nil {
		return nil, notFoundOr(err, "no pending connection request found")
	}

	// 拒绝后释放唯一键，允许再次请求
	ok, err := s.edges.Review(ctx, edge.ID, model.EdgePending, to, targetID, to == model.EdgeRejected)
	if err != nil {
		return nil, apperr.Internal(err, "failed to update connection request")
	}
	if !ok {
		return nil, apperr.NotFound("no pending connection request found")
	}

	requester, err := s.users.GetByID(ctx, requesterID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	responder, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}

	kind, title, verb := model.NotifyConnectionAccepted, "Connection accepted", "accepted"
	if to == model.EdgeRejected {
		kind, title, verb = model.NotifyConnectionRejected, "Connection declined", "declined"
	}
	s.notifier.Notify(ctx, requesterID, kind, title,
		fmt.Sprintf("%s %s your connection request", responder.Name, verb),
		"/network",
		map[string]interface{}{"userId": targetID},
	)

	return &ConnectionView{ID: edge.ID, User: toUserBrief(requester), Status: string(to), CreatedAt: edge.CreatedAt}, nil
}

// RemoveConnection 删除两人之间的连接记录（任意方向、任意状态）
// 不存在时返回 NotFound
func (s *RelationshipService) RemoveConnection(ctx context.Context, userA, userB uint) error {
	n, err := s.edges.DeleteBetween(ctx, model.EdgeConnection, userA, userB)
	if err != nil {
		return apperr.Internal(err, "failed to remove connection")
	}
	if n == 0 {
		return apperr.NotFound("connection not found")
	}
	return nil
}

// ListConnections 已建立的连接，最新的在前
func (s *RelationshipService) ListConnections(ctx context.Context, userID uint) ([]ConnectionView, error) {
	edges, err := s.edges.ListInvolving(ctx, model.EdgeConnection, userID, model.EdgeAccepted)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list connections")
	}
	ids := make([]uint, 0, len(edges))
	for i := range edges {
		ids = append(ids, edges[i].Counterpart(userID))
	}
	users, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]ConnectionView, 0, len(edges))
	for i := range edges {
		u, ok := users[edges[i].Counterpart(userID)]
		if !ok {
			continue
		}
		views = append(views, ConnectionView{ID: edges[i].ID, User: toUserBrief(u), Status: string(edges[i].Status), CreatedAt: edges[i].CreatedAt})
	}
	return views, nil
}

// ConnectionStatus 查看者与目标之间最新一条连接记录的状态，以及目标的连接数
func (s *RelationshipService) ConnectionStatus(ctx context.Context, viewerID, targetID uint) (*ConnectionStatus, error) {
	count, err := s.edges.CountInvolving(ctx, model.EdgeConnection, targetID, model.EdgeAccepted)
	if err != nil {
		return nil, apperr.Internal(err, "failed to count connections")
	}
	status := &ConnectionStatus{Status: ConnectionNone, ConnectionsCount: count}
	if viewerID == targetID {
		status.Status = ConnectionSelf
		return status, nil
	}

	edge, err := s.edges.LatestBetween(ctx, model.EdgeConnection, viewerID, targetID)
	if err != nil {
		if db.IsNotFound(err) {
			return status, nil
		}
		return nil, apperr.Internal(err, "failed to load connection")
	}
	status.Status = string(edge.Status)
	status.IsRequester = edge.RequesterID == viewerID
	return status, nil
}

// UserProfile 他人主页，附带与查看者之间的连接状态
func (s *RelationshipService) UserProfile(ctx context.Context, viewerID, userID uint) (*ProfileView, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	status, err := s.ConnectionStatus(ctx, viewerID, userID)
	if err != nil {
		return nil, err
	}
	return &ProfileView{
		UserBrief:        *toUserBrief(u),
		Role:             u.Role,
		CompanyID:        u.CompanyID,
		ConnectionStatus: *status,
	}, nil
}

// ListIncomingRequests 收到的待处理连接请求，最新的在前
func (s *RelationshipService) ListIncomingRequests(ctx context.Context, userID uint) ([]ConnectionView, error) {
	edges, err := s.edges.ListByTarget(ctx, model.EdgeConnection, userID, model.EdgePending)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list connection requests")
	}
	ids := make([]uint, 0, len(edges))
	for i := range edges {
		ids = append(ids, edges[i].RequesterID)
	}
	users, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]ConnectionView, 0, len(edges))
	for i := range edges {
		u, ok := users[edges[i].RequesterID]
		if !ok {
			continue
		}
		views = append(views, ConnectionView{ID: edges[i].ID, User: toUserBrief(u), Status: string(edges[i].Status), CreatedAt: edges[i].CreatedAt})
	}
	return views, nil
}

// ToggleFollow 关注或取消关注公司
func (s *RelationshipService) ToggleFollow(ctx context.Context, userID, companyID uint) (*FollowState, error) {
	if _, err := s.companies.GetByID(ctx, companyID); err != nil {
		return nil, notFoundOr(err, "company not found")
	}

	key := model.FollowKey(userID, companyID)
	removed, err := s.edges.DeleteByActiveKey(ctx, key)
	if err != nil {
		return nil, apperr.Internal(err, "failed to update follow")
	}

	following := false
	if removed == 0 {
		edge := &model.RelationshipEdge{
			Kind:        model.EdgeFollow,
			RequesterID: userID,
			TargetID:    companyID,
			Status:      model.EdgeAccepted,
			ActiveKey:   &key,
		}
		if err := s.edges.Create(ctx, edge); err != nil && !db.IsDuplicateKey(err) {
			return nil, apperr.Internal(err, "failed to update follow")
		}
		following = true
	}

	count, err := s.edges.CountByTarget(ctx, model.EdgeFollow, companyID, model.EdgeAccepted)
	if err != nil {
		return nil, apperr.Internal(err, "failed to count followers")
	}
	return &FollowState{Following: following, FollowersCount: count}, nil
}

// IsFollowing 是否关注了公司
func (s *RelationshipService) IsFollowing(ctx context.Context, userID, companyID uint) (bool, error) {
	_, err := s.edges.GetByActiveKey(ctx, model.FollowKey(userID, companyID))
	if err == nil {
		return true, nil
	}
	if db.IsNotFound(err) {
		return false, nil
	}
	return false, apperr.Internal(err, "failed to check follow")
}

// FollowersCount 公司关注者数量
func (s *RelationshipService) FollowersCount(ctx context.Context, companyID uint) (int64, error) {
	count, err := s.edges.CountByTarget(ctx, model.EdgeFollow, companyID, model.EdgeAccepted)
	if err != nil {
		return 0, apperr.Internal(err, "failed to count followers")
	}
	return count, nil
}

// ListFollowers 公司的关注者，最新关注的在前
func (s *RelationshipService) ListFollowers(ctx context.Context, companyID uint) ([]UserBrief, error) {
	if _, err := s.companies.GetByID(ctx, companyID); err != nil {
		return nil, notFoundOr(err, "company not found")
	}
	edges, err := s.edges.ListByTarget(ctx, model.EdgeFollow, companyID, model.EdgeAccepted)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list followers")
	}
	ids := make([]uint, 0, len(edges))
	for i := range edges {
		ids = append(ids, edges[i].RequesterID)
	}
	users, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	followers := make([]UserBrief, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			followers = append(followers, *toUserBrief(u))
		}
	}
	return followers, nil
}

// RequestCompanyJoin 申请加入公司；同一用户同一时间只能有一个待处理申请
func (s *RelationshipService) RequestCompanyJoin(ctx context.Context, userID, companyID uint, message string) (*JoinRequestView, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	if user.Role != model.RoleHR && user.Role != model.RoleAdmin {
		return nil, apperr.Forbidden("only HR users can request to join a company").WithReason(apperr.ReasonRoleRequired)
	}
	if user.HasCompany() {
		return nil, apperr.Forbidden("you are already associated with a company").WithReason(apperr.ReasonAlreadyAffiliated)
	}
	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, notFoundOr(err, "company not found")
	}

	key := model.PendingJoinKey(userID)
	pendingConflict := apperr.Conflict("you already have a pending join request").WithReason(apperr.ReasonJoinRequestPending)
	if _, err := s.edges.GetByActiveKey(ctx, key); err == nil {
		return nil, pendingConflict
	} else if !db.IsNotFound(err) {
		return nil, apperr.Internal(err, "failed to check join request")
	}

	edge := &model.RelationshipEdge{
		Kind:        model.EdgeCompanyJoin,
		RequesterID: userID,
		TargetID:    companyID,
		Status:      model.EdgePending,
		Message:     message,
		ActiveKey:   &key,
	}
	if err := s.edges.Create(ctx, edge); err != nil {
		if db.IsDuplicateKey(err) {
			return nil, pendingConflict
		}
		return nil, apperr.Internal(err, "failed to create join request")
	}

	s.notifier.Notify(ctx, company.CreatedBy, model.NotifyJoinRequest,
		"New join request",
		fmt.Sprintf("%s requested to join %s", user.Name, company.Name),
		"/company/requests",
		map[string]interface{}{"requestId": edge.ID, "userId": userID, "companyId": companyID},
	)

	return toJoinRequestView(edge, user), nil
}

// canReview 公司创建者或平台管理员可以审核
func canReview(reviewer *model.User, company *model.Company) bool {
	return company.CreatedBy == reviewer.ID || reviewer.Role == model.RoleAdmin
}

// ReviewCompanyJoin 审核加入申请；通过时在同一事务中设置用户所属公司
func (s *RelationshipService) ReviewCompanyJoin(ctx context.Context, reviewerID, requestID uint, action string) (*JoinRequestView, error) {
	var to model.EdgeStatus
	switch action {
	case ActionApprove:
		to = model.EdgeAccepted
	case ActionReject:
		to = model.EdgeRejected
	default:
		return nil, apperr.InvalidArgument("action must be approve or reject")
	}

	edge, err := s.edges.GetByID(ctx, requestID)
	if err != nil {
		return nil, notFoundOr(err, "join request not found")
	}
	if edge.Kind != model.EdgeCompanyJoin {
		return nil, apperr.NotFound("join request not found")
	}
	company, err := s.companies.GetByID(ctx, edge.TargetID)
	if err != nil {
		return nil, notFoundOr(err, "company not found")
	}
	reviewer, err := s.users.GetByID(ctx, reviewerID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	if !canReview(reviewer, company) {
		return nil, apperr.Forbidden("only the company admin can review join requests").WithReason(apperr.ReasonNotCompanyAdmin)
	}
	reviewed := apperr.Conflict("join request has already been reviewed").WithReason(apperr.ReasonAlreadyReviewed)
	if edge.Status != model.EdgePending {
		return nil, reviewed
	}

	var requester *model.User
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.edges.Review(ctx, edge.ID, model.EdgePending, to, reviewerID, true)
		if err != nil {
			return apperr.Internal(err, "failed to update join request")
		}
		if !ok {
			return reviewed
		}
		requester, err = s.users.GetByID(ctx, edge.RequesterID)
		if err != nil {
			return notFoundOr(err, "user not found")
		}
		if to != model.EdgeAccepted {
			return nil
		}
		affiliated := apperr.Conflict("user is already associated with another company").WithReason(apperr.ReasonAlreadyAffiliated)
		if requester.HasCompany() {
			if *requester.CompanyID != company.ID {
				return affiliated
			}
			return nil
		}
		// 读到的 company_id 可能已过期，以条件更新的结果为准
		set, err := s.users.SetCompany(ctx, requester.ID, company.ID)
		if err != nil {
			return apperr.Internal(err, "failed to set company affiliation")
		}
		if !set {
			return affiliated
		}
		requester.CompanyID = &company.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.edges.GetByID(ctx, edge.ID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load join request")
	}

	kind, title, msg := model.NotifyJoinApproved, "Join request approved",
		fmt.Sprintf("Your request to join %s has been approved", company.Name)
	if to == model.EdgeRejected {
		kind, title, msg = model.NotifyJoinRejected, "Join request rejected",
			fmt.Sprintf("Your request to join %s has been rejected", company.Name)
	}
	s.notifier.Notify(ctx, edge.RequesterID, kind, title, msg,
		fmt.Sprintf("/company/%d", company.ID),
		map[string]interface{}{"requestId": edge.ID, "companyId": company.ID},
	)

	logger.Info("加入公司申请已审核",
		zap.Uint("request_id", edge.ID),
		zap.Uint("company_id", company.ID),
		zap.Uint("reviewer_id", reviewerID),
		zap.String("status", string(to)),
	)
	return toJoinRequestView(updated, requester), nil
}

// GetMyJoinRequest 当前用户的待处理申请
func (s *RelationshipService) GetMyJoinRequest(ctx context.Context, userID uint) (*JoinRequestView, error) {
	edge, err := s.edges.GetByActiveKey(ctx, model.PendingJoinKey(userID))
	if err != nil {
		return nil, notFoundOr(err, "no pending join request")
	}
	return toJoinRequestView(edge, nil), nil
}

// CancelJoinRequest 撤回待处理申请
func (s *RelationshipService) CancelJoinRequest(ctx context.Context, userID uint) error {
	edge, err := s.edges.GetByActiveKey(ctx, model.PendingJoinKey(userID))
	if err != nil {
		return notFoundOr(err, "no pending join request")
	}
	ok, err := s.edges.DeleteIfStatus(ctx, edge.ID, model.EdgePending)
	if err != nil {
		return apperr.Internal(err, "failed to cancel join request")
	}
	if !ok {
		return apperr.NotFound("no pending join request")
	}
	return nil
}

// ListJoinRequests 管理员查看本公司的申请，默认只看待处理
func (s *RelationshipService) ListJoinRequests(ctx context.Context, adminID uint, status string) ([]JoinRequestView, error) {
	if status == "" {
		status = string(model.EdgePending)
	}
	switch model.EdgeStatus(status) {
	case model.EdgePending, model.EdgeAccepted, model.EdgeRejected:
	default:
		return nil, apperr.InvalidArgument("invalid status %q", status)
	}

	admin, err := s.users.GetByID(ctx, adminID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	if !admin.HasCompany() {
		return nil, apperr.NotFound("you are not associated with a company")
	}
	company, err := s.companies.GetByID(ctx, *admin.CompanyID)
	if err != nil {
		return nil, notFoundOr(err, "company not found")
	}
	if !canReview(admin, company) {
		return nil, apperr.Forbidden("only the company admin can view join requests").WithReason(apperr.ReasonNotCompanyAdmin)
	}

	edges, err := s.edges.ListByTarget(ctx, model.EdgeCompanyJoin, company.ID, model.EdgeStatus(status))
	if err != nil {
		return nil, apperr.Internal(err, "failed to list join requests")
	}
	ids := make([]uint, 0, len(edges))
	for i := range edges {
		ids = append(ids, edges[i].RequesterID)
	}
	users, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]JoinRequestView, 0, len(edges))
	for i := range edges {
		views = append(views, *toJoinRequestView(&edges[i], users[edges[i].RequesterID]))
	}
	return views, nil
}

func (s *RelationshipService) usersByID(ctx context.Context, ids []uint) (map[uint]*model.User, error) {
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load users")
	}
	byID := make(map[uint]*model.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	return byID, nil
}
