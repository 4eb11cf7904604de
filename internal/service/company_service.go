package service

import (
	"context"
	"strings"

	"hustconnect/internal/model"
	"hustconnect/internal/repository"
	"hustconnect/pkg/apperr"
	"hustconnect/pkg/db"
)

// CreateCompanyInput 创建公司参数
type CreateCompanyInput struct {
	Name        string
	Description string
	Logo        string
	Website     string
	Industry    string
	Size        string
	Location    string
}

// CompanyService 公司主页
type CompanyService struct {
	tx        *repository.Transactor
	companies *repository.CompanyRepository
	users     *repository.UserRepository
	relations *RelationshipService
}

func NewCompanyService(tx *repository.Transactor, companies *repository.CompanyRepository, users *repository.UserRepository, relations *RelationshipService) *CompanyService {
	return &CompanyService{tx: tx, companies: companies, users: users, relations: relations}
}

// Create HR/管理员创建公司，创建者成为公司管理员并关联到该公司
func (s *CompanyService) Create(ctx context.Context, creatorID uint, in CreateCompanyInput) (*CompanyView, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.InvalidArgument("company name is required")
	}

	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	if creator.Role != model.RoleHR && creator.Role != model.RoleAdmin {
		return nil, apperr.Forbidden("only HR users can create a company").WithReason(apperr.ReasonRoleRequired)
	}
	if creator.HasCompany() {
		return nil, apperr.Forbidden("you are already associated with a company").WithReason(apperr.ReasonAlreadyAffiliated)
	}

	duplicate := apperr.Conflict("a company with this name already exists").WithReason(apperr.ReasonDuplicateName)
	exists, err := s.companies.NameExists(ctx, in.Name)
	if err != nil {
		return nil, apperr.Internal(err, "failed to check company name")
	}
	if exists {
		return nil, duplicate
	}

	company := &model.Company{
		Name:        in.Name,
		Description: in.Description,
		Logo:        in.Logo,
		Website:     in.Website,
		Industry:    in.Industry,
		Size:        in.Size,
		Location:    in.Location,
		CreatedBy:   creatorID,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.companies.Create(ctx, company); err != nil {
			return err
		}
		set, err := s.users.SetCompany(ctx, creatorID, company.ID)
		if err != nil {
			return err
		}
		if !set {
			return apperr.Forbidden("you are already associated with a company").WithReason(apperr.ReasonAlreadyAffiliated)
		}
		return nil
	})
	if err != nil {
		if e, ok := apperr.As(err); ok {
			return nil, e
		}
		if db.IsDuplicateKey(err) {
			return nil, duplicate
		}
		return nil, apperr.Internal(err, "failed to create company")
	}
	return toCompanyView(company), nil
}

// Get 公司详情，附带关注状态
func (s *CompanyService) Get(ctx context.Context, viewerID, companyID uint) (*CompanyView, error) {
	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, notFoundOr(err, "company not found")
	}
	view := toCompanyView(company)
	if view.FollowersCount, err = s.relations.FollowersCount(ctx, companyID); err != nil {
		return nil, err
	}
	if view.IsFollowing, err = s.relations.IsFollowing(ctx, viewerID, companyID); err != nil {
		return nil, err
	}
	return view, nil
}

// MyCompany 当前用户所属公司；isAdmin 表示可以审核加入申请
func (s *CompanyService) MyCompany(ctx context.Context, userID uint) (*MyCompanyView, error) {
	user, company, err := s.affiliation(ctx, userID)
	if err != nil {
		return nil, err
	}
	view, err := s.Get(ctx, userID, company.ID)
	if err != nil {
		return nil, err
	}
	return &MyCompanyView{CompanyView: *view, IsAdmin: canReview(user, company)}, nil
}

// Members 与当前用户同属一家公司的成员
func (s *CompanyService) Members(ctx context.Context, userID uint) ([]UserBrief, error) {
	_, company, err := s.affiliation(ctx, userID)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ListByCompany(ctx, company.ID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list company members")
	}
	members := make([]UserBrief, 0, len(users))
	for i := range users {
		members = append(members, *toUserBrief(&users[i]))
	}
	return members, nil
}

func (s *CompanyService) affiliation(ctx context.Context, userID uint) (*model.User, *model.Company, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, notFoundOr(err, "user not found")
	}
	if !user.HasCompany() {
		return nil, nil, apperr.NotFound("you are not associated with a company")
	}
	company, err := s.companies.GetByID(ctx, *user.CompanyID)
	if err != nil {
		return nil, nil, notFoundOr(err, "company not found")
	}
	return user, company, nil
}
