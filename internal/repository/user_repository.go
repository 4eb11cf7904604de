package repository

import (
	"context"
	"strings"

	"hustconnect/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	orm *gorm.DB
}

func NewUserRepository(orm *gorm.DB) *UserRepository {
	return &UserRepository{orm: orm}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return conn(ctx, r.orm).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := conn(ctx, r.orm).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := conn(ctx, r.orm).Where("email = ?", strings.ToLower(email)).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ListByIDs 按ID批量查询，不存在的ID被忽略
func (r *UserRepository) ListByIDs(ctx context.Context, ids []uint) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := conn(ctx, r.orm).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

// ListByCompany 关联到公司的用户，按用户ID排序
func (r *UserRepository) ListByCompany(ctx context.Context, companyID uint) ([]model.User, error) {
	var users []model.User
	err := conn(ctx, r.orm).Where("company_id = ?", companyID).Order("id ASC").Find(&users).Error
	return users, err
}

// SetCompany 条件更新：仅在用户尚未关联公司时设置
// 返回 false 表示用户不存在或已关联其他公司
func (r *UserRepository) SetCompany(ctx context.Context, userID, companyID uint) (bool, error) {
	res := conn(ctx, r.orm).Model(&model.User{}).
		Where("id = ? AND company_id IS NULL", userID).
		Update("company_id", companyID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
