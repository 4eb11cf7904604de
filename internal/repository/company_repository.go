package repository

import (
	"context"
	"strings"

	"hustconnect/internal/model"

	"gorm.io/gorm"
)

// CompanyRepository 公司数据仓储
type CompanyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

func (r *CompanyRepository) Create(ctx context.Context, company *model.Company) error {
	return conn(ctx, r.db).Create(company).Error
}

func (r *CompanyRepository) GetByID(ctx context.Context, id uint) (*model.Company, error) {
	var c model.Company
	if err := conn(ctx, r.db).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// NameExists 公司名称是否已存在（不区分大小写）
func (r *CompanyRepository) NameExists(ctx context.Context, name string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&model.Company{}).
		Where("LOWER(name) = ?", strings.ToLower(name)).
		Count(&count).Error
	return count > 0, err
}
