package model

import (
	"time"

	"gorm.io/gorm"
)

// 用户角色
const (
	RoleNormal = "normal"
	RoleHR     = "hr"
	RoleAdmin  = "admin"
)

// User 用户模型
// 邮箱唯一；密码仅存储哈希
// CompanyID 为所属公司（HR 通过创建公司或加入申请获得）
type User struct {
	ID           uint           `gorm:"primaryKey"`
	Email        string         `gorm:"type:varchar(120);not null;uniqueIndex;comment:邮箱"`
	PasswordHash string         `gorm:"type:varchar(255);not null;comment:密码哈希"`
	Name         string         `gorm:"type:varchar(100);not null;comment:姓名"`
	Role         string         `gorm:"type:varchar(20);not null;default:'normal';comment:角色(normal/hr/admin)"`
	Status       string         `gorm:"type:varchar(20);default:'active';comment:账号状态"`
	Headline     string         `gorm:"type:varchar(200);comment:个人简介标题"`
	Image        string         `gorm:"type:varchar(500);comment:头像"`
	CompanyID    *uint          `gorm:"index;comment:所属公司ID"`
	CreatedAt    time.Time      `gorm:"comment:创建时间"`
	UpdatedAt    time.Time      `gorm:"comment:更新时间"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

// TableName 全局使用单数表名
func (User) TableName() string { return "user" }

// HasCompany 是否已关联公司
func (u *User) HasCompany() bool { return u.CompanyID != nil && *u.CompanyID != 0 }
