package model

import (
	"time"

	"gorm.io/gorm"
)

// Company 公司主页
// CreatedBy 为公司管理员（创建者），负责审核加入申请
type Company struct {
	ID          uint           `gorm:"primaryKey"`
	Name        string         `gorm:"type:varchar(200);not null;uniqueIndex;comment:公司名称"`
	Description string         `gorm:"type:text;comment:简介"`
	Logo        string         `gorm:"type:varchar(500)"`
	Website     string         `gorm:"type:varchar(500)"`
	Industry    string         `gorm:"type:varchar(100)"`
	Size        string         `gorm:"type:varchar(50)"`
	Location    string         `gorm:"type:varchar(200)"`
	CreatedBy   uint           `gorm:"index;comment:管理员用户ID"`
	CreatedAt   time.Time      `gorm:"comment:创建时间"`
	UpdatedAt   time.Time      `gorm:"comment:更新时间"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (Company) TableName() string { return "company" }
