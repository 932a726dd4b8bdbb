package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 用户的资金账户
// Balance 是由收入、支出、转账事件推导出的缓存值，不是权威数据，
// 对账服务会以事件流水为准重新计算并覆盖它。
type Account struct {
	ID               string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID           string          `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Name             string          `gorm:"type:varchar(100);not null" json:"name"`
	Color            string          `gorm:"type:varchar(16)" json:"color"`
	Balance          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	IsDefault        bool            `gorm:"not null;default:false" json:"is_default"`
	TransactionCount int64           `gorm:"not null;default:0" json:"transaction_count"` // 仅供展示，不参与不变式
	Version          int             `gorm:"not null;default:0" json:"version"`           // 乐观锁版本号
	LastVerifiedAt   *time.Time      `json:"last_verified_at,omitempty"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

// OwnedBy 判断账户是否属于 userID
func (a *Account) OwnedBy(userID string) bool {
	return a != nil && a.UserID == userID
}
