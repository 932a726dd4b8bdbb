package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer 同一用户两个账户之间的转账，同时作为审计记录
//
// 账户名称在转账时快照保存，账户改名或删除后历史记录仍然可读。
// 删除账户时转账记录不做级联删除。
type Transfer struct {
	ID              string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	TransferNo      string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transfer_no"`
	FromAccountID   string          `gorm:"type:varchar(36);index;not null" json:"from_account_id"`
	ToAccountID     string          `gorm:"type:varchar(36);index;not null" json:"to_account_id"`
	FromAccountName string          `gorm:"type:varchar(100)" json:"from_account_name"`
	ToAccountName   string          `gorm:"type:varchar(100)" json:"to_account_name"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	UserID          string          `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Description     string          `gorm:"type:varchar(256)" json:"description"`
	Date            time.Time       `gorm:"index;not null" json:"date"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Transfer) TableName() string {
	return "transfer"
}
