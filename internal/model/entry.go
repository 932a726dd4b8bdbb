package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EntryTypeIncome  = "income"
	EntryTypeExpense = "expense"
)

// Income 收入事件，创建后不修改
// AccountID 在账户被删除后可能悬空
type Income struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	AccountID   string          `gorm:"type:varchar(36);index" json:"account_id"`
	UserID      string          `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"` // 必须 > 0
	Category    string          `gorm:"type:varchar(64)" json:"category"`
	Description string          `gorm:"type:varchar(256)" json:"description"`
	Date        time.Time       `gorm:"index;not null" json:"date"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Income) TableName() string {
	return "income"
}

// Expense 支出事件，结构与 Income 相同
type Expense struct {
	ID          string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	AccountID   string          `gorm:"type:varchar(36);index" json:"account_id"`
	UserID      string          `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Category    string          `gorm:"type:varchar(64)" json:"category"`
	Description string          `gorm:"type:varchar(256)" json:"description"`
	Date        time.Time       `gorm:"index;not null" json:"date"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Expense) TableName() string {
	return "expense"
}
