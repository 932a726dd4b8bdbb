package handler

import (
	"errors"
	"time"

	"billexpress/internal/config"
	"billexpress/internal/model"
	"billexpress/internal/service"
	"billexpress/pkg/moneyfmt"
	"billexpress/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	cfg             *config.Config
	log             *logrus.Entry
	accountService  *service.AccountService
	transferService *service.TransferService
	entryService    *service.EntryService
	reconciler      *service.ReconcileService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, mirror service.AccountMirror, cfg *config.Config, log *logrus.Logger) *Handler {
	return &Handler{
		cfg:             cfg,
		log:             log.WithField("component", "handler"),
		accountService:  service.NewAccountService(db, mirror, cfg, log),
		transferService: service.NewTransferService(db, mirror, cfg, log),
		entryService:    service.NewEntryService(db, mirror, cfg, log),
		reconciler:      service.NewReconcileService(db, mirror, cfg, log),
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	code, _ := response.Classify(err)
	if code == response.CodeServerError {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("请求处理失败")
	}
	response.FromError(c, err)
}

// accountView 账户及其展示金额
type accountView struct {
	*model.Account
	BalanceDisplay string `json:"balance_display"`
}

func (h *Handler) view(a *model.Account) accountView {
	return accountView{Account: a, BalanceDisplay: moneyfmt.Format(a.Balance, h.cfg.Business.Currency)}
}

// ============================================================
// 账户相关接口
// ============================================================

// ListAccounts 查询用户全部账户，没有账户时自动创建默认账户
// GET /api/v1/accounts
func (h *Handler) ListAccounts(c *gin.Context) {
	set := h.accountService.GetAccounts(c.Request.Context(), userID(c))

	views := make([]accountView, 0, len(set.Accounts))
	for _, a := range set.Accounts {
		views = append(views, h.view(a))
	}
	data := gin.H{
		"accounts":  views,
		"synthetic": set.Synthetic,
	}
	if set.Cause != nil {
		data["degraded_reason"] = set.Cause.Error()
	}
	response.Success(c, data)
}

// GetAccount GET /api/v1/accounts/:id
func (h *Handler) GetAccount(c *gin.Context) {
	account, err := h.accountService.GetAccount(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, h.view(account))
}

type AccountRequest struct {
	Name      string          `json:"name" binding:"required"`
	Color     string          `json:"color"`
	Balance   decimal.Decimal `json:"balance"`
	IsDefault bool            `json:"is_default"`
}

// CreateAccount POST /api/v1/accounts
func (h *Handler) CreateAccount(c *gin.Context) {
	var req AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.accountService.CreateAccount(c.Request.Context(), &model.Account{
		UserID:    userID(c),
		Name:      req.Name,
		Color:     req.Color,
		Balance:   req.Balance,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, h.view(account))
}

// UpdateAccount 默认账户的修改会被忽略
// PUT /api/v1/accounts/:id
func (h *Handler) UpdateAccount(c *gin.Context) {
	var req AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.accountService.UpdateAccount(c.Request.Context(), &model.Account{
		ID:        c.Param("id"),
		UserID:    userID(c),
		Name:      req.Name,
		Color:     req.Color,
		Balance:   req.Balance,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	account, err := h.accountService.GetAccount(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, h.view(account))
}

// DeleteAccount DELETE /api/v1/accounts/:id
func (h *Handler) DeleteAccount(c *gin.Context) {
	if err := h.accountService.DeleteAccount(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": c.Param("id")})
}

// RecomputeBalance 以流水为准重算余额
// POST /api/v1/accounts/:id/recompute
func (h *Handler) RecomputeBalance(c *gin.Context) {
	balance, err := h.reconciler.RecomputeBalance(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"account_id":      c.Param("id"),
		"balance":         balance,
		"balance_display": moneyfmt.Format(balance, h.cfg.Business.Currency),
	})
}

// Sweep POST /api/v1/reconcile/sweep
func (h *Handler) Sweep(c *gin.Context) {
	report, err := h.reconciler.VerifySweep(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, report)
}

// ============================================================
// 转账相关接口
// ============================================================

type TransferRequest struct {
	FromAccountID string          `json:"from_account_id" binding:"required"`
	ToAccountID   string          `json:"to_account_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

// CreateTransfer POST /api/v1/transfers
func (h *Handler) CreateTransfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	transfer, err := h.transferService.Transfer(c.Request.Context(), &service.TransferRequest{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		UserID:        userID(c),
		Description:   req.Description,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, transfer)
}

// ListTransfers GET /api/v1/transfers
func (h *Handler) ListTransfers(c *gin.Context) {
	transfers, err := h.transferService.ListTransfers(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": transfers, "total": len(transfers)})
}

// ============================================================
// 收入 / 支出
// ============================================================

type EntryRequest struct {
	AccountID   string          `json:"account_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date"` // YYYY-MM-DD，可选
}

func (r *EntryRequest) toService(userID string) (*service.EntryRequest, error) {
	req := &service.EntryRequest{
		AccountID:   r.AccountID,
		UserID:      userID,
		Amount:      r.Amount,
		Category:    r.Category,
		Description: r.Description,
	}
	if r.Date != "" {
		date, err := time.ParseInLocation("2006-01-02", r.Date, time.Local)
		if err != nil {
			return nil, errors.New("date 格式应为 YYYY-MM-DD")
		}
		req.Date = date
	}
	return req, nil
}

func (h *Handler) bindEntry(c *gin.Context) (*service.EntryRequest, bool) {
	var req EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return nil, false
	}
	entry, err := req.toService(userID(c))
	if err != nil {
		response.ParamError(c, err.Error())
		return nil, false
	}
	return entry, true
}

// RecordIncome POST /api/v1/incomes
func (h *Handler) RecordIncome(c *gin.Context) {
	req, ok := h.bindEntry(c)
	if !ok {
		return
	}
	income, err := h.entryService.RecordIncome(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, income)
}

// ListIncomes GET /api/v1/incomes
func (h *Handler) ListIncomes(c *gin.Context) {
	incomes, err := h.entryService.ListIncomes(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": incomes, "total": len(incomes)})
}

// DeleteIncome DELETE /api/v1/incomes/:id
func (h *Handler) DeleteIncome(c *gin.Context) {
	if err := h.entryService.DeleteIncome(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": c.Param("id")})
}

// RecordExpense POST /api/v1/expenses
func (h *Handler) RecordExpense(c *gin.Context) {
	req, ok := h.bindEntry(c)
	if !ok {
		return
	}
	expense, err := h.entryService.RecordExpense(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, expense)
}

func (h *Handler) ListExpenses(c *gin.Context) {
	expenses, err := h.entryService.ListExpenses(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": expenses, "total": len(expenses)})
}

func (h *Handler) DeleteExpense(c *gin.Context) {
	if err := h.entryService.DeleteExpense(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": c.Param("id")})
}
