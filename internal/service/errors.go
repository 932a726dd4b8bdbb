package service

import (
	"errors"
	"fmt"

	"billexpress/internal/repository"
)

// 账本错误分类，调用方用 errors.Is 区分后决定重试、拦截还是提示
var (
	ErrValidation        = errors.New("参数校验失败")
	ErrNotFound          = errors.New("记录不存在")
	ErrForbidden         = errors.New("无权操作该账户")
	ErrNonZeroBalance    = errors.New("账户余额不为零")
	ErrDefaultAccount    = errors.New("默认账户不能删除")
	ErrInvalidTransfer   = errors.New("不能向同一账户转账")
	ErrInvalidAmount     = errors.New("金额必须大于0")
	ErrInsufficientFunds = errors.New("余额不足")
	ErrConcurrentUpdate  = errors.New("账户已被并发修改，请重试")
)

// translateRepoErr 把仓储层错误映射为账本错误，其余错误原样包装返回
func translateRepoErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, repository.ErrAccountNotFound.Error())
	case errors.Is(err, repository.ErrEntryNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, repository.ErrEntryNotFound.Error())
	case errors.Is(err, repository.ErrOptimisticLock):
		return ErrConcurrentUpdate
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isLedgerErr 判断错误是否已经是账本错误，事务回调返回后不再重复包装
func isLedgerErr(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrNotFound, ErrForbidden, ErrNonZeroBalance, ErrDefaultAccount,
		ErrInvalidTransfer, ErrInvalidAmount, ErrInsufficientFunds, ErrConcurrentUpdate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
