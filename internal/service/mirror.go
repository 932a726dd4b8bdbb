package service

import (
	"context"

	"billexpress/internal/model"

	"github.com/sirupsen/logrus"
)

// AccountMirror 账户的只读镜像（Redis 或内存），供界面快速读取
// 镜像不是权威数据，写入失败只记日志，不影响主流程结果
type AccountMirror interface {
	SetAccount(ctx context.Context, account *model.Account) error
	RemoveAccount(ctx context.Context, userID, accountID string) error
}

type nopMirror struct{}

func (nopMirror) SetAccount(context.Context, *model.Account) error {
	return nil
}

func (nopMirror) RemoveAccount(context.Context, string, string) error {
	return nil
}

func orNop(m AccountMirror) AccountMirror {
	if m == nil {
		return nopMirror{}
	}
	return m
}

func pushMirror(ctx context.Context, mirror AccountMirror, log *logrus.Entry, accounts ...*model.Account) {
	for _, account := range accounts {
		if err := mirror.SetAccount(ctx, account); err != nil {
			log.WithError(err).
				WithField("account_id", account.ID).
				Warn("镜像更新失败，等待下次全量刷新")
		}
	}
}

func dropMirror(ctx context.Context, mirror AccountMirror, log *logrus.Entry, userID, accountID string) {
	if err := mirror.RemoveAccount(ctx, userID, accountID); err != nil {
		log.WithError(err).
			WithField("account_id", accountID).
			Warn("镜像删除失败，等待下次全量刷新")
	}
}
