package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"billexpress/internal/model"

	"github.com/go-redis/redis/v8"
)

// RedisMirror 把账户快照写入 Redis，界面读取时无需访问数据库
//
//	ledger:account:{id}          账户 JSON
//	ledger:user:{userID}:accounts 用户的账户 ID 集合
type RedisMirror struct {
	client *redis.Client
}

func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{client: client}
}

func accountKey(id string) string {
	return "ledger:account:" + id
}

func userAccountsKey(userID string) string {
	return fmt.Sprintf("ledger:user:%s:accounts", userID)
}

// SetAccount 覆盖账户快照。没有 ID 的合成账户不写入
func (m *RedisMirror) SetAccount(ctx context.Context, account *model.Account) error {
	if account.ID == "" {
		return nil
	}
	body, err := json.Marshal(account)
	if err != nil {
		return err
	}

	pipe := m.client.TxPipeline()
	pipe.Set(ctx, accountKey(account.ID), body, 0)
	pipe.SAdd(ctx, userAccountsKey(account.UserID), account.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (m *RedisMirror) RemoveAccount(ctx context.Context, userID, accountID string) error {
	pipe := m.client.TxPipeline()
	pipe.Del(ctx, accountKey(accountID))
	pipe.SRem(ctx, userAccountsKey(userID), accountID)
	_, err := pipe.Exec(ctx)
	return err
}

// Accounts 读取用户在镜像中的账户，可能落后于数据库
func (m *RedisMirror) Accounts(ctx context.Context, userID string) ([]*model.Account, error) {
	ids, err := m.client.SMembers(ctx, userAccountsKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = accountKey(id)
	}
	values, err := m.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	accounts := make([]*model.Account, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var account model.Account
		if err := json.Unmarshal([]byte(s), &account); err != nil {
			return nil, fmt.Errorf("decode mirrored account: %w", err)
		}
		accounts = append(accounts, &account)
	}
	return accounts, nil
}

// MemoryMirror 进程内镜像，单机部署和测试使用
type MemoryMirror struct {
	mu       sync.RWMutex
	accounts map[string]model.Account
}

func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{accounts: make(map[string]model.Account)}
}

func (m *MemoryMirror) SetAccount(_ context.Context, account *model.Account) error {
	if account.ID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = *account
	return nil
}

func (m *MemoryMirror) RemoveAccount(_ context.Context, _, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, accountID)
	return nil
}

// Account 返回账户快照的副本
func (m *MemoryMirror) Account(id string) (model.Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	return a, ok
}

func (m *MemoryMirror) Accounts(_ context.Context, userID string) ([]*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var accounts []*model.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			a := a
			accounts = append(accounts, &a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}
