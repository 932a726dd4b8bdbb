package job

import (
	"context"
	"fmt"
	"time"

	"billexpress/internal/config"
	"billexpress/internal/infrastructure/lock"
	"billexpress/internal/repository"
	"billexpress/internal/service"
	"billexpress/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const sweepLockTTL = 5 * time.Minute

// ReconcileJob 按 cron 表达式对所有用户执行对账巡检
// 配置了 Redis 时按用户加分布式锁，多实例部署下同一用户不会被重复巡检
type ReconcileJob struct {
	accountRepo *repository.AccountRepository
	reconciler  *service.ReconcileService
	redis       *redis.Client
	cfg         *config.Config
	log         *logrus.Entry
	owner       string
	cron        *cron.Cron
}

func NewReconcileJob(db *gorm.DB, reconciler *service.ReconcileService, redisClient *redis.Client, cfg *config.Config, log *logrus.Logger) *ReconcileJob {
	return &ReconcileJob{
		accountRepo: repository.NewAccountRepository(db),
		reconciler:  reconciler,
		redis:       redisClient,
		cfg:         cfg,
		log:         log.WithField("job", "reconcile"),
		owner:       fmt.Sprintf("sweeper-%d", idgen.NextID()),
		cron:        cron.New(),
	}
}

// Start 注册定时任务并启动调度器，ctx 结束时停止
func (j *ReconcileJob) Start(ctx context.Context) error {
	_, err := j.cron.AddFunc(j.cfg.Business.SweepCron, func() {
		j.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("解析对账周期 %q 失败: %w", j.cfg.Business.SweepCron, err)
	}

	j.cron.Start()
	j.log.WithField("schedule", j.cfg.Business.SweepCron).Info("对账任务启动")

	go func() {
		<-ctx.Done()
		j.Stop()
	}()
	return nil
}

// Stop 停止调度并等待正在执行的巡检结束
func (j *ReconcileJob) Stop() {
	<-j.cron.Stop().Done()
}

// RunOnce 巡检全部用户，单个用户失败不影响其他用户
func (j *ReconcileJob) RunOnce(ctx context.Context) []*service.SweepReport {
	userIDs, err := j.accountRepo.ListUserIDs(ctx)
	if err != nil {
		j.log.WithError(err).Error("查询用户列表失败")
		return nil
	}

	reports := make([]*service.SweepReport, 0, len(userIDs))
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			break
		}
		report, err := j.sweepUser(ctx, userID)
		if err != nil {
			j.log.WithError(err).WithField("user_id", userID).Error("用户对账失败")
			continue
		}
		if report != nil {
			reports = append(reports, report)
		}
	}
	return reports
}

func (j *ReconcileJob) sweepUser(ctx context.Context, userID string) (*service.SweepReport, error) {
	if j.redis == nil {
		return j.reconciler.VerifySweep(ctx, userID)
	}

	l := lock.NewSweepLock(j.redis, userID, j.owner, sweepLockTTL)
	ok, err := l.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取对账锁失败: %w", err)
	}
	if !ok {
		j.log.WithField("user_id", userID).Debug("其他实例正在对账，跳过")
		return nil, nil
	}
	defer func() {
		if err := l.Unlock(ctx); err != nil {
			j.log.WithError(err).WithField("user_id", userID).Warn("释放对账锁失败")
		}
	}()

	return j.reconciler.VerifySweep(ctx, userID)
}
