package job

import (
	"context"
	"testing"

	"billexpress/internal/infrastructure/logger"
	"billexpress/internal/infrastructure/mq"
	"billexpress/internal/model"
	"billexpress/internal/repository"
	"billexpress/internal/testutil"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func seedOutbox(t *testing.T, repo *repository.OutboxRepository, keys ...string) {
	t.Helper()
	for _, key := range keys {
		err := repo.Create(context.Background(), nil, &model.OutboxMessage{
			MessageKey: key,
			EventType:  model.EventTransferCompleted,
			Topic:      "ledger-events",
			Payload:    `{"event_type":"transfer.completed"}`,
			Status:     model.OutboxStatusPending,
		})
		if err != nil {
			t.Fatalf("seed outbox: %v", err)
		}
	}
}

func TestOutboxSender_ProcessPending(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := testutil.Config()
	repo := repository.NewOutboxRepository(db)
	seedOutbox(t, repo, "EVT1", "EVT2")

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndSucceed()
	defer producer.Close()

	sender := NewOutboxSender(db, mq.NewPublisher(producer), cfg, logger.Discard())
	if got := sender.ProcessPending(context.Background()); got != 2 {
		t.Errorf("ProcessPending() = %d, want 2", got)
	}

	pending, _ := repo.GetPendingMessages(context.Background(), 10)
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestOutboxSender_MarksFailedAfterMaxRetries(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := testutil.Config()
	cfg.Business.MaxRetryCount = 2
	repo := repository.NewOutboxRepository(db)
	seedOutbox(t, repo, "EVT1")

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	defer producer.Close()

	sender := NewOutboxSender(db, mq.NewPublisher(producer), cfg, logger.Discard())
	ctx := context.Background()

	if got := sender.ProcessPending(ctx); got != 0 {
		t.Errorf("first ProcessPending() = %d, want 0", got)
	}
	pending, _ := repo.GetPendingMessages(ctx, 10)
	if len(pending) != 1 || pending[0].RetryCount != 1 {
		t.Fatalf("after first failure pending = %+v, want one retry", pending)
	}

	sender.ProcessPending(ctx)
	pending, _ = repo.GetPendingMessages(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("pending = %d, want message marked failed", len(pending))
	}
	msgs, _ := repo.ListByEventType(ctx, model.EventTransferCompleted)
	if len(msgs) != 1 || msgs[0].Status != model.OutboxStatusFailed {
		t.Errorf("messages = %+v, want FAILED", msgs)
	}
}
