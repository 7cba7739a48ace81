package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/backoffice-backend/pkg/config"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/metrics"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox/registry"
)

var failedAt = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type harness struct {
	svc  *Service
	repo *fakeRepo
	dlq  *fakeDLQ
	pubs map[string]*fakePublisher
}

func newHarness(t *testing.T, maxAttempts int, rows ...models.OutboxEvent) *harness {
	t.Helper()
	pubsubCfg := config.PubSubConfig{OrdersTopic: "bo-order-events", StockTopic: "bo-stock-events"}
	eventRegistry, err := registry.NewEventRegistry(pubsubCfg)
	require.NoError(t, err)

	h := &harness{
		repo: &fakeRepo{rows: rows},
		dlq:  &fakeDLQ{},
		pubs: map[string]*fakePublisher{
			pubsubCfg.OrdersTopic: {},
			pubsubCfg.StockTopic:  {},
		},
	}
	svc, err := NewService(ServiceParams{
		Config: &config.Config{Outbox: config.OutboxConfig{
			BatchSize:      10,
			PollIntervalMS: 10,
			MaxAttempts:    maxAttempts,
		}},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:         fakeDB{},
		PubSub:     fakePubSub{},
		Repository: h.repo,
		DLQ:        h.dlq,
		Registry:   eventRegistry,
		Metrics:    metrics.NewOutboxMetrics(prometheus.NewRegistry()),
		PublisherFactory: func(topic string) topicPublisher {
			if pub, ok := h.pubs[topic]; ok {
				return pub
			}
			return nil
		},
		Clock: func() time.Time { return failedAt },
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func orderCreatedRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	orderID := uuid.New()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload: envelope(t, payloads.OrderCreatedEvent{
			OrderID: orderID,
			Code:    "ORD-7K2M9QXA",
			Channel: enums.OrderChannelWeb,
		}),
		AttemptCount: attempts,
	}
}

func envelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: failedAt.Add(-time.Minute),
		Actor:      &outbox.ActorRef{EmployeeID: uuid.New(), Role: "clerk"},
		Data:       raw,
	})
	require.NoError(t, err)
	return payload
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Config: &config.Config{}, Logger: logger.New(logger.Options{Output: io.Discard})})
	require.Error(t, err)
}

func TestProcessBatchPublishesWithOrderingKey(t *testing.T) {
	row := orderCreatedRow(t, 0)
	h := newHarness(t, 5, row)

	claimed, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
	assert.Equal(t, []uuid.UUID{row.ID}, h.repo.published)

	sent := h.pubs["bo-order-events"].sent
	require.Len(t, sent, 1)
	assert.Equal(t, row.AggregateID.String(), sent[0].OrderingKey)
	assert.Equal(t, "order_created", sent[0].Attributes["eventType"])
	assert.NotEmpty(t, sent[0].Attributes["actorEmployeeId"])
	assert.JSONEq(t, string(row.Payload), string(sent[0].Data))
}

func TestProcessBatchContinuesAfterTransientFailure(t *testing.T) {
	first := orderCreatedRow(t, 0)
	second := orderCreatedRow(t, 0)
	h := newHarness(t, 5, first, second)
	h.pubs["bo-order-events"].errs = []error{errors.New("unavailable")}

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID}, h.repo.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, h.repo.published)
	assert.Empty(t, h.dlq.entries)
}

func TestProcessBatchDeadLettersAtMaxAttempts(t *testing.T) {
	row := orderCreatedRow(t, 2)
	h := newHarness(t, 3, row)
	h.pubs["bo-order-events"].errs = []error{errors.New("unavailable")}

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 1)
	entry := h.dlq.entries[0]
	assert.Equal(t, row.ID, entry.EventID)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, entry.ErrorReason)
	assert.Equal(t, failedAt, entry.FailedAt)
	assert.Equal(t, []uuid.UUID{row.ID}, h.repo.terminal)
}

func TestProcessBatchDeadLettersUndecodableRows(t *testing.T) {
	row := orderCreatedRow(t, 0)
	row.AggregateType = enums.AggregateStockLot
	unknown := orderCreatedRow(t, 0)
	unknown.EventType = "coupon_redeemed"
	h := newHarness(t, 5, row, unknown)

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 2)
	for _, entry := range h.dlq.entries {
		assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
		require.NotNil(t, entry.ErrorMessage)
	}
	assert.Empty(t, h.repo.published)
	assert.Empty(t, h.pubs["bo-order-events"].sent)
}

func TestProcessBatchDeadLettersMissingTopicPublisher(t *testing.T) {
	lotID := uuid.New()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventStockReplenished,
		AggregateType: enums.AggregateStockLot,
		AggregateID:   lotID,
		Payload:       envelope(t, payloads.StockReplenishedEvent{StockLotID: lotID, Quantity: 12}),
	}
	h := newHarness(t, 5, row)
	delete(h.pubs, "bo-stock-events")

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, h.dlq.entries[0].ErrorReason)
}

func TestProcessBatchSurfacesBookkeepingErrors(t *testing.T) {
	row := orderCreatedRow(t, 0)
	h := newHarness(t, 5, row)
	h.repo.markErr = errors.New("connection reset")

	_, err := h.svc.processBatch(context.Background())
	require.ErrorContains(t, err, "mark published")
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, 5)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := h.svc.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakeRepo struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	markErr   error
}

func (f *fakeRepo) FetchUnpublishedForPublish(_ *gorm.DB, limit, _ int) ([]models.OutboxEvent, error) {
	rows := f.rows
	if len(rows) > limit {
		rows = rows[:limit]
	}
	f.rows = f.rows[len(rows):]
	return rows, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDLQ struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSub struct{}

func (fakePubSub) Ping(context.Context) error { return nil }

func (fakePubSub) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	sent []*gcppubsub.Message
	errs []error
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) (string, error) {
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return "", err
	}
	f.sent = append(f.sent, msg)
	return uuid.NewString(), nil
}
