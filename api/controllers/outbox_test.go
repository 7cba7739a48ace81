package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox"
)

type stubDeadLetters struct {
	filter outbox.DLQFilter
	items  []models.OutboxDLQ
	counts map[enums.OutboxDLQErrorReason]int64
	err    error
}

func (s *stubDeadLetters) List(_ context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error) {
	s.filter = filter
	return s.items, s.err
}

func (s *stubDeadLetters) CountByReason(context.Context) (map[enums.OutboxDLQErrorReason]int64, error) {
	return s.counts, s.err
}

func TestListDeadLettersAppliesFilter(t *testing.T) {
	store := &stubDeadLetters{
		items:  []models.OutboxDLQ{{ID: uuid.New(), EventType: enums.EventOrderCreated, ErrorReason: enums.OutboxDLQReasonMaxAttempts}},
		counts: map[enums.OutboxDLQErrorReason]int64{enums.OutboxDLQReasonMaxAttempts: 1},
	}

	rec := httptest.NewRecorder()
	ListDeadLetters(store, nil)(rec, newRequest(http.MethodGet, "/admin/outbox/dead-letters?eventType=order_created&reason=max_attempts&limit=20", nil, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, outbox.DLQFilter{EventType: enums.EventOrderCreated, Reason: enums.OutboxDLQReasonMaxAttempts, Limit: 20}, store.filter)

	var body deadLettersResponse
	decodeData(t, rec, &body)
	require.Len(t, body.Items, 1)
	assert.EqualValues(t, 1, body.Totals[enums.OutboxDLQReasonMaxAttempts])
}

func TestListDeadLettersRejectsBadQuery(t *testing.T) {
	for _, query := range []string{"?eventType=coupon_redeemed", "?reason=timeout", "?limit=0", "?limit=many"} {
		rec := httptest.NewRecorder()
		ListDeadLetters(&stubDeadLetters{}, nil)(rec, newRequest(http.MethodGet, "/admin/outbox/dead-letters"+query, nil, nil))

		require.Equal(t, http.StatusBadRequest, rec.Code, query)
		assert.Equal(t, string(pkgerrors.CodeValidation), decodeError(t, rec).Code)
	}
}

func TestListDeadLettersHidesStoreFailures(t *testing.T) {
	rec := httptest.NewRecorder()
	ListDeadLetters(&stubDeadLetters{err: errors.New("relation does not exist")}, nil)(rec, newRequest(http.MethodGet, "/admin/outbox/dead-letters", nil, nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, "internal server error", apiErr.Message)
}
