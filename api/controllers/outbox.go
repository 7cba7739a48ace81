package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/angelmondragon/backoffice-backend/api/responses"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/outbox"
)

// DeadLetterReader exposes the outbox dead-letter table to operators.
type DeadLetterReader interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
	CountByReason(ctx context.Context) (map[enums.OutboxDLQErrorReason]int64, error)
}

type deadLettersResponse struct {
	Items  []models.OutboxDLQ                   `json:"items"`
	Totals map[enums.OutboxDLQErrorReason]int64 `json:"totals"`
}

// ListDeadLetters serves GET /admin/outbox/dead-letters?eventType=&reason=&limit=.
func ListDeadLetters(dlq DeadLetterReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dlq == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter store unavailable"))
			return
		}

		filter, err := parseDLQFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := dlq.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Internal(err, "list dead letters"))
			return
		}
		totals, err := dlq.CountByReason(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Internal(err, "count dead letters"))
			return
		}
		responses.WriteSuccess(w, deadLettersResponse{Items: items, Totals: totals})
	}
}

func parseDLQFilter(r *http.Request) (outbox.DLQFilter, error) {
	q := r.URL.Query()
	var filter outbox.DLQFilter

	if raw := q.Get("eventType"); raw != "" {
		eventType, err := enums.ParseOutboxEventType(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown eventType").
				WithDetails(map[string]any{"eventType": raw})
		}
		filter.EventType = eventType
	}
	if raw := q.Get("reason"); raw != "" {
		reason, err := enums.ParseOutboxDLQErrorReason(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown reason").
				WithDetails(map[string]any{"reason": raw})
		}
		filter.Reason = reason
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 500 {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "limit must be between 1 and 500")
		}
		filter.Limit = limit
	}
	return filter, nil
}
