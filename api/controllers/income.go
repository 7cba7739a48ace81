package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/backoffice-backend/api/responses"
	"github.com/angelmondragon/backoffice-backend/api/validators"
	"github.com/angelmondragon/backoffice-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
)

// IncomeService reads and regenerates daily income records.
type IncomeService interface {
	Generate(ctx context.Context, day, month, year int) (*models.IncomeRecord, error)
	Get(ctx context.Context, day, month, year int) (*models.IncomeRecord, error)
}

func GenerateIncome(svc IncomeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "income service unavailable"))
			return
		}

		day, month, year, err := parseIncomeDay(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Generate(r.Context(), day, month, year)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

func GetIncome(svc IncomeService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "income service unavailable"))
			return
		}

		day, month, year, err := parseIncomeDay(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Get(r.Context(), day, month, year)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// parseIncomeDay reads the path date. Calendar validity is left to the service.
func parseIncomeDay(r *http.Request) (day, month, year int, err error) {
	if year, err = validators.ParseIntParam(r, "year", 1, 9999); err != nil {
		return 0, 0, 0, err
	}
	if month, err = validators.ParseIntParam(r, "month", 1, 12); err != nil {
		return 0, 0, 0, err
	}
	if day, err = validators.ParseIntParam(r, "day", 1, 31); err != nil {
		return 0, 0, 0, err
	}
	return day, month, year, nil
}
