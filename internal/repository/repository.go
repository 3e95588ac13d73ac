package repository

import (
	"errors"

	"resort/internal/database"

	"github.com/lib/pq"
)

type Repositories struct {
	Reservations  *ReservationRepository
	Payments      *PaymentRepository
	Catalog       *CatalogRepository
	BlockedRanges *BlockedRangeRepository
	Activities    *ActivityRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Reservations:  NewReservationRepository(db),
		Payments:      NewPaymentRepository(db),
		Catalog:       NewCatalogRepository(db),
		BlockedRanges: NewBlockedRangeRepository(db),
		Activities:    NewActivityRepository(db),
	}
}

const exclusionViolation = "23P01"

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isExclusionViolation(err error) bool {
	return pqCode(err) == exclusionViolation
}
