// Package testutil provides in-memory stand-ins for the storage, gateway and
// bus dependencies of the service layer.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	apperrors "resort/internal/errors"
	"resort/internal/models"
)

type txKey struct{}

// Store keeps every table in memory. WithTx serializes transactions and
// restores a snapshot when fn fails, which mirrors the accommodation lock and
// rollback of the SQL store.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID         int64
	reservations   map[string]models.Reservation
	payments       map[string]models.Payment
	accommodations map[string]models.Accommodation
	amenities      map[string]models.Amenity
	blocked        map[string]models.BlockedDateRange
	activities     []models.ActivityEvent
}

func NewStore() *Store {
	return &Store{
		reservations:   make(map[string]models.Reservation),
		payments:       make(map[string]models.Payment),
		accommodations: make(map[string]models.Accommodation),
		amenities:      make(map[string]models.Amenity),
		blocked:        make(map[string]models.BlockedDateRange),
	}
}

// snapshot covers the tables written inside transactions. Activities are only
// appended after commit and ids behave like sequences, so neither is restored.
type snapshot struct {
	reservations map[string]models.Reservation
	payments     map[string]models.Payment
	blocked      map[string]models.BlockedDateRange
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{
		reservations: make(map[string]models.Reservation, len(s.reservations)),
		payments:     make(map[string]models.Payment, len(s.payments)),
		blocked:      make(map[string]models.BlockedDateRange, len(s.blocked)),
	}
	for k, v := range s.reservations {
		snap.reservations[k] = v.Clone()
	}
	for k, v := range s.payments {
		snap.payments[k] = v
	}
	for k, v := range s.blocked {
		snap.blocked[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations = snap.reservations
	s.payments = snap.payments
	s.blocked = snap.blocked
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// statement runs a single write. Outside a transaction it waits for the
// running one, the way a row lock makes a plain UPDATE wait.
func (s *Store) statement(ctx context.Context, fn func()) {
	if ctx.Value(txKey{}) == nil {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// AddAccommodation and AddAmenity seed the catalog.
func (s *Store) AddAccommodation(acc models.Accommodation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accommodations[acc.ID] = acc
}

func (s *Store) AddAmenity(a models.Amenity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.amenities[a.ID] = a
}

// PutReservation stores r as is, bypassing every check.
func (s *Store) PutReservation(r models.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		s.nextID++
		r.ID = s.nextID
	}
	s.reservations[r.Code] = r.Clone()
}

func (s *Store) ReservationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reservations)
}

func (s *Store) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *Store) Activities() []models.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ActivityEvent(nil), s.activities...)
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// conflictLocked mirrors the exclusion constraint on reservations.
func (s *Store) conflictLocked(accommodationID string, start, end time.Time, excludeCode string) bool {
	for code, r := range s.reservations {
		if code == excludeCode || r.AccommodationID != accommodationID || r.Status == models.StatusCancelled {
			continue
		}
		if overlaps(r.StartAt, r.EndAt, start, end) {
			return true
		}
	}
	return false
}

// ReservationStore

type ReservationStore struct{ s *Store }

func (s *Store) ReservationStore() *ReservationStore { return &ReservationStore{s: s} }

func (r *ReservationStore) LockAccommodation(ctx context.Context, accommodationID string) error {
	return nil
}

func (r *ReservationStore) HasConflict(ctx context.Context, accommodationID string, start, end time.Time, excludeCode string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.conflictLocked(accommodationID, start, end, excludeCode), nil
}

func (r *ReservationStore) Create(ctx context.Context, res *models.Reservation) error {
	var err error
	r.s.statement(ctx, func() {
		if _, exists := r.s.reservations[res.Code]; exists {
			err = apperrors.ErrDuplicateCode
			return
		}
		if res.Status != models.StatusCancelled && r.s.conflictLocked(res.AccommodationID, res.StartAt, res.EndAt, "") {
			err = apperrors.ErrRangeOverlap
			return
		}
		r.s.nextID++
		res.ID = r.s.nextID
		r.s.reservations[res.Code] = res.Clone()
	})
	return err
}

func (r *ReservationStore) Update(ctx context.Context, res *models.Reservation) error {
	var err error
	r.s.statement(ctx, func() {
		current, ok := r.s.reservations[res.Code]
		if !ok {
			err = apperrors.NotFound("reservation %s not found", res.Code)
			return
		}
		if res.Status != models.StatusCancelled && r.s.conflictLocked(res.AccommodationID, res.StartAt, res.EndAt, res.Code) {
			err = apperrors.ErrRangeOverlap
			return
		}
		updated := res.Clone()
		updated.ID = current.ID
		updated.CreatedAt = current.CreatedAt
		r.s.reservations[res.Code] = updated
	})
	return err
}

func (r *ReservationStore) GetByCode(ctx context.Context, code string) (*models.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	res, ok := r.s.reservations[code]
	if !ok {
		return nil, nil
	}
	c := res.Clone()
	return &c, nil
}

// GetByCodeForUpdate must run inside WithTx, which already holds every row.
func (r *ReservationStore) GetByCodeForUpdate(ctx context.Context, code string) (*models.Reservation, error) {
	if ctx.Value(txKey{}) == nil {
		return nil, errors.New("testutil: GetByCodeForUpdate outside a transaction")
	}
	return r.GetByCode(ctx, code)
}

func (r *ReservationStore) sortedLocked() []models.Reservation {
	out := make([]models.Reservation, 0, len(r.s.reservations))
	for _, res := range r.s.reservations {
		out = append(out, res.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *ReservationStore) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []models.Reservation
	for _, res := range r.sortedLocked() {
		switch {
		case filter.Status != nil && res.Status != *filter.Status,
			filter.AccommodationID != nil && res.AccommodationID != *filter.AccommodationID,
			filter.WalkIn != nil && res.WalkIn != *filter.WalkIn,
			filter.From != nil && !res.EndAt.After(*filter.From),
			filter.To != nil && !res.StartAt.Before(*filter.To):
			continue
		}
		matched = append(matched, res)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].StartAt.After(matched[j].StartAt) })

	total := len(matched)
	from := (filter.Page - 1) * filter.PageSize
	if from >= total {
		return []models.Reservation{}, total, nil
	}
	to := from + filter.PageSize
	if to > total {
		to = total
	}
	return matched[from:to], total, nil
}

func (r *ReservationStore) Delete(ctx context.Context, code string) (bool, error) {
	deleted := false
	r.s.statement(ctx, func() {
		if _, ok := r.s.reservations[code]; ok {
			delete(r.s.reservations, code)
			deleted = true
		}
	})
	return deleted, nil
}

func (r *ReservationStore) transition(ctx context.Context, now time.Time, from, to models.ReservationStatus, due func(models.Reservation) bool) []string {
	var codes []string
	r.s.statement(ctx, func() {
		for _, res := range r.sortedLocked() {
			if res.Status != from || !due(res) {
				continue
			}
			res.Status = to
			res.UpdatedAt = now
			r.s.reservations[res.Code] = res
			codes = append(codes, res.Code)
		}
	})
	return codes
}

func (r *ReservationStore) CancelStalePending(ctx context.Context, now time.Time) ([]string, error) {
	return r.transition(ctx, now, models.StatusPending, models.StatusCancelled, func(res models.Reservation) bool {
		return res.StartAt.Before(now)
	}), nil
}

func (r *ReservationStore) CompleteElapsed(ctx context.Context, now time.Time) ([]string, error) {
	return r.transition(ctx, now, models.StatusConfirmed, models.StatusCompleted, func(res models.Reservation) bool {
		return res.EndAt.Before(now)
	}), nil
}

func (r *ReservationStore) ClaimDueReminders(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	var claimed []models.Reservation
	r.s.statement(ctx, func() {
		for _, res := range r.sortedLocked() {
			if res.Status != models.StatusConfirmed || res.ReminderSent || res.StartAt.Before(from) || !res.StartAt.Before(to) {
				continue
			}
			res.ReminderSent = true
			r.s.reservations[res.Code] = res
			claimed = append(claimed, res)
		}
	})
	return claimed, nil
}

func (r *ReservationStore) ListConfirmed(ctx context.Context, accommodationID *string) ([]models.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []models.Reservation
	for _, res := range r.sortedLocked() {
		if res.Status != models.StatusConfirmed {
			continue
		}
		if accommodationID != nil && res.AccommodationID != *accommodationID {
			continue
		}
		out = append(out, res)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

// PaymentStore

type PaymentStore struct{ s *Store }

func (s *Store) PaymentStore() *PaymentStore { return &PaymentStore{s: s} }

func (p *PaymentStore) InsertIfAbsent(ctx context.Context, payment *models.Payment) (bool, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	if _, exists := p.s.payments[payment.IntentID]; exists {
		return false, nil
	}
	p.s.nextID++
	payment.ID = p.s.nextID
	p.s.payments[payment.IntentID] = *payment
	return true, nil
}

func (p *PaymentStore) GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	payment, ok := p.s.payments[intentID]
	if !ok {
		return nil, nil
	}
	return &payment, nil
}

// CatalogStore

type CatalogStore struct{ s *Store }

func (s *Store) CatalogStore() *CatalogStore { return &CatalogStore{s: s} }

func (c *CatalogStore) GetAccommodation(ctx context.Context, id string) (*models.Accommodation, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	acc, ok := c.s.accommodations[id]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

func (c *CatalogStore) GetAmenitiesByIDs(ctx context.Context, ids []string) ([]models.Amenity, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	var out []models.Amenity
	for _, id := range ids {
		if a, ok := c.s.amenities[id]; ok && a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

// BlockedRangeStore

type BlockedRangeStore struct{ s *Store }

func (s *Store) BlockedRangeStore() *BlockedRangeStore { return &BlockedRangeStore{s: s} }

func (b *BlockedRangeStore) List(ctx context.Context, accommodationID *string) ([]models.BlockedDateRange, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	var out []models.BlockedDateRange
	for _, br := range b.s.blocked {
		if accommodationID != nil && br.AccommodationID != nil && *br.AccommodationID != *accommodationID {
			continue
		}
		out = append(out, br)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (b *BlockedRangeStore) Create(ctx context.Context, br *models.BlockedDateRange) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	b.s.blocked[br.ID] = *br
	return nil
}

func (b *BlockedRangeStore) Delete(ctx context.Context, id string) (bool, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	if _, ok := b.s.blocked[id]; !ok {
		return false, nil
	}
	delete(b.s.blocked, id)
	return true, nil
}

// ActivityStore

type ActivityStore struct{ s *Store }

func (s *Store) ActivityStore() *ActivityStore { return &ActivityStore{s: s} }

func (a *ActivityStore) Insert(ctx context.Context, event *models.ActivityEvent) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	a.s.nextID++
	event.ID = a.s.nextID
	a.s.activities = append(a.s.activities, *event)
	return nil
}

func (a *ActivityStore) ListByReservation(ctx context.Context, code string) ([]models.ActivityEvent, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	var out []models.ActivityEvent
	for _, event := range a.s.activities {
		if event.ReservationCode == code {
			out = append(out, event)
		}
	}
	return out, nil
}
