package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-gate/internal/status"
	"ticket-gate/models"
	"ticket-gate/monitoring"
)

// InventoryService owns sold_count for every ticket type. All mutation
// goes through conditional UPDATEs so concurrent callers across
// processes serialize at the storage layer, never on an in-memory lock.
type InventoryService struct {
	app core.App
}

func NewInventoryService(app core.App) *InventoryService {
	return &InventoryService{app: app}
}

// Reserve atomically claims qty units of a ticket type. The guard and
// the increment are one statement: two racing callers can never both
// pass a stale capacity check. Returns the post-reservation sold count.
func (s *InventoryService) Reserve(ctx context.Context, ticketTypeID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, status.ErrInvalidQuantity
	}

	result, err := s.app.DB().NewQuery(`
		UPDATE ticket_types
		SET sold_count = sold_count + {:qty}
		WHERE id = {:id}
		  AND status = 'active'
		  AND sold_count + {:qty} <= capacity
	`).Bind(dbx.Params{"id": ticketTypeID, "qty": qty}).WithContext(ctx).Execute()
	if err != nil {
		return 0, fmt.Errorf("reserve %s: %w: %v", ticketTypeID, status.ErrStorageUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reserve %s: %w: %v", ticketTypeID, status.ErrStorageUnavailable, err)
	}

	if rows == 0 {
		// The write is the arbiter; this read only explains the refusal.
		tt, err := s.GetTicketType(ctx, ticketTypeID)
		if err != nil {
			return 0, err
		}
		monitoring.TrackReservation(ticketTypeID, "rejected")
		if tt.Status == models.TicketTypeInactive {
			return 0, status.ErrTicketTypeUnavailable
		}
		return 0, &status.InsufficientInventoryError{
			TicketTypeID: ticketTypeID,
			Requested:    qty,
			Remaining:    tt.Remaining(),
		}
	}

	tt, err := s.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return 0, err
	}

	monitoring.TrackReservation(ticketTypeID, "reserved")
	slog.Info("inventory reserved",
		"ticket_type", ticketTypeID, "qty", qty, "sold_count", tt.SoldCount)

	return tt.SoldCount, nil
}

// Release is the compensating decrement for a reservation whose paired
// issuance failed. A release that would push sold_count below zero is a
// logic bug, not a user error: it is logged loudly and reported, and
// the count floors at zero.
func (s *InventoryService) Release(ctx context.Context, ticketTypeID string, qty int) error {
	if qty <= 0 {
		return status.ErrInvalidQuantity
	}

	result, err := s.app.DB().NewQuery(`
		UPDATE ticket_types
		SET sold_count = sold_count - {:qty}
		WHERE id = {:id} AND sold_count >= {:qty}
	`).Bind(dbx.Params{"id": ticketTypeID, "qty": qty}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("release %s: %w: %v", ticketTypeID, status.ErrStorageUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("release %s: %w: %v", ticketTypeID, status.ErrStorageUnavailable, err)
	}

	if rows == 0 {
		slog.Error("inventory release would underflow sold_count",
			"ticket_type", ticketTypeID, "qty", qty)

		if _, ferr := s.app.DB().NewQuery(`
			UPDATE ticket_types SET sold_count = 0
			WHERE id = {:id} AND sold_count < {:qty}
		`).Bind(dbx.Params{"id": ticketTypeID, "qty": qty}).WithContext(ctx).Execute(); ferr != nil {
			return fmt.Errorf("release floor %s: %w", ticketTypeID, ferr)
		}

		return status.ErrInventoryUnderflow
	}

	slog.Info("inventory released", "ticket_type", ticketTypeID, "qty", qty)
	return nil
}

// UpdateCapacity rejects any capacity below the current sold count in
// the same statement that applies the edit.
func (s *InventoryService) UpdateCapacity(ctx context.Context, ticketTypeID string, capacity int) error {
	if capacity < 0 {
		return fmt.Errorf("capacity must be >= 0")
	}

	result, err := s.app.DB().NewQuery(`
		UPDATE ticket_types
		SET capacity = {:cap}
		WHERE id = {:id} AND sold_count <= {:cap}
	`).Bind(dbx.Params{"id": ticketTypeID, "cap": capacity}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("update capacity %s: %w: %v", ticketTypeID, status.ErrStorageUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update capacity %s: %w: %v", ticketTypeID, status.ErrStorageUnavailable, err)
	}

	if rows == 0 {
		if _, err := s.app.FindRecordById("ticket_types", ticketTypeID); err != nil {
			return status.ErrTicketTypeNotFound
		}
		return status.ErrCapacityBelowSold
	}

	return nil
}

// TicketTypePatch is the allow-listed field set an administrator may
// edit. Each field is independently optional and validated before merge;
// capacity and sold_count are deliberately absent (capacity has its own
// guarded path, sold_count belongs to Reserve/Release alone).
type TicketTypePatch struct {
	Name       *string          `json:"name"`
	BasePrice  *decimal.Decimal `json:"base_price"`
	ServiceFee *decimal.Decimal `json:"service_fee"`
	Status     *string          `json:"status"`
}

func (s *InventoryService) UpdateTicketType(ctx context.Context, ticketTypeID string, patch TicketTypePatch) (*models.TicketType, error) {
	record, err := s.app.FindRecordById("ticket_types", ticketTypeID)
	if err != nil {
		return nil, status.ErrTicketTypeNotFound
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, fmt.Errorf("name must not be empty")
		}
		record.Set("name", *patch.Name)
	}
	if patch.BasePrice != nil {
		if patch.BasePrice.IsNegative() {
			return nil, fmt.Errorf("base_price must be >= 0")
		}
		record.Set("base_price", patch.BasePrice.InexactFloat64())
	}
	if patch.ServiceFee != nil {
		if patch.ServiceFee.IsNegative() {
			return nil, fmt.Errorf("service_fee must be >= 0")
		}
		record.Set("service_fee", patch.ServiceFee.InexactFloat64())
	}
	if patch.Status != nil {
		st := models.TicketTypeStatus(*patch.Status)
		// sold_out is derived, never settable
		if st != models.TicketTypeActive && st != models.TicketTypeInactive {
			return nil, fmt.Errorf("status must be active or inactive")
		}
		record.Set("status", string(st))
	}

	if err := s.app.Save(record); err != nil {
		return nil, fmt.Errorf("update ticket type %s: %w", ticketTypeID, err)
	}

	return s.GetTicketType(ctx, ticketTypeID)
}

func (s *InventoryService) GetTicketType(ctx context.Context, ticketTypeID string) (*models.TicketType, error) {
	record, err := s.app.FindRecordById("ticket_types", ticketTypeID)
	if err != nil {
		return nil, status.ErrTicketTypeNotFound
	}
	return ticketTypeFromRecord(record), nil
}

func (s *InventoryService) ListTicketTypes(ctx context.Context) ([]*models.TicketType, error) {
	records, err := s.app.FindRecordsByFilter("ticket_types", "id != ''", "name", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list ticket types: %w", err)
	}

	out := make([]*models.TicketType, len(records))
	for i, record := range records {
		out[i] = ticketTypeFromRecord(record)
	}
	return out, nil
}

func ticketTypeFromRecord(record *core.Record) *models.TicketType {
	return &models.TicketType{
		ID:         record.Id,
		Name:       record.GetString("name"),
		BasePrice:  decimal.NewFromFloat(record.GetFloat("base_price")),
		ServiceFee: decimal.NewFromFloat(record.GetFloat("service_fee")),
		Capacity:   record.GetInt("capacity"),
		SoldCount:  record.GetInt("sold_count"),
		Status:     models.TicketTypeStatus(record.GetString("status")),
		CreatedAt:  record.GetDateTime("created").Time(),
	}
}
