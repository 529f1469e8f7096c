package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"ticket-gate/config"
	"ticket-gate/internal/status"
	"ticket-gate/models"
	"ticket-gate/utils"
)

// Delivery hands freshly issued tickets (raw tokens included) to the
// out-of-band delivery collaborator. The core never re-exposes a raw
// token after this call.
type Delivery interface {
	Deliver(ctx context.Context, order *models.Order, tickets []models.IssuedTicket) error
}

// OrderService composes reservation, order creation and issuance into
// one all-or-nothing unit. The whole purchase runs in a single storage
// transaction; the compensating Release only comes into play on the
// payment-confirmation path, where the reservation committed earlier.
type OrderService struct {
	app       core.App
	redis     *redis.Client
	inventory *InventoryService
	tickets   *TicketService
	delivery  Delivery
	cfg       *config.Config
}

func NewOrderService(app core.App, redisClient *redis.Client, inventory *InventoryService, tickets *TicketService, delivery Delivery, cfg *config.Config) *OrderService {
	return &OrderService{
		app:       app,
		redis:     redisClient,
		inventory: inventory,
		tickets:   tickets,
		delivery:  delivery,
		cfg:       cfg,
	}
}

type CreateOrderRequest struct {
	TicketTypeID    string                `json:"ticket_type_id"`
	Quantity        int                   `json:"quantity"`
	BuyerName       string                `json:"buyer_name"`
	BuyerEmail      string                `json:"buyer_email"`
	Attendees       []models.AttendeeInfo `json:"attendees"`
	IdempotencyKey  string                `json:"idempotency_key"`
	SimulatePayment bool                  `json:"simulate_payment"`
}

type OrderResult struct {
	Order     models.Order          `json:"order"`
	Tickets   []models.IssuedTicket `json:"tickets,omitempty"`
	Duplicate bool                  `json:"duplicate,omitempty"`
}

// CreateOrder validates the request, reserves inventory and creates the
// order. With SimulatePayment the order is paid and tickets are issued
// in the same transaction; otherwise the order stays pending until
// ConfirmPayment. A repeated idempotency key returns the existing order
// instead of reserving again; raw tokens are never re-exposed on the
// duplicate path.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	if req.IdempotencyKey == "" {
		return nil, status.ErrIdempotencyKeyRequired
	}
	if req.Quantity <= 0 || req.Quantity > s.cfg.MaxTicketsPerOrder {
		return nil, status.ErrInvalidQuantity
	}
	if req.BuyerName == "" || req.BuyerEmail == "" {
		return nil, fmt.Errorf("buyer name and email are required")
	}

	attendees, err := s.normalizeAttendees(req)
	if err != nil {
		return nil, err
	}

	// Fast-path guard against concurrent retries with the same key. The
	// durable arbiter is the unique index on idempotency_key; this lock
	// just avoids burning a reservation both racers would fight over.
	release, acquired := s.acquireGuard(ctx, req.IdempotencyKey)
	if !acquired {
		if existing := s.findByIdempotencyKey(req.IdempotencyKey); existing != nil {
			return &OrderResult{Order: *existing, Duplicate: true}, nil
		}
		return nil, status.ErrOrderInFlight
	}
	defer release()

	if existing := s.findByIdempotencyKey(req.IdempotencyKey); existing != nil {
		return &OrderResult{Order: *existing, Duplicate: true}, nil
	}

	tt, err := s.inventory.GetTicketType(ctx, req.TicketTypeID)
	if err != nil {
		return nil, err
	}
	if tt.EffectiveStatus() != models.TicketTypeActive {
		return nil, status.ErrTicketTypeUnavailable
	}

	reference, err := utils.OrderReference()
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	amount := tt.FinalPrice().Mul(decimal.NewFromInt(int64(req.Quantity)))

	order := models.Order{
		BuyerName:         req.BuyerName,
		BuyerEmail:        req.BuyerEmail,
		TicketTypeID:      req.TicketTypeID,
		Quantity:          req.Quantity,
		Amount:            amount,
		Currency:          s.cfg.Currency,
		Status:            models.OrderPending,
		IdempotencyKey:    req.IdempotencyKey,
		ExternalReference: reference,
		Attendees:         attendees,
	}
	if req.SimulatePayment {
		order.Status = models.OrderPaid
	}

	var issued []models.IssuedTicket

	err = s.app.RunInTransaction(func(txApp core.App) error {
		txInventory := NewInventoryService(txApp)
		if _, err := txInventory.Reserve(ctx, req.TicketTypeID, req.Quantity); err != nil {
			return err
		}

		record, err := s.saveOrder(txApp, &order)
		if err != nil {
			return err
		}
		order.ID = record.Id
		order.CreatedAt = record.GetDateTime("created").Time()

		if order.Status == models.OrderPaid {
			now := types.NowDateTime()
			record.Set("paid_at", now)
			if err := txApp.Save(record); err != nil {
				return fmt.Errorf("mark order paid: %w", err)
			}
			paidAt := now.Time()
			order.PaidAt = &paidAt

			issued, err = s.tickets.IssueBatch(ctx, txApp, &order, attendees)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent request with the same key committed first.
			if existing := s.findByIdempotencyKey(req.IdempotencyKey); existing != nil {
				return &OrderResult{Order: *existing, Duplicate: true}, nil
			}
		}
		return nil, err
	}

	slog.Info("order created",
		"order", order.ID, "reference", reference,
		"ticket_type", req.TicketTypeID, "quantity", req.Quantity,
		"status", order.Status)

	if len(issued) > 0 {
		s.deliver(ctx, &order, issued)
	}

	return &OrderResult{Order: order, Tickets: issued}, nil
}

// ConfirmPayment applies an external payment decision to a pending
// order. Approved issues the tickets; rejected releases the reservation
// that was committed at order creation (the compensating decrement).
// Repeated signals for a non-pending order are a no-op.
func (s *OrderService) ConfirmPayment(ctx context.Context, externalReference string, approved bool) (*OrderResult, error) {
	record, err := s.findOrderRecord("external_reference", externalReference)
	if err != nil {
		return nil, status.ErrOrderNotFound
	}

	order := orderFromRecord(record)
	if order.Status != models.OrderPending {
		slog.Info("payment signal for settled order ignored",
			"order", order.ID, "status", order.Status, "approved", approved)
		return &OrderResult{Order: order, Duplicate: true}, nil
	}

	if !approved {
		err := s.app.RunInTransaction(func(txApp core.App) error {
			txRecord, err := txApp.FindRecordById("orders", order.ID)
			if err != nil {
				return status.ErrOrderNotFound
			}
			txRecord.Set("status", string(models.OrderCanceled))
			if err := txApp.Save(txRecord); err != nil {
				return fmt.Errorf("cancel order: %w", err)
			}
			return NewInventoryService(txApp).Release(ctx, order.TicketTypeID, order.Quantity)
		})
		if err != nil {
			return nil, err
		}

		order.Status = models.OrderCanceled
		slog.Info("payment rejected, reservation released", "order", order.ID)
		return &OrderResult{Order: order}, nil
	}

	attendees := attendeesForIssue(&order)

	var issued []models.IssuedTicket
	err = s.app.RunInTransaction(func(txApp core.App) error {
		txRecord, err := txApp.FindRecordById("orders", order.ID)
		if err != nil {
			return status.ErrOrderNotFound
		}
		if models.OrderStatus(txRecord.GetString("status")) != models.OrderPending {
			return status.ErrOrderNotPending
		}

		now := types.NowDateTime()
		txRecord.Set("status", string(models.OrderPaid))
		txRecord.Set("paid_at", now)
		if err := txApp.Save(txRecord); err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}

		paidAt := now.Time()
		order.Status = models.OrderPaid
		order.PaidAt = &paidAt

		issued, err = s.tickets.IssueBatch(ctx, txApp, &order, attendees)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("payment approved, tickets issued",
		"order", order.ID, "count", len(issued))

	s.deliver(ctx, &order, issued)

	return &OrderResult{Order: order, Tickets: issued}, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	record, err := s.app.FindRecordById("orders", orderID)
	if err != nil {
		return nil, status.ErrOrderNotFound
	}
	order := orderFromRecord(record)
	return &order, nil
}

func (s *OrderService) normalizeAttendees(req CreateOrderRequest) ([]models.AttendeeInfo, error) {
	if len(req.Attendees) == 0 {
		attendees := make([]models.AttendeeInfo, req.Quantity)
		for i := range attendees {
			attendees[i] = splitName(req.BuyerName)
		}
		return attendees, nil
	}

	if len(req.Attendees) != req.Quantity {
		return nil, fmt.Errorf("attendee count %d does not match quantity %d", len(req.Attendees), req.Quantity)
	}

	for i, a := range req.Attendees {
		if strings.TrimSpace(a.FirstName) == "" || strings.TrimSpace(a.LastName) == "" {
			return nil, fmt.Errorf("incomplete data for attendee %d", i+1)
		}
	}
	return req.Attendees, nil
}

// acquireGuard takes a short-lived Redis lock on the idempotency key.
// Redis being down fails open: the unique index still catches
// duplicates, just after doing some throwaway work.
func (s *OrderService) acquireGuard(ctx context.Context, key string) (func(), bool) {
	if s.redis == nil {
		return func() {}, true
	}

	guardKey := fmt.Sprintf("idem:order:%s", key)
	ok, err := s.redis.SetNX(ctx, guardKey, "1", s.cfg.IdempotencyGuard).Result()
	if err != nil {
		slog.Warn("idempotency guard unavailable, proceeding", "error", err)
		return func() {}, true
	}
	if !ok {
		return func() {}, false
	}
	return func() { s.redis.Del(context.Background(), guardKey) }, true
}

func (s *OrderService) findByIdempotencyKey(key string) *models.Order {
	record, err := s.findOrderRecord("idempotency_key", key)
	if err != nil {
		return nil
	}
	order := orderFromRecord(record)
	return &order
}

func (s *OrderService) findOrderRecord(field, value string) (*core.Record, error) {
	return s.app.FindFirstRecordByFilter(
		"orders",
		fmt.Sprintf("%s = {:value}", field),
		dbx.Params{"value": value},
	)
}

func (s *OrderService) saveOrder(txApp core.App, order *models.Order) (*core.Record, error) {
	collection, err := txApp.FindCollectionByNameOrId("orders")
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("buyer_name", order.BuyerName)
	record.Set("buyer_email", order.BuyerEmail)
	record.Set("ticket_type_id", order.TicketTypeID)
	record.Set("quantity", order.Quantity)
	record.Set("amount", order.Amount.InexactFloat64())
	record.Set("currency", order.Currency)
	record.Set("status", string(order.Status))
	record.Set("idempotency_key", order.IdempotencyKey)
	record.Set("external_reference", order.ExternalReference)

	if len(order.Attendees) > 0 {
		data, err := json.Marshal(order.Attendees)
		if err != nil {
			return nil, fmt.Errorf("create order: %w", err)
		}
		record.Set("attendees", string(data))
	}

	if err := txApp.Save(record); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return record, nil
}

func (s *OrderService) deliver(ctx context.Context, order *models.Order, issued []models.IssuedTicket) {
	if s.delivery == nil {
		return
	}
	if err := s.delivery.Deliver(ctx, order, issued); err != nil {
		// Delivery failure never unwinds a committed purchase; the
		// show path remains as the fallback for the buyer.
		slog.Error("ticket delivery failed", "order", order.ID, "error", err)
	}
}

func orderFromRecord(record *core.Record) models.Order {
	order := models.Order{
		ID:                record.Id,
		BuyerName:         record.GetString("buyer_name"),
		BuyerEmail:        record.GetString("buyer_email"),
		TicketTypeID:      record.GetString("ticket_type_id"),
		Quantity:          record.GetInt("quantity"),
		Amount:            decimal.NewFromFloat(record.GetFloat("amount")),
		Currency:          record.GetString("currency"),
		Status:            models.OrderStatus(record.GetString("status")),
		IdempotencyKey:    record.GetString("idempotency_key"),
		ExternalReference: record.GetString("external_reference"),
		CreatedAt:         record.GetDateTime("created").Time(),
	}

	if raw := record.GetString("attendees"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &order.Attendees); err != nil {
			slog.Warn("malformed attendees payload on order", "order", record.Id, "error", err)
		}
	}

	if paidAt := record.GetDateTime("paid_at"); !paidAt.IsZero() {
		ts := paidAt.Time()
		order.PaidAt = &ts
	}
	return order
}

// attendeesForIssue picks the per-seat identities for issuance: the
// attendees captured at checkout when present, the buyer's name per
// seat otherwise. Orders written before attendees were persisted fall
// through to the buyer fallback.
func attendeesForIssue(order *models.Order) []models.AttendeeInfo {
	if len(order.Attendees) == order.Quantity {
		return order.Attendees
	}

	attendees := make([]models.AttendeeInfo, order.Quantity)
	for i := range attendees {
		attendees[i] = splitName(order.BuyerName)
	}
	return attendees
}

func splitName(full string) models.AttendeeInfo {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return models.AttendeeInfo{FirstName: full}
	}
	if len(parts) == 1 {
		return models.AttendeeInfo{FirstName: parts[0]}
	}
	return models.AttendeeInfo{
		FirstName: strings.Join(parts[:len(parts)-1], " "),
		LastName:  parts[len(parts)-1],
	}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToUpper(err.Error()), "UNIQUE")
}
