package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"ticket-gate/internal/status"
	"ticket-gate/internal/token"
	"ticket-gate/models"
	"ticket-gate/monitoring"
)

// TicketService owns every ticket status transition. The state machine
// is one-directional: valid -> used (Validate), valid -> expired
// (sweep), anything -> revoked (Revoke). Nothing ever returns to valid.
type TicketService struct {
	app     core.App
	baseURL string
}

func NewTicketService(app core.App, baseURL string) *TicketService {
	return &TicketService{app: app, baseURL: baseURL}
}

// ScanContext identifies who presented a token, for the audit log.
type ScanContext struct {
	DeviceID   string
	RemoteAddr string
}

// Validate flips a ticket from valid to used at most once. The
// conditional UPDATE is the single point of truth: under simultaneous
// scans of the same token exactly one caller affects a row, and the
// follow-up read only classifies the refusal for the operator at the
// door. Expected failures (already_used, revoked, expired, invalid) are
// outcomes, not errors; the error return is for malformed input and
// storage trouble only.
func (s *TicketService) Validate(ctx context.Context, rawToken string, scan ScanContext) (*models.ValidationResult, error) {
	started := time.Now()
	defer func() { monitoring.TrackValidateDuration(time.Since(started)) }()

	if !token.IsWellFormed(rawToken) {
		return nil, status.ErrInvalidToken
	}

	digest := token.Digest(rawToken)
	now := types.NowDateTime()

	result, err := s.app.DB().NewQuery(`
		UPDATE tickets
		SET status = 'used', used_at = {:now}
		WHERE token_digest = {:digest} AND status = 'valid'
	`).Bind(dbx.Params{"digest": digest, "now": now.String()}).WithContext(ctx).Execute()
	if err != nil {
		return nil, fmt.Errorf("validate: %w: %v", status.ErrStorageUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("validate: %w: %v", status.ErrStorageUnavailable, err)
	}

	if rows == 1 {
		record, err := s.findByDigest(digest)
		if err != nil {
			return nil, fmt.Errorf("validate: winner row vanished: %w", err)
		}

		usedAt := now.Time()
		res := &models.ValidationResult{
			Success:        true,
			Outcome:        models.OutcomeSuccess,
			TicketID:       record.Id,
			AttendeeName:   record.GetString("attendee_name"),
			TicketTypeName: s.ticketTypeName(record.GetString("ticket_type_id")),
			UsedAt:         &usedAt,
		}
		res.Message = fmt.Sprintf("Welcome %s", res.AttendeeName)

		s.appendValidation(record.Id, models.OutcomeSuccess, scan)
		monitoring.TrackValidation(string(models.OutcomeSuccess))
		return res, nil
	}

	// Zero rows affected: read-only classification.
	record, err := s.findByDigest(digest)
	if err != nil {
		s.appendValidation("", models.OutcomeInvalid, scan)
		monitoring.TrackValidation(string(models.OutcomeInvalid))
		return &models.ValidationResult{
			Success: false,
			Outcome: models.OutcomeInvalid,
			Message: "Ticket not found",
		}, nil
	}

	res := &models.ValidationResult{
		Success:        false,
		TicketID:       record.Id,
		AttendeeName:   record.GetString("attendee_name"),
		TicketTypeName: s.ticketTypeName(record.GetString("ticket_type_id")),
	}

	switch models.TicketStatus(record.GetString("status")) {
	case models.TicketUsed:
		usedAt := record.GetDateTime("used_at").Time()
		res.Outcome = models.OutcomeAlreadyUsed
		res.UsedAt = &usedAt
		res.Message = fmt.Sprintf("Ticket already used at %s", usedAt.Format(time.RFC3339))
	case models.TicketRevoked:
		res.Outcome = models.OutcomeRevoked
		res.Message = "Ticket has been revoked"
	case models.TicketExpired:
		res.Outcome = models.OutcomeExpired
		res.Message = "Ticket has expired"
	default:
		res.Outcome = models.OutcomeInvalid
		res.Message = "Ticket is not valid"
	}

	s.appendValidation(record.Id, res.Outcome, scan)
	monitoring.TrackValidation(string(res.Outcome))
	return res, nil
}

// IssueBatch creates one valid ticket per attendee on the caller's
// transaction, each with a fresh token. The raw tokens leave this
// function exactly once, bound for the delivery channel.
func (s *TicketService) IssueBatch(ctx context.Context, txApp core.App, order *models.Order, attendees []models.AttendeeInfo) ([]models.IssuedTicket, error) {
	collection, err := txApp.FindCollectionByNameOrId("tickets")
	if err != nil {
		return nil, fmt.Errorf("issue batch: %w", err)
	}

	typeName := s.ticketTypeName(order.TicketTypeID)

	issued := make([]models.IssuedTicket, 0, len(attendees))
	for _, attendee := range attendees {
		raw, err := token.Generate()
		if err != nil {
			return nil, fmt.Errorf("issue batch: %w", err)
		}

		record := core.NewRecord(collection)
		record.Set("order_id", order.ID)
		record.Set("ticket_type_id", order.TicketTypeID)
		record.Set("token_digest", token.Digest(raw))
		record.Set("status", string(models.TicketValid))
		record.Set("attendee_name", attendee.FullName())
		record.Set("attendee_email", order.BuyerEmail)
		record.Set("attendee_dni", attendee.DNI)

		if err := txApp.Save(record); err != nil {
			return nil, fmt.Errorf("issue batch: save ticket: %w", err)
		}

		issued = append(issued, models.IssuedTicket{
			Ticket: models.Ticket{
				ID:            record.Id,
				OrderID:       order.ID,
				TicketTypeID:  order.TicketTypeID,
				Status:        models.TicketValid,
				AttendeeName:  attendee.FullName(),
				AttendeeEmail: order.BuyerEmail,
				AttendeeDNI:   attendee.DNI,
				CreatedAt:     record.GetDateTime("created").Time(),
			},
			RawToken: raw,
			ScanURL:  token.ScanURL(s.baseURL, raw),
		})
	}

	slog.Info("tickets issued",
		"order", order.ID, "ticket_type", typeName, "count", len(issued))

	return issued, nil
}

// Revoke sets a ticket to revoked from any state. Not race-sensitive:
// it does not need to beat scanners, last writer wins. Already-revoked
// is a no-op.
func (s *TicketService) Revoke(ctx context.Context, ticketID string) (*models.Ticket, error) {
	record, err := s.app.FindRecordById("tickets", ticketID)
	if err != nil {
		return nil, status.ErrTicketNotFound
	}

	if models.TicketStatus(record.GetString("status")) != models.TicketRevoked {
		if _, err := s.app.DB().NewQuery(`
			UPDATE tickets SET status = 'revoked'
			WHERE id = {:id} AND status != 'revoked'
		`).Bind(dbx.Params{"id": ticketID}).WithContext(ctx).Execute(); err != nil {
			return nil, fmt.Errorf("revoke %s: %w", ticketID, err)
		}

		slog.Info("ticket revoked", "ticket", ticketID)
		record, err = s.app.FindRecordById("tickets", ticketID)
		if err != nil {
			return nil, status.ErrTicketNotFound
		}
	}

	t := ticketFromRecord(record)
	return &t, nil
}

// ShowByToken re-displays a ticket for a caller who already possesses
// the raw token (lost-email fallback). It never mutates anything.
func (s *TicketService) ShowByToken(ctx context.Context, rawToken string) (*models.Ticket, string, error) {
	if !token.IsWellFormed(rawToken) {
		return nil, "", status.ErrInvalidToken
	}

	record, err := s.findByDigest(token.Digest(rawToken))
	if err != nil {
		return nil, "", status.ErrTicketNotFound
	}

	t := ticketFromRecord(record)
	return &t, token.ScanURL(s.baseURL, rawToken), nil
}

// ExpireStale moves valid tickets older than ttl to expired. The
// predicate keeps the transition monotonic; used and revoked tickets
// are untouched.
func (s *TicketService) ExpireStale(ctx context.Context, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, nil
	}

	cutoff, err := types.ParseDateTime(time.Now().UTC().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("expire sweep: %w", err)
	}

	result, err := s.app.DB().NewQuery(`
		UPDATE tickets SET status = 'expired'
		WHERE status = 'valid' AND created < {:cutoff}
	`).Bind(dbx.Params{"cutoff": cutoff.String()}).WithContext(ctx).Execute()
	if err != nil {
		return 0, fmt.Errorf("expire sweep: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire sweep: %w", err)
	}

	if rows > 0 {
		slog.Info("expired stale tickets", "count", rows)
	}
	return rows, nil
}

// RunExpirySweeper expires stale tickets on a fixed interval until the
// context is canceled. A zero ttl disables the sweep entirely.
func (s *TicketService) RunExpirySweeper(ctx context.Context, interval, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ExpireStale(ctx, ttl); err != nil {
				slog.Error("expiry sweep failed", "error", err)
			}
		}
	}
}

// ListValidations returns the newest audit entries for admin review.
func (s *TicketService) ListValidations(ctx context.Context, limit int) ([]models.ValidationRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	records, err := s.app.FindRecordsByFilter("validations", "id != ''", "-validated_at", limit, 0)
	if err != nil {
		return nil, fmt.Errorf("list validations: %w", err)
	}

	out := make([]models.ValidationRecord, len(records))
	for i, record := range records {
		out[i] = models.ValidationRecord{
			ID:          record.Id,
			TicketID:    record.GetString("ticket_id"),
			Outcome:     models.ValidationOutcome(record.GetString("outcome")),
			DeviceID:    record.GetString("device_id"),
			RemoteAddr:  record.GetString("remote_addr"),
			ValidatedAt: record.GetDateTime("validated_at").Time(),
		}
	}
	return out, nil
}

// appendValidation writes one audit entry. Append-only: records are
// never updated or deleted. A failed append must not undo a validation
// that already won its conditional update, so failures only log.
func (s *TicketService) appendValidation(ticketID string, outcome models.ValidationOutcome, scan ScanContext) {
	collection, err := s.app.FindCollectionByNameOrId("validations")
	if err != nil {
		slog.Error("validation log unavailable", "error", err)
		return
	}

	record := core.NewRecord(collection)
	if ticketID != "" {
		record.Set("ticket_id", ticketID)
	}
	record.Set("outcome", string(outcome))
	record.Set("device_id", scan.DeviceID)
	record.Set("remote_addr", scan.RemoteAddr)
	record.Set("validated_at", types.NowDateTime())

	if err := s.app.Save(record); err != nil {
		slog.Error("failed to append validation record",
			"ticket", ticketID, "outcome", outcome, "error", err)
	}
}

func (s *TicketService) findByDigest(digest string) (*core.Record, error) {
	return s.app.FindFirstRecordByFilter(
		"tickets",
		"token_digest = {:digest}",
		dbx.Params{"digest": digest},
	)
}

func (s *TicketService) ticketTypeName(ticketTypeID string) string {
	record, err := s.app.FindRecordById("ticket_types", ticketTypeID)
	if err != nil {
		return "General"
	}
	return record.GetString("name")
}

func ticketFromRecord(record *core.Record) models.Ticket {
	t := models.Ticket{
		ID:            record.Id,
		OrderID:       record.GetString("order_id"),
		TicketTypeID:  record.GetString("ticket_type_id"),
		TokenDigest:   record.GetString("token_digest"),
		Status:        models.TicketStatus(record.GetString("status")),
		AttendeeName:  record.GetString("attendee_name"),
		AttendeeEmail: record.GetString("attendee_email"),
		AttendeeDNI:   record.GetString("attendee_dni"),
		CreatedAt:     record.GetDateTime("created").Time(),
	}

	if usedAt := record.GetDateTime("used_at"); !usedAt.IsZero() {
		ts := usedAt.Time()
		t.UsedAt = &ts
	}
	return t
}
