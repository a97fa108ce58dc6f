// Package schedule stores scheduled sends and dispatches them when due.
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/unifiedinbox/inbox/internal/apperr"
	"github.com/unifiedinbox/inbox/internal/channel"
	"github.com/unifiedinbox/inbox/internal/db"
	"github.com/unifiedinbox/inbox/internal/db/sqlc"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Queries is the subset of sqlc.Queries the scheduler uses.
type Queries interface {
	CreateScheduledSend(ctx context.Context, arg sqlc.CreateScheduledSendParams) (sqlc.ScheduledSend, error)
	GetScheduledSend(ctx context.Context, id pgtype.UUID) (sqlc.ScheduledSend, error)
	ListScheduledSends(ctx context.Context, arg sqlc.ListScheduledSendsParams) ([]sqlc.ScheduledSend, error)
	UpdatePendingScheduledSend(ctx context.Context, arg sqlc.UpdatePendingScheduledSendParams) (sqlc.ScheduledSend, error)
	CancelScheduledSend(ctx context.Context, id pgtype.UUID) (sqlc.ScheduledSend, error)
	ClaimDueScheduledSends(ctx context.Context, arg sqlc.ClaimDueScheduledSendsParams) ([]sqlc.ScheduledSend, error)
	ListStaleClaims(ctx context.Context, arg sqlc.ListStaleClaimsParams) ([]sqlc.ScheduledSend, error)
	CompleteScheduledSend(ctx context.Context, arg sqlc.CompleteScheduledSendParams) (sqlc.ScheduledSend, error)
	RescheduleScheduledSend(ctx context.Context, arg sqlc.RescheduleScheduledSendParams) (sqlc.ScheduledSend, error)
	FailScheduledSend(ctx context.Context, arg sqlc.FailScheduledSendParams) (sqlc.ScheduledSend, error)
	ReleaseScheduledSend(ctx context.Context, arg sqlc.ReleaseScheduledSendParams) (sqlc.ScheduledSend, error)
}

type Service struct {
	queries Queries
	logger  *slog.Logger
}

func NewService(log *slog.Logger, queries Queries) *Service {
	return &Service{
		queries: queries,
		logger:  log.With(slog.String("service", "schedule")),
	}
}

func (s *Service) Create(ctx context.Context, createdBy string, req CreateRequest) (ScheduledSend, error) {
	const op = "create scheduled send"
	contactID, err := db.ParseUUID(req.ContactID)
	if err != nil {
		return ScheduledSend{}, apperr.Validation(op, "invalid contact id")
	}
	ch, err := channel.ParseType(req.Channel)
	if err != nil {
		return ScheduledSend{}, apperr.Validation(op, "%v", err)
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return ScheduledSend{}, apperr.Validation(op, "content is required")
	}
	if req.ScheduledFor.IsZero() {
		return ScheduledSend{}, apperr.Validation(op, "scheduledFor is required")
	}
	days, err := recurringDays(op, req.IsRecurring, req.RecurringDays)
	if err != nil {
		return ScheduledSend{}, err
	}
	row, err := s.queries.CreateScheduledSend(ctx, sqlc.CreateScheduledSendParams{
		ContactID:     contactID,
		Channel:       ch.String(),
		Content:       content,
		MediaRefs:     nonNil(req.MediaRefs),
		ScheduledFor:  db.Timestamptz(req.ScheduledFor),
		RecurringDays: days,
		CreatedBy:     createdBy,
	})
	if db.IsForeignKeyViolation(err) {
		return ScheduledSend{}, apperr.NotFound(op, "contact")
	}
	if err != nil {
		return ScheduledSend{}, apperr.Store(op, "scheduled send", err)
	}
	item := toScheduledSend(row)
	s.logger.Info("scheduled send created",
		slog.String("id", item.ID),
		slog.String("contact_id", item.ContactID),
		slog.Time("scheduled_for", item.ScheduledFor),
		slog.Bool("recurring", item.IsRecurring),
	)
	return item, nil
}

func (s *Service) Get(ctx context.Context, id string) (ScheduledSend, error) {
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return ScheduledSend{}, apperr.Validation("get scheduled send", "invalid id")
	}
	row, err := s.queries.GetScheduledSend(ctx, pgID)
	if err != nil {
		return ScheduledSend{}, apperr.Store("get scheduled send", "scheduled send", err)
	}
	return toScheduledSend(row), nil
}

// List returns entries ordered by scheduledFor. An empty contactID lists all.
func (s *Service) List(ctx context.Context, contactID string, limit, offset int) ([]ScheduledSend, error) {
	var pgContactID pgtype.UUID
	if strings.TrimSpace(contactID) != "" {
		parsed, err := db.ParseUUID(contactID)
		if err != nil {
			return nil, apperr.Validation("list scheduled sends", "invalid contact id")
		}
		pgContactID = parsed
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	offset = max(offset, 0)
	rows, err := s.queries.ListScheduledSends(ctx, sqlc.ListScheduledSendsParams{
		Limit:     int32(limit),
		Offset:    int32(offset),
		ContactID: pgContactID,
	})
	if err != nil {
		return nil, apperr.Store("list scheduled sends", "scheduled send", err)
	}
	items := make([]ScheduledSend, 0, len(rows))
	for _, row := range rows {
		items = append(items, toScheduledSend(row))
	}
	return items, nil
}

// Update edits a PENDING entry. Entries already claimed or finished are a Conflict.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (ScheduledSend, error) {
	const op = "update scheduled send"
	existing, err := s.Get(ctx, id)
	if err != nil {
		return ScheduledSend{}, err
	}
	if existing.Status != StatusPending {
		return ScheduledSend{}, tooLate(op, existing.Status)
	}

	ch := existing.Channel
	if req.Channel != nil {
		parsed, err := channel.ParseType(*req.Channel)
		if err != nil {
			return ScheduledSend{}, apperr.Validation(op, "%v", err)
		}
		ch = parsed.String()
	}
	content := existing.Content
	if req.Content != nil {
		content = strings.TrimSpace(*req.Content)
		if content == "" {
			return ScheduledSend{}, apperr.Validation(op, "content is required")
		}
	}
	scheduledFor := existing.ScheduledFor
	if req.ScheduledFor != nil {
		if req.ScheduledFor.IsZero() {
			return ScheduledSend{}, apperr.Validation(op, "scheduledFor is required")
		}
		scheduledFor = *req.ScheduledFor
	}
	isRecurring := existing.IsRecurring
	if req.IsRecurring != nil {
		isRecurring = *req.IsRecurring
	}
	rawDays := existing.RecurringDays
	if req.RecurringDays != nil {
		rawDays = *req.RecurringDays
	}
	days, err := recurringDays(op, isRecurring, rawDays)
	if err != nil {
		return ScheduledSend{}, err
	}

	pgID, _ := db.ParseUUID(existing.ID)
	row, err := s.queries.UpdatePendingScheduledSend(ctx, sqlc.UpdatePendingScheduledSendParams{
		ID:            pgID,
		ScheduledFor:  db.Timestamptz(scheduledFor),
		Content:       content,
		Channel:       ch,
		RecurringDays: days,
	})
	if err != nil {
		return ScheduledSend{}, s.explainMiss(ctx, op, pgID, err)
	}
	return toScheduledSend(row), nil
}

// Cancel moves a PENDING entry to CANCELLED. Once a dispatcher has claimed
// the entry it is too late and Cancel returns a Conflict.
func (s *Service) Cancel(ctx context.Context, id string) (ScheduledSend, error) {
	const op = "cancel scheduled send"
	pgID, err := db.ParseUUID(id)
	if err != nil {
		return ScheduledSend{}, apperr.Validation(op, "invalid id")
	}
	row, err := s.queries.CancelScheduledSend(ctx, pgID)
	if err != nil {
		return ScheduledSend{}, s.explainMiss(ctx, op, pgID, err)
	}
	s.logger.Info("scheduled send cancelled", slog.String("id", id))
	return toScheduledSend(row), nil
}

// explainMiss turns a guarded UPDATE that matched no row into NotFound or
// Conflict depending on whether the entry exists.
func (s *Service) explainMiss(ctx context.Context, op string, id pgtype.UUID, err error) error {
	if !errors.Is(err, pgx.ErrNoRows) {
		return apperr.Store(op, "scheduled send", err)
	}
	row, getErr := s.queries.GetScheduledSend(ctx, id)
	if getErr != nil {
		return apperr.Store(op, "scheduled send", getErr)
	}
	return tooLate(op, Status(row.Status))
}

func tooLate(op string, status Status) error {
	return apperr.Conflict(op, "too late: scheduled send is "+string(status))
}

func recurringDays(op string, isRecurring bool, days []int) ([]int16, error) {
	if !isRecurring {
		return []int16{}, nil
	}
	if len(days) == 0 {
		return nil, apperr.Validation(op, "recurringDays is required for a recurring send")
	}
	out := make([]int16, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, apperr.Validation(op, "recurring day %d out of range 0-6", d)
		}
		if !slices.Contains(out, int16(d)) {
			out = append(out, int16(d))
		}
	}
	slices.Sort(out)
	return out, nil
}

func weekdays(days []int16) []time.Weekday {
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		out = append(out, time.Weekday(d))
	}
	return out
}

func toScheduledSend(row sqlc.ScheduledSend) ScheduledSend {
	days := make([]int, 0, len(row.RecurringDays))
	for _, d := range row.RecurringDays {
		days = append(days, int(d))
	}
	return ScheduledSend{
		ID:            db.UUIDString(row.ID),
		ContactID:     db.UUIDString(row.ContactID),
		Channel:       row.Channel,
		Content:       row.Content,
		MediaRefs:     nonNil(row.MediaRefs),
		ScheduledFor:  db.TimeFromPg(row.ScheduledFor),
		IsRecurring:   len(days) > 0,
		RecurringDays: days,
		Status:        Status(row.Status),
		LastError:     db.TextToString(row.LastError),
		LastMessageID: db.UUIDString(row.LastMessageID),
		CreatedBy:     row.CreatedBy,
		CreatedAt:     db.TimeFromPg(row.CreatedAt),
		UpdatedAt:     db.TimeFromPg(row.UpdatedAt),
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
