package contacts

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unifiedinbox/inbox/internal/apperr"
	"github.com/unifiedinbox/inbox/internal/channel"
	"github.com/unifiedinbox/inbox/internal/db"
	"github.com/unifiedinbox/inbox/internal/db/sqlc"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Queries is the part of sqlc.Queries the contact service uses.
type Queries interface {
	AddressStore
	AddContactAddress(ctx context.Context, arg sqlc.AddContactAddressParams) error
	CreateContact(ctx context.Context, arg sqlc.CreateContactParams) (sqlc.Contact, error)
	GetContact(ctx context.Context, id pgtype.UUID) (sqlc.Contact, error)
	ListContactAddresses(ctx context.Context, contactIds []pgtype.UUID) ([]sqlc.ContactAddress, error)
	ListContacts(ctx context.Context, arg sqlc.ListContactsParams) ([]sqlc.Contact, error)
	ListConversations(ctx context.Context, arg sqlc.ListConversationsParams) ([]sqlc.ListConversationsRow, error)
	SoftDeleteContact(ctx context.Context, id pgtype.UUID) (int64, error)
	UpdateContact(ctx context.Context, arg sqlc.UpdateContactParams) (sqlc.Contact, error)
}

type txFunc func(ctx context.Context, fn func(Queries) error) error

type Service struct {
	queries    Queries
	inTx       txFunc
	normalizer channel.AddressNormalizer
	logger     *slog.Logger
}

func NewService(log *slog.Logger, queries *sqlc.Queries, pool *pgxpool.Pool, normalizer channel.AddressNormalizer) *Service {
	inTx := func(ctx context.Context, fn func(Queries) error) error {
		return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			return fn(queries.WithTx(tx))
		})
	}
	return newService(log, queries, inTx, normalizer)
}

func newService(log *slog.Logger, queries Queries, inTx txFunc, normalizer channel.AddressNormalizer) *Service {
	return &Service{
		queries:    queries,
		inTx:       inTx,
		normalizer: normalizer,
		logger:     log.With(slog.String("service", "contacts")),
	}
}

func (s *Service) Get(ctx context.Context, contactID string) (Contact, error) {
	return s.get(ctx, s.queries, contactID)
}

func (s *Service) get(ctx context.Context, q Queries, contactID string) (Contact, error) {
	pgID, err := parseContactID(contactID)
	if err != nil {
		return Contact{}, err
	}
	row, err := q.GetContact(ctx, pgID)
	if err != nil {
		return Contact{}, apperr.Store("get contact", "contact", err)
	}
	if row.DeletedAt.Valid {
		return Contact{}, apperr.NotFound("get contact", "contact")
	}
	addrs, err := q.ListContactAddresses(ctx, []pgtype.UUID{pgID})
	if err != nil {
		return Contact{}, apperr.Store("get contact", "contact", err)
	}
	return toContact(row, addrs), nil
}

// AddressFor returns the contact's address on the channel.
func (s *Service) AddressFor(ctx context.Context, contactID string, ch channel.Type) (string, error) {
	contact, err := s.Get(ctx, contactID)
	if err != nil {
		return "", err
	}
	address := contact.Addresses[ch.String()]
	if address == "" {
		return "", apperr.Validation("contact address", "contact has no %s address", ch)
	}
	return address, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Contact, error) {
	limit, offset = page(limit, offset)
	rows, err := s.queries.ListContacts(ctx, sqlc.ListContactsParams{Limit: int32(limit), Offset: int32(offset)})
	if err != nil {
		return nil, apperr.Store("list contacts", "contact", err)
	}
	if len(rows) == 0 {
		return []Contact{}, nil
	}
	ids := make([]pgtype.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	addrs, err := s.queries.ListContactAddresses(ctx, ids)
	if err != nil {
		return nil, apperr.Store("list contacts", "contact", err)
	}
	byContact := make(map[string][]sqlc.ContactAddress, len(rows))
	for _, a := range addrs {
		key := db.UUIDString(a.ContactID)
		byContact[key] = append(byContact[key], a)
	}
	items := make([]Contact, 0, len(rows))
	for _, row := range rows {
		items = append(items, toContact(row, byContact[db.UUIDString(row.ID)]))
	}
	return items, nil
}

// Create inserts a contact with its addresses in one transaction. An address
// that already belongs to a contact is a conflict.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Contact, error) {
	addrs, err := s.normalizeAddresses(req.Addresses)
	if err != nil {
		return Contact{}, err
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		if len(addrs) == 0 {
			return Contact{}, apperr.Validation("create contact", "displayName or an address is required")
		}
		name = addrs[0].Address
	}

	var created Contact
	err = s.inTx(ctx, func(q Queries) error {
		row, err := q.CreateContact(ctx, sqlc.CreateContactParams{DisplayName: name, Tags: normalizeTags(req.Tags)})
		if err != nil {
			return apperr.Store("create contact", "contact", err)
		}
		if err := addAddresses(ctx, q, row.ID, addrs); err != nil {
			return err
		}
		created, err = s.get(ctx, q, db.UUIDString(row.ID))
		return err
	})
	if err != nil {
		return Contact{}, err
	}
	s.logger.Info("contact created", slog.String("contact_id", created.ID))
	return created, nil
}

func (s *Service) Update(ctx context.Context, contactID string, req UpdateRequest) (Contact, error) {
	addrs, err := s.normalizeAddresses(req.Addresses)
	if err != nil {
		return Contact{}, err
	}
	var updated Contact
	err = s.inTx(ctx, func(q Queries) error {
		current, err := s.get(ctx, q, contactID)
		if err != nil {
			return err
		}
		name := current.DisplayName
		if req.DisplayName != nil {
			if name = strings.TrimSpace(*req.DisplayName); name == "" {
				return apperr.Validation("update contact", "displayName must not be empty")
			}
		}
		tags := current.Tags
		if req.Tags != nil {
			tags = normalizeTags(*req.Tags)
		}
		pgID, _ := db.ParseUUID(current.ID)
		if _, err := q.UpdateContact(ctx, sqlc.UpdateContactParams{ID: pgID, DisplayName: name, Tags: tags}); err != nil {
			return apperr.Store("update contact", "contact", err)
		}

		var added []address
		for _, a := range addrs {
			existing, ok := current.Addresses[a.Channel.String()]
			switch {
			case !ok:
				added = append(added, a)
			case existing != a.Address:
				return apperr.Conflict("update contact", "addresses are never reassigned")
			}
		}
		if err := addAddresses(ctx, q, pgID, added); err != nil {
			return err
		}
		updated, err = s.get(ctx, q, current.ID)
		return err
	})
	return updated, err
}

// Delete soft-deletes the contact. Its messages and addresses remain.
func (s *Service) Delete(ctx context.Context, contactID string) error {
	pgID, err := parseContactID(contactID)
	if err != nil {
		return err
	}
	n, err := s.queries.SoftDeleteContact(ctx, pgID)
	if err != nil {
		return apperr.Store("delete contact", "contact", err)
	}
	if n == 0 {
		return apperr.NotFound("delete contact", "contact")
	}
	s.logger.Info("contact deleted", slog.String("contact_id", contactID))
	return nil
}

// Conversations lists contacts by most recent message.
func (s *Service) Conversations(ctx context.Context, limit, offset int) ([]Conversation, error) {
	limit, offset = page(limit, offset)
	rows, err := s.queries.ListConversations(ctx, sqlc.ListConversationsParams{Limit: int32(limit), Offset: int32(offset)})
	if err != nil {
		return nil, apperr.Store("list conversations", "conversation", err)
	}
	items := make([]Conversation, 0, len(rows))
	for _, row := range rows {
		item := Conversation{
			ContactID:     db.UUIDString(row.ID),
			DisplayName:   row.DisplayName,
			LastMessageAt: optionalTime(row.LastMessageAt),
		}
		if row.LastContent.Valid {
			item.LastMessage = &Preview{
				Content:   row.LastContent.String,
				Channel:   db.TextToString(row.LastChannel),
				Direction: db.TextToString(row.LastDirection),
			}
		}
		items = append(items, item)
	}
	return items, nil
}

type address struct {
	Channel channel.Type
	Address string
}

func (s *Service) normalizeAddresses(raw map[string]string) ([]address, error) {
	out := make([]address, 0, len(raw))
	for rawType, rawAddr := range raw {
		ch, err := channel.ParseType(rawType)
		if err != nil {
			return nil, apperr.Validation("contact address", "%v", err)
		}
		normalized, err := s.normalizer.Normalize(ch, rawAddr)
		if err != nil {
			return nil, err
		}
		out = append(out, address{Channel: ch, Address: normalized})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out, nil
}

func addAddresses(ctx context.Context, q Queries, contactID pgtype.UUID, addrs []address) error {
	for _, a := range addrs {
		err := q.AddContactAddress(ctx, sqlc.AddContactAddressParams{
			Channel:   a.Channel.String(),
			Address:   a.Address,
			ContactID: contactID,
		})
		if db.IsUniqueViolation(err) {
			return apperr.Conflict("contact address", a.Channel.String()+" address "+a.Address+" already belongs to a contact")
		}
		if err != nil {
			return apperr.Store("contact address", "contact", err)
		}
	}
	return nil
}

func toContact(row sqlc.Contact, addrs []sqlc.ContactAddress) Contact {
	c := Contact{
		ID:            db.UUIDString(row.ID),
		DisplayName:   row.DisplayName,
		Addresses:     make(map[string]string, len(addrs)),
		Tags:          row.Tags,
		LastMessageAt: optionalTime(row.LastMessageAt),
		CreatedAt:     db.TimeFromPg(row.CreatedAt),
		UpdatedAt:     db.TimeFromPg(row.UpdatedAt),
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	for _, a := range addrs {
		c.Addresses[a.Channel] = a.Address
	}
	return c
}

func parseContactID(contactID string) (pgtype.UUID, error) {
	pgID, err := db.ParseUUID(contactID)
	if err != nil {
		return pgtype.UUID{}, apperr.Validation("contact id", "%v", err)
	}
	return pgID, nil
}

func optionalTime(value pgtype.Timestamptz) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
