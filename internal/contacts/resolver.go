package contacts

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/sync/singleflight"

	"github.com/unifiedinbox/inbox/internal/apperr"
	"github.com/unifiedinbox/inbox/internal/channel"
	"github.com/unifiedinbox/inbox/internal/db"
	"github.com/unifiedinbox/inbox/internal/db/sqlc"
)

// AddressStore is the part of the store the resolver needs.
type AddressStore interface {
	GetContactIDByAddress(ctx context.Context, arg sqlc.GetContactIDByAddressParams) (pgtype.UUID, error)
	CreateContactWithAddress(ctx context.Context, arg sqlc.CreateContactWithAddressParams) (pgtype.UUID, error)
}

// Resolver maps external addresses to contact ids, creating contacts on
// first contact. The unique key on (channel, address) settles races between
// processes; singleflight collapses duplicate work inside one.
type Resolver struct {
	store      AddressStore
	normalizer channel.AddressNormalizer
	group      singleflight.Group
	logger     *slog.Logger
}

func NewResolver(log *slog.Logger, store AddressStore, normalizer channel.AddressNormalizer) *Resolver {
	return &Resolver{
		store:      store,
		normalizer: normalizer,
		logger:     log.With(slog.String("service", "contact_resolver")),
	}
}

// Resolve returns the contact id for the address.
func (r *Resolver) Resolve(ctx context.Context, ch channel.Type, externalAddress string) (string, error) {
	res, err := r.ResolveNamed(ctx, ch, externalAddress, "")
	if err != nil {
		return "", err
	}
	return res.ContactID, nil
}

// ResolveNamed is Resolve with the display name used if the contact is
// created. An existing contact keeps its name.
func (r *Resolver) ResolveNamed(ctx context.Context, ch channel.Type, externalAddress, displayName string) (Resolved, error) {
	address, err := r.normalizer.Normalize(ch, externalAddress)
	if err != nil {
		return Resolved{}, err
	}
	if displayName == "" {
		displayName = address
	}

	key := ch.String() + "|" + address
	resultCh := r.group.DoChan(key, func() (any, error) {
		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		return r.findOrCreate(context.WithoutCancel(ctx), ch, address, displayName)
	})
	select {
	case <-ctx.Done():
		return Resolved{}, apperr.Store("resolve contact", "contact", ctx.Err())
	case res := <-resultCh:
		if res.Err != nil {
			return Resolved{}, res.Err
		}
		return res.Val.(Resolved), nil
	}
}

func (r *Resolver) findOrCreate(ctx context.Context, ch channel.Type, address, displayName string) (Resolved, error) {
	lookup := sqlc.GetContactIDByAddressParams{Channel: ch.String(), Address: address}
	id, err := r.store.GetContactIDByAddress(ctx, lookup)
	if err == nil {
		return Resolved{ContactID: db.UUIDString(id), Address: address}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Resolved{}, apperr.Store("resolve contact", "contact", err)
	}

	id, err = r.store.CreateContactWithAddress(ctx, sqlc.CreateContactWithAddressParams{
		DisplayName: displayName,
		Channel:     ch.String(),
		Address:     address,
	})
	if err == nil {
		r.logger.Info("contact created",
			slog.String("channel", ch.String()),
			slog.String("contact_id", db.UUIDString(id)),
		)
		return Resolved{ContactID: db.UUIDString(id), Address: address, Created: true}, nil
	}
	if !db.IsUniqueViolation(err) {
		return Resolved{}, apperr.Store("resolve contact", "contact", err)
	}

	// Another process created the address between our read and insert.
	id, err = r.store.GetContactIDByAddress(ctx, lookup)
	if err != nil {
		return Resolved{}, apperr.Store("resolve contact", "contact", err)
	}
	r.logger.Debug("resolved after create race", slog.String("contact_id", db.UUIDString(id)))
	return Resolved{ContactID: db.UUIDString(id), Address: address}, nil
}
