package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/findme/internal/logger"
	"github.com/findme/internal/model"
	"github.com/findme/internal/storage"
)

// ClaimInput — заявка: claimType "lost" (заявитель потерял) или "found" (нашёл).
type ClaimInput struct {
	ClaimType model.ItemType
	Message   string
}

// claimAuthority решает, может ли actor менять статус заявок предмета.
type claimAuthority func(actor model.Actor, it *model.Item) bool

func ownerAuthority(actor model.Actor, it *model.Item) bool { return it.Owner.ID == actor.UserID }

func adminAuthority(actor model.Actor, _ *model.Item) bool { return actor.IsAdmin() }

const msgClaimNotFound = "Claim not found"

// SubmitClaim добавляет заявку actor на предмет. Одна заявка на пару (предмет, пользователь)
// в любом статусе; первая заявка переводит предмет из pending в matched.
func (s *Service) SubmitClaim(ctx context.Context, actor model.Actor, itemID string, in ClaimInput) (_ *model.Item, err error) {
	ctx, end := s.startSpan(ctx, "SubmitClaim",
		attribute.String("item.id", itemID), attribute.String("user.id", actor.UserID))
	defer end(&err)

	if !in.ClaimType.Valid() {
		return nil, newError(ErrBadRequest, "claimType must be lost or found")
	}
	var claim model.Claim
	it, err := s.items.MutateItem(ctx, itemID, func(it *model.Item) error {
		if it.Owner.ID == actor.UserID {
			return newError(ErrForbidden, "You cannot claim your own item")
		}
		if it.HasClaimBy(actor.UserID) {
			return newError(ErrConflict, "You already claimed this item")
		}
		now := s.now()
		claim = model.Claim{
			ID:        s.newID(),
			Claimant:  model.UserRef{ID: actor.UserID},
			ClaimType: in.ClaimType,
			Message:   strings.TrimSpace(in.Message),
			Status:    model.ClaimStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		it.Claims = append(it.Claims, claim)
		if it.Status == model.ItemStatusPending {
			it.Status = model.ItemStatusMatched
		}
		it.UpdatedAt = now
		return nil
	})
	if errors.Is(err, storage.ErrConflict) {
		return nil, newError(ErrConflict, "You already claimed this item")
	}
	if err != nil {
		return nil, mutateErr("service.SubmitClaim", err, msgItemNotFound)
	}
	s.publish(ctx, EventClaimSubmitted,
		ClaimEvent{ItemID: it.ID, ItemStatus: it.Status, OwnerID: it.Owner.ID, Claim: claim},
		it.Owner.ID)
	s.populateItems(ctx, it)
	return it, nil
}

// ResolveClaimStatus — решение владельца по заявке.
func (s *Service) ResolveClaimStatus(ctx context.Context, actor model.Actor, itemID, claimID string, status model.ClaimStatus) (*model.Item, *model.Claim, error) {
	return s.resolveClaim(ctx, "ResolveClaimStatus", ownerAuthority, actor, itemID, claimID, status)
}

// AdminResolveClaimStatus — тот же переход, право проверяется по роли администратора.
func (s *Service) AdminResolveClaimStatus(ctx context.Context, actor model.Actor, itemID, claimID string, status model.ClaimStatus) (*model.Item, *model.Claim, error) {
	return s.resolveClaim(ctx, "AdminResolveClaimStatus", adminAuthority, actor, itemID, claimID, status)
}

// resolveClaim: approved -> заявка approved и предмет resolved (остальные заявки не пересматриваются),
// rejected -> меняется только заявка. Решённую заявку повторно решить нельзя.
func (s *Service) resolveClaim(ctx context.Context, op string, allowed claimAuthority, actor model.Actor, itemID, claimID string, status model.ClaimStatus) (_ *model.Item, _ *model.Claim, err error) {
	ctx, end := s.startSpan(ctx, op,
		attribute.String("item.id", itemID), attribute.String("claim.id", claimID), attribute.String("claim.status", string(status)))
	defer end(&err)

	if status != model.ClaimStatusApproved && status != model.ClaimStatusRejected {
		return nil, nil, newError(ErrBadRequest, "status must be approved or rejected")
	}
	var resolved model.Claim
	it, err := s.items.MutateItem(ctx, itemID, func(it *model.Item) error {
		if !allowed(actor, it) {
			return newError(ErrForbidden, "Not authorized")
		}
		i := it.FindClaim(claimID)
		if i < 0 {
			return newError(ErrNotFound, msgClaimNotFound)
		}
		c := &it.Claims[i]
		if c.Status != model.ClaimStatusPending {
			return newError(ErrConflict, "Claim already "+string(c.Status))
		}
		now := s.now()
		c.Status = status
		c.UpdatedAt = now
		if status == model.ClaimStatusApproved {
			it.Status = model.ItemStatusResolved
		}
		it.UpdatedAt = now
		resolved = *c
		return nil
	})
	if err != nil {
		return nil, nil, mutateErr("service."+op, err, msgItemNotFound)
	}
	s.publish(ctx, EventClaimResolved,
		ClaimEvent{ItemID: it.ID, ItemStatus: it.Status, OwnerID: it.Owner.ID, Claim: resolved},
		it.Owner.ID, resolved.Claimant.ID)
	s.populateItems(ctx, it)
	return it, &resolved, nil
}

// ResolveItem — владелец подтверждает, что предмет найден/возвращён. Повторный вызов — успешный no-op.
func (s *Service) ResolveItem(ctx context.Context, actor model.Actor, itemID string) (_ *model.Item, err error) {
	ctx, end := s.startSpan(ctx, "ResolveItem", attribute.String("item.id", itemID))
	defer end(&err)

	changed := false
	it, err := s.items.MutateItem(ctx, itemID, func(it *model.Item) error {
		if it.Owner.ID != actor.UserID {
			return newError(ErrForbidden, "Not authorized")
		}
		if it.Status == model.ItemStatusResolved {
			return nil
		}
		it.Status = model.ItemStatusResolved
		it.UpdatedAt = s.now()
		changed = true
		return nil
	})
	if err != nil {
		return nil, mutateErr("service.ResolveItem", err, msgItemNotFound)
	}
	if changed {
		s.publish(ctx, EventItemResolved, ItemEvent{ItemID: it.ID, OwnerID: it.Owner.ID, Status: it.Status}, it.Owner.ID)
	}
	s.populateItems(ctx, it)
	return it, nil
}

// RespondToClaim — ответ владельца на заявку с последующими действиями:
// уведомление заявителю и, при одобрении, чат владельца с заявителем.
func (s *Service) RespondToClaim(ctx context.Context, actor model.Actor, itemID, claimID string, status model.ClaimStatus) (*model.Item, error) {
	it, claim, err := s.ResolveClaimStatus(ctx, actor, itemID, claimID, status)
	if err != nil {
		return nil, err
	}
	s.afterClaimResponse(ctx, it, claim)
	return it, nil
}

// AdminRespondToClaim — то же для администратора.
func (s *Service) AdminRespondToClaim(ctx context.Context, actor model.Actor, itemID, claimID string, status model.ClaimStatus) (*model.Item, error) {
	it, claim, err := s.AdminResolveClaimStatus(ctx, actor, itemID, claimID, status)
	if err != nil {
		return nil, err
	}
	s.afterClaimResponse(ctx, it, claim)
	return it, nil
}

// afterClaimResponse выполняется после зафиксированного перехода, поэтому ошибки только логируются.
func (s *Service) afterClaimResponse(ctx context.Context, it *model.Item, claim *model.Claim) {
	msg := "Your claim was rejected"
	if claim.Status == model.ClaimStatusApproved {
		msg = "Your claim was approved"
	}
	if _, err := s.CreateNotification(ctx, claim.Claimant.ID, msg, defaultNotificationLink); err != nil {
		logger.Errorf("service: notify claimant %s: %v", claim.Claimant.ID, err)
	}
	if claim.Status != model.ClaimStatusApproved {
		return
	}
	if _, err := s.GetOrCreateChat(ctx, it.ID, it.Owner.ID, claim.Claimant.ID); err != nil {
		logger.Errorf("service: chat for claim %s: %v", claim.ID, err)
	}
}
