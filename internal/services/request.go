package services

import (
	"context"
	"time"

	"digibank/internal/errs"
	"digibank/internal/models"
	"digibank/internal/notify"
	"digibank/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MoneyRequestService manages requests for payment between users. A
// request only ever moves money when the recipient approves it, at which
// point the regular UPI payment path runs with the recipient as sender.
type MoneyRequestService struct {
	store      store.Store
	payments   *PaymentService
	dispatcher notify.Dispatcher
	logger     zerolog.Logger
	now        func() time.Time
}

func NewMoneyRequestService(st store.Store, payments *PaymentService, dispatcher notify.Dispatcher, logger zerolog.Logger) *MoneyRequestService {
	return &MoneyRequestService{
		store:      st,
		payments:   payments,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Send creates a pending request asking target to pay the requester.
func (s *MoneyRequestService) Send(ctx context.Context, requesterID int64, req models.MoneyRequestCreate) (*models.MoneyRequest, error) {
	if !req.Amount.IsPositive() {
		return nil, errs.E(errs.InvalidInput, "amount must be greater than zero")
	}

	requester, err := s.store.Users().GetByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if requester.UPIHandle == "" {
		return nil, errs.E(errs.InvalidState, "register a UPI handle before requesting money")
	}

	target, err := s.store.Users().GetByUPI(ctx, req.TargetUPI)
	if err != nil {
		if errs.KindOf(err) == errs.NotFound {
			return nil, errs.E(errs.NotFound, "target UPI handle not found")
		}
		return nil, err
	}
	if target.ID == requesterID {
		return nil, errs.E(errs.InvalidInput, "cannot request money from yourself")
	}

	now := s.now()
	dup, err := s.store.Requests().HasPendingDuplicate(ctx, requesterID, target.ID, req.Amount, now)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, errs.E(errs.InvalidState, "an identical request to this user is already pending")
	}

	request := &models.MoneyRequest{
		PublicID:   "req_" + uuid.NewString(),
		FromUserID: requesterID,
		FromUPI:    requester.UPIHandle,
		ToUserID:   target.ID,
		ToUPI:      target.UPIHandle,
		Amount:     req.Amount,
		Note:       req.Note,
		Status:     models.RequestStatusPending,
		ExpiresAt:  now.Add(models.RequestTTL),
	}
	if err := s.store.Requests().Create(ctx, request); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("from_user_id", requesterID).
		Int64("to_user_id", target.ID).
		Str("request_id", request.PublicID).
		Str("amount", req.Amount.String()).
		Msg("Money request created")

	if err := s.dispatcher.Dispatch(ctx, notify.Event{
		Type:      notify.EventMoneyRequested,
		UserID:    target.ID,
		Amount:    req.Amount.String(),
		Detail:    request.PublicID,
		Timestamp: now,
	}); err != nil {
		s.logger.Error().Err(err).Str("request_id", request.PublicID).Msg("Notification dispatch failed")
	}

	return request, nil
}

// List returns requests involving the user. Direction is "sent",
// "received" or "" for both. Statuses reflect expiry at read time.
func (s *MoneyRequestService) List(ctx context.Context, userID int64, direction string, limit int) ([]*models.MoneyRequest, error) {
	switch direction {
	case "", "sent", "received":
	default:
		return nil, errs.E(errs.InvalidInput, "direction must be sent or received")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	requests, err := s.store.Requests().ListForUser(ctx, userID, direction, limit)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, r := range requests {
		r.Status = r.EffectiveStatus(now)
	}
	return requests, nil
}

// Respond approves or rejects a pending request. Only the requested user
// may respond. Approval claims the pending request and moves the money in
// one unit of work, so a failed payment leaves the request pending and a
// concurrent double approval can only pay once.
func (s *MoneyRequestService) Respond(ctx context.Context, responderID int64, publicID string, req models.RespondRequest) (*models.RespondResult, error) {
	request, err := s.store.Requests().GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if request.ToUserID != responderID {
		return nil, errs.E(errs.Forbidden, "only the requested user can respond to this request")
	}
	if request.Status != models.RequestStatusPending {
		return nil, errs.E(errs.InvalidState, "request has already been responded to")
	}

	now := s.now()
	if request.ExpiredAt(now) {
		// Lazy persistence: expiry is decided by the clock, the stored
		// row just catches up when someone touches it.
		if err := s.store.Requests().UpdateStatus(ctx, publicID, models.RequestStatusPending, models.RequestStatusExpired, now, "expired"); err != nil {
			s.logger.Error().Err(err).Str("request_id", publicID).Msg("Failed to persist request expiry")
		}
		return nil, errs.E(errs.InvalidState, "request has expired")
	}

	switch req.Action {
	case models.RequestActionReject:
		if err := s.store.Requests().UpdateStatus(ctx, publicID, models.RequestStatusPending, models.RequestStatusRejected, now, req.Reason); err != nil {
			return nil, err
		}
		s.logger.Info().Int64("user_id", responderID).Str("request_id", publicID).Msg("Money request rejected")
		return &models.RespondResult{Status: models.RequestStatusRejected}, nil

	case models.RequestActionApprove:
		debit, credit, err := s.payments.preparePay(ctx, responderID, models.PayRequest{
			RecipientUPI: request.FromUPI,
			Amount:       request.Amount,
			Note:         "Payment for request " + request.PublicID,
			PIN:          req.PIN,
		})
		if err != nil {
			// Validation or PIN failure, request stays pending and can
			// be retried.
			return nil, err
		}
		// The pending→approved claim and the fund movement commit in one
		// unit of work: of two concurrent approvals only one claim can
		// succeed, and a failed payment rolls the claim back to pending.
		if err := s.store.Do(ctx, func(session store.Session) error {
			if err := session.Requests().UpdateStatus(ctx, publicID, models.RequestStatusPending, models.RequestStatusApproved, now, ""); err != nil {
				return err
			}
			return s.payments.moveFundsIn(ctx, session, debit, credit)
		}); err != nil {
			return nil, err
		}
		payment := s.payments.completePay(ctx, debit, credit)
		s.logger.Info().Int64("user_id", responderID).Str("request_id", publicID).Msg("Money request approved")
		return &models.RespondResult{Status: models.RequestStatusApproved, Payment: payment}, nil

	default:
		return nil, errs.E(errs.InvalidInput, "action must be approve or reject")
	}
}
