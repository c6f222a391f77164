package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/zishan044/ecommerce-app/internal/order/domain"
	paymentdomain "github.com/zishan044/ecommerce-app/internal/payment/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

const paymentEventScope = "payment_event"

// ApplyPaymentWebhook verifies a gateway notification and applies it to its
// order at most once. The payment_events ledger is authoritative; the
// idempotency store only short-circuits replays of committed events.
func (s *Service) ApplyPaymentWebhook(ctx context.Context, payload []byte, signature string) (domain.WebhookResult, error) {
	ev, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return domain.WebhookResult{}, err
	}
	log := s.log.With("event_id", ev.ID, "event_type", ev.Type)

	if ev.Kind == paymentdomain.KindIgnored {
		log.Debug("payment event ignored")
		s.metrics.Webhook(string(domain.OutcomeIgnored))
		return domain.WebhookResult{OrderID: ev.OrderID, Outcome: domain.OutcomeIgnored}, nil
	}

	key := s.idem.Key(paymentEventScope, ev.ID)
	seen, err := s.idem.Seen(ctx, key)
	if err != nil {
		log.Warn("idempotency lookup failed, falling back to ledger", "err", err)
	} else if seen {
		log.Info("payment event already applied")
		s.metrics.Webhook(string(domain.OutcomeDuplicate))
		return domain.WebhookResult{OrderID: ev.OrderID, Outcome: domain.OutcomeDuplicate}, nil
	}

	var (
		res domain.WebhookResult
		to  domain.Status
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := lockEventOrder(ctx, tx, ev)
		if err != nil {
			return err
		}
		res.OrderID = o.ID

		// Retried checkouts leave older sessions behind; their expiry says
		// nothing about the session the customer may still pay on.
		if ev.Kind == paymentdomain.KindFailed && ev.SessionID != "" && ev.SessionID != o.CheckoutSessionID {
			log.Info("failure for superseded checkout session ignored", "order_id", o.ID,
				"session_id", ev.SessionID, "current_session_id", o.CheckoutSessionID)
			res.Outcome = domain.OutcomeIgnored
			return nil
		}

		inserted, err := tx.RecordPaymentEvent(ctx, ev.ID, o.ID, string(ev.Kind))
		if err != nil {
			return fmt.Errorf("record payment event: %w", err)
		}
		if !inserted {
			res.Outcome = domain.OutcomeDuplicate
			return nil
		}
		if o.Status != domain.StatusPending {
			log.Warn("payment event for settled order", "order_id", o.ID, "status", o.Status, "kind", ev.Kind)
			res.Outcome = domain.OutcomeDuplicate
			return nil
		}

		change := domain.StatusChanged{PaymentRef: ev.PaymentRef, PaymentEventID: ev.ID}
		switch ev.Kind {
		case paymentdomain.KindSucceeded:
			to = domain.StatusPaid
			if err := s.transition(ctx, tx, &o, to, change); err != nil {
				return err
			}
			if ev.PaymentRef != "" {
				if err := tx.SetPaymentRef(ctx, o.ID, ev.PaymentRef); err != nil {
					return fmt.Errorf("set payment ref: %w", err)
				}
			}
		case paymentdomain.KindFailed:
			to = domain.StatusFailed
			if err := s.transition(ctx, tx, &o, to, change); err != nil {
				return err
			}
			if err := tx.RestoreStock(ctx, o.Items); err != nil {
				return fmt.Errorf("restore stock: %w", err)
			}
		}
		res.Outcome = domain.OutcomeApplied
		return nil
	})
	if err != nil {
		return domain.WebhookResult{}, err
	}

	if _, err := s.idem.Mark(ctx, key); err != nil {
		log.Warn("idempotency mark failed", "err", err)
	}
	s.metrics.Webhook(string(res.Outcome))
	if res.Outcome == domain.OutcomeApplied {
		s.metrics.OrderTransition(string(to))
	}
	log.Info("payment event processed", "order_id", res.OrderID, "outcome", res.Outcome)
	return res, nil
}

// lockEventOrder finds the order by embedded order id, then by checkout session.
func lockEventOrder(ctx context.Context, tx Tx, ev paymentdomain.Event) (domain.Order, error) {
	if _, err := uuid.Parse(ev.OrderID); err == nil {
		o, err := tx.LockOrder(ctx, ev.OrderID)
		if err == nil {
			return o, nil
		}
		if !isNotFound(err) {
			return domain.Order{}, err
		}
	}
	if ev.SessionID != "" {
		o, err := tx.LockOrderBySession(ctx, ev.SessionID)
		if err == nil {
			return o, nil
		}
		if !isNotFound(err) {
			return domain.Order{}, err
		}
	}
	return domain.Order{}, fmt.Errorf("%w: order %q session %q", apperr.ErrUnknownOrder, ev.OrderID, ev.SessionID)
}
