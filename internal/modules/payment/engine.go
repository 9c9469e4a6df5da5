package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/domain"
	"paybridge/internal/pkg/pesepay"
	"paybridge/internal/repository"

	"gorm.io/datatypes"
)

// Outcome is what a reconciliation did to the order.
type Outcome string

const (
	OutcomeCompleted         Outcome = "completed"
	OutcomeCancelled         Outcome = "cancelled"
	OutcomeAlreadyFinalized  Outcome = "already_finalized"
	OutcomeLeftPending       Outcome = "left_pending"
	OutcomeStatusUnavailable Outcome = "status_unavailable"
	OutcomeSkipped           Outcome = "skipped"
)

// Engine applies a processor status to an order. The pending -> terminal
// transition is a conditional write, so any number of concurrent Apply calls
// for one order produce at most one transition and one completion email.
type Engine struct {
	orders    orderFinalizer
	notifier  notifier
	events    statusPublisher
	carts     cartSession
	ambiguous string
	now       func() time.Time
	loggerf   func(format string, args ...interface{})
}

func NewEngine(orders orderFinalizer, notifier notifier, events statusPublisher, carts cartSession, ambiguousPolicy string, loggerf func(format string, args ...interface{})) *Engine {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	if ambiguousPolicy == "" {
		ambiguousPolicy = config.AmbiguousCancel
	}
	return &Engine{
		orders:    orders,
		notifier:  notifier,
		events:    events,
		carts:     carts,
		ambiguous: ambiguousPolicy,
		now:       func() time.Time { return time.Now().UTC() },
		loggerf:   loggerf,
	}
}

// Apply reconciles order against st. The cart of the checkout session is
// cleared whatever the outcome.
func (e *Engine) Apply(ctx context.Context, order *domain.Order, st *pesepay.PaymentStatus) (Outcome, error) {
	if order == nil || st == nil {
		return "", errors.New("apply: order and status are required")
	}
	outcome, err := e.apply(ctx, order, st)
	if e.carts != nil {
		if cerr := e.carts.Clear(ctx, order.CartSessionID); cerr != nil {
			e.loggerf("level=error msg=failed to clear cart order_id=%d session=%s err=%v", order.ID, order.CartSessionID, cerr)
		}
	}
	return outcome, err
}

func (e *Engine) apply(ctx context.Context, order *domain.Order, st *pesepay.PaymentStatus) (Outcome, error) {
	if order.Status.IsTerminal() {
		e.loggerf("level=info msg=order already finalized order_id=%d status=%s reference=%s", order.ID, order.Status, st.ReferenceNumber)
		return OutcomeAlreadyFinalized, nil
	}

	switch st.TransactionStatus {
	case pesepay.StatusSuccess:
		return e.finalize(ctx, order, st, domain.OrderCompleted, "was captured")
	case pesepay.StatusCancelled:
		return e.finalize(ctx, order, st, domain.OrderCancelled, "could not be captured")
	default:
		return e.ambiguousStatus(ctx, order, st)
	}
}

func (e *Engine) finalize(ctx context.Context, order *domain.Order, st *pesepay.PaymentStatus, status domain.OrderStatus, verb string) (Outcome, error) {
	paid := st.TransactionTime(e.now())
	amount, err := json.Marshal(st.AmountDetails)
	if err != nil {
		return "", fmt.Errorf("encode amount details: %w", err)
	}

	note := fmt.Sprintf("Payment of %s %s - Application ID: %s, Reference Number: %s", st.AmountDetails, verb, st.ApplicationID, st.ReferenceNumber)
	if d := strings.TrimSpace(st.TransactionStatusDescription); d != "" {
		note += " (" + d + ")"
	}

	f := repository.PaymentFinalization{
		Status:        status,
		PaymentStatus: string(st.TransactionStatus),
		TransactionID: st.ReferenceNumber,
		PaidTime:      &paid,
		AmountDetails: datatypes.JSON(amount),
		Notes:         []string{note},
	}
	changed, err := e.orders.Finalize(ctx, order.ID, f)
	if err != nil {
		return "", fmt.Errorf("finalize order %d: %w", order.ID, err)
	}
	if !changed {
		e.loggerf("level=info msg=order finalized concurrently order_id=%d reference=%s", order.ID, st.ReferenceNumber)
		return OutcomeAlreadyFinalized, nil
	}

	order.Status = status
	order.PaymentStatus = f.PaymentStatus
	order.TransactionID = f.TransactionID
	order.PaidTime = f.PaidTime
	order.AmountDetails = f.AmountDetails
	e.loggerf("level=info msg=order %s order_id=%d reference=%s amount=%q application_id=%s", status, order.ID, st.ReferenceNumber, st.AmountDetails.String(), st.ApplicationID)

	if status == domain.OrderCompleted && e.notifier != nil {
		if err := e.notifier.SendCompleted(ctx, order.ID); err != nil {
			e.loggerf("level=error msg=completed notification failed order_id=%d err=%v", order.ID, err)
		}
	}
	e.publish(order.ID, status)

	if status == domain.OrderCompleted {
		return OutcomeCompleted, nil
	}
	return OutcomeCancelled, nil
}

func (e *Engine) ambiguousStatus(ctx context.Context, order *domain.Order, st *pesepay.PaymentStatus) (Outcome, error) {
	desc := strings.TrimSpace(st.TransactionStatusDescription)
	if desc == "" {
		desc = fmt.Sprintf("unrecognised payment status %q", st.TransactionStatus)
	}

	if e.ambiguous == config.AmbiguousPending {
		added, err := e.orders.AddNoteIfPending(ctx, order.ID, "Payment status unresolved, awaiting review: "+desc)
		if err != nil {
			return "", fmt.Errorf("note ambiguous status on order %d: %w", order.ID, err)
		}
		if !added {
			return OutcomeAlreadyFinalized, nil
		}
		e.loggerf("level=warn msg=ambiguous payment status left pending order_id=%d status=%q desc=%q", order.ID, st.TransactionStatus, desc)
		return OutcomeLeftPending, nil
	}

	changed, err := e.orders.Finalize(ctx, order.ID, repository.PaymentFinalization{
		Status: domain.OrderCancelled,
		Notes:  []string{"Order cancelled, payment not confirmed: " + desc},
	})
	if err != nil {
		return "", fmt.Errorf("cancel order %d: %w", order.ID, err)
	}
	if !changed {
		return OutcomeAlreadyFinalized, nil
	}
	order.Status = domain.OrderCancelled
	e.loggerf("level=warn msg=ambiguous payment status cancelled order order_id=%d status=%q desc=%q", order.ID, st.TransactionStatus, desc)
	e.publish(order.ID, domain.OrderCancelled)
	return OutcomeCancelled, nil
}

func (e *Engine) publish(orderID int64, status domain.OrderStatus) {
	if e.events != nil {
		e.events.PublishStatus(orderID, status)
	}
}
