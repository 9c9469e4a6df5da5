package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"paybridge/internal/domain"
	"paybridge/internal/pkg/cipher"
	"paybridge/internal/pkg/pesepay"
	"paybridge/internal/repository"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	channelPush  = "push"
	channelPull  = "pull"
	channelSweep = "sweep"

	notifyPath = "/api/v1/payments/pesepay/notify"

	receivedCompletedText = "Thank you for your payment. Your transaction has been completed, and a receipt for your purchase has been emailed to you."
	receivedCancelledText = "Your order has been cancelled. Your payment reference number is: %s"
	receivedDefaultText   = "Thank you. Your order has been received."
)

// URLs are the addresses handed to the processor on checkout.
type URLs struct {
	PublicBaseURL  string
	StoreReturnURL string
	WebhookSecret  string
}

type Service struct {
	orders     orderStore
	gateway    gateway
	engine     *Engine
	notifier   notifier
	deliveries deliveryLog
	debug      debugSwitch
	urls       URLs
	now        func() time.Time
	loggerf    func(format string, args ...interface{})
}

func NewService(orders orderStore, gw gateway, engine *Engine, notifier notifier, deliveries deliveryLog, debug debugSwitch, urls URLs, loggerf func(format string, args ...interface{})) *Service {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	urls.PublicBaseURL = strings.TrimRight(urls.PublicBaseURL, "/")
	return &Service{
		orders:     orders,
		gateway:    gw,
		engine:     engine,
		notifier:   notifier,
		deliveries: deliveries,
		debug:      debug,
		urls:       urls,
		now:        func() time.Time { return time.Now().UTC() },
		loggerf:    loggerf,
	}
}

// Checkout registers the order with the processor and returns the hosted
// checkout URL. An order that already has a reference reuses it.
func (s *Service) Checkout(ctx context.Context, orderID int64, orderKey string) (*CheckoutResult, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.OrderKey != orderKey {
		return nil, ErrOrderKeyMismatch
	}
	if order.PaymentMethod != domain.PaymentMethodPesepay {
		return nil, ErrWrongPaymentMethod
	}
	if order.Status != domain.OrderPending {
		return nil, ErrOrderNotPayable
	}
	if order.ReferenceNumber != "" && order.RedirectURL != "" {
		s.loggerf("level=info msg=checkout reused reference order_id=%d reference=%s", order.ID, order.ReferenceNumber)
		return &CheckoutResult{OrderID: order.ID, ReferenceNumber: order.ReferenceNumber, RedirectURL: order.RedirectURL, Reused: true}, nil
	}

	if s.notifier != nil {
		if err := s.notifier.SendProcessing(ctx, order.ID); err != nil {
			s.loggerf("level=error msg=processing notification failed order_id=%d err=%v", order.ID, err)
		}
	}

	req, err := s.paymentRequest(order)
	if err != nil {
		return nil, err
	}
	s.debugf(ctx, "msg=initiate payment order_id=%d reason=%q return_url=%s", order.ID, req.ReasonForPayment, req.ReturnURL)

	res, err := s.gateway.InitiatePayment(ctx, req)
	if err != nil {
		s.loggerf("level=error msg=payment initiation failed order_id=%d err=%v", order.ID, err)
		if nerr := s.orders.AddNote(ctx, order.ID, "Payment initialization failed: "+describeGatewayError(err)); nerr != nil {
			s.loggerf("level=error msg=failed to add order note order_id=%d err=%v", order.ID, nerr)
		}
		return nil, err
	}
	s.debugf(ctx, "msg=payment initialized order_id=%d reference=%s redirect=%s", order.ID, res.ReferenceNumber, res.RedirectURL)

	err = s.orders.AttachReference(ctx, order.ID, res.ReferenceNumber, res.RedirectURL,
		"Payment request initialized with the processor",
		"Payment reference number: "+res.ReferenceNumber,
	)
	if errors.Is(err, repository.ErrReferenceAlreadySet) {
		// A concurrent checkout won; hand out its reference.
		current, lerr := s.loadOrder(ctx, order.ID)
		if lerr != nil {
			return nil, lerr
		}
		s.loggerf("level=warn msg=checkout raced order_id=%d discarded_reference=%s reference=%s", order.ID, res.ReferenceNumber, current.ReferenceNumber)
		return &CheckoutResult{OrderID: order.ID, ReferenceNumber: current.ReferenceNumber, RedirectURL: current.RedirectURL, Reused: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("attach reference %s to order %d: %w", res.ReferenceNumber, order.ID, err)
	}

	s.loggerf("level=info msg=payment initialized order_id=%d reference=%s", order.ID, res.ReferenceNumber)
	return &CheckoutResult{OrderID: order.ID, ReferenceNumber: res.ReferenceNumber, RedirectURL: res.RedirectURL}, nil
}

// HandleNotification is the push channel. Every delivery is logged; deliveries
// for unknown references are dropped without touching any order.
func (s *Service) HandleNotification(ctx context.Context, n Notification) (*ReconcileResult, error) {
	ref := strings.TrimSpace(n.Reference)
	deliveryID := ""
	if s.deliveries != nil {
		id, err := s.deliveries.Record(ctx, ref, n.RemoteIP, n.Body)
		if err != nil {
			s.loggerf("level=error msg=failed to record notification reference=%s err=%v", ref, err)
		}
		deliveryID = id
	}
	s.debugf(ctx, "msg=notification received reference=%s remote_ip=%s body=%s", ref, n.RemoteIP, n.Body)

	res, err := s.handleNotification(ctx, ref)
	s.resolveDelivery(ctx, deliveryID, res, err)
	return res, err
}

func (s *Service) handleNotification(ctx context.Context, ref string) (*ReconcileResult, error) {
	if ref == "" {
		return nil, ErrMissingReference
	}
	orderID, err := s.orders.FindOrderByReference(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.loggerf("level=warn msg=notification for unknown reference reference=%s", ref)
			return nil, fmt.Errorf("%w: %s", ErrReferenceNotFound, ref)
		}
		return nil, fmt.Errorf("lookup reference %s: %w", ref, err)
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != domain.PaymentMethodPesepay {
		s.loggerf("level=warn msg=notification for order with another payment method order_id=%d method=%s", order.ID, order.PaymentMethod)
		return &ReconcileResult{OrderID: order.ID, ReferenceNumber: ref, Outcome: OutcomeSkipped, Status: order.Status}, ErrWrongPaymentMethod
	}
	return s.reconcile(ctx, order, ref, channelPush)
}

func (s *Service) resolveDelivery(ctx context.Context, id string, res *ReconcileResult, err error) {
	if s.deliveries == nil || id == "" {
		return
	}
	var orderID *int64
	if res != nil {
		orderID = &res.OrderID
	}
	status := domain.NotificationLogHandled
	result := ""
	switch {
	case err == nil:
		result = string(res.Outcome)
	case isIgnorable(err):
		status = domain.NotificationLogIgnored
		result = err.Error()
	default:
		status = domain.NotificationLogHandleFailed
		result = err.Error()
	}
	if rerr := s.deliveries.Resolve(ctx, id, orderID, status, result); rerr != nil {
		s.loggerf("level=error msg=failed to resolve notification id=%s err=%v", id, rerr)
	}
}

// isIgnorable reports errors a push delivery is acknowledged for anyway,
// since retrying them cannot succeed.
func isIgnorable(err error) bool {
	return errors.Is(err, ErrReferenceNotFound) ||
		errors.Is(err, ErrMissingReference) ||
		errors.Is(err, ErrWrongPaymentMethod) ||
		errors.Is(err, ErrOrderNotFound)
}

// HandleReturn is the pull channel, run when the payer's browser comes back to
// the order-received page. Gateway failures are noted on the order and the
// page still renders with the current state.
func (s *Service) HandleReturn(ctx context.Context, orderID int64, orderKey string) (*ReturnResult, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.OrderKey != orderKey {
		return nil, ErrOrderKeyMismatch
	}

	out := &ReturnResult{OrderID: order.ID, ReferenceNumber: order.ReferenceNumber, Outcome: OutcomeSkipped}
	if order.PaymentMethod != domain.PaymentMethodPesepay || order.TransactionID != "" || order.ReferenceNumber == "" || order.Status.IsTerminal() {
		out.Status = order.Status
		out.Message = receivedText(order)
		return out, nil
	}

	res, err := s.reconcile(ctx, order, order.ReferenceNumber, channelPull)
	if err != nil {
		s.loggerf("level=error msg=return reconciliation failed order_id=%d reference=%s err=%v", order.ID, order.ReferenceNumber, err)
		out.Status = order.Status
		out.Message = receivedText(order)
		return out, nil
	}
	order.Status = res.Status
	out.Status = res.Status
	out.Outcome = res.Outcome
	out.Message = receivedText(order)
	return out, nil
}

// ReconcilePending runs the pull sequence for pending orders that have a
// reference but have not been touched for olderThan.
func (s *Service) ReconcilePending(ctx context.Context, olderThan time.Duration, limit, concurrency int) (*SweepReport, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	orders, err := s.orders.ListStalePending(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending orders: %w", err)
	}

	report := &SweepReport{Scanned: len(orders)}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i := range orders {
		order := orders[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := s.reconcile(ctx, &order, order.ReferenceNumber, channelSweep)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				s.loggerf("level=error msg=sweep reconciliation failed order_id=%d reference=%s err=%v", order.ID, order.ReferenceNumber, err)
				return nil
			}
			switch res.Outcome {
			case OutcomeCompleted:
				report.Completed++
			case OutcomeCancelled:
				report.Cancelled++
			case OutcomeStatusUnavailable:
				report.Unavailable++
			case OutcomeLeftPending:
				report.Unresolved++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	s.loggerf("level=info msg=sweep finished scanned=%d completed=%d cancelled=%d unresolved=%d unavailable=%d failed=%d",
		report.Scanned, report.Completed, report.Cancelled, report.Unresolved, report.Unavailable, report.Failed)
	return report, nil
}

// reconcile fetches the current status from the processor and applies it. No
// lock is held while waiting on the gateway.
func (s *Service) reconcile(ctx context.Context, order *domain.Order, ref, channel string) (*ReconcileResult, error) {
	res := &ReconcileResult{OrderID: order.ID, ReferenceNumber: ref, Status: order.Status}

	st, err := s.gateway.CheckPaymentStatus(ctx, ref)
	if err != nil {
		var unavailable *pesepay.StatusUnavailableError
		if errors.As(err, &unavailable) {
			msg := strings.TrimSpace(unavailable.Message)
			if msg == "" {
				msg = "Payment status is not available yet"
			}
			if _, nerr := s.orders.AddNoteIfPending(ctx, order.ID, msg); nerr != nil {
				s.loggerf("level=error msg=failed to add order note order_id=%d err=%v", order.ID, nerr)
			}
			s.loggerf("level=warn msg=payment status unavailable channel=%s order_id=%d reference=%s message=%q", channel, order.ID, ref, msg)
			res.Outcome = OutcomeStatusUnavailable
			res.Message = msg
			return res, nil
		}

		s.loggerf("level=error msg=payment status check failed channel=%s order_id=%d reference=%s err=%v", channel, order.ID, ref, err)
		if _, nerr := s.orders.AddNoteIfPending(ctx, order.ID, "Payment could not be captured: "+describeGatewayError(err)); nerr != nil {
			s.loggerf("level=error msg=failed to add order note order_id=%d err=%v", order.ID, nerr)
		}
		return nil, err
	}
	s.debugf(ctx, "msg=payment status channel=%s order_id=%d reference=%s status=%s description=%q amount=%q date=%s",
		channel, order.ID, ref, st.TransactionStatus, st.TransactionStatusDescription, st.AmountDetails.String(), st.DateOfTransaction)

	outcome, err := s.engine.Apply(ctx, order, st)
	if err != nil {
		return nil, err
	}
	res.Outcome = outcome
	res.Status = order.Status
	if outcome == OutcomeAlreadyFinalized {
		// Another channel may have won; report what is stored.
		if current, lerr := s.orders.GetByID(ctx, order.ID); lerr == nil {
			res.Status = current.Status
		}
	}
	s.loggerf("level=info msg=payment reconciled channel=%s order_id=%d reference=%s outcome=%s status=%s", channel, order.ID, ref, outcome, res.Status)
	return res, nil
}

func (s *Service) paymentRequest(order *domain.Order) (pesepay.PaymentRequest, error) {
	returnURL, err := url.Parse(s.urls.StoreReturnURL)
	if err != nil {
		return pesepay.PaymentRequest{}, fmt.Errorf("parse store return url: %w", err)
	}
	q := returnURL.Query()
	q.Set("order_id", strconv.FormatInt(order.ID, 10))
	q.Set("key", order.OrderKey)
	returnURL.RawQuery = q.Encode()

	resultURL := s.urls.PublicBaseURL + notifyPath
	if s.urls.WebhookSecret != "" {
		resultURL += "?token=" + url.QueryEscape(s.urls.WebhookSecret)
	}

	return pesepay.PaymentRequest{
		AmountDetails: pesepay.AmountDetails{
			Amount:       order.Total,
			CurrencyCode: order.Currency,
		},
		ReasonForPayment: itemSummary(order),
		ResultURL:        resultURL,
		ReturnURL:        returnURL.String(),
	}, nil
}

// itemSummary renders the order lines as "Name (meta) x qty".
func itemSummary(order *domain.Order) string {
	if len(order.Items) == 0 {
		return fmt.Sprintf("Order #%d", order.ID)
	}
	names := make([]string, 0, len(order.Items))
	for _, it := range order.Items {
		name := it.Name
		if meta := strings.TrimSpace(it.Meta); meta != "" {
			name += " (" + meta + ")"
		}
		names = append(names, fmt.Sprintf("%s x %d", name, it.Quantity))
	}
	return strings.Join(names, ",  ")
}

func receivedText(order *domain.Order) string {
	if order.PaymentMethod != domain.PaymentMethodPesepay {
		return receivedDefaultText
	}
	switch order.Status {
	case domain.OrderCompleted:
		return receivedCompletedText
	case domain.OrderCancelled:
		return fmt.Sprintf(receivedCancelledText, order.ReferenceNumber)
	default:
		return receivedDefaultText
	}
}

func describeGatewayError(err error) string {
	var protocol *pesepay.ProtocolError
	switch {
	case errors.As(err, &protocol) && protocol.Message != "":
		return protocol.Message
	case errors.Is(err, pesepay.ErrGatewayUnreachable):
		return "payment gateway unreachable"
	case errors.Is(err, cipher.ErrDecryption):
		return "gateway response could not be decrypted"
	case errors.Is(err, pesepay.ErrNotConfigured):
		return "gateway credentials are not configured"
	default:
		return err.Error()
	}
}

func (s *Service) loadOrder(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	return order, nil
}

func (s *Service) debugf(ctx context.Context, format string, args ...interface{}) {
	if s.debug == nil || !s.debug.DebugEnabled(ctx) {
		return
	}
	s.loggerf("level=debug "+format, args...)
}

// ExtractReference finds the reference number in a push delivery: a JSON
// body, a form body, or the query string, in that order.
func ExtractReference(body []byte, query url.Values) string {
	var payload struct {
		ReferenceNumber string `json:"referenceNumber"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.ReferenceNumber != "" {
		return strings.TrimSpace(payload.ReferenceNumber)
	}
	if form, err := url.ParseQuery(string(body)); err == nil {
		if v := strings.TrimSpace(form.Get("referenceNumber")); v != "" {
			return v
		}
	}
	return strings.TrimSpace(query.Get("referenceNumber"))
}
