package notification

import (
	"context"
	"fmt"
	"time"

	"paybridge/internal/domain"
)

type orderReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
}

type emailOutbox interface {
	Enqueue(ctx context.Context, orderID int64, template domain.EmailTemplate, recipient string) (bool, error)
}

type broadcaster interface {
	Broadcast(event OrderEvent) int
}

// Service queues customer emails and pushes order events to dashboards.
type Service struct {
	orders  orderReader
	outbox  emailOutbox
	events  broadcaster
	loggerf func(format string, args ...interface{})
}

func NewService(orders orderReader, outbox emailOutbox, events broadcaster, loggerf func(format string, args ...interface{})) *Service {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Service{orders: orders, outbox: outbox, events: events, loggerf: loggerf}
}

func (s *Service) SendCompleted(ctx context.Context, orderID int64) error {
	return s.send(ctx, orderID, domain.EmailOrderCompleted)
}

func (s *Service) SendProcessing(ctx context.Context, orderID int64) error {
	return s.send(ctx, orderID, domain.EmailOrderProcessing)
}

// PublishStatus tells connected dashboards that an order changed state.
func (s *Service) PublishStatus(orderID int64, status domain.OrderStatus) {
	if s.events == nil {
		return
	}
	n := s.events.Broadcast(OrderEvent{Type: "order.status", OrderID: orderID, Status: string(status), At: time.Now().UTC()})
	s.loggerf("level=debug msg=order event broadcast order_id=%d status=%s clients=%d", orderID, status, n)
}

func (s *Service) send(ctx context.Context, orderID int64, template domain.EmailTemplate) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", orderID, err)
	}
	queued, err := s.outbox.Enqueue(ctx, orderID, template, order.CustomerEmail)
	if err != nil {
		return fmt.Errorf("queue %s email: %w", template, err)
	}
	if !queued {
		s.loggerf("level=info msg=email already queued order_id=%d template=%s", orderID, template)
		return nil
	}
	s.loggerf("level=info msg=email queued order_id=%d template=%s", orderID, template)
	return nil
}
