package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"paybridge/internal/domain"
	"paybridge/internal/pkg/jwt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrLoginDisabled      = errors.New("admin login is not configured")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrOrderNotFound      = errors.New("order not found")
)

type Service struct {
	orders       orderReader
	deliveries   deliveryReader
	tokens       tokenIssuer
	username     string
	passwordHash string
	loggerf      func(format string, args ...interface{})
}

func NewService(orders orderReader, deliveries deliveryReader, tokens tokenIssuer, username, passwordHash string, loggerf func(format string, args ...interface{})) *Service {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Service{
		orders:       orders,
		deliveries:   deliveries,
		tokens:       tokens,
		username:     username,
		passwordHash: passwordHash,
		loggerf:      loggerf,
	}
}

// Login checks the merchant credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if s.passwordHash == "" {
		return nil, ErrLoginDisabled
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.username)) == 1
	// The hash is checked even for an unknown username so both paths cost the same.
	passErr := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(req.Password))
	if !userOK || passErr != nil {
		s.loggerf("level=warn msg=admin login rejected username=%q", req.Username)
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(s.username, jwt.RoleMerchantAdmin)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.loggerf("level=info msg=admin login username=%q", s.username)
	return &LoginResult{AccessToken: token, TokenType: "Bearer"}, nil
}

func (s *Service) ListOrders(ctx context.Context, status string, page, limit int) ([]domain.Order, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	st := domain.OrderStatus(status)
	switch st {
	case "", domain.OrderPending, domain.OrderCompleted, domain.OrderCancelled:
	default:
		return nil, 0, ErrInvalidStatus
	}
	return s.orders.List(ctx, st, limit, (page-1)*limit)
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*OrderDetail, error) {
	order, err := s.orders.GetWithNotes(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	detail := &OrderDetail{Order: order, Notifications: []domain.PaymentNotificationLog{}}
	if order.ReferenceNumber != "" && s.deliveries != nil {
		logs, err := s.deliveries.ListByReference(ctx, order.ReferenceNumber)
		if err != nil {
			return nil, fmt.Errorf("list notifications for %s: %w", order.ReferenceNumber, err)
		}
		detail.Notifications = logs
	}
	return detail, nil
}
