package admin

import "paybridge/internal/domain"

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type OrderListFilter struct {
	Status string `form:"status"`
}

// OrderDetail is an order with its audit trail and the push deliveries seen
// for its reference.
type OrderDetail struct {
	Order         *domain.Order                   `json:"order"`
	Notifications []domain.PaymentNotificationLog `json:"notifications"`
}
