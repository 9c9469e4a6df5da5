package payment

import "paybridge/internal/domain"

type CheckoutRequest struct {
	OrderKey string `json:"order_key" binding:"required" example:"wc_order_6f1c2a"`
}

type CheckoutResponse struct {
	Result          string `json:"result" example:"success"`
	Redirect        string `json:"redirect" example:"https://pay.pesepay.com/#/pesepay-payments?referenceNumber=REF123"`
	ReferenceNumber string `json:"reference_number" example:"REF123"`
}

type CheckoutResult struct {
	OrderID         int64
	ReferenceNumber string
	RedirectURL     string
	Reused          bool
}

// Notification is one push delivery from the processor.
type Notification struct {
	Reference string
	Body      string
	RemoteIP  string
}

type ReconcileResult struct {
	OrderID         int64              `json:"order_id"`
	ReferenceNumber string             `json:"reference_number"`
	Outcome         Outcome            `json:"outcome"`
	Status          domain.OrderStatus `json:"status"`
	Message         string             `json:"message,omitempty"`
}

type ReturnResult struct {
	OrderID         int64              `json:"order_id" example:"42"`
	Status          domain.OrderStatus `json:"status" example:"completed"`
	ReferenceNumber string             `json:"reference_number,omitempty" example:"REF123"`
	Outcome         Outcome            `json:"outcome" example:"completed"`
	Message         string             `json:"message" example:"Thank you for your payment."`
}

// SweepReport summarises one ReconcilePending run.
type SweepReport struct {
	Scanned     int `json:"scanned"`
	Completed   int `json:"completed"`
	Cancelled   int `json:"cancelled"`
	Unresolved  int `json:"unresolved"`
	Unavailable int `json:"unavailable"`
	Failed      int `json:"failed"`
}

type NotifyResponse struct {
	Status  string  `json:"status" example:"ok"`
	Outcome Outcome `json:"outcome,omitempty" example:"completed"`
}

type ErrorResponse struct {
	Error string `json:"error" example:"order not found"`
}
