package payment

import "errors"

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrReferenceNotFound  = errors.New("payment reference not found")
	ErrMissingReference   = errors.New("notification has no reference number")
	ErrOrderNotPayable    = errors.New("order is not awaiting payment")
	ErrWrongPaymentMethod = errors.New("order is not paid with pesepay")
	ErrOrderKeyMismatch   = errors.New("order key does not match")
)
