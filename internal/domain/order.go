package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus represents the fulfilment state of a single order.
type OrderStatus string

const (
	OrderStatusNew            OrderStatus = "NEW"
	OrderStatusBatched        OrderStatus = "BATCHED"
	OrderStatusPreparing      OrderStatus = "PREPARING"
	OrderStatusReadyForPickup OrderStatus = "READY_FOR_PICKUP"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusCompleted      OrderStatus = "COMPLETED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusNew, OrderStatusBatched, OrderStatusPreparing, OrderStatusReadyForPickup,
		OrderStatusOutForDelivery, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

func ParseOrderStatusFromString(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid order status %q", ErrValidation, s)
	}
	return st, nil
}

// Delivery OTP bounds. The code is a short-lived, single-use pickup proof,
// not an auth credential.
const (
	OTPMin    = 1000
	OTPMax    = 9999
	OTPLength = 4
)

// ValidOTPFormat reports whether code is exactly four ASCII digits.
func ValidOTPFormat(code string) bool {
	if len(code) != OTPLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Order is a buyer purchase fulfilled through a delivery batch. BatchID is
// nil while the order is unbatched.
type Order struct {
	ID          string
	DisplayID   string
	ShopID      string
	BuyerID     string
	BatchID     *string
	Status      OrderStatus
	DeliveryOTP *string
	HostelBlock string
	DeliveredAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OTPMatches reports whether the submitted code equals the stored one.
func (o *Order) OTPMatches(code string) bool {
	return o.DeliveryOTP != nil && *o.DeliveryOTP == code
}
