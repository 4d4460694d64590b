package valueobject

import "github.com/ignatzorin/creator-settlement/internal/pkg/apperror"

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusFailed         OrderStatus = "FAILED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusRefunded       OrderStatus = "REFUNDED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment: {OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusPaid:           {OrderStatusRefunded},
	OrderStatusFailed:         {},
	OrderStatusCancelled:      {},
	OrderStatusRefunded:       {},
}

func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	return contains(orderTransitions[s], newStatus)
}

// IsTerminal: из статуса больше нет переходов, кроме PAID → REFUNDED.
func (s OrderStatus) IsTerminal() bool {
	return s != OrderStatusPendingPayment
}

func NewOrderStatus(status string) (OrderStatus, error) {
	s := OrderStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус заказа")
	}
	return s, nil
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusCaptured PaymentStatus = "CAPTURED"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:  {PaymentStatusCaptured, PaymentStatusFailed},
	PaymentStatusCaptured: {PaymentStatusRefunded},
	PaymentStatusFailed:   {},
	PaymentStatusRefunded: {},
}

func (s PaymentStatus) CanTransitionTo(newStatus PaymentStatus) bool {
	return contains(paymentTransitions[s], newStatus)
}

func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusPending
}

// PaymentOutcome - итог платежа, присланный шлюзом.
type PaymentOutcome string

const (
	OutcomeSucceeded PaymentOutcome = "succeeded"
	OutcomeFailed    PaymentOutcome = "failed"
	OutcomeCanceled  PaymentOutcome = "canceled"
)

// OrderStatus возвращает целевой статус заказа для исхода платежа.
func (o PaymentOutcome) OrderStatus() OrderStatus {
	switch o {
	case OutcomeSucceeded:
		return OrderStatusPaid
	case OutcomeCanceled:
		return OrderStatusCancelled
	default:
		return OrderStatusFailed
	}
}

// PaymentStatus возвращает целевой статус платёжной записи. Отмена хранится как FAILED.
func (o PaymentOutcome) PaymentStatus() PaymentStatus {
	if o == OutcomeSucceeded {
		return PaymentStatusCaptured
	}
	return PaymentStatusFailed
}

type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "PENDING"
	WebhookStatusProcessed WebhookStatus = "PROCESSED"
	WebhookStatusFailed    WebhookStatus = "FAILED"
)

type EscrowStatus string

const (
	EscrowStatusActive   EscrowStatus = "active"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "PENDING"
	WithdrawalStatusApproved   WithdrawalStatus = "APPROVED"
	WithdrawalStatusProcessing WithdrawalStatus = "PROCESSING"
	WithdrawalStatusCompleted  WithdrawalStatus = "COMPLETED"
	WithdrawalStatusRejected   WithdrawalStatus = "REJECTED"
)

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusPending:    {WithdrawalStatusApproved, WithdrawalStatusRejected},
	WithdrawalStatusApproved:   {WithdrawalStatusProcessing, WithdrawalStatusCompleted},
	WithdrawalStatusProcessing: {WithdrawalStatusCompleted},
	WithdrawalStatusCompleted:  {},
	WithdrawalStatusRejected:   {},
}

func (s WithdrawalStatus) IsValid() bool {
	_, ok := withdrawalTransitions[s]
	return ok
}

func (s WithdrawalStatus) CanTransitionTo(newStatus WithdrawalStatus) bool {
	return contains(withdrawalTransitions[s], newStatus)
}

// IsOpen - заявка ещё держит резерв на балансе.
func (s WithdrawalStatus) IsOpen() bool {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusApproved, WithdrawalStatusProcessing:
		return true
	}
	return false
}

func NewWithdrawalStatus(status string) (WithdrawalStatus, error) {
	s := WithdrawalStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус заявки на вывод")
	}
	return s, nil
}

const (
	AgreementStatusAccepted  = "accepted"
	SubmissionStatusApproved = "approved"
)

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
