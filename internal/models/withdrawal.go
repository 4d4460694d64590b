package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
)

// BankDetails - реквизиты для выплаты. В базе хранятся только в зашифрованном виде.
type BankDetails struct {
	HolderName    string `json:"holder_name" binding:"required"`
	BankName      string `json:"bank_name" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required,min=4"`
	RoutingNumber string `json:"routing_number,omitempty"`
}

// Masked возвращает номер счёта с последними четырьмя цифрами.
func (b BankDetails) Masked() string {
	n := len(b.AccountNumber)
	if n <= 4 {
		return "****"
	}
	return "****" + b.AccountNumber[n-4:]
}

// WithdrawalRequest - заявка креатора на вывод средств.
type WithdrawalRequest struct {
	ID                uuid.UUID                    `db:"id" json:"id"`
	CreatorID         uuid.UUID                    `db:"creator_id" json:"creator_id"`
	RequestedAmount   float64                      `db:"requested_amount" json:"requested_amount"`
	BankFee           float64                      `db:"bank_fee" json:"bank_fee"`
	NetAmount         float64                      `db:"net_amount" json:"net_amount"`
	BankDetailsSealed []byte                       `db:"bank_details_sealed" json:"-"`
	BankAccountMask   string                       `db:"bank_account_mask" json:"bank_account_mask"`
	BankName          string                       `db:"bank_name" json:"bank_name"`
	Status            valueobject.WithdrawalStatus `db:"status" json:"status"`
	ProcessorID       *uuid.UUID                   `db:"processor_id" json:"processor_id,omitempty"`
	RejectionReason   *string                      `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReceiptURL        *string                      `db:"receipt_url" json:"receipt_url,omitempty"`
	CreatedAt         time.Time                    `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time                    `db:"updated_at" json:"updated_at"`
	ProcessedAt       *time.Time                   `db:"processed_at" json:"processed_at,omitempty"`
	CompletedAt       *time.Time                   `db:"completed_at" json:"completed_at,omitempty"`
}

// WithdrawalView - заявка с расшифрованными реквизитами (только для администратора).
type WithdrawalView struct {
	WithdrawalRequest
	BankDetails *BankDetails `json:"bank_details,omitempty"`
}

// WithdrawalTransition - условный переход заявки из From в To.
type WithdrawalTransition struct {
	ID          uuid.UUID
	From        valueobject.WithdrawalStatus
	To          valueobject.WithdrawalStatus
	ProcessorID uuid.UUID
	Reason      *string
	ReceiptURL  *string
	At          time.Time
}

// WithdrawalFilter задаёт выборку заявок.
type WithdrawalFilter struct {
	CreatorID uuid.UUID
	Status    *valueobject.WithdrawalStatus
	Limit     int
	Offset    int
}
