package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/repository/common"
)

// ledger работает с состоянием без блокировок: вызывающий уже держит мьютекс Store.
type ledger struct {
	st *state
}

func (l *ledger) GetAgreement(_ context.Context, id uuid.UUID) (*models.Agreement, error) {
	a, ok := l.st.agreements[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &a, nil
}

func (l *ledger) CreateOrder(_ context.Context, o *models.Order) error {
	for _, existing := range l.st.orders {
		if existing.AgreementID == o.AgreementID {
			return common.ErrAlreadyExists
		}
	}
	l.st.orders[o.ID] = *o
	return nil
}

func (l *ledger) GetOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	o, ok := l.st.orders[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &o, nil
}

func (l *ledger) ListOrders(_ context.Context, f models.OrderFilter) ([]models.Order, error) {
	var out []models.Order
	for _, o := range l.st.orders {
		if f.ParticipantID != uuid.Nil && !o.IsParticipant(f.ParticipantID) {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		out = append(out, o)
	}
	sortedByCreated(out, func(o models.Order) time.Time { return o.CreatedAt }, true)
	limit, offset := common.Page(f.Limit, f.Offset, models.DefaultPageLimit, models.MaxPageLimit)
	return page(out, limit, offset), nil
}

func (l *ledger) FindPaidOrder(_ context.Context, campaignID, creatorID uuid.UUID) (*models.Order, error) {
	var found *models.Order
	for _, o := range l.st.orders {
		if o.CampaignID != campaignID || o.CreatorID != creatorID || o.Status != valueobject.OrderStatusPaid {
			continue
		}
		if found == nil || o.CreatedAt.After(found.CreatedAt) {
			found = &o
		}
	}
	if found == nil {
		return nil, common.ErrNotFound
	}
	return found, nil
}

func (l *ledger) UpdateOrderStatus(_ context.Context, id uuid.UUID, from, to valueobject.OrderStatus) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("memstore: illegal order transition %s -> %s", from, to)
	}
	o, ok := l.st.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	l.st.orders[id] = o
	return true, nil
}

func (l *ledger) AddOrderEvent(_ context.Context, e *models.OrderEvent) error {
	l.st.orderEvents = append(l.st.orderEvents, *e)
	return nil
}

func (l *ledger) ListOrderEvents(_ context.Context, orderID uuid.UUID) ([]models.OrderEvent, error) {
	out := []models.OrderEvent{}
	for _, e := range l.st.orderEvents {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *ledger) CreatePaymentRecord(_ context.Context, p *models.PaymentRecord) error {
	if _, ok := l.st.payments[p.PaymentIntentID]; ok {
		return common.ErrAlreadyExists
	}
	for _, existing := range l.st.payments {
		if existing.OrderID == p.OrderID && existing.Status == valueobject.PaymentStatusPending && p.Status == valueobject.PaymentStatusPending {
			return common.ErrAlreadyExists
		}
	}
	l.st.payments[p.PaymentIntentID] = *p
	return nil
}

func (l *ledger) GetPaymentByIntent(_ context.Context, intentID string) (*models.PaymentRecord, error) {
	p, ok := l.st.payments[intentID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &p, nil
}

func (l *ledger) GetPendingPayment(_ context.Context, orderID uuid.UUID) (*models.PaymentRecord, error) {
	for _, p := range l.st.payments {
		if p.OrderID == orderID && p.Status == valueobject.PaymentStatusPending {
			return &p, nil
		}
	}
	return nil, common.ErrNotFound
}

func (l *ledger) CountPayments(_ context.Context, orderID uuid.UUID) (int, error) {
	n := 0
	for _, p := range l.st.payments {
		if p.OrderID == orderID {
			n++
		}
	}
	return n, nil
}

func (l *ledger) UpdatePaymentStatus(_ context.Context, intentID string, from, to valueobject.PaymentStatus, payload json.RawMessage) (bool, error) {
	p, ok := l.st.payments[intentID]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	if len(payload) > 0 {
		p.GatewayPayload = append(json.RawMessage(nil), payload...)
	}
	p.UpdatedAt = time.Now().UTC()
	l.st.payments[intentID] = p
	return true, nil
}

func (l *ledger) ClaimWebhookEvent(_ context.Context, e *models.WebhookEvent) (valueobject.WebhookStatus, error) {
	if existing, ok := l.st.webhooks[e.EventID]; ok {
		return existing.Status, nil
	}
	marker := *e
	marker.Status = valueobject.WebhookStatusPending
	marker.Attempts = 1
	marker.CreatedAt = time.Now().UTC()
	l.st.webhooks[e.EventID] = marker
	return valueobject.WebhookStatusPending, nil
}

func (l *ledger) MarkWebhookProcessed(_ context.Context, eventID string, at time.Time) error {
	e, ok := l.st.webhooks[eventID]
	if !ok {
		return fmt.Errorf("memstore: webhook marker %s not found", eventID)
	}
	e.Status = valueobject.WebhookStatusProcessed
	e.ProcessedAt = &at
	e.Error = nil
	l.st.webhooks[eventID] = e
	return nil
}

func (l *ledger) MarkWebhookFailed(_ context.Context, e *models.WebhookEvent, reason string) error {
	existing, ok := l.st.webhooks[e.EventID]
	if ok && existing.Status == valueobject.WebhookStatusProcessed {
		return nil
	}
	if !ok {
		existing = *e
		existing.CreatedAt = time.Now().UTC()
	} else {
		existing.Attempts++
	}
	existing.Status = valueobject.WebhookStatusFailed
	existing.Error = &reason
	l.st.webhooks[e.EventID] = existing
	return nil
}

func (l *ledger) GetWebhookEvent(_ context.Context, eventID string) (*models.WebhookEvent, error) {
	e, ok := l.st.webhooks[eventID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &e, nil
}

func (l *ledger) CreateEscrow(_ context.Context, e *models.EscrowRecord) (bool, error) {
	if _, ok := l.st.escrows[e.AgreementID]; ok {
		return false, nil
	}
	l.st.escrows[e.AgreementID] = *e
	return true, nil
}

func (l *ledger) GetEscrowByAgreement(_ context.Context, agreementID uuid.UUID) (*models.EscrowRecord, error) {
	e, ok := l.st.escrows[agreementID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &e, nil
}

func (l *ledger) escrowByID(id uuid.UUID) (models.EscrowRecord, bool) {
	for _, e := range l.st.escrows {
		if e.ID == id {
			return e, true
		}
	}
	return models.EscrowRecord{}, false
}

func (l *ledger) ReleaseEscrow(_ context.Context, rel models.EscrowRelease, at time.Time) (bool, error) {
	e, ok := l.escrowByID(rel.EscrowID)
	if !ok || e.Status != valueobject.EscrowStatusActive {
		return false, nil
	}
	rate, fee, net := rel.PlatformFeeRate, rel.PlatformFee, rel.NetAmount
	e.Status = valueobject.EscrowStatusReleased
	e.PlatformFeeRate = &rate
	e.PlatformFee = &fee
	e.NetAmount = &net
	e.ReleasedAt = &at
	l.st.escrows[e.AgreementID] = e
	return true, nil
}

func (l *ledger) RefundEscrow(_ context.Context, escrowID uuid.UUID, at time.Time) (bool, error) {
	e, ok := l.escrowByID(escrowID)
	if !ok || e.Status != valueobject.EscrowStatusActive {
		return false, nil
	}
	e.Status = valueobject.EscrowStatusRefunded
	e.RefundedAt = &at
	l.st.escrows[e.AgreementID] = e
	return true, nil
}

func (l *ledger) GetBalance(_ context.Context, creatorID uuid.UUID) (*models.CreatorBalance, error) {
	b, ok := l.st.balances[creatorID]
	if !ok {
		return &models.CreatorBalance{CreatorID: creatorID}, nil
	}
	return &b, nil
}

func (l *ledger) CreditEarnings(_ context.Context, creatorID uuid.UUID, amount float64) error {
	b := l.st.balances[creatorID]
	b.CreatorID = creatorID
	b.Available = valueobject.Add(b.Available, amount)
	b.TotalEarned = valueobject.Add(b.TotalEarned, amount)
	b.UpdatedAt = time.Now().UTC()
	l.st.balances[creatorID] = b
	return nil
}

func (l *ledger) ReserveWithdrawal(_ context.Context, creatorID uuid.UUID, amount float64) (bool, error) {
	b, ok := l.st.balances[creatorID]
	if !ok || b.Available < amount {
		return false, nil
	}
	b.Available = valueobject.Sub(b.Available, amount)
	b.PendingWithdrawal = valueobject.Add(b.PendingWithdrawal, amount)
	b.UpdatedAt = time.Now().UTC()
	l.st.balances[creatorID] = b
	return true, nil
}

func (l *ledger) RestoreReservation(_ context.Context, creatorID uuid.UUID, amount float64) (bool, error) {
	b, ok := l.st.balances[creatorID]
	if !ok || b.PendingWithdrawal < amount {
		return false, nil
	}
	b.Available = valueobject.Add(b.Available, amount)
	b.PendingWithdrawal = valueobject.Sub(b.PendingWithdrawal, amount)
	b.UpdatedAt = time.Now().UTC()
	l.st.balances[creatorID] = b
	return true, nil
}

func (l *ledger) SettleWithdrawal(_ context.Context, creatorID uuid.UUID, amount float64) (bool, error) {
	b, ok := l.st.balances[creatorID]
	if !ok || b.PendingWithdrawal < amount {
		return false, nil
	}
	b.PendingWithdrawal = valueobject.Sub(b.PendingWithdrawal, amount)
	b.TotalWithdrawn = valueobject.Add(b.TotalWithdrawn, amount)
	b.UpdatedAt = time.Now().UTC()
	l.st.balances[creatorID] = b
	return true, nil
}

func (l *ledger) AddBalanceTransaction(_ context.Context, t *models.BalanceTransaction) error {
	l.st.balanceTxs = append(l.st.balanceTxs, *t)
	return nil
}

func (l *ledger) ListBalanceTransactions(_ context.Context, creatorID uuid.UUID, limit, offset int) ([]models.BalanceTransaction, error) {
	var out []models.BalanceTransaction
	for _, t := range l.st.balanceTxs {
		if t.CreatorID == creatorID {
			out = append(out, t)
		}
	}
	sortedByCreated(out, func(t models.BalanceTransaction) time.Time { return t.CreatedAt }, true)
	limit, offset = common.Page(limit, offset, models.DefaultPageLimit, models.MaxPageLimit)
	return page(out, limit, offset), nil
}

func (l *ledger) CreateWithdrawal(_ context.Context, w *models.WithdrawalRequest) error {
	for _, existing := range l.st.withdrawals {
		if existing.CreatorID == w.CreatorID && existing.Status.IsOpen() {
			return common.ErrAlreadyExists
		}
	}
	l.st.withdrawals[w.ID] = *w
	return nil
}

func (l *ledger) GetWithdrawal(_ context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	w, ok := l.st.withdrawals[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &w, nil
}

func (l *ledger) GetOpenWithdrawal(_ context.Context, creatorID uuid.UUID) (*models.WithdrawalRequest, error) {
	for _, w := range l.st.withdrawals {
		if w.CreatorID == creatorID && w.Status.IsOpen() {
			return &w, nil
		}
	}
	return nil, common.ErrNotFound
}

func (l *ledger) ListWithdrawals(_ context.Context, f models.WithdrawalFilter) ([]models.WithdrawalRequest, error) {
	var out []models.WithdrawalRequest
	for _, w := range l.st.withdrawals {
		if f.CreatorID != uuid.Nil && w.CreatorID != f.CreatorID {
			continue
		}
		if f.Status != nil && w.Status != *f.Status {
			continue
		}
		out = append(out, w)
	}
	sortedByCreated(out, func(w models.WithdrawalRequest) time.Time { return w.CreatedAt }, true)
	limit, offset := common.Page(f.Limit, f.Offset, models.DefaultPageLimit, models.MaxPageLimit)
	return page(out, limit, offset), nil
}

func (l *ledger) TransitionWithdrawal(_ context.Context, t models.WithdrawalTransition) (bool, error) {
	if !t.From.CanTransitionTo(t.To) {
		return false, fmt.Errorf("memstore: illegal withdrawal transition %s -> %s", t.From, t.To)
	}
	w, ok := l.st.withdrawals[t.ID]
	if !ok || w.Status != t.From {
		return false, nil
	}
	at := t.At
	processor := t.ProcessorID
	w.Status = t.To
	w.ProcessorID = &processor
	w.UpdatedAt = at
	if t.Reason != nil {
		w.RejectionReason = t.Reason
	}
	if t.ReceiptURL != nil {
		w.ReceiptURL = t.ReceiptURL
	}
	switch t.To {
	case valueobject.WithdrawalStatusApproved, valueobject.WithdrawalStatusRejected:
		w.ProcessedAt = &at
	case valueobject.WithdrawalStatusCompleted:
		w.CompletedAt = &at
	}
	l.st.withdrawals[t.ID] = w
	return true, nil
}

func (l *ledger) GetSubmission(_ context.Context, id uuid.UUID) (*models.Submission, error) {
	s, ok := l.st.submissions[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	brandID, ok := l.st.campaigns[s.CampaignID]
	if !ok {
		return nil, common.ErrNotFound
	}
	s.BrandID = brandID
	return &s, nil
}

func (l *ledger) ApproveSubmission(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s, ok := l.st.submissions[id]
	if !ok || s.Status == valueobject.SubmissionStatusApproved || s.WatermarkRemoved {
		return false, nil
	}
	s.Status = valueobject.SubmissionStatusApproved
	s.WatermarkRemoved = true
	s.ApprovedAt = &at
	l.st.submissions[id] = s
	return true, nil
}
