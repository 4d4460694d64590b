package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/pkg/apperror"
)

var testBankDetails = models.BankDetails{
	HolderName:    "Ivan Petrov",
	BankName:      "Test Bank",
	AccountNumber: "4081 7810 0000 1234",
}

func (f *fixture) fund(amount float64) {
	f.store.SetBalance(models.CreatorBalance{CreatorID: f.creator.ID, Available: amount, TotalEarned: amount})
}

func (f *fixture) request(t *testing.T, amount float64) *models.WithdrawalRequest {
	t.Helper()
	w, err := f.withdrawals.RequestWithdrawal(context.Background(), f.creator, WithdrawalInput{Amount: amount, BankDetails: testBankDetails})
	require.NoError(t, err)
	return w
}

func TestWithdrawalService_RequestThenReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(500)

	w := f.request(t, 200)
	assert.Equal(t, valueobject.WithdrawalStatusPending, w.Status)
	assert.Equal(t, 17.0, w.BankFee)
	assert.Equal(t, 183.0, w.NetAmount)
	assert.Equal(t, "****1234", w.BankAccountMask)
	assert.NotContains(t, string(w.BankDetailsSealed), "1234")

	b := f.balance(t)
	assert.Equal(t, 300.0, b.Available)
	assert.Equal(t, 200.0, b.PendingWithdrawal)
	requireConserved(t, b)

	rejected, err := f.withdrawals.Reject(ctx, f.admin, w.ID, "реквизиты не совпадают")
	require.NoError(t, err)
	assert.Equal(t, valueobject.WithdrawalStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)

	b = f.balance(t)
	assert.Equal(t, 500.0, b.Available)
	assert.Zero(t, b.PendingWithdrawal)
	requireConserved(t, b)

	txs, err := f.withdrawals.ListTransactions(ctx, f.creator, 0, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	var sum float64
	for _, tx := range txs {
		sum = valueobject.Add(sum, tx.Amount)
	}
	assert.Zero(t, sum)
}

func TestWithdrawalService_RequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(1000)

	tests := []struct {
		name  string
		actor Actor
		in    WithdrawalInput
		check func(error) bool
	}{
		{"below minimum", f.creator, WithdrawalInput{Amount: 99.99, BankDetails: testBankDetails}, apperror.IsValidation},
		{"negative", f.creator, WithdrawalInput{Amount: -5, BankDetails: testBankDetails}, apperror.IsValidation},
		{"no bank details", f.creator, WithdrawalInput{Amount: 200}, apperror.IsValidation},
		{"short account", f.creator, WithdrawalInput{Amount: 200, BankDetails: models.BankDetails{HolderName: "A", BankName: "B", AccountNumber: "12"}}, apperror.IsValidation},
		{"brand", f.brand, WithdrawalInput{Amount: 200, BankDetails: testBankDetails}, apperror.IsForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.withdrawals.RequestWithdrawal(ctx, tt.actor, tt.in)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
	assert.Equal(t, 1000.0, f.balance(t).Available)
}

func TestWithdrawalService_FeeExceedsAmount(t *testing.T) {
	f := newFixture(t)
	f.withdrawals.cfg.MinAmount = 1
	f.fund(100)

	_, err := f.withdrawals.RequestWithdrawal(context.Background(), f.creator, WithdrawalInput{Amount: 17, BankDetails: testBankDetails})
	assert.True(t, apperror.IsValidation(err))
}

func TestWithdrawalService_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.fund(150)

	_, err := f.withdrawals.RequestWithdrawal(context.Background(), f.creator, WithdrawalInput{Amount: 200, BankDetails: testBankDetails})
	assert.Equal(t, apperror.ErrCodeInsufficientBalance, apperror.CodeOf(err))
	assert.Equal(t, 150.0, f.balance(t).Available)
}

func TestWithdrawalService_OneOpenRequest(t *testing.T) {
	f := newFixture(t)
	f.fund(1000)
	f.request(t, 200)

	_, err := f.withdrawals.RequestWithdrawal(context.Background(), f.creator, WithdrawalInput{Amount: 200, BankDetails: testBankDetails})
	assert.True(t, apperror.IsConflict(err))

	b := f.balance(t)
	assert.Equal(t, 800.0, b.Available)
	assert.Equal(t, 200.0, b.PendingWithdrawal)
}

func TestWithdrawalService_ConcurrentRequests(t *testing.T) {
	f := newFixture(t)
	f.fund(300)

	var (
		wg sync.WaitGroup
		ok atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.withdrawals.RequestWithdrawal(context.Background(), f.creator, WithdrawalInput{Amount: 250, BankDetails: testBankDetails})
			if err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	b := f.balance(t)
	assert.Equal(t, 50.0, b.Available)
	assert.Equal(t, 250.0, b.PendingWithdrawal)
	requireConserved(t, b)
}

func TestWithdrawalService_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(500)
	w := f.request(t, 300)

	approved, err := f.withdrawals.Approve(ctx, f.admin, w.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.WithdrawalStatusApproved, approved.Status)
	require.NotNil(t, approved.ProcessorID)
	assert.Equal(t, f.admin.ID, *approved.ProcessorID)

	processing, err := f.withdrawals.Process(ctx, f.admin, w.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.WithdrawalStatusProcessing, processing.Status)

	done, err := f.withdrawals.Complete(ctx, f.admin, w.ID, "/api/receipts/r1.pdf")
	require.NoError(t, err)
	assert.Equal(t, valueobject.WithdrawalStatusCompleted, done.Status)
	require.NotNil(t, done.ReceiptURL)
	assert.Equal(t, "/api/receipts/r1.pdf", *done.ReceiptURL)

	b := f.balance(t)
	assert.Equal(t, 200.0, b.Available)
	assert.Zero(t, b.PendingWithdrawal)
	assert.Equal(t, 300.0, b.TotalWithdrawn)
	requireConserved(t, b)

	// терминальная заявка больше не двигается
	_, err = f.withdrawals.Reject(ctx, f.admin, w.ID, "поздно")
	assert.True(t, apperror.IsConflict(err))

	// после завершения можно подать новую
	f.request(t, 150)
}

func TestWithdrawalService_CompleteFromApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(500)
	w := f.request(t, 100)

	_, err := f.withdrawals.Complete(ctx, f.admin, w.ID, "s3://receipts/r2.pdf")
	assert.True(t, apperror.IsConflict(err), "pending request cannot be completed")

	_, err = f.withdrawals.Approve(ctx, f.admin, w.ID)
	require.NoError(t, err)

	_, err = f.withdrawals.Complete(ctx, f.admin, w.ID, " ")
	assert.True(t, apperror.IsValidation(err))

	done, err := f.withdrawals.Complete(ctx, f.admin, w.ID, "s3://receipts/r2.pdf")
	require.NoError(t, err)
	assert.Equal(t, valueobject.WithdrawalStatusCompleted, done.Status)
	assert.Equal(t, 100.0, f.balance(t).TotalWithdrawn)
}

func TestWithdrawalService_TransitionGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(500)
	w := f.request(t, 100)

	_, err := f.withdrawals.Approve(ctx, f.creator, w.ID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.withdrawals.Reject(ctx, f.admin, w.ID, "")
	assert.True(t, apperror.IsValidation(err))

	_, err = f.withdrawals.Process(ctx, f.admin, w.ID)
	assert.True(t, apperror.IsConflict(err), "pending request cannot be processed")

	_, err = f.withdrawals.Approve(ctx, f.admin, uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestWithdrawalService_GetWithdrawalDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(500)
	w := f.request(t, 100)

	view, err := f.withdrawals.GetWithdrawal(ctx, f.admin, w.ID)
	require.NoError(t, err)
	require.NotNil(t, view.BankDetails)
	assert.Equal(t, "4081781000001234", view.BankDetails.AccountNumber)

	view, err = f.withdrawals.GetWithdrawal(ctx, f.creator, w.ID)
	require.NoError(t, err)
	assert.Nil(t, view.BankDetails)
	assert.Equal(t, "****1234", view.BankAccountMask)

	_, err = f.withdrawals.GetWithdrawal(ctx, Actor{ID: uuid.New(), Role: models.RoleCreator}, w.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestWithdrawalService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(500)
	w := f.request(t, 100)

	mine, err := f.withdrawals.ListWithdrawals(ctx, f.creator, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, w.ID, mine[0].ID)

	pending, err := f.withdrawals.ListWithdrawals(ctx, f.admin, "PENDING", 10, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	other, err := f.withdrawals.ListWithdrawals(ctx, Actor{ID: uuid.New(), Role: models.RoleCreator}, "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = f.withdrawals.ListWithdrawals(ctx, f.admin, "LOST", 0, 0)
	assert.True(t, apperror.IsValidation(err))
}
