package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/pkg/apperror"
)

func TestEscrowService_ConcurrentReleaseCreditsOnce(t *testing.T) {
	f := newFixture(t)
	order, _ := f.paidOrder(t, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := f.escrow.ReleaseEscrow(context.Background(), order.AgreementID)
			if assert.NoError(t, err) {
				assert.Equal(t, valueobject.EscrowStatusReleased, e.Status)
			}
		}()
	}
	wg.Wait()

	b := f.balance(t)
	assert.Equal(t, 850.0, b.Available)
	assert.Equal(t, 850.0, b.TotalEarned)
	requireConserved(t, b)

	txs, err := f.withdrawals.ListTransactions(context.Background(), f.creator, 0, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, models.BalanceTxEscrowRelease, txs[0].Type)
}

func TestEscrowService_FeeRateFixedAtRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, _ := f.paidOrder(t, 333.33)

	e, err := f.escrow.ReleaseEscrow(ctx, order.AgreementID)
	require.NoError(t, err)
	require.NotNil(t, e.PlatformFeeRate)
	require.NotNil(t, e.PlatformFee)
	require.NotNil(t, e.NetAmount)
	assert.Equal(t, 0.15, *e.PlatformFeeRate)
	assert.Equal(t, 50.0, *e.PlatformFee)
	assert.Equal(t, 283.33, *e.NetAmount)
	assert.Equal(t, 283.33, f.balance(t).Available)

	// ставка меняется после выплаты: записанное эскроу не пересчитывается
	f.escrow.cfg.PlatformFeeRate = 0.5
	again, err := f.escrow.ReleaseEscrow(ctx, order.AgreementID)
	require.NoError(t, err)
	assert.Equal(t, 0.15, *again.PlatformFeeRate)
	assert.Equal(t, 283.33, f.balance(t).Available)
}

func TestEscrowService_ReleaseAfterRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, _ := f.paidOrder(t, 500)

	e, err := f.escrow.RefundEscrow(ctx, order.AgreementID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.EscrowStatusRefunded, e.Status)

	_, err = f.escrow.ReleaseEscrow(ctx, order.AgreementID)
	assert.True(t, apperror.IsConflict(err))
	assert.Zero(t, f.balance(t).Available)
}

func TestEscrowService_Missing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.escrow.ReleaseEscrow(ctx, uuid.New())
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.escrow.RefundEscrow(ctx, uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestEscrowService_GetEscrowVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, _ := f.paidOrder(t, 100)

	for _, actor := range []Actor{f.brand, f.creator, f.admin} {
		e, err := f.escrow.GetEscrow(ctx, actor, order.AgreementID)
		require.NoError(t, err)
		assert.Equal(t, order.ID, e.OrderID)
	}

	_, err := f.escrow.GetEscrow(ctx, Actor{ID: uuid.New(), Role: models.RoleCreator}, order.AgreementID)
	assert.True(t, apperror.IsNotFound(err))
}
