package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/creator-settlement/internal/domain/valueobject"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/pkg/apperror"
)

func TestCreateOrder_ComputesGatewayFee(t *testing.T) {
	f := newFixture(t)

	order := f.createOrder(t, 1000)
	assert.Equal(t, 1000.0, order.Amount)
	assert.Equal(t, 50.0, order.GatewayFee)
	assert.Equal(t, 1050.0, order.TotalCharged)
	assert.Equal(t, "usd", order.Currency)
	assert.Equal(t, valueobject.OrderStatusPendingPayment, order.Status)
	assert.Equal(t, f.creator.ID, order.CreatorID)

	list, err := f.orders.ListOrderEvents(context.Background(), f.creator, order.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].FromStatus)
	assert.Equal(t, valueobject.OrderStatusPendingPayment, list[0].ToStatus)
}

func TestCreateOrder_Rounding(t *testing.T) {
	f := newFixture(t)

	order := f.createOrder(t, 333.33)
	assert.Equal(t, 16.67, order.GatewayFee)
	assert.Equal(t, 350.0, order.TotalCharged)
}

func TestCreateOrder_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := models.Agreement{ID: uuid.New(), CampaignID: f.campaignID, BrandID: f.brand.ID, CreatorID: uuid.New(), Status: "pending"}
	f.store.AddAgreement(pending)

	tests := []struct {
		name  string
		actor Actor
		in    CreateOrderInput
		code  apperror.ErrorCode
	}{
		{name: "zero amount", actor: f.brand, in: CreateOrderInput{AgreementID: f.agreement.ID}, code: apperror.ErrCodeValidation},
		{name: "bad currency", actor: f.brand, in: CreateOrderInput{AgreementID: f.agreement.ID, Amount: 10, Currency: "dollars"}, code: apperror.ErrCodeValidation},
		{name: "unknown agreement", actor: f.brand, in: CreateOrderInput{AgreementID: uuid.New(), Amount: 10}, code: apperror.ErrCodeNotFound},
		{name: "foreign brand", actor: Actor{ID: uuid.New(), Role: models.RoleBrand}, in: CreateOrderInput{AgreementID: f.agreement.ID, Amount: 10}, code: apperror.ErrCodeForbidden},
		{name: "not accepted", actor: f.brand, in: CreateOrderInput{AgreementID: pending.ID, Amount: 10}, code: apperror.ErrCodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.CreateOrder(ctx, tt.actor, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}

	f.createOrder(t, 100)
	_, err := f.orders.CreateOrder(ctx, f.brand, CreateOrderInput{AgreementID: f.agreement.ID, Amount: 100})
	assert.Equal(t, apperror.ErrCodeConflict, apperror.CodeOf(err))
}

func TestCreateOrder_StoreDeadline(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := f.orders.CreateOrder(ctx, f.brand, CreateOrderInput{AgreementID: f.agreement.ID, Amount: 100})
	require.Error(t, err)
	assert.Equal(t, apperror.ErrCodeGatewayTimeout, apperror.CodeOf(err))

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusGatewayTimeout, appErr.HTTPStatus)

	orders, err := f.orders.ListOrders(context.Background(), f.brand, "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, 100)

	_, err := f.orders.CancelOrder(ctx, f.creator, order.ID)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))

	cancelled, err := f.orders.CancelOrder(ctx, f.brand, order.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusCancelled, cancelled.Status)

	_, err = f.orders.CancelOrder(ctx, f.brand, order.ID)
	assert.Equal(t, apperror.ErrCodeConflict, apperror.CodeOf(err))

	list, err := f.orders.ListOrderEvents(ctx, f.brand, order.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCancelOrder_PaidIsConflict(t *testing.T) {
	f := newFixture(t)
	order, _ := f.paidOrder(t, 1000)

	_, err := f.orders.CancelOrder(context.Background(), f.brand, order.ID)
	assert.Equal(t, apperror.ErrCodeConflict, apperror.CodeOf(err))

	got, err := f.orders.GetOrder(context.Background(), f.brand, order.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.OrderStatusPaid, got.Status)
}

func TestGetOrder_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, 100)

	for _, a := range []Actor{f.brand, f.creator, f.admin} {
		_, err := f.orders.GetOrder(ctx, a, order.ID)
		assert.NoError(t, err)
	}

	_, err := f.orders.GetOrder(ctx, Actor{ID: uuid.New(), Role: models.RoleCreator}, order.ID)
	assert.True(t, apperror.IsNotFound(err))

	mine, err := f.orders.ListOrders(ctx, f.creator, "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	none, err := f.orders.ListOrders(ctx, Actor{ID: uuid.New(), Role: models.RoleBrand}, "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.orders.ListOrders(ctx, f.admin, "BOGUS", 0, 0)
	assert.True(t, apperror.IsValidation(err))

	paid, err := f.orders.ListOrders(ctx, f.admin, "PAID", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, paid)
}
