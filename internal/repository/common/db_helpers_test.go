package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	err := &pq.Error{Code: "23505", Constraint: "orders_agreement_unique"}

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "orders_agreement_unique"))
	assert.True(t, IsUniqueViolation(fmt.Errorf("wrapped: %w", err), "orders_agreement_unique"))
	assert.False(t, IsUniqueViolation(err, "payment_records_one_pending"))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
}

func TestPage(t *testing.T) {
	l, o := Page(0, -5, 20, 100)
	assert.Equal(t, 20, l)
	assert.Equal(t, 0, o)

	l, o = Page(500, 40, 20, 100)
	assert.Equal(t, 100, l)
	assert.Equal(t, 40, o)
}
