package common

import (
	"errors"

	"github.com/lib/pq"
)

// Общие ошибки для всех репозиториев
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
)

// pgUniqueViolation - код ошибки PostgreSQL для нарушения уникальности.
const pgUniqueViolation = "23505"

// IsUniqueViolation проверяет, что запрос упал на уникальном индексе.
// Если constraint не пуст, сверяется и имя индекса.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
