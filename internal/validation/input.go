package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ignatzorin/creator-settlement/internal/models"
)

// Константы валидации
const (
	MinAccountNumberLength = 4
	MaxAccountNumberLength = 34
	MaxHolderNameLength    = 200
	MaxBankNameLength      = 200
	MaxRoutingNumberLength = 34
	MaxReasonLength        = 1000
	MaxReceiptURLLength    = 1000
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// NormalizeCurrency приводит код валюты к нижнему регистру и проверяет формат ISO 4217.
func NormalizeCurrency(currency, fallback string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(currency))
	if c == "" {
		c = strings.ToLower(fallback)
	}
	if len(c) != 3 {
		return "", fmt.Errorf("валюта должна быть трёхбуквенным кодом ISO 4217")
	}
	for _, r := range c {
		if r < 'a' || r > 'z' {
			return "", fmt.Errorf("валюта должна быть трёхбуквенным кодом ISO 4217")
		}
	}
	return c, nil
}

// NormalizeBankDetails чистит реквизиты и проверяет обязательные поля.
// Пробелы и дефисы в номере счёта удаляются.
func NormalizeBankDetails(d models.BankDetails) (models.BankDetails, error) {
	d.HolderName = strings.TrimSpace(d.HolderName)
	d.BankName = strings.TrimSpace(d.BankName)
	d.RoutingNumber = strings.TrimSpace(d.RoutingNumber)
	d.AccountNumber = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, d.AccountNumber)

	if err := ValidateNonEmpty("имя получателя", d.HolderName); err != nil {
		return d, err
	}
	if err := ValidateLength("имя получателя", d.HolderName, 0, MaxHolderNameLength); err != nil {
		return d, err
	}
	if err := ValidateNonEmpty("название банка", d.BankName); err != nil {
		return d, err
	}
	if err := ValidateLength("название банка", d.BankName, 0, MaxBankNameLength); err != nil {
		return d, err
	}
	if err := ValidateLength("номер счёта", d.AccountNumber, MinAccountNumberLength, MaxAccountNumberLength); err != nil {
		return d, err
	}
	for _, r := range d.AccountNumber {
		if !unicode.IsDigit(r) && !unicode.IsLetter(r) {
			return d, fmt.Errorf("номер счёта содержит недопустимые символы")
		}
	}
	if err := ValidateLength("routing number", d.RoutingNumber, 0, MaxRoutingNumberLength); err != nil {
		return d, err
	}
	return d, nil
}

// ValidateReason проверяет причину отклонения заявки.
func ValidateReason(reason string) error {
	if err := ValidateNonEmpty("причина отклонения", reason); err != nil {
		return err
	}
	return ValidateLength("причина отклонения", reason, 0, MaxReasonLength)
}

// ValidateReceiptURL проверяет ссылку на чек.
// Допустимы путь внутри сервиса ("/api/receipts/...") и абсолютные http(s)/s3 ссылки.
func ValidateReceiptURL(link string) error {
	if err := ValidateNonEmpty("ссылка на чек", link); err != nil {
		return err
	}
	if err := ValidateLength("ссылка на чек", link, 0, MaxReceiptURLLength); err != nil {
		return err
	}

	parsedURL, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("некорректный формат URL")
	}
	if parsedURL.Scheme == "" {
		if !strings.HasPrefix(parsedURL.Path, "/") || strings.Contains(parsedURL.Path, "..") {
			return fmt.Errorf("ссылка на чек должна быть абсолютным путём")
		}
		return nil
	}
	switch parsedURL.Scheme {
	case "http", "https", "s3":
	default:
		return fmt.Errorf("ссылка на чек должна начинаться с http://, https:// или s3://")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("ссылка должна содержать доменное имя")
	}
	return nil
}
