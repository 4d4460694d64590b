// Package storage хранит чеки о выплатах и подписывает ссылки на видео.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrTooLarge - файл превышает лимит загрузки.
var ErrTooLarge = errors.New("storage: размер файла превышает лимит")

// PutInput описывает загружаемый файл.
type PutInput struct {
	Filename    string
	ContentType string
	Owner       string
}

// PutResult - ключ объекта и ссылка для клиента.
type PutResult struct {
	Key  string
	URL  string
	Size int64
}

// Storage - хранилище файлов.
type Storage interface {
	Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error)
	Delete(ctx context.Context, key string) error
}

// URLSigner превращает ссылку на объект в URL, доступный клиенту.
type URLSigner interface {
	SignURL(ctx context.Context, ref string) (string, error)
}

// PassthroughSigner отдаёт ссылку без изменений.
type PassthroughSigner struct{}

func (PassthroughSigner) SignURL(_ context.Context, ref string) (string, error) {
	return ref, nil
}
