package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Local - файловое хранилище на диске.
type Local struct {
	rootPath       string
	publicPrefix   string
	maxUploadBytes int64
}

// NewLocal создаёт файловое хранилище. publicPrefix - URL-префикс, под которым каталог раздаётся.
func NewLocal(rootPath, publicPrefix string, maxUploadMB int64) (*Local, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &Local{
		rootPath:       rootPath,
		publicPrefix:   strings.TrimRight(publicPrefix, "/"),
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Root возвращает корневой каталог хранилища.
func (s *Local) Root() string { return s.rootPath }

// Put сохраняет файл через временный файл и rename.
func (s *Local) Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error) {
	if err := ctx.Err(); err != nil {
		return PutResult{}, err
	}

	owner := sanitizeFilename(in.Owner, "shared")
	safeName := sanitizeFilename(in.Filename, "file")
	fileName := fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), uuid.NewString()[:8], strings.ToLower(filepath.Ext(safeName)))

	dir := filepath.Join(s.rootPath, owner)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return PutResult{}, fmt.Errorf("storage: не удалось создать каталог: %w", err)
	}

	targetPath := filepath.Join(dir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return PutResult{}, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	limited := io.LimitedReader{R: r, N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, &limited)
	if err != nil {
		_ = os.Remove(tempPath)
		return PutResult{}, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return PutResult{}, fmt.Errorf("%w (%d байт)", ErrTooLarge, s.maxUploadBytes)
	}
	if err := f.Close(); err != nil {
		return PutResult{}, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		return PutResult{}, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	key := path.Join(owner, fileName)
	return PutResult{Key: key, URL: s.publicPrefix + "/" + key, Size: written}, nil
}

// Delete удаляет файл из хранилища.
func (s *Local) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(s.rootPath, filepath.FromSlash(path.Clean("/"+key)))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name, fallback string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" || name == "." {
		name = fallback
	}
	return name
}
