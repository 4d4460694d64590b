package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/creator-settlement/internal/http/handlers/common"
	"github.com/ignatzorin/creator-settlement/internal/pkg/apperror"
)

// ReceiptFiles раздаёт чеки из локального хранилища администратору.
type ReceiptFiles struct {
	root string
}

func NewReceiptFiles(root string) *ReceiptFiles {
	return &ReceiptFiles{root: root}
}

// Serve GET /receipts/*path
func (h *ReceiptFiles) Serve(c *gin.Context) {
	rel := filepath.Clean("/" + strings.TrimPrefix(c.Param("path"), "/"))
	if rel == "/" {
		common.RespondBadRequest(c, "путь к файлу обязателен")
		return
	}

	full := filepath.Join(h.root, rel)
	if !strings.HasPrefix(full, filepath.Clean(h.root)+string(filepath.Separator)) {
		common.RespondError(c, http.StatusNotFound, apperror.ErrCodeNotFound, "файл не найден")
		return
	}
	c.Header("Cache-Control", "private, no-store")
	c.File(full)
}
