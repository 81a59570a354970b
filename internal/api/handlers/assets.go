// assets.go — отдача изображений и QR-кодов: GET /assets/{bucket}/{key}.
// Content-Type и ETag берутся из attr.json; Range и If-None-Match
// обрабатывает http.ServeContent.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	apierrors "github.com/bigkaa/goartstore/product-module/internal/api/errors"
	"github.com/bigkaa/goartstore/product-module/internal/storage/assets"
)

// GetAsset — GET /assets/{bucket}/{key}.
func (h *APIHandler) GetAsset(w http.ResponseWriter, r *http.Request, bucket, key string) {
	// chi отдаёт параметры из RawPath, если путь содержал экранирование
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			apierrors.NotFound(w, "Ассет не найден")
			return
		}
		key = unescaped
	}

	a, err := h.assets.Open(bucket, key)
	if err != nil {
		if errors.Is(err, assets.ErrNotFound) {
			apierrors.NotFound(w, "Ассет не найден")
			return
		}
		h.logger.Error("Ошибка чтения ассета",
			slog.String("bucket", bucket),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		apierrors.WriteError(w, http.StatusBadGateway, apierrors.CodeStorageError, "Хранилище ассетов недоступно")
		return
	}
	defer a.File.Close()

	if a.Meta.ContentType != "" {
		w.Header().Set("Content-Type", a.Meta.ContentType)
	}
	if a.Meta.Checksum != "" {
		w.Header().Set("ETag", `"`+a.Meta.Checksum+`"`)
	}
	w.Header().Set("Cache-Control", "public, no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")

	http.ServeContent(w, r, "", a.Meta.UpdatedAt, a.File)
}
