// handler.go — основной обработчик API Product Module.
// Объединяет health, API товаров, отдачу ассетов и HTML-страницы.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bigkaa/goartstore/product-module/internal/domain/model"
	"github.com/bigkaa/goartstore/product-module/internal/service"
	"github.com/bigkaa/goartstore/product-module/internal/storage/assets"
)

// ProductService — операции над товарами, используемые обработчиками.
type ProductService interface {
	Create(ctx context.Context, in service.CreateInput) (*model.Product, error)
	Get(ctx context.Context, id string) (*model.Product, error)
	List(ctx context.Context) ([]*model.Product, error)
	Update(ctx context.Context, id string, in service.UpdateInput) (*model.Product, error)
	Delete(ctx context.Context, id string) error
}

// AssetReader — чтение ассетов для отдачи клиентам.
type AssetReader interface {
	Open(bucket, key string) (*assets.Asset, error)
}

// QRPreview — рендеринг QR-кода в data URI для страницы товара.
type QRPreview interface {
	RenderDataURI(text string) (string, error)
}

// Options — параметры обработчиков.
type Options struct {
	// PublicOrigin — origin для ссылок в QR-коде. Пустой — вычисляется из запроса.
	PublicOrigin string
	// MaxImageSize — максимальный размер изображения в байтах
	MaxImageSize int64
	// TrustForwardedHeaders — учитывать X-Forwarded-Proto/X-Forwarded-Host.
	// Без доверенного proxy заголовки задаёт клиент, а origin попадает
	// в сохраняемые ссылки QR-кода и ассетов.
	TrustForwardedHeaders bool
}

// APIHandler — основной обработчик API Product Module.
// Реализует ServerInterface, делегируя запросы в сервисный слой.
type APIHandler struct {
	health   *HealthHandler
	products ProductService
	assets   AssetReader
	qr       QRPreview
	openapi  []byte
	opts     Options
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// openapiDoc — JSON OpenAPI документа, отдаваемый по /api/v1/openapi.json.
func NewAPIHandler(
	health *HealthHandler,
	products ProductService,
	assetReader AssetReader,
	qr QRPreview,
	openapiDoc []byte,
	opts Options,
	logger *slog.Logger,
) *APIHandler {
	if opts.MaxImageSize <= 0 {
		opts.MaxImageSize = 10 << 20
	}
	opts.PublicOrigin = strings.TrimRight(opts.PublicOrigin, "/")

	return &APIHandler{
		health:   health,
		products: products,
		assets:   assetReader,
		qr:       qr,
		openapi:  openapiDoc,
		opts:     opts,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// GetOpenAPI — GET /api/v1/openapi.json.
func (h *APIHandler) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapi)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// requestOrigin возвращает origin для ссылок в QR-коде.
// Приоритет: PM_PUBLIC_ORIGIN, затем X-Forwarded-Proto/X-Forwarded-Host
// (только при TrustForwardedHeaders), затем TLS и Host запроса.
func (h *APIHandler) requestOrigin(r *http.Request) string {
	if h.opts.PublicOrigin != "" {
		return h.opts.PublicOrigin
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host

	if h.opts.TrustForwardedHeaders {
		if proto := firstHeaderValue(r, "X-Forwarded-Proto"); proto == "http" || proto == "https" {
			scheme = proto
		}
		if fwd := firstHeaderValue(r, "X-Forwarded-Host"); fwd != "" {
			host = fwd
		}
	}
	if host == "" {
		return ""
	}
	return scheme + "://" + host
}

// firstHeaderValue возвращает первое значение заголовка со списком через запятую.
func firstHeaderValue(r *http.Request, name string) string {
	v, _, _ := strings.Cut(r.Header.Get(name), ",")
	return strings.ToLower(strings.TrimSpace(v))
}
