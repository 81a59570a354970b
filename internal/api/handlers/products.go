// products.go — обработчики /api/v1/products endpoints.
// Создание (multipart или JSON с data URI), список, чтение, обновление, удаление.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	apierrors "github.com/bigkaa/goartstore/product-module/internal/api/errors"
	"github.com/bigkaa/goartstore/product-module/internal/domain/model"
	"github.com/bigkaa/goartstore/product-module/internal/service"
	"github.com/bigkaa/goartstore/product-module/internal/storage/assets"
)

// multipartOverhead — запас на поля формы и границы multipart сверх изображения.
const multipartOverhead = 1 << 20

// errImageTooLarge — изображение превышает MaxImageSize.
var errImageTooLarge = errors.New("изображение превышает допустимый размер")

// productResponse — JSON-представление товара.
type productResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	QRCode      string `json:"qrCode"`
	CreatedAt   string `json:"createdAt"`
}

// productListResponse — ответ GET /api/v1/products.
type productListResponse struct {
	Items []productResponse `json:"items"`
	Total int               `json:"total"`
}

// createProductRequest — JSON-тело создания товара.
type createProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Image — data:<mime>;base64,<payload>
	Image string `json:"image"`
}

// updateProductRequest — JSON-тело частичного обновления.
type updateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Image       *string `json:"image"`
	QRCode      *string `json:"qrCode"`
}

// ListProducts — GET /api/v1/products.
// Возвращает все товары, новые первыми.
func (h *APIHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.serviceError(w, "Ошибка получения списка товаров", err)
		return
	}

	items := make([]productResponse, 0, len(products))
	for _, p := range products {
		items = append(items, mapProduct(p))
	}
	writeJSON(w, http.StatusOK, productListResponse{Items: items, Total: len(items)})
}

// CreateProduct — POST /api/v1/products.
// multipart/form-data (name, description, image) или application/json
// с изображением в data URI.
func (h *APIHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}

	ctx := assets.WithBaseURL(r.Context(), in.Origin)
	p, err := h.products.Create(ctx, in)
	if err != nil {
		h.serviceError(w, "Ошибка создания товара", err)
		return
	}

	w.Header().Set("Location", "/api/v1/products/"+p.ID)
	writeJSON(w, http.StatusCreated, mapProduct(p))
}

// GetProduct — GET /api/v1/products/{id}.
func (h *APIHandler) GetProduct(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		h.serviceError(w, "Ошибка получения товара", err)
		return
	}
	writeJSON(w, http.StatusOK, mapProduct(p))
}

// UpdateProduct — PATCH /api/v1/products/{id}.
// Принимает любое подмножество name, description, image, qrCode.
// image и qrCode заменяют ссылки на ассеты, содержимое ассетов не меняется.
func (h *APIHandler) UpdateProduct(w http.ResponseWriter, r *http.Request, id string) {
	var req updateProductRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, multipartOverhead))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	p, err := h.products.Update(r.Context(), id, service.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		QRCode:      req.QRCode,
	})
	if err != nil {
		h.serviceError(w, "Ошибка обновления товара", err)
		return
	}
	writeJSON(w, http.StatusOK, mapProduct(p))
}

// DeleteProduct — DELETE /api/v1/products/{id}.
// Удаляет строку товара; ассеты остаются в хранилище.
func (h *APIHandler) DeleteProduct(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.products.Delete(r.Context(), id); err != nil {
		h.serviceError(w, "Ошибка удаления товара", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeCreate разбирает тело запроса создания по Content-Type.
// При ошибке ответ уже записан и возвращается false.
func (h *APIHandler) decodeCreate(w http.ResponseWriter, r *http.Request) (service.CreateInput, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		in  service.CreateInput
		err error
	)
	switch mediaType {
	case "multipart/form-data":
		in, err = h.decodeMultipart(w, r)
	case "application/json":
		in, err = h.decodeJSON(w, r)
	default:
		apierrors.UnsupportedMediaType(w, "Ожидается multipart/form-data или application/json")
		return in, false
	}

	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr), errors.Is(err, errImageTooLarge):
			apierrors.PayloadTooLarge(w, fmt.Sprintf("Изображение больше %d байт", h.opts.MaxImageSize))
		default:
			var se *service.Error
			if errors.As(err, &se) {
				apierrors.FromService(w, se)
			} else {
				apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
			}
		}
		return in, false
	}

	in.Origin = h.requestOrigin(r)
	return in, true
}

// decodeMultipart разбирает форму name, description, image (файл).
// Content-Type части и расширение имени файла передаются в сервис,
// где формат проверяется по содержимому.
func (h *APIHandler) decodeMultipart(w http.ResponseWriter, r *http.Request) (service.CreateInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxImageSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.opts.MaxImageSize); err != nil {
		return service.CreateInput{}, err
	}

	in := service.CreateInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		// Отсутствие изображения — ошибка валидации в сервисе
		return in, nil
	}
	if err != nil {
		return in, err
	}
	defer file.Close()

	data, err := readImage(file, h.opts.MaxImageSize)
	if err != nil {
		return in, err
	}

	in.Image = data
	in.ImageContentType = header.Header.Get("Content-Type")
	in.ImageExtension = strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	return in, nil
}

// decodeJSON разбирает {"name","description","image":"data:..."}.
func (h *APIHandler) decodeJSON(w http.ResponseWriter, r *http.Request) (service.CreateInput, error) {
	// base64 увеличивает размер в 4/3 раза
	limit := h.opts.MaxImageSize/3*4 + multipartOverhead
	var req createProductRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(&req); err != nil {
		return service.CreateInput{}, err
	}

	return service.CreateInput{
		Name:         req.Name,
		Description:  req.Description,
		ImageDataURI: req.Image,
	}, nil
}

// readImage читает файл не больше limit байт.
func readImage(file multipart.File, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errImageTooLarge
	}
	return data, nil
}

// serviceError логирует серверные ошибки и записывает ответ.
func (h *APIHandler) serviceError(w http.ResponseWriter, message string, err error) {
	status, _ := apierrors.StatusFor(service.KindOf(err))
	if status >= http.StatusInternalServerError || service.KindOf(err) == "" {
		h.logger.Error(message, slog.String("error", err.Error()))
	}
	apierrors.FromService(w, err)
}

// mapProduct преобразует доменную модель в JSON-ответ.
func mapProduct(p *model.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Image:       p.Image,
		QRCode:      p.QRCode,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
