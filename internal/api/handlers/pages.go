// pages.go — HTML-страницы каталога.
// GET / — список товаров и форма создания, POST / — создание из формы,
// GET /product/{id} — страница товара, на которую ведёт QR-код.
package handlers

import (
	"bytes"
	"errors"
	"html/template"
	"log/slog"
	"mime"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/product-module/internal/api/errors"
	"github.com/bigkaa/goartstore/product-module/internal/domain/model"
	"github.com/bigkaa/goartstore/product-module/internal/qrcode"
	"github.com/bigkaa/goartstore/product-module/internal/service"
	"github.com/bigkaa/goartstore/product-module/internal/storage/assets"
	"github.com/bigkaa/goartstore/product-module/internal/ui"
)

// pageData — данные шаблонов страниц.
type pageData struct {
	Title  string
	Error  string
	Fields map[string]string
	Form   struct {
		Name        string
		Description string
	}
	Products   []*model.Product
	Product    *model.Product
	QRSource   template.URL
	PayloadURL string
}

// ListPage — GET /.
func (h *APIHandler) ListPage(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.errorPage(w, "Ошибка получения списка товаров", err)
		return
	}
	h.renderPage(w, http.StatusOK, "list.html", &pageData{Title: "Товары", Products: products})
}

// CreateFromPage — POST / из HTML-формы.
// Успех — 303 на страницу товара, ошибка валидации — форма с ошибками.
func (h *APIHandler) CreateFromPage(w http.ResponseWriter, r *http.Request) {
	data := &pageData{Title: "Товары"}

	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt != "multipart/form-data" {
		data.Error = "Форма должна отправляться как multipart/form-data"
		h.renderList(w, r, http.StatusUnsupportedMediaType, data)
		return
	}

	in, err := h.decodeMultipart(w, r)
	data.Form.Name = in.Name
	data.Form.Description = in.Description
	if err == nil {
		in.Origin = h.requestOrigin(r)
		var p *model.Product
		p, err = h.products.Create(assets.WithBaseURL(r.Context(), in.Origin), in)
		if err == nil {
			http.Redirect(w, r, "/product/"+p.ID, http.StatusSeeOther)
			return
		}
	}

	var (
		se     *service.Error
		maxErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &maxErr), errors.Is(err, errImageTooLarge), service.KindOf(err) == service.KindTooLarge:
		data.Error = "Изображение слишком большое"
		h.renderList(w, r, http.StatusRequestEntityTooLarge, data)
	case errors.As(err, &se) && se.Kind == service.KindValidation:
		data.Error = "Проверьте поля формы"
		data.Fields = se.Fields
		h.renderList(w, r, http.StatusBadRequest, data)
	case errors.As(err, &se):
		h.errorPage(w, "Ошибка создания товара", err)
	default:
		data.Error = "Некорректная форма: " + err.Error()
		h.renderList(w, r, http.StatusBadRequest, data)
	}
}

// DetailPage — GET /product/{id}.
// Если у товара нет сохранённого QR-кода, он рендерится в data URI.
func (h *APIHandler) DetailPage(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.products.Get(r.Context(), id)
	if err != nil {
		h.errorPage(w, "Товар не найден", err)
		return
	}

	data := &pageData{
		Title:      p.Name,
		Product:    p,
		PayloadURL: qrcode.BuildPayloadURL(h.requestOrigin(r), p.ID),
	}
	if p.QRCode != "" {
		data.QRSource = template.URL(p.QRCode) //nolint:gosec // URL из хранилища ассетов
	} else {
		uri, err := h.qr.RenderDataURI(data.PayloadURL)
		if err != nil {
			h.errorPage(w, "Ошибка генерации QR-кода", &service.Error{Kind: service.KindEncoding, Message: "не удалось построить QR-код", Err: err})
			return
		}
		data.QRSource = template.URL(uri) //nolint:gosec // data URI собственного рендера
	}

	h.renderPage(w, http.StatusOK, "detail.html", data)
}

// renderList показывает список товаров вместе с формой и её ошибками.
func (h *APIHandler) renderList(w http.ResponseWriter, r *http.Request, status int, data *pageData) {
	if products, err := h.products.List(r.Context()); err == nil {
		data.Products = products
	}
	h.renderPage(w, status, "list.html", data)
}

// errorPage показывает страницу ошибки со статусом по категории ошибки.
func (h *APIHandler) errorPage(w http.ResponseWriter, title string, err error) {
	status, _ := apierrors.StatusFor(service.KindOf(err))
	message := "Внутренняя ошибка сервера"
	var se *service.Error
	if errors.As(err, &se) {
		message = se.Message
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(title, slog.String("error", err.Error()))
	}
	h.renderPage(w, status, "error.html", &pageData{Title: title, Error: message})
}

// renderPage исполняет шаблон в буфер и записывает ответ целиком.
func (h *APIHandler) renderPage(w http.ResponseWriter, status int, name string, data *pageData) {
	var buf bytes.Buffer
	if err := ui.Templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.Error("Ошибка рендеринга страницы",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
