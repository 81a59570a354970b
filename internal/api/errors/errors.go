// Пакет errors — конструкторы стандартных ошибок Product Module.
// Единый формат: {"error": {"code": "...", "message": "...", "fields": {...}}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bigkaa/goartstore/product-module/internal/service"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError      = "VALIDATION_ERROR"
	CodeMalformedDataURI     = "MALFORMED_DATA_URI"
	CodeNotFound             = "NOT_FOUND"
	CodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	CodeConflict             = "CONFLICT"
	CodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	CodeEncodingError        = "ENCODING_ERROR"
	CodeMalformedRow         = "MALFORMED_ROW"
	CodeStorageError         = "STORAGE_ERROR"
	CodeInternalError        = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	WriteErrorWithFields(w, statusCode, code, message, nil)
}

// WriteErrorWithFields — WriteError с ошибками по полям формы.
func WriteErrorWithFields(w http.ResponseWriter, statusCode int, code, message string, fields map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
			Fields:  fields,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// MethodNotAllowed — 405 метод не поддерживается маршрутом.
func MethodNotAllowed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, message)
}

// PayloadTooLarge — 413 тело запроса превышает лимит.
func PayloadTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, message)
}

// UnsupportedMediaType — 415 неподдерживаемый Content-Type.
func UnsupportedMediaType(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnsupportedMediaType, CodeUnsupportedMediaType, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// FromService записывает ошибку сервисного слоя с HTTP-статусом по её категории.
// Ошибки вне сервисного слоя — 500 INTERNAL_ERROR.
func FromService(w http.ResponseWriter, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		InternalError(w, "Внутренняя ошибка сервера")
		return
	}

	status, code := StatusFor(se.Kind)
	WriteErrorWithFields(w, status, code, se.Message, se.Fields)
}

// StatusFor возвращает HTTP-статус и код ответа для категории ошибки.
func StatusFor(kind service.ErrorKind) (int, string) {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest, CodeValidationError
	case service.KindMalformedDataURI:
		return http.StatusBadRequest, CodeMalformedDataURI
	case service.KindNotFound:
		return http.StatusNotFound, CodeNotFound
	case service.KindConstraint:
		return http.StatusConflict, CodeConflict
	case service.KindTooLarge:
		return http.StatusRequestEntityTooLarge, CodePayloadTooLarge
	case service.KindEncoding:
		return http.StatusInternalServerError, CodeEncodingError
	case service.KindMalformedRow:
		return http.StatusInternalServerError, CodeMalformedRow
	case service.KindStorage:
		return http.StatusBadGateway, CodeStorageError
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}
