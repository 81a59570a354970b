// errors.go — типизированные ошибки сервисного слоя.
package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bigkaa/goartstore/product-module/internal/qrcode"
	"github.com/bigkaa/goartstore/product-module/internal/repository"
	"github.com/bigkaa/goartstore/product-module/internal/storage/assets"
)

// ErrorKind — категория ошибки сервисного слоя.
type ErrorKind string

const (
	// KindValidation — некорректные входные данные, I/O не выполнялся
	KindValidation ErrorKind = "VALIDATION_ERROR"
	// KindEncoding — не удалось построить QR-код
	KindEncoding ErrorKind = "ENCODING_ERROR"
	// KindMalformedDataURI — изображение передано некорректным data URI
	KindMalformedDataURI ErrorKind = "MALFORMED_DATA_URI"
	// KindStorage — ошибка хранилища ассетов или базы данных
	KindStorage ErrorKind = "STORAGE_ERROR"
	// KindNotFound — товар не найден
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindConstraint — нарушение ограничения (дубликат id)
	KindConstraint ErrorKind = "CONSTRAINT_ERROR"
	// KindMalformedRow — строка БД не соответствует схеме
	KindMalformedRow ErrorKind = "MALFORMED_ROW"
	// KindTooLarge — изображение превышает допустимый размер
	KindTooLarge ErrorKind = "PAYLOAD_TOO_LARGE"
)

// Error — ошибка сервисного слоя с категорией.
type Error struct {
	Kind    ErrorKind
	Message string
	// Fields — ошибки валидации по полям (только для KindValidation)
	Fields map[string]string
	// Err — исходная ошибка нижнего слоя
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "; %s: %s", name, e.Fields[name])
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf возвращает категорию ошибки или "" для ошибок вне сервисного слоя.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// classify оборачивает ошибку нижнего слоя в *Error.
func classify(message string, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}

	kind := KindStorage
	switch {
	case errors.Is(err, repository.ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, repository.ErrConflict):
		kind = KindConstraint
	case errors.Is(err, repository.ErrMalformedRow):
		kind = KindMalformedRow
	case errors.Is(err, assets.ErrMalformedDataURI):
		kind = KindMalformedDataURI
	case errors.Is(err, qrcode.ErrEncoding):
		kind = KindEncoding
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// validationError создаёт ошибку валидации по полям.
func validationError(fields map[string]string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "некорректные данные товара",
		Fields:  fields,
	}
}
