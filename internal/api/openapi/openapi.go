// Пакет openapi — встроенный OpenAPI контракт Product Module.
// Документ загружается и валидируется kin-openapi при старте сервиса
// и отдаётся по GET /api/v1/openapi.json.
package openapi

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.json
var rawSpec []byte

// Document — загруженный и проверенный OpenAPI документ.
type Document struct {
	// Spec — разобранный документ
	Spec *openapi3.T
	// Raw — исходный JSON для отдачи клиентам
	Raw []byte
}

// Load разбирает встроенный документ и проверяет его по спецификации OpenAPI 3.
func Load(ctx context.Context) (*Document, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	spec, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора OpenAPI документа: %w", err)
	}
	if err := spec.Validate(ctx); err != nil {
		return nil, fmt.Errorf("невалидный OpenAPI документ: %w", err)
	}

	return &Document{Spec: spec, Raw: rawSpec}, nil
}

// Version возвращает версию API из info.version.
func (d *Document) Version() string {
	if d.Spec.Info == nil {
		return ""
	}
	return d.Spec.Info.Version
}
