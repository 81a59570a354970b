// Пакет idgen — генерация идентификаторов товаров.
package idgen

import "github.com/google/uuid"

// Generator выдаёт уникальные идентификаторы товаров.
type Generator interface {
	Generate() string
}

// UUIDGenerator — генератор на основе UUID v4.
type UUIDGenerator struct{}

// Generate возвращает новый UUID v4 в канонической строковой форме.
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}
