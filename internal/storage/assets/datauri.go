package assets

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedDataURI — строка не является data URI вида data:<mime>;base64,<payload>.
var ErrMalformedDataURI = errors.New("некорректный data URI")

// DecodeDataURI разбирает data:<mime>[;параметры];base64,<payload>
// и возвращает декодированные байты и MIME-тип.
// MIME-тип может быть пустым (data:;base64,...).
func DecodeDataURI(dataURI string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(dataURI, "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: отсутствует префикс data:", ErrMalformedDataURI)
	}

	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: отсутствует разделитель ','", ErrMalformedDataURI)
	}

	params := strings.Split(header, ";")
	if len(params) < 2 || !strings.EqualFold(params[len(params)-1], "base64") {
		return nil, "", fmt.Errorf("%w: поддерживается только base64", ErrMalformedDataURI)
	}

	mimeType := strings.ToLower(strings.TrimSpace(params[0]))
	if mimeType != "" && !strings.Contains(mimeType, "/") {
		return nil, "", fmt.Errorf("%w: недопустимый MIME-тип %q", ErrMalformedDataURI, params[0])
	}

	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, "", fmt.Errorf("%w: пустые данные", ErrMalformedDataURI)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Браузеры и часть клиентов опускают padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
		}
	}

	return data, mimeType, nil
}
