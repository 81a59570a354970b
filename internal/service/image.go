// image.go — определение типа изображения товара по содержимому.
package service

import (
	"fmt"
	"mime"
	"strings"

	"github.com/h2non/filetype"
)

// detectImage определяет MIME-тип и расширение ключа изображения по сигнатуре.
// declared — MIME-тип, заявленный клиентом (data URI или часть multipart),
// ext — расширение имени файла. Тип ассета всегда берётся из сигнатуры.
// Нераспознанное содержимое (включая SVG и HTML) отклоняется.
// При ошибке возвращается описание для поля image.
func detectImage(data []byte, declared, ext string) (contentType, extension, problem string) {
	if mt := mediaType(declared); mt != "" && mt != "application/octet-stream" && !strings.HasPrefix(mt, "image/") {
		return "", "", fmt.Sprintf("тип %s не является изображением", mt)
	}

	kind, _ := filetype.Match(data)
	if kind == filetype.Unknown {
		return "", "", "формат изображения не распознан"
	}
	if kind.MIME.Type != "image" {
		return "", "", fmt.Sprintf("файл типа %s не является изображением", kind.MIME.Value)
	}

	return kind.MIME.Value, imageExtension(ext, kind.MIME.Value, kind.Extension), ""
}

// imageExtension нормализует расширение ключа изображения.
// Расширение клиента принимается, только если соответствует contentType;
// иначе используется fallback (расширение распознанного формата).
func imageExtension(ext, contentType, fallback string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if validExtension(ext) && mediaType(mime.TypeByExtension("."+ext)) == mediaType(contentType) {
		return ext
	}
	if validExtension(fallback) {
		return fallback
	}
	return defaultImageExtension
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func validExtension(ext string) bool {
	if ext == "" || len(ext) > 10 {
		return false
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
