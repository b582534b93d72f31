// Package media хранит бинарные вложения во внешнем объектном хранилище.
package media

import (
	"context"
	"path"
	"strings"

	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/google/uuid"
)

// Store - объектное хранилище. Put возвращает публичный URL объекта.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL восстанавливает ключ объекта по его публичному URL.
	KeyFromURL(url string) (string, bool)
}

// Upload - файл, полученный от клиента.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

const (
	PrefixPosts   = "posts"
	PrefixAvatars = "avatars"
)

var (
	imageTypes = map[string]string{
		"image/jpeg": "jpg",
		"image/png":  "png",
		"image/gif":  "gif",
		"image/webp": "webp",
	}
	videoTypes = map[string]string{
		"video/mp4":       "mp4",
		"video/webm":      "webm",
		"video/quicktime": "mov",
	}
)

// Kind определяет тип медиа по MIME. ok == false для неподдерживаемых типов.
func Kind(contentType string) (domain.MediaKind, bool) {
	ct := normalize(contentType)
	if _, ok := imageTypes[ct]; ok {
		return domain.MediaImage, true
	}
	if _, ok := videoTypes[ct]; ok {
		return domain.MediaVideo, true
	}
	return "", false
}

// IsImage сообщает, поддерживается ли MIME как изображение.
func IsImage(contentType string) bool {
	_, ok := imageTypes[normalize(contentType)]
	return ok
}

// NewKey генерирует уникальный ключ объекта: prefix/uuid.ext.
// Расширение берется из имени файла, если оно известно для этого MIME, иначе из MIME.
func NewKey(prefix, contentType, filename string) string {
	ct := normalize(contentType)
	ext, ok := imageTypes[ct]
	if !ok {
		ext = videoTypes[ct]
	}
	if fromName := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), "."); fromName != "" && knownExt(fromName) {
		ext = fromName
	}
	if ext == "" {
		ext = "bin"
	}
	return prefix + "/" + uuid.NewString() + "." + ext
}

func knownExt(ext string) bool {
	if ext == "jpeg" {
		return true
	}
	for _, m := range []map[string]string{imageTypes, videoTypes} {
		for _, e := range m {
			if e == ext {
				return true
			}
		}
	}
	return false
}

func normalize(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}
