package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/UkralStul/social-feed-service/internal/media"
	"github.com/dustin/go-humanize"
)

const multipartMemory = 8 << 20

func isMultipart(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "multipart/form-data"
}

// parseMultipart ограничивает тело maxUpload байтами и разбирает форму.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.InvalidInput("file is too large, limit is " + humanize.Bytes(uint64(h.maxUpload)))
		}
		return domain.InvalidInput("malformed multipart form")
	}
	return nil
}

// formFile читает файл поля field. Отсутствующий файл - не ошибка.
func formFile(r *http.Request, field string) (*media.Upload, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, domain.InvalidInput("malformed " + field + " file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	ct := hdr.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return &media.Upload{Filename: hdr.Filename, ContentType: ct, Data: data}, nil
}

// formList собирает значения поля, заданные повтором, через [] или через запятую.
func formList(r *http.Request, field string) []string {
	var out []string
	for _, key := range []string{field, field + "[]"} {
		for _, v := range r.MultipartForm.Value[key] {
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		}
	}
	return out
}

func formValue(r *http.Request, field string) *string {
	vs, ok := r.MultipartForm.Value[field]
	if !ok || len(vs) == 0 {
		return nil
	}
	return &vs[0]
}
