package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"stageportal/internal/common"
	"stageportal/internal/storage"
)

const multipartMemory = 8 << 20

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return common.NewError(common.CodePayloadTooLarge, "request body too large", err)
		}
		if errors.Is(err, io.EOF) {
			return common.NewError(common.CodeValidation, "request body is required", err)
		}
		return common.NewError(common.CodeValidation, "invalid json body", err)
	}
	return nil
}

func errUnauthorized() error {
	return common.NewError(common.CodeUnauthorized, "authentication required", nil)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseMultipart returns a cleanup func that removes parts spilled to disk.
// The server only does that for its own request value, not for the copies
// the middleware chain hands down.
func parseMultipart(r *http.Request) (func(), error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, common.NewError(common.CodePayloadTooLarge, "request body too large", err)
		}
		return nil, common.NewError(common.CodeValidation, "invalid multipart form", err)
	}
	form := r.MultipartForm
	return func() {
		if form != nil {
			_ = form.RemoveAll()
		}
	}, nil
}

// formUpload returns nil when the part is absent. The caller closes the
// returned file once the upload has been stored.
func formUpload(r *http.Request, field string) (*storage.Upload, io.Closer, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, nil
		}
		return nil, nil, common.NewError(common.CodeValidation, "invalid "+field+" upload", err)
	}
	return uploadFromPart(file, header), file, nil
}

func uploadFromPart(file multipart.File, header *multipart.FileHeader) *storage.Upload {
	return &storage.Upload{
		Content:     file,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}
}

func closeAll(closers ...io.Closer) {
	for _, c := range closers {
		if c != nil {
			_ = c.Close()
		}
	}
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewValidationError("invalid id", map[string]string{"id": "must be a positive integer"})
	}
	return id, nil
}

// queryInt reads an optional positive integer query parameter; absent yields 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, common.NewValidationError("invalid query", map[string]string{name: "must be a positive integer"})
	}
	return value, nil
}

func documentURL(ref string) string {
	if ref == "" {
		return ""
	}
	return "/uploads/" + ref
}
