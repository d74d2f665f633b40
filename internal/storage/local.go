package storage

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"

	"stageportal/internal/common"
)

const (
	DefaultMaxSize = 5 << 20
	pdfMediaType   = "application/pdf"
)

var (
	pdfMagic  = []byte("%PDF-")
	refFormat = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.pdf$`)
)

// Upload is a document received from a client.
type Upload struct {
	Content     io.Reader
	ContentType string
	// Size is the declared length, zero when unknown.
	Size int64
}

// LocalStore keeps documents as flat files under a single directory.
type LocalStore struct {
	dir     string
	maxSize int64
}

func NewLocalStore(dir string, maxSize int64) (*LocalStore, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, maxSize: maxSize}, nil
}

func (s *LocalStore) MaxSize() int64 {
	return s.maxSize
}

// CheckType validates the declared media type without reading the content.
func CheckType(contentType string) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != pdfMediaType {
		return common.NewError(common.CodeUnsupportedDocument, "only PDF documents are accepted", err)
	}
	return nil
}

// Check validates an upload without consuming it: declared type, declared
// size and, for seekable content, the PDF signature.
func (s *LocalStore) Check(upload Upload) error {
	if upload.Content == nil {
		return common.NewError(common.CodeValidation, "document is required", nil)
	}
	if err := CheckType(upload.ContentType); err != nil {
		return err
	}
	if upload.Size > s.maxSize {
		return common.NewError(common.CodePayloadTooLarge, fmt.Sprintf("document exceeds %d bytes", s.maxSize), nil)
	}
	seeker, ok := upload.Content.(io.ReadSeeker)
	if !ok {
		return nil
	}
	head := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(seeker, head)
	if _, seekErr := seeker.Seek(0, io.SeekStart); seekErr != nil {
		return common.NewError(common.CodeInternal, "failed to read document", seekErr)
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return common.NewError(common.CodeInternal, "failed to read document", err)
	}
	if !bytes.Equal(head[:n], pdfMagic) {
		return common.NewError(common.CodeUnsupportedDocument, "document is not a valid PDF", nil)
	}
	return nil
}

// Store validates and persists an upload and returns its opaque reference.
func (s *LocalStore) Store(ctx context.Context, upload Upload) (string, error) {
	if upload.Content == nil {
		return "", common.NewError(common.CodeValidation, "document is required", nil)
	}
	if err := CheckType(upload.ContentType); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	reader := bufio.NewReader(upload.Content)
	head, err := reader.Peek(len(pdfMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return "", common.NewError(common.CodeInternal, "failed to read document", err)
	}
	if !bytes.Equal(head, pdfMagic) {
		return "", common.NewError(common.CodeUnsupportedDocument, "document is not a valid PDF", nil)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", common.NewError(common.CodeInternal, "failed to store document", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, io.LimitReader(reader, s.maxSize+1))
	closeErr := tmp.Close()
	if err != nil {
		return "", common.NewError(common.CodeInternal, "failed to store document", err)
	}
	if closeErr != nil {
		return "", common.NewError(common.CodeInternal, "failed to store document", closeErr)
	}
	if written > s.maxSize {
		return "", common.NewError(common.CodePayloadTooLarge, fmt.Sprintf("document exceeds %d bytes", s.maxSize), nil)
	}

	ref := uuid.NewString() + ".pdf"
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, ref)); err != nil {
		return "", common.NewError(common.CodeInternal, "failed to store document", err)
	}
	return ref, nil
}

func (s *LocalStore) Retrieve(ctx context.Context, ref string) ([]byte, error) {
	path, err := s.Path(ref)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.NewError(common.CodeNotFound, "document not found", err)
		}
		return nil, common.NewError(common.CodeInternal, "failed to read document", err)
	}
	return data, nil
}

// Path resolves a reference to its on-disk location.
func (s *LocalStore) Path(ref string) (string, error) {
	if !ValidRef(ref) {
		return "", common.NewError(common.CodeNotFound, "document not found", nil)
	}
	return filepath.Join(s.dir, ref), nil
}

func ValidRef(ref string) bool {
	return refFormat.MatchString(ref)
}
