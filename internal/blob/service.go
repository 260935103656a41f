package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/iamalexhere/server-pokemon-tcg-deck-builder/internal/db"
)

type Kind string

const (
	KindProfilePicture Kind = "profile_picture"
)

var (
	ErrFileTooLarge   = errors.New("blob file too large")
	ErrInvalidKind    = errors.New("invalid blob kind")
	ErrDisallowedType = errors.New("disallowed blob mime type")
	ErrExecutableFile = errors.New("executable files are not allowed")
	ErrInvalidPath    = errors.New("invalid blob path")
)

type StoredBlob struct {
	ID          string
	Kind        Kind
	StoragePath string
	MimeType    string
	SizeBytes   int64
	CreatedAt   time.Time
}

// Service validates uploads and hands them to a storage backend.
type Service struct {
	backend        Backend
	maxUploadBytes int64
}

func NewService(backend Backend, maxUploadBytes int64) (*Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("blob backend is required")
	}
	if maxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be > 0")
	}

	return &Service{
		backend:        backend,
		maxUploadBytes: maxUploadBytes,
	}, nil
}

func (s *Service) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

func (s *Service) Save(ctx context.Context, kind Kind, src io.Reader) (*StoredBlob, error) {
	if !isValidKind(kind) {
		return nil, ErrInvalidKind
	}

	blobID, err := db.GenerateID("blb")
	if err != nil {
		return nil, fmt.Errorf("generating blob id: %w", err)
	}

	sniff := make([]byte, 512)
	sniffN, sniffErr := io.ReadFull(src, sniff)
	if sniffErr != nil && sniffErr != io.EOF && sniffErr != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("reading blob data: %w", sniffErr)
	}
	sniff = sniff[:sniffN]

	if isExecutableSignature(sniff) {
		return nil, ErrExecutableFile
	}

	mimeType := detectMimeType(sniff)
	if !isAllowedMimeType(kind, mimeType) {
		return nil, ErrDisallowedType
	}

	var buf bytes.Buffer
	fullReader := io.MultiReader(bytes.NewReader(sniff), src)
	written, err := io.Copy(&buf, io.LimitReader(fullReader, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading blob data: %w", err)
	}
	if written > s.maxUploadBytes {
		return nil, ErrFileTooLarge
	}

	relPath := blobRelativePath(kind, blobID)
	if err := s.backend.Put(ctx, relPath, &buf, written, mimeType); err != nil {
		return nil, fmt.Errorf("storing blob: %w", err)
	}

	return &StoredBlob{
		ID:          blobID,
		Kind:        kind,
		StoragePath: relPath,
		MimeType:    mimeType,
		SizeBytes:   written,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (s *Service) Open(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	return s.backend.Open(ctx, storagePath)
}

func (s *Service) Delete(ctx context.Context, storagePath string) error {
	return s.backend.Delete(ctx, storagePath)
}

func blobRelativePath(kind Kind, blobID string) string {
	return path.Join(string(kind), blobPathPrefix(blobID), blobID)
}

// blobPathPrefix fans blobs out over directories by the tail of their id;
// the head is a timestamp and would put every recent blob in one directory.
func blobPathPrefix(blobID string) string {
	randomPart := strings.TrimPrefix(blobID, "blb_")
	if len(randomPart) < 2 {
		return "xx"
	}
	return randomPart[len(randomPart)-2:]
}

func detectMimeType(sniff []byte) string {
	if len(sniff) == 0 {
		return "application/octet-stream"
	}

	return trimMimeParams(http.DetectContentType(sniff))
}

func isExecutableSignature(sniff []byte) bool {
	if len(sniff) < 2 {
		return false
	}

	if sniff[0] == 'M' && sniff[1] == 'Z' {
		return true // PE/COFF (Windows)
	}
	if len(sniff) >= 4 {
		if bytes.Equal(sniff[:4], []byte{0x7f, 'E', 'L', 'F'}) {
			return true // ELF
		}

		machoMagics := [][]byte{
			{0xfe, 0xed, 0xfa, 0xce},
			{0xce, 0xfa, 0xed, 0xfe},
			{0xfe, 0xed, 0xfa, 0xcf},
			{0xcf, 0xfa, 0xed, 0xfe},
			{0xca, 0xfe, 0xba, 0xbe},
			{0xbe, 0xba, 0xfe, 0xca},
		}
		for _, magic := range machoMagics {
			if bytes.Equal(sniff[:4], magic) {
				return true
			}
		}
	}

	if sniff[0] == '#' && sniff[1] == '!' {
		return true // shebang scripts
	}

	return false
}

func trimMimeParams(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}

func isValidKind(kind Kind) bool {
	return kind == KindProfilePicture
}

// isAllowedMimeType accepts raster images only. SVG is refused since it can
// carry script.
func isAllowedMimeType(kind Kind, mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" || mimeType == "image/svg+xml" {
		return false
	}

	switch kind {
	case KindProfilePicture:
		return strings.HasPrefix(mimeType, "image/")
	default:
		return false
	}
}
