package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"studium/internal/database"
	"studium/internal/model"
	"studium/internal/repository"
	"studium/internal/storage"
)

// DefaultFileName is used when an upload carries no file name.
const DefaultFileName = "uploaded.pdf"

// sniffLength is how many leading bytes are inspected for magic numbers.
const sniffLength = 3072

var (
	ErrNotFound               = errors.New("source not found")
	ErrFileMissing            = errors.New("source file not found")
	ErrOwnerRequired          = errors.New("owner is required")
	ErrTitleRequired          = errors.New("title is required")
	ErrTitleTooLong           = errors.New("title is too long")
	ErrFileRequired           = errors.New("file is required")
	ErrFileNameTooLong        = errors.New("file name is too long")
	ErrUnsupportedContentType = errors.New("only PDF files are supported")
	ErrContentMismatch        = errors.New("file content is not a PDF")
)

// pdfContentTypes are the declared upload types accepted as PDF.
var pdfContentTypes = map[string]bool{
	"application/pdf":   true,
	"application/x-pdf": true,
}

// CreateSourceInput carries one upload to be stored as a Source.
type CreateSourceInput struct {
	OwnerID     string
	Title       string
	Description *string
	FileName    string
	ContentType string
	// Size is the declared payload length, or -1 when unknown.
	Size int64
	Body io.Reader
}

// SourceFile is the stored payload of a Source. Exactly one of Body or RedirectURL is set.
type SourceFile struct {
	Source      *model.Source
	Body        io.ReadCloser
	Info        storage.ObjectInfo
	RedirectURL string
}

// SourceService defines the use cases for uploaded sources.
type SourceService interface {
	// List returns the owner's sources, newest first.
	List(ctx context.Context, ownerID string) ([]model.Source, error)

	// Get returns one source. Sources of other owners are reported as ErrNotFound.
	Get(ctx context.Context, ownerID string, id uuid.UUID) (*model.Source, error)

	// Create stores the uploaded file, then records it. The file is deleted again
	// if the record is not saved.
	Create(ctx context.Context, in CreateSourceInput) (*model.Source, error)

	// Open returns the stored file of a source, or a presigned URL when the backend offers one.
	Open(ctx context.Context, ownerID string, id uuid.UUID) (*SourceFile, error)
}

// Options tune a SourceService.
type Options struct {
	// UploadDir is the storage directory (or key prefix) uploads are written under.
	UploadDir string
	// SniffContent enables magic-byte verification of uploads.
	SniffContent bool
	// PresignExpiry is the lifetime of download URLs. Zero disables presigning.
	PresignExpiry time.Duration
	Logger        *slog.Logger
}

type sourceService struct {
	store storage.Storage
	repo  repository.SourceRepository
	opts  Options
	log   *slog.Logger
}

// NewSourceService constructs a new SourceService.
func NewSourceService(store storage.Storage, repo repository.SourceRepository, opts Options) SourceService {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &sourceService{store: store, repo: repo, opts: opts, log: log}
}

func (s *sourceService) List(ctx context.Context, ownerID string) ([]model.Source, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	items, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	if items == nil {
		items = []model.Source{}
	}
	return items, nil
}

func (s *sourceService) Get(ctx context.Context, ownerID string, id uuid.UUID) (*model.Source, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	src, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find source: %w", err)
	}
	if src.OwnerUserID == nil || *src.OwnerUserID != ownerID {
		return nil, ErrNotFound
	}
	return src, nil
}

func (s *sourceService) Create(ctx context.Context, in CreateSourceInput) (*model.Source, error) {
	if in.OwnerID == "" {
		return nil, ErrOwnerRequired
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, ErrTitleRequired
	}
	if utf8.RuneCountInString(in.Title) > model.MaxTitleLength {
		return nil, ErrTitleTooLong
	}
	if in.Body == nil {
		return nil, ErrFileRequired
	}
	name := in.FileName
	if name == "" {
		name = DefaultFileName
	}
	if utf8.RuneCountInString(name) > model.MaxFileNameLength {
		return nil, ErrFileNameTooLong
	}
	contentType := in.ContentType
	if !pdfContentTypes[contentType] {
		return nil, ErrUnsupportedContentType
	}

	body := in.Body
	if s.opts.SniffContent {
		var err error
		if body, err = sniffPDF(body); err != nil {
			return nil, err
		}
	}

	info, err := storage.Persist(ctx, s.store, s.opts.UploadDir, name, body, in.Size, contentType)
	if err != nil {
		return nil, err
	}

	cleanup := func(ctx context.Context) {
		if err := s.store.Delete(ctx, info.Key); err != nil {
			s.log.Error("failed to delete orphaned upload",
				slog.String("file_path", info.Key),
				slog.String("error", err.Error()))
		}
	}
	registered := database.OnRollback(ctx, cleanup)

	owner := in.OwnerID
	stored, err := s.repo.Create(ctx, &model.Source{
		ID:               uuid.New(),
		Title:            in.Title,
		Description:      in.Description,
		OwnerUserID:      &owner,
		OriginalFileName: name,
		ContentType:      contentType,
		FilePath:         info.Key,
		FileSize:         info.Size,
	})
	if err != nil {
		if !registered {
			cleanup(context.WithoutCancel(ctx))
		}
		return nil, fmt.Errorf("save source: %w", err)
	}
	return stored, nil
}

func (s *sourceService) Open(ctx context.Context, ownerID string, id uuid.UUID) (*SourceFile, error) {
	src, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if s.opts.PresignExpiry > 0 {
		url, err := s.store.PresignGet(ctx, src.FilePath, s.opts.PresignExpiry)
		if err == nil {
			return &SourceFile{Source: src, RedirectURL: url}, nil
		}
		if !errors.Is(err, storage.ErrNotSupported) {
			return nil, fmt.Errorf("presign source file: %w", err)
		}
	}

	rc, info, err := s.store.Get(ctx, src.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrFileMissing
		}
		return nil, fmt.Errorf("open source file: %w", err)
	}
	if info.ContentType == "" {
		info.ContentType = src.ContentType
	}
	return &SourceFile{Source: src, Body: rc, Info: info}, nil
}

// sniffPDF checks the leading bytes of r and returns a reader yielding the full payload.
func sniffPDF(r io.Reader) (io.Reader, error) {
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if !mimetype.Detect(head).Is("application/pdf") {
		return nil, ErrContentMismatch
	}
	return io.MultiReader(bytes.NewReader(head), r), nil
}
