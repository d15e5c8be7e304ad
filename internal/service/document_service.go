package service

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/errs"
	"github.com/CeliaPro/ysm2-sub001/internal/repository"
	"github.com/CeliaPro/ysm2-sub001/pkg/storage"
)

var errStorageDisabled = errs.E(errs.Unavailable, "file storage is not configured")

type DocumentService struct {
	repo     repository.DocumentRepository
	projects repository.ProjectRepository
	store    storage.ObjectStore
	recorder *ActivityRecorder
	logger   *zap.Logger
	now      clock
}

type DocumentRequest struct {
	Title       string     `json:"title" validate:"required,max=300"`
	Description string     `json:"description" validate:"max=5000"`
	ProjectID   *uuid.UUID `json:"project_id"`
	StorageKey  *string    `json:"storage_key"`
	ContentType *string    `json:"content_type"`
	SizeBytes   int64      `json:"size_bytes" validate:"gte=0"`
}

type UploadRequest struct {
	FileName    string `json:"file_name" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required,max=255"`
}

// NewDocumentService wires documents to object storage. store may be nil,
// in which case presigned URLs are Unavailable.
func NewDocumentService(
	repo repository.DocumentRepository,
	projects repository.ProjectRepository,
	store storage.ObjectStore,
	recorder *ActivityRecorder,
	logger *zap.Logger,
) *DocumentService {
	return &DocumentService{repo: repo, projects: projects, store: store, recorder: recorder, logger: logger, now: utcNow}
}

// UploadURL presigns a PUT under the caller's own upload prefix.
func (s *DocumentService) UploadURL(ctx context.Context, p domain.Principal, req UploadRequest) (*storage.PresignedURL, error) {
	if s.store == nil {
		return nil, errStorageDisabled
	}
	key := uploadPrefix(p.ID) + uuid.NewString() + "-" + sanitizeFileName(req.FileName)
	return s.store.PresignUpload(ctx, key, req.ContentType)
}

func (s *DocumentService) Create(ctx context.Context, p domain.Principal, req DocumentRequest, rc domain.RequestContext) (*domain.Document, error) {
	if err := s.checkProject(ctx, p, req.ProjectID); err != nil {
		s.recorder.Failure(ctx, p.ID, domain.ActionCreateDocument, "no access to target project", rc)
		return nil, err
	}
	if req.StorageKey != nil && !strings.HasPrefix(*req.StorageKey, uploadPrefix(p.ID)) {
		s.recorder.Failure(ctx, p.ID, domain.ActionCreateDocument, "storage key outside upload prefix", rc)
		return nil, errs.E(errs.Forbidden, "storage key does not belong to you")
	}

	now := s.now()
	doc := &domain.Document{
		ID:          uuid.New(),
		ProjectID:   req.ProjectID,
		OwnerID:     p.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		StorageKey:  req.StorageKey,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		Status:      domain.ResourceActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.recorder.Success(ctx, p.ID, domain.ActionCreateDocument, "created document "+doc.Title, rc)
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, p domain.Principal, filter domain.DocumentFilter) ([]*domain.Document, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, viewerOf(p), filter)
}

// Get returns a document p can read. Unreadable documents are NotFound.
func (s *DocumentService) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canRead(ctx, p, doc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.E(errs.NotFound, "document not found")
	}
	return doc, nil
}

func (s *DocumentService) Update(ctx context.Context, p domain.Principal, id uuid.UUID, req DocumentRequest, rc domain.RequestContext) (*domain.Document, error) {
	doc, err := s.writable(ctx, p, id, domain.ActionUpdateDocument, rc)
	if err != nil {
		return nil, err
	}
	if doc.Status == domain.ResourceArchived {
		return nil, errs.E(errs.Conflict, "archived documents are read-only")
	}
	if err := s.checkProject(ctx, p, req.ProjectID); err != nil {
		return nil, err
	}
	if req.StorageKey != nil && (doc.StorageKey == nil || *req.StorageKey != *doc.StorageKey) &&
		!strings.HasPrefix(*req.StorageKey, uploadPrefix(p.ID)) {
		return nil, errs.E(errs.Forbidden, "storage key does not belong to you")
	}

	doc.Title = strings.TrimSpace(req.Title)
	doc.Description = req.Description
	doc.ProjectID = req.ProjectID
	if req.StorageKey != nil {
		doc.StorageKey = req.StorageKey
		doc.ContentType = req.ContentType
		doc.SizeBytes = req.SizeBytes
	}
	doc.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, err
	}

	s.recorder.Success(ctx, p.ID, domain.ActionUpdateDocument, "updated document "+doc.Title, rc)
	return doc, nil
}

func (s *DocumentService) Archive(ctx context.Context, p domain.Principal, id uuid.UUID, rc domain.RequestContext) (*domain.Document, error) {
	doc, err := s.writable(ctx, p, id, domain.ActionArchiveDocument, rc)
	if err != nil {
		return nil, err
	}
	if doc.Status == domain.ResourceArchived {
		return doc, nil
	}

	now := s.now()
	doc.Status = domain.ResourceArchived
	doc.ArchivedAt = &now
	doc.UpdatedAt = now
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, err
	}

	s.recorder.Success(ctx, p.ID, domain.ActionArchiveDocument, "archived document "+doc.Title, rc)
	return doc, nil
}

// Delete removes the document and its stored object. A failed object delete
// is logged; the row is already gone.
func (s *DocumentService) Delete(ctx context.Context, p domain.Principal, id uuid.UUID, rc domain.RequestContext) error {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if doc.StorageKey != nil && s.store != nil {
		if err := s.store.Delete(ctx, *doc.StorageKey); err != nil {
			s.logger.Error("failed to delete stored object",
				zap.String("document_id", id.String()),
				zap.String("key", *doc.StorageKey),
				zap.Error(err),
			)
		}
	}

	s.recorder.Success(ctx, p.ID, domain.ActionDeleteDocument, "deleted document "+doc.Title, rc)
	return nil
}

// DownloadURL presigns a GET for the document's file.
func (s *DocumentService) DownloadURL(ctx context.Context, p domain.Principal, id uuid.UUID, rc domain.RequestContext) (*storage.PresignedURL, error) {
	if s.store == nil {
		return nil, errStorageDisabled
	}
	doc, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if doc.StorageKey == nil {
		return nil, errs.E(errs.NotFound, "document has no file")
	}

	url, err := s.store.PresignDownload(ctx, *doc.StorageKey)
	if err != nil {
		return nil, err
	}

	s.recorder.Success(ctx, p.ID, domain.ActionDownloadDocument, "downloaded document "+doc.Title, rc)
	return url, nil
}

func (s *DocumentService) writable(ctx context.Context, p domain.Principal, id uuid.UUID, action domain.DocumentAction, rc domain.RequestContext) (*domain.Document, error) {
	doc, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID == p.ID || p.Role.AtLeast(domain.RoleManager) {
		return doc, nil
	}
	s.recorder.Failure(ctx, p.ID, action, "insufficient rights on document "+doc.Title, rc)
	return nil, errs.E(errs.Forbidden, "you cannot modify this document")
}

// canRead: admins, the owner, and anyone on the document's project.
func (s *DocumentService) canRead(ctx context.Context, p domain.Principal, doc *domain.Document) (bool, error) {
	if p.Role.AtLeast(domain.RoleAdmin) || doc.OwnerID == p.ID {
		return true, nil
	}
	if doc.ProjectID == nil {
		return false, nil
	}
	return s.projects.IsMember(ctx, *doc.ProjectID, p.ID)
}

func (s *DocumentService) checkProject(ctx context.Context, p domain.Principal, projectID *uuid.UUID) error {
	if projectID == nil {
		return nil
	}
	project, err := s.projects.GetByID(ctx, *projectID)
	if err != nil {
		return err
	}
	if project.Status == domain.ResourceArchived {
		return errs.E(errs.Conflict, "project is archived")
	}
	if p.Role.AtLeast(domain.RoleAdmin) {
		return nil
	}
	ok, err := s.projects.IsMember(ctx, project.ID, p.ID)
	if err != nil {
		return err
	}
	if !ok {
		return errs.E(errs.Forbidden, "you are not a member of this project")
	}
	return nil
}

func uploadPrefix(userID uuid.UUID) string {
	return "uploads/" + userID.String() + "/"
}

func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if clean == "" || clean == "." || clean == ".." {
		return "file"
	}
	return clean
}
