package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/errs"
	"github.com/CeliaPro/ysm2-sub001/internal/service"
	"github.com/CeliaPro/ysm2-sub001/pkg/validator"
)

type DocumentHandler struct {
	documentService *service.DocumentService
	validator       *validator.Validator
}

func NewDocumentHandler(documentService *service.DocumentService, validator *validator.Validator) *DocumentHandler {
	return &DocumentHandler{documentService: documentService, validator: validator}
}

// List accepts ?project_id=, ?include_archived=true and paging
// GET /api/v1/documents
func (h *DocumentHandler) List(c *fiber.Ctx, p domain.Principal) error {
	limit, offset := paging(c)
	filter := domain.DocumentFilter{
		IncludeArchived: c.QueryBool("include_archived", false),
		Limit:           limit,
		Offset:          offset,
	}
	if raw := c.Query("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return errs.E(errs.Validation, "invalid project_id")
		}
		filter.ProjectID = &id
	}

	docs, err := h.documentService.List(c.UserContext(), p, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"documents": docs})
}

// POST /api/v1/documents
func (h *DocumentHandler) Create(c *fiber.Ctx, p domain.Principal) error {
	var req service.DocumentRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	doc, err := h.documentService.Create(c.UserContext(), p, req, requestContext(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// GET /api/v1/documents/:id
func (h *DocumentHandler) Get(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	doc, err := h.documentService.Get(c.UserContext(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

// PUT /api/v1/documents/:id
func (h *DocumentHandler) Update(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.DocumentRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	doc, err := h.documentService.Update(c.UserContext(), p, id, req, requestContext(c))
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

// POST /api/v1/documents/:id/archive
func (h *DocumentHandler) Archive(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	doc, err := h.documentService.Archive(c.UserContext(), p, id, requestContext(c))
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

// DELETE /api/v1/documents/:id
func (h *DocumentHandler) Delete(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.documentService.Delete(c.UserContext(), p, id, requestContext(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadURL presigns a direct upload to object storage
// POST /api/v1/storage/upload-url
func (h *DocumentHandler) UploadURL(c *fiber.Ctx, p domain.Principal) error {
	var req service.UploadRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	url, err := h.documentService.UploadURL(c.UserContext(), p, req)
	if err != nil {
		return err
	}
	return c.JSON(url)
}

// DownloadURL presigns a direct download of the document's file
// GET /api/v1/documents/:id/download-url
func (h *DocumentHandler) DownloadURL(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	url, err := h.documentService.DownloadURL(c.UserContext(), p, id, requestContext(c))
	if err != nil {
		return err
	}
	return c.JSON(url)
}
