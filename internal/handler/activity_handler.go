package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/errs"
	"github.com/CeliaPro/ysm2-sub001/internal/service"
)

type ActivityHandler struct {
	recorder *service.ActivityRecorder
}

func NewActivityHandler(recorder *service.ActivityRecorder) *ActivityHandler {
	return &ActivityHandler{recorder: recorder}
}

// Mine lists the caller's own activity
// GET /api/v1/activities
func (h *ActivityHandler) Mine(c *fiber.Ctx, p domain.Principal) error {
	filter, err := activityFilter(c)
	if err != nil {
		return err
	}
	filter.ActorID = &p.ID
	return h.list(c, filter)
}

// All lists everyone's activity, optionally for ?actor_id=
// GET /api/v1/admin/activities
func (h *ActivityHandler) All(c *fiber.Ctx, _ domain.Principal) error {
	filter, err := activityFilter(c)
	if err != nil {
		return err
	}
	if raw := c.Query("actor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return errs.E(errs.Validation, "invalid actor_id")
		}
		filter.ActorID = &id
	}
	return h.list(c, filter)
}

func (h *ActivityHandler) list(c *fiber.Ctx, filter domain.ActivityFilter) error {
	entries, err := h.recorder.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"activities": entries, "count": len(entries)})
}

func activityFilter(c *fiber.Ctx) (domain.ActivityFilter, error) {
	limit, offset := paging(c)
	filter := domain.ActivityFilter{Limit: limit, Offset: offset}

	if tag := c.Query("action"); tag != "" {
		action, ok := domain.LookupAction(tag)
		if !ok {
			return filter, errs.E(errs.Validation, "unknown action "+tag)
		}
		filter.Action = action.Tag()
	}
	switch status := domain.ActivityStatus(c.Query("status")); status {
	case "":
	case domain.StatusSuccess, domain.StatusFailure:
		filter.Status = status
	default:
		return filter, errs.E(errs.Validation, "status must be SUCCESS or FAILURE")
	}
	return filter, nil
}
