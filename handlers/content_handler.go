package handlers

import (
	"strconv"
	"time"

	"tabforum/helper"
	"tabforum/models"
	"tabforum/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ContentHandler struct {
	contentService services.ContentService
	Helper         *helper.HTTPHelper
}

func NewContentHandler(contentService services.ContentService) *ContentHandler {
	return &ContentHandler{contentService: contentService, Helper: &helper.HTTPHelper{}}
}

// List serves the global published listing, ranked per the strategy query
// parameter.
func (h *ContentHandler) List(c *gin.Context) {
	args, err := listArgs(c)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	result, err := h.contentService.Find(args)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	c.Header("X-Pagination-Total-Rows", strconv.Itoa(result.Page.Pagination.TotalRows))
	h.Helper.SendSuccess(c, "Contents loaded", result.Page)
}

// ListByUser serves one user's published root contents.
func (h *ContentHandler) ListByUser(c *gin.Context) {
	args, err := listArgs(c)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	args.OwnerUsername = c.Param("username")

	result, err := h.contentService.Find(args)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Contents loaded", result.Page)
}

// Get serves a single published content addressed by owner and slug, with
// optional parent/root/children expansions.
func (h *ContentHandler) Get(c *gin.Context) {
	args, err := listArgs(c)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	args.OwnerUsername = c.Param("username")
	args.Slug = c.Param("slug")
	args.WithParent = boolQuery(c, "with_parent")

	if value, ok := c.GetQuery("with_root"); ok {
		withRoot := value == "true"
		args.WithRoot = &withRoot
	}
	if value, ok := c.GetQuery("with_children"); ok {
		withChildren := value == "true"
		args.WithChildren = &withChildren
	}

	result, err := h.contentService.Find(args)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Content loaded", result.Content)
}

// GetChildren serves the comment tree rooted at the addressed content.
func (h *ContentHandler) GetChildren(c *gin.Context) {
	args, err := listArgs(c)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	args.OwnerUsername = c.Param("username")
	args.Slug = c.Param("slug")
	withChildren := true
	args.WithChildren = &withChildren

	result, err := h.contentService.Find(args)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Children loaded", result.Content.Children)
}

// GetRoot serves the ultimate ancestor of the addressed content.
func (h *ContentHandler) GetRoot(c *gin.Context) {
	args, err := listArgs(c)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	args.OwnerUsername = c.Param("username")
	args.Slug = c.Param("slug")
	withRoot := true
	args.WithRoot = &withRoot

	result, err := h.contentService.Find(args)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	root := result.Content.Root
	if root == nil {
		root = result.Content
	}
	h.Helper.SendSuccess(c, "Root content loaded", root)
}

// GetParent serves the direct parent of the addressed content.
func (h *ContentHandler) GetParent(c *gin.Context) {
	args, err := listArgs(c)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}
	args.OwnerUsername = c.Param("username")
	args.Slug = c.Param("slug")
	args.WithParent = true

	result, err := h.contentService.Find(args)
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	if result.Content.Parent == nil {
		h.Helper.SendNotFoundError(c, "The content has no parent", h.Helper.EmptyJsonMap())
		return
	}
	h.Helper.SendSuccess(c, "Parent content loaded", result.Content.Parent)
}

func (h *ContentHandler) Create(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req models.CreateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBadRequest(c, err.Error(), h.Helper.EmptyJsonMap())
		return
	}

	content, err := h.contentService.Create(userID, req, models.ContentWriteOptions{})
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	h.Helper.SendCreated(c, "Content created", content)
}

func (h *ContentHandler) Update(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	contentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Helper.SendBadRequest(c, "Invalid content id", h.Helper.EmptyJsonMap())
		return
	}

	var req models.UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBadRequest(c, err.Error(), h.Helper.EmptyJsonMap())
		return
	}

	content, err := h.contentService.Update(contentID, req, models.ContentWriteOptions{RequesterID: &userID})
	if err != nil {
		h.Helper.SendDomainError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Content updated", content)
}

func listArgs(c *gin.Context) (models.FindContentArgs, error) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "0"))

	args := models.FindContentArgs{
		Strategy: models.Strategy(c.DefaultQuery("strategy", "relevant")),
		Page:     page,
		PerPage:  perPage,
	}

	if raw := c.Query("published_before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return args, invalidCursorError("published_before")
		}
		args.PublishedBefore = &t
	}
	if raw := c.Query("published_after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return args, invalidCursorError("published_after")
		}
		args.PublishedAfter = &t
	}

	return args, nil
}

func invalidCursorError(key string) error {
	return &models.ValidationError{
		Message:           "\"" + key + "\" must be an RFC 3339 timestamp.",
		Action:            "Check that the data was typed correctly.",
		ErrorLocationCode: "HANDLER:CONTENT:LIST_ARGS:INVALID_CURSOR",
		Key:               key,
	}
}

func boolQuery(c *gin.Context, key string) bool {
	return c.Query(key) == "true"
}
