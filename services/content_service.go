package services

import (
	"time"

	"tabforum/helper"
	"tabforum/models"
	"tabforum/repositories"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultPerPage  = 30
	maxPerPage      = 100
	defaultStrategy = models.StrategyRelevant
)

type ContentService interface {
	Create(ownerID uuid.UUID, req models.CreateContentRequest, opts models.ContentWriteOptions) (*models.Content, error)
	Update(id uuid.UUID, req models.UpdateContentRequest, opts models.ContentWriteOptions) (*models.Content, error)
	Find(args models.FindContentArgs) (*models.FindResult, error)
	FindWithStrategy(args models.FindContentArgs) (*models.ContentPage, error)
	FindTree(query repositories.TreeQuery) ([]*models.Content, error)
	FindRootContent(id uuid.UUID) (*models.Content, error)
}

type contentService struct {
	db       *gorm.DB
	contents repositories.ContentRepository
	balances repositories.BalanceRepository
	users    repositories.UserRepository
	tabcoins TabcoinService
	now      func() time.Time
}

func NewContentService(
	db *gorm.DB,
	contents repositories.ContentRepository,
	balances repositories.BalanceRepository,
	users repositories.UserRepository,
	tabcoins TabcoinService,
) ContentService {
	return &contentService{
		db:       db,
		contents: contents,
		balances: balances,
		users:    users,
		tabcoins: tabcoins,
		now:      time.Now,
	}
}

// Create validates eagerly, then inserts the row, settles tabcoins and
// overlays the fresh balance inside one transaction.
func (s *contentService) Create(ownerID uuid.UUID, req models.CreateContentRequest, opts models.ContentWriteOptions) (*models.Content, error) {
	owner, err := s.users.GetByID(ownerID)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.StatusDraft
	}
	if status == models.StatusDeleted {
		return nil, &models.ValidationError{
			Message:           "New content cannot be created directly with status \"deleted\".",
			ErrorLocationCode: "SERVICE:CONTENT:VALIDATE_CREATE:STATUS_DELETED",
			Key:               "status",
		}
	}

	content := &models.Content{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		ParentID:  req.ParentID,
		Slug:      req.Slug,
		Title:     req.Title,
		Body:      req.Body,
		Status:    status,
		SourceURL: req.SourceURL,
	}
	populateSlug(content)

	if err := checkRootContentTitle(content); err != nil {
		return nil, err
	}
	if err := checkForParentIDRecursion(content); err != nil {
		return nil, err
	}

	populatePublishedAtValue(nil, content, s.now())

	err = s.db.Transaction(func(tx *gorm.DB) error {
		contents := s.contents.WithTx(tx)

		parent, err := s.checkIfParentExists(contents, content)
		if err != nil {
			return err
		}

		if err := contents.Insert(content); err != nil {
			return err
		}

		if !opts.SkipBalanceOperations {
			if err := s.tabcoins.WithTx(tx).Settle(nil, content, parent, opts.EventID); err != nil {
				return err
			}
		}

		total, err := s.balances.WithTx(tx).GetTotal(models.BalanceTypeContentTabcoin, content.ID)
		if err != nil {
			return err
		}
		content.Tabcoins = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	content.OwnerUsername = owner.Username
	return content, nil
}

// Update merges the partial payload over the prior row, enforces the status
// gates, persists and settles atomically.
func (s *contentService) Update(id uuid.UUID, req models.UpdateContentRequest, opts models.ContentWriteOptions) (*models.Content, error) {
	var updated *models.Content

	err := s.db.Transaction(func(tx *gorm.DB) error {
		contents := s.contents.WithTx(tx)

		old, err := contents.FindOne([]repositories.Condition{repositories.Equals{Column: "id", Value: id}})
		if err != nil {
			return err
		}
		if old == nil {
			return &models.NotFoundError{
				Message:           "The requested content was not found.",
				Action:            "Check that the data was typed correctly.",
				ErrorLocationCode: "SERVICE:CONTENT:UPDATE:CONTENT_NOT_FOUND",
			}
		}

		if opts.RequesterID != nil && *opts.RequesterID != old.OwnerID {
			return &models.ForbiddenError{
				Message:           "You do not have permission to update this content.",
				ErrorLocationCode: "SERVICE:CONTENT:UPDATE:FORBIDDEN_REQUESTER",
			}
		}

		if old.Status == models.StatusDeleted {
			return &models.ValidationError{
				Message:           "It is not possible to change content that has already been deleted.",
				ErrorLocationCode: "SERVICE:CONTENT:CHECK_STATUS_CHANGE:STATUS_ALREADY_DELETED",
				Key:               "status",
			}
		}

		merged := mergeContent(old, req)

		if old.Status == models.StatusPublished && merged.Status == models.StatusDraft {
			return &models.ValidationError{
				Message:           "Published content cannot go back to draft.",
				ErrorLocationCode: "SERVICE:CONTENT:CHECK_STATUS_CHANGE:STATUS_ALREADY_PUBLISHED",
				Key:               "status",
			}
		}
		if err := checkRootContentTitle(merged); err != nil {
			return err
		}
		if err := checkForParentIDRecursion(merged); err != nil {
			return err
		}

		parent, err := s.checkIfParentExists(contents, merged)
		if err != nil {
			return err
		}

		populatePublishedAtValue(old, merged, s.now())
		populateDeletedAtValue(merged, s.now())

		if err := contents.Update(merged); err != nil {
			return err
		}

		if !opts.SkipBalanceOperations {
			if err := s.tabcoins.WithTx(tx).Settle(old, merged, parent, opts.EventID); err != nil {
				return err
			}
		}

		total, err := s.balances.WithTx(tx).GetTotal(models.BalanceTypeContentTabcoin, merged.ID)
		if err != nil {
			return err
		}
		merged.Tabcoins = total

		updated = merged
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Find routes a composite argument set to the tree walk, a direct lookup, or
// the strategy listing, validating the combination first.
func (s *contentService) Find(args models.FindContentArgs) (*models.FindResult, error) {
	switch {
	case args.ParentID != nil:
		tree, err := s.FindTree(repositories.TreeQuery{
			ParentID:        args.ParentID,
			PerPage:         normalizePerPage(args.PerPage),
			Strategy:        normalizeStrategy(args.Strategy),
			PublishedBefore: args.PublishedBefore,
			PublishedAfter:  args.PublishedAfter,
		})
		if err != nil {
			return nil, err
		}
		return &models.FindResult{Tree: tree}, nil

	case args.ID != nil:
		return s.findContent(args,
			[]repositories.Condition{repositories.Equals{Column: "id", Value: *args.ID}},
			repositories.TreeQuery{ID: args.ID})

	case args.OwnerID != nil && args.Slug != "":
		return s.findContent(args,
			[]repositories.Condition{
				repositories.Equals{Column: "owner_id", Value: *args.OwnerID},
				repositories.Equals{Column: "slug", Value: args.Slug},
			},
			repositories.TreeQuery{OwnerID: args.OwnerID, Slug: args.Slug})

	case args.OwnerUsername != "" && args.Slug != "":
		return s.findContent(args,
			[]repositories.Condition{
				repositories.OwnerUsername{Username: args.OwnerUsername},
				repositories.Equals{Column: "slug", Value: args.Slug},
			},
			repositories.TreeQuery{OwnerUsername: args.OwnerUsername, Slug: args.Slug})

	case args.Slug != "":
		return nil, &models.ValidationError{
			Message:           "Looking up content by \"slug\" requires an \"owner_id\" or \"owner_username\".",
			Action:            "Also provide the \"owner_id\" or \"owner_username\" of the content.",
			ErrorLocationCode: "SERVICE:CONTENT:FIND:MISSING_OWNER_ID_OR_USERNAME",
		}
	}

	if args.WithParent {
		return nil, &models.ValidationError{
			Message:           "\"with_parent\" cannot be used without an \"id\" or \"slug\".",
			Action:            "Address a specific content to obtain its parent.",
			ErrorLocationCode: "SERVICE:CONTENT:FIND:MISSING_ID_OR_SLUG",
		}
	}

	if args.WithRoot != nil && !*args.WithRoot && args.WithChildren != nil && !*args.WithChildren {
		return nil, &models.ValidationError{
			Message:           "The query must return \"root\" contents (with_root) and/or \"child\" contents (with_children).",
			Action:            "Check that the data was typed correctly.",
			ErrorLocationCode: "SERVICE:CONTENT:FIND:MISSING_ROOT_AND_CHILDREN_FLAG",
		}
	}

	page, err := s.FindWithStrategy(args)
	if err != nil {
		return nil, err
	}
	return &models.FindResult{Page: page}, nil
}

func (s *contentService) findContent(args models.FindContentArgs, where []repositories.Condition, treeQuery repositories.TreeQuery) (*models.FindResult, error) {
	var content *models.Content

	if args.WithChildren != nil && *args.WithChildren {
		treeQuery.PerPage = normalizePerPage(args.PerPage)
		treeQuery.Strategy = normalizeStrategy(args.Strategy)
		tree, err := s.FindTree(treeQuery)
		if err != nil {
			return nil, err
		}
		if len(tree) > 0 {
			content = tree[0]
		}
	} else {
		found, err := s.contents.FindOne(append(where, repositories.Equals{Column: "status", Value: models.StatusPublished}))
		if err != nil {
			return nil, err
		}
		content = found
	}

	if content == nil {
		return nil, &models.NotFoundError{
			Message:           "The requested content was not found.",
			Action:            "Check that the data was typed correctly.",
			ErrorLocationCode: "SERVICE:CONTENT:FIND:CONTENT_NOT_FOUND",
		}
	}

	if args.WithParent && content.ParentID != nil {
		parent, err := s.contents.FindOne([]repositories.Condition{repositories.Equals{Column: "id", Value: *content.ParentID}})
		if err != nil {
			return nil, err
		}
		content.Parent = parent
	}

	withRoot := args.WithRoot != nil && *args.WithRoot
	if withRoot && content.ParentID != nil {
		switch {
		case content.Parent != nil && content.Parent.ParentID != nil:
			root, err := s.FindRootContent(*content.Parent.ParentID)
			if err != nil {
				return nil, err
			}
			content.Root = root
		case content.Parent != nil:
			content.Root = content.Parent
		default:
			root, err := s.FindRootContent(*content.ParentID)
			if err != nil {
				return nil, err
			}
			content.Root = root
		}
	}

	return &models.FindResult{Content: content}, nil
}

// FindWithStrategy lists published content in one of the three orders and
// attaches pagination metadata. The unscoped relevant listing takes the
// store-side ranked fast path; scoped relevant listings rank the fetched
// page in memory.
func (s *contentService) FindWithStrategy(args models.FindContentArgs) (*models.ContentPage, error) {
	strategy := normalizeStrategy(args.Strategy)
	page := args.Page
	if page < 1 {
		page = 1
	}
	perPage := normalizePerPage(args.PerPage)

	query := repositories.ContentQuery{
		Page:        page,
		PerPage:     perPage,
		Where:       listingConditions(args),
		ExcludeBody: true,
	}

	var (
		rows   []models.Content
		err    error
		ranked bool
	)

	switch strategy {
	case models.StrategyNew:
		query.Order = "published_at DESC"
		rows, err = s.contents.FindAll(query)
	case models.StrategyOld:
		query.Order = "published_at ASC"
		rows, err = s.contents.FindAll(query)
	default:
		if isGlobalListing(args) {
			ranked = true
			rows, err = s.contents.FindAllRanked(query)
		} else {
			query.Order = "published_at DESC"
			rows, err = s.contents.FindAll(query)
			if err == nil {
				rows = RankByRelevance(rows, s.now())
			}
		}
	}
	if err != nil {
		return nil, err
	}

	totalRows := 0
	if len(rows) > 0 {
		totalRows = rows[0].TotalRows
	} else if ranked {
		totalRows, err = s.contents.CountAllRanked()
		if err != nil {
			return nil, err
		}
	} else {
		totalRows, err = s.contents.CountAll(query)
		if err != nil {
			return nil, err
		}
	}

	return &models.ContentPage{
		Rows:       rows,
		Pagination: models.BuildPagination(totalRows, perPage, page, strategy),
	}, nil
}

// FindTree walks descendants and reassembles them into a nested, per-node
// sorted tree.
func (s *contentService) FindTree(query repositories.TreeQuery) ([]*models.Content, error) {
	if err := validateTreeQuery(query); err != nil {
		return nil, err
	}
	if query.PerPage < 1 {
		query.PerPage = defaultPerPage
	}
	query.Strategy = normalizeStrategy(query.Strategy)

	rows, err := s.contents.FindTree(query)
	if err != nil {
		return nil, err
	}
	return AssembleTree(rows, query.Strategy, s.now()), nil
}

func (s *contentService) FindRootContent(id uuid.UUID) (*models.Content, error) {
	return s.contents.FindRootContent(id)
}

func validateTreeQuery(query repositories.TreeQuery) error {
	switch {
	case query.ParentID != nil:
		return nil
	case query.ID != nil:
		return nil
	case query.OwnerID != nil && query.Slug != "":
		return nil
	case query.OwnerUsername != "" && query.Slug != "":
		return nil
	}
	return &models.ValidationError{
		Message:           "A content tree lookup needs a \"parent_id\", an \"id\", or a \"slug\" combined with \"owner_id\" or \"owner_username\".",
		Action:            "Check that the data was typed correctly.",
		ErrorLocationCode: "SERVICE:CONTENT:FIND_TREE:INVALID_WHERE",
	}
}

func listingConditions(args models.FindContentArgs) []repositories.Condition {
	withChildren := args.WithChildren != nil && *args.WithChildren
	withRootDisabled := args.WithRoot != nil && !*args.WithRoot

	var conditions []repositories.Condition
	if !withChildren && !withRootDisabled {
		conditions = append(conditions, repositories.Equals{Column: "parent_id", Value: nil})
	}
	if withRootDisabled {
		conditions = append(conditions, repositories.NotNull{"parent_id"})
	}
	if args.OwnerID != nil {
		conditions = append(conditions, repositories.Equals{Column: "owner_id", Value: *args.OwnerID})
	}
	if args.OwnerUsername != "" {
		conditions = append(conditions, repositories.OwnerUsername{Username: args.OwnerUsername})
	}
	return append(conditions, repositories.Equals{Column: "status", Value: models.StatusPublished})
}

// isGlobalListing reports whether the relevant strategy may use the ranked
// fast path: no owner scope and the plain published-roots filter.
func isGlobalListing(args models.FindContentArgs) bool {
	if args.OwnerID != nil || args.OwnerUsername != "" {
		return false
	}
	withChildren := args.WithChildren != nil && *args.WithChildren
	withRootDisabled := args.WithRoot != nil && !*args.WithRoot
	return !withChildren && !withRootDisabled
}

func (s *contentService) checkIfParentExists(contents repositories.ContentRepository, content *models.Content) (*models.Content, error) {
	if content.ParentID == nil {
		return nil, nil
	}

	parent, err := contents.FindOne([]repositories.Condition{repositories.Equals{Column: "id", Value: *content.ParentID}})
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, &models.ValidationError{
			Message:           "You are trying to create or update a child of a content that does not exist.",
			Action:            "Use a \"parent_id\" that points to existing content.",
			ErrorLocationCode: "SERVICE:CONTENT:CHECK_IF_PARENT_ID_EXISTS:NOT_FOUND",
			Key:               "parent_id",
		}
	}
	return parent, nil
}

func populateSlug(content *models.Content) {
	if content.Slug != "" {
		return
	}
	content.Slug = helper.Slugify(content.TitleOrEmpty())
	if content.Slug == "" {
		content.Slug = uuid.NewString()
	}
}

func checkRootContentTitle(content *models.Content) error {
	if content.ParentID == nil && content.TitleOrEmpty() == "" {
		return &models.ValidationError{
			Message:           "\"title\" is a required field.",
			ErrorLocationCode: "SERVICE:CONTENT:CHECK_ROOT_CONTENT_TITLE:MISSING_TITLE",
			Key:               "title",
		}
	}
	return nil
}

func checkForParentIDRecursion(content *models.Content) error {
	if content.ParentID != nil && *content.ParentID == content.ID {
		return &models.ValidationError{
			Message:           "\"parent_id\" must not point at the content itself.",
			Action:            "Use a \"parent_id\" different from the content's \"id\".",
			ErrorLocationCode: "SERVICE:CONTENT:CHECK_FOR_PARENT_ID_RECURSION:RECURSION_FOUND",
			Key:               "parent_id",
		}
	}
	return nil
}

// populatePublishedAtValue sets published_at exactly once, the first time the
// content reaches "published", and preserves it afterwards.
func populatePublishedAtValue(old, content *models.Content, now time.Time) {
	if old != nil && old.PublishedAt != nil {
		content.PublishedAt = old.PublishedAt
		return
	}
	if content.Status == models.StatusPublished {
		publishedAt := now
		content.PublishedAt = &publishedAt
	}
}

func populateDeletedAtValue(content *models.Content, now time.Time) {
	if content.DeletedAt == nil && content.Status == models.StatusDeleted {
		deletedAt := now
		content.DeletedAt = &deletedAt
	}
}

func mergeContent(old *models.Content, req models.UpdateContentRequest) *models.Content {
	merged := *old
	if req.ParentID != nil {
		merged.ParentID = req.ParentID
	}
	if req.Slug != nil {
		merged.Slug = *req.Slug
	}
	if req.Title != nil {
		merged.Title = req.Title
	}
	if req.Body != nil {
		merged.Body = *req.Body
	}
	if req.Status != nil {
		merged.Status = *req.Status
	}
	if req.SourceURL != nil {
		merged.SourceURL = req.SourceURL
	}
	return &merged
}

func normalizeStrategy(strategy models.Strategy) models.Strategy {
	if !strategy.Valid() {
		return defaultStrategy
	}
	return strategy
}

func normalizePerPage(perPage int) int {
	if perPage < 1 {
		return defaultPerPage
	}
	if perPage > maxPerPage {
		return maxPerPage
	}
	return perPage
}
