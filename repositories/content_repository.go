package repositories

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tabforum/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContentQuery describes one listing call: filter, order, pagination and
// attribute selection. Limit overrides PerPage when set.
type ContentQuery struct {
	Page        int
	PerPage     int
	Order       string
	Where       []Condition
	Limit       int
	ExcludeBody bool
}

func (q ContentQuery) effectiveLimit() int {
	if q.Limit > 0 {
		return q.Limit
	}
	return q.PerPage
}

func (q ContentQuery) offset() int {
	return (q.Page - 1) * q.PerPage
}

// TreeQuery addresses the anchor of a recursive descendant walk. Exactly one
// of ParentID, ID, or owner+Slug must be set; the service layer validates
// the combination before calling.
type TreeQuery struct {
	ParentID        *uuid.UUID
	ID              *uuid.UUID
	OwnerID         *uuid.UUID
	OwnerUsername   string
	Slug            string
	PerPage         int
	Strategy        models.Strategy
	PublishedBefore *time.Time
	PublishedAfter  *time.Time
}

type ContentRepository interface {
	WithTx(tx *gorm.DB) ContentRepository
	FindAll(query ContentQuery) ([]models.Content, error)
	FindAllRanked(query ContentQuery) ([]models.Content, error)
	CountAll(query ContentQuery) (int, error)
	CountAllRanked() (int, error)
	FindOne(where []Condition) (*models.Content, error)
	Insert(content *models.Content) error
	Update(content *models.Content) error
	FindTree(query TreeQuery) ([]models.Content, error)
	FindRootContent(id uuid.UUID) (*models.Content, error)
}

type contentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) WithTx(tx *gorm.DB) ContentRepository {
	return &contentRepository{db: tx}
}

// childrenDeepCountSubquery counts every published descendant of the current
// contents row, at any depth.
const childrenDeepCountSubquery = `
	(
		WITH RECURSIVE children AS (
			SELECT id, parent_id
			FROM contents AS all_contents
			WHERE all_contents.parent_id = contents.id AND all_contents.status = 'published'
		UNION ALL
			SELECT all_contents.id, all_contents.parent_id
			FROM contents AS all_contents
			INNER JOIN children ON all_contents.parent_id = children.id
			WHERE all_contents.status = 'published'
		)
		SELECT COUNT(children.id)::INTEGER FROM children
	) AS children_deep_count`

func selectColumns(excludeBody bool) string {
	columns := []string{
		"contents.id",
		"contents.owner_id",
		"contents.parent_id",
		"contents.slug",
		"contents.title",
		"contents.body",
		"contents.status",
		"contents.source_url",
		"contents.created_at",
		"contents.updated_at",
		"contents.published_at",
		"contents.deleted_at",
	}
	if excludeBody {
		columns = append(columns[:5], columns[6:]...)
	}
	return strings.Join(columns, ",\n\t\t")
}

// FindAll lists contents through a window CTE so every returned row carries
// the filtered total in total_rows, from the same query execution as the
// page itself.
func (r *contentRepository) FindAll(query ContentQuery) ([]models.Content, error) {
	whereClause, whereArgs := BuildWhere(query.Where)
	orderClause := buildOrderBy(query.Order)

	sql := fmt.Sprintf(`
	WITH content_window AS (
		SELECT COUNT(*) OVER()::INTEGER AS total_rows, id
		FROM contents
		%s
		%s
		LIMIT ? OFFSET ?
	)
	SELECT
		%s,
		users.username AS owner_username,
		content_window.total_rows,
		get_current_balance('content:tabcoin', contents.id) AS tabcoins,
		%s
	FROM contents
	INNER JOIN content_window ON contents.id = content_window.id
	INNER JOIN users ON contents.owner_id = users.id
	%s`,
		whereClause, orderClause, selectColumns(query.ExcludeBody), childrenDeepCountSubquery, orderClause)

	args := append(whereArgs, query.effectiveLimit(), query.offset())

	var rows []models.Content
	if err := r.db.Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountAll runs the same window as FindAll but returns only the scalar
// total.
func (r *contentRepository) CountAll(query ContentQuery) (int, error) {
	whereClause, whereArgs := BuildWhere(query.Where)

	sql := fmt.Sprintf(`
	WITH content_window AS (
		SELECT COUNT(*) OVER()::INTEGER AS total_rows, id
		FROM contents
		%s
		LIMIT 1
	)
	SELECT total_rows FROM content_window`, whereClause)

	var totals []int
	if err := r.db.Raw(sql, whereArgs...).Scan(&totals).Error; err != nil {
		return 0, err
	}
	if len(totals) == 0 {
		return 0, nil
	}
	return totals[0], nil
}

func (r *contentRepository) FindOne(where []Condition) (*models.Content, error) {
	rows, err := r.FindAll(ContentQuery{Page: 1, PerPage: 1, Limit: 1, Where: where})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *contentRepository) Insert(content *models.Content) error {
	if err := r.db.Create(content).Error; err != nil {
		return translateWriteError(err)
	}
	return nil
}

func (r *contentRepository) Update(content *models.Content) error {
	if err := r.db.Save(content).Error; err != nil {
		return translateWriteError(err)
	}
	return nil
}

// translateWriteError maps a unique-constraint violation to the domain
// duplicate-slug error; everything else propagates unchanged.
func translateWriteError(err error) error {
	if isUniqueViolation(err) {
		return &models.ValidationError{
			Message:           "The submitted content appears to be a duplicate.",
			Action:            "Use a different \"title\" or \"slug\".",
			ErrorLocationCode: "REPOSITORY:CONTENT:CHECK_FOR_CONTENT_UNIQUENESS:ALREADY_EXISTS",
			Key:               "slug",
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// FindTree walks published descendants of the anchor, capped at four levels
// below it. Pagination limits the anchor-level matches, not the total node
// count, so subtrees are never truncated mid-walk. Candidates are ordered by
// the publish-time path accumulated during the walk.
func (r *contentRepository) FindTree(query TreeQuery) ([]models.Content, error) {
	anchor, args := treeAnchorClause(query)
	direction := treeSortDirection(query)

	cursor := ""
	if query.PublishedBefore != nil {
		cursor = "published_at < ? AND"
		args = append(args, *query.PublishedBefore)
	} else if query.PublishedAfter != nil {
		cursor = "published_at > ? AND"
		args = append(args, *query.PublishedAfter)
	}
	args = append(args, query.PerPage)

	sql := fmt.Sprintf(`
	WITH RECURSIVE root_window AS (
		SELECT id, parent_id, published_at
		FROM contents
		WHERE
			%s AND
			%s
			status = 'published'
		ORDER BY published_at %s
		LIMIT ?
	),

	tree AS (
		SELECT
			id,
			(CASE WHEN parent_id IS NULL THEN ARRAY[]::uuid[] ELSE ARRAY[parent_id] END) AS path,
			ARRAY[published_at] AS sort_array
		FROM root_window
	UNION ALL
		SELECT
			contents.id,
			path || contents.parent_id,
			sort_array || contents.published_at AS sort_array
		FROM contents
		INNER JOIN tree ON contents.parent_id = tree.id
		WHERE contents.status = 'published'
	),

	paginated_tree AS (
		SELECT
			tree.*,
			(SELECT COUNT(*) FROM tree t WHERE tree.id = ANY(t.path)) AS children_deep_count
		FROM tree
		WHERE array_length(tree.sort_array, 1) < 5
		ORDER BY
			tree.sort_array[1] %s,
			tree.sort_array[2] %s NULLS FIRST,
			tree.sort_array[3] %s NULLS FIRST,
			tree.sort_array[4] %s NULLS FIRST
	)

	SELECT
		%s,
		paginated_tree.children_deep_count,
		users.username AS owner_username,
		get_current_balance('content:tabcoin', contents.id) AS tabcoins
	FROM paginated_tree
	INNER JOIN contents ON contents.id = paginated_tree.id
	INNER JOIN users ON contents.owner_id = users.id`,
		anchor, cursor, direction, direction, direction, direction, direction, selectColumns(false))

	var rows []models.Content
	if err := r.db.Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func treeAnchorClause(query TreeQuery) (string, []interface{}) {
	switch {
	case query.ParentID != nil:
		return "contents.parent_id = ?", []interface{}{*query.ParentID}
	case query.ID != nil:
		return "contents.id = ?", []interface{}{*query.ID}
	case query.OwnerID != nil:
		return "contents.owner_id = ? AND contents.slug = ?", []interface{}{*query.OwnerID, query.Slug}
	default:
		return ownerUsernameSubquery + " AND contents.slug = ?", []interface{}{query.OwnerUsername, query.Slug}
	}
}

func treeSortDirection(query TreeQuery) string {
	old := query.Strategy == models.StrategyOld
	if (!old && query.PublishedAfter != nil) || (old && query.PublishedBefore == nil) {
		return "ASC"
	}
	return "DESC"
}

// FindRootContent ascends parent links from the given id to the ultimate
// ancestor in a single recursive query.
func (r *contentRepository) FindRootContent(id uuid.UUID) (*models.Content, error) {
	sql := fmt.Sprintf(`
	WITH RECURSIVE child_to_root_tree AS (
		SELECT * FROM contents WHERE id = ?
	UNION ALL
		SELECT contents.*
		FROM contents
		JOIN child_to_root_tree ON contents.id = child_to_root_tree.parent_id
	)
	SELECT
		contents.*,
		users.username AS owner_username,
		get_current_balance('content:tabcoin', contents.id) AS tabcoins,
		%s
	FROM child_to_root_tree AS contents
	INNER JOIN users ON contents.owner_id = users.id
	WHERE contents.parent_id IS NULL`, childrenDeepCountSubquery)

	var rows []models.Content
	if err := r.db.Raw(sql, id).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// rankedWindowFilter bounds the ranked listing and its count to the same set
// of rows: published roots no older than one week.
const rankedWindowFilter = `
		contents.parent_id IS NULL
		AND contents.status = 'published'
		AND contents.published_at > (NOW() AT TIME ZONE 'utc') - INTERVAL '1 week'`

// FindAllRanked is the precomputed-rank fast path for the unscoped relevant
// listing: the relevance formula is applied in SQL over recently published
// root content instead of ranking a page in memory.
func (r *contentRepository) FindAllRanked(query ContentQuery) ([]models.Content, error) {
	sql := fmt.Sprintf(`
	WITH latest_published_root_contents AS (
		SELECT
			contents.id,
			contents.published_at,
			get_current_balance('content:tabcoin', contents.id) AS tabcoins,
			COUNT(*) OVER()::INTEGER AS total_rows
		FROM contents
		WHERE %s
	),

	ranked AS (
		SELECT
			id,
			total_rows,
			(tabcoins - 0.5)
				* (CASE WHEN EXTRACT(EPOCH FROM (NOW() AT TIME ZONE 'utc') - published_at) < 600 THEN 3 ELSE 1 END)
				* (CASE WHEN tabcoins > 0
					THEN 1 + EXP(-EXTRACT(EPOCH FROM (NOW() AT TIME ZONE 'utc') - published_at) / 21600)
					ELSE 1 - EXP(-EXTRACT(EPOCH FROM (NOW() AT TIME ZONE 'utc') - published_at) / 21600)
				END) AS score
		FROM latest_published_root_contents
		ORDER BY score DESC
		LIMIT ? OFFSET ?
	)

	SELECT
		%s,
		users.username AS owner_username,
		ranked.total_rows,
		get_current_balance('content:tabcoin', contents.id) AS tabcoins,
		%s
	FROM ranked
	INNER JOIN contents ON contents.id = ranked.id
	INNER JOIN users ON contents.owner_id = users.id
	ORDER BY ranked.score DESC`,
		rankedWindowFilter, selectColumns(query.ExcludeBody), childrenDeepCountSubquery)

	var rows []models.Content
	if err := r.db.Raw(sql, query.effectiveLimit(), query.offset()).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountAllRanked counts exactly the rows FindAllRanked draws from, so the
// pagination metadata of an empty ranked page stays consistent with the
// listing itself.
func (r *contentRepository) CountAllRanked() (int, error) {
	sql := fmt.Sprintf(`SELECT COUNT(*)::INTEGER FROM contents WHERE %s`, rankedWindowFilter)

	var total int
	if err := r.db.Raw(sql).Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func buildOrderBy(order string) string {
	if order == "" {
		return ""
	}
	return "ORDER BY contents." + order
}
