package models

import (
	"time"

	"github.com/google/uuid"
)

type ContentStatus string

const (
	StatusDraft     ContentStatus = "draft"
	StatusPublished ContentStatus = "published"
	StatusDeleted   ContentStatus = "deleted"
)

// Strategy controls the sort order of listings and trees.
type Strategy string

const (
	StrategyNew      Strategy = "new"
	StrategyOld      Strategy = "old"
	StrategyRelevant Strategy = "relevant"
)

func (s Strategy) Valid() bool {
	return s == StrategyNew || s == StrategyOld || s == StrategyRelevant
}

// Content is a post or comment. Comments reference their parent through
// ParentID; rows are never physically removed, "deleted" is a status.
type Content struct {
	ID          uuid.UUID     `json:"id" gorm:"type:uuid;primarykey"`
	OwnerID     uuid.UUID     `json:"owner_id" gorm:"type:uuid;not null;uniqueIndex:idx_contents_owner_slug"`
	ParentID    *uuid.UUID    `json:"parent_id" gorm:"type:uuid;index"`
	Slug        string        `json:"slug" gorm:"size:255;not null;uniqueIndex:idx_contents_owner_slug"`
	Title       *string       `json:"title" gorm:"size:255"`
	Body        string        `json:"body" gorm:"type:text;not null"`
	Status      ContentStatus `json:"status" gorm:"size:20;default:'draft';index"`
	SourceURL   *string       `json:"source_url" gorm:"size:2000"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	PublishedAt *time.Time    `json:"published_at" gorm:"index"`
	DeletedAt   *time.Time    `json:"deleted_at"`

	// Read-path fields, populated by joins and the balance ledger.
	OwnerUsername     string `json:"owner_username" gorm:"->;-:migration"`
	Tabcoins          int    `json:"tabcoins" gorm:"->;-:migration"`
	ChildrenDeepCount int    `json:"children_deep_count" gorm:"->;-:migration"`
	TotalRows         int    `json:"-" gorm:"->;-:migration"`

	Parent   *Content   `json:"parent,omitempty" gorm:"-"`
	Root     *Content   `json:"root,omitempty" gorm:"-"`
	Children []*Content `json:"children,omitempty" gorm:"-"`
}

func (Content) TableName() string {
	return "contents"
}

// TitleOrEmpty flattens the nullable title for validation checks.
func (c *Content) TitleOrEmpty() string {
	if c.Title == nil {
		return ""
	}
	return *c.Title
}
