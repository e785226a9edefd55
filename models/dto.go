package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type CreateContentRequest struct {
	ParentID  *uuid.UUID    `json:"parent_id"`
	Slug      string        `json:"slug" binding:"omitempty,max=255"`
	Title     *string       `json:"title" binding:"omitempty,max=255"`
	Body      string        `json:"body" binding:"required,min=1,max=20000"`
	Status    ContentStatus `json:"status" binding:"omitempty,oneof=draft published deleted"`
	SourceURL *string       `json:"source_url" binding:"omitempty,url,max=2000"`
}

// UpdateContentRequest carries a partial merge: nil fields keep the prior
// value.
type UpdateContentRequest struct {
	ParentID  *uuid.UUID     `json:"parent_id"`
	Slug      *string        `json:"slug" binding:"omitempty,max=255"`
	Title     *string        `json:"title" binding:"omitempty,max=255"`
	Body      *string        `json:"body" binding:"omitempty,min=1,max=20000"`
	Status    *ContentStatus `json:"status" binding:"omitempty,oneof=draft published deleted"`
	SourceURL *string        `json:"source_url" binding:"omitempty,url,max=2000"`
}

// ContentWriteOptions tunes a create/update call. EventID attributes the
// resulting ledger entries to a moderation event instead of the content
// itself; SkipBalanceOperations bypasses settlement entirely. RequesterID,
// when set, restricts updates to the content's owner; a nil RequesterID is
// a system call (moderation events).
type ContentWriteOptions struct {
	EventID               *uuid.UUID
	RequesterID           *uuid.UUID
	SkipBalanceOperations bool
}

// FindContentArgs is the composite argument set of the find dispatcher.
// Exactly one addressing mode applies: ParentID, ID, or owner+Slug; with
// none of them the call is a strategy listing.
type FindContentArgs struct {
	ParentID      *uuid.UUID
	ID            *uuid.UUID
	OwnerID       *uuid.UUID
	OwnerUsername string
	Slug          string

	WithParent   bool
	WithRoot     *bool
	WithChildren *bool

	Strategy        Strategy
	Page            int
	PerPage         int
	PublishedBefore *time.Time
	PublishedAfter  *time.Time
}

type Pagination struct {
	CurrentPage  int      `json:"current_page"`
	TotalRows    int      `json:"total_rows"`
	PerPage      int      `json:"per_page"`
	FirstPage    int      `json:"first_page"`
	NextPage     *int     `json:"next_page"`
	PreviousPage *int     `json:"previous_page"`
	LastPage     int      `json:"last_page"`
	Strategy     Strategy `json:"strategy,omitempty"`
}

// BuildPagination computes the page links for a listing. NextPage and
// PreviousPage are nil at the edges; a page beyond the last one points back
// at the last page.
func BuildPagination(totalRows, perPage, page int, strategy Strategy) Pagination {
	lastPage := int(math.Ceil(float64(totalRows) / float64(perPage)))

	var nextPage, previousPage *int
	if page < lastPage {
		n := page + 1
		nextPage = &n
	}
	if page > 1 {
		p := page - 1
		if page > lastPage {
			p = lastPage
		}
		previousPage = &p
	}

	return Pagination{
		CurrentPage:  page,
		TotalRows:    totalRows,
		PerPage:      perPage,
		FirstPage:    1,
		NextPage:     nextPage,
		PreviousPage: previousPage,
		LastPage:     lastPage,
		Strategy:     strategy,
	}
}

// ContentPage is one page of a strategy listing.
type ContentPage struct {
	Rows       []Content  `json:"rows"`
	Pagination Pagination `json:"pagination"`
}

// FindResult is the union returned by the find dispatcher: a single content
// (possibly expanded with parent/root/children), a children tree, or a
// listing page. Exactly one of the three is set.
type FindResult struct {
	Content *Content     `json:"content,omitempty"`
	Tree    []*Content   `json:"tree,omitempty"`
	Page    *ContentPage `json:"page,omitempty"`
}
