package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tabforum/models"
	"tabforum/repositories"
)

type fakeContentRepo struct {
	byID              map[uuid.UUID]*models.Content
	inserted          []*models.Content
	updated           []*models.Content
	listing           []models.Content
	ranked            []models.Content
	tree              []models.Content
	root              *models.Content
	countAll          int
	countAllRanked    int
	lastQuery         repositories.ContentQuery
	rankedCalled      bool
	rankedCountCalled bool
}

func newFakeContentRepo() *fakeContentRepo {
	return &fakeContentRepo{byID: map[uuid.UUID]*models.Content{}}
}

func (f *fakeContentRepo) WithTx(*gorm.DB) repositories.ContentRepository { return f }

func (f *fakeContentRepo) FindAll(query repositories.ContentQuery) ([]models.Content, error) {
	f.lastQuery = query
	return f.listing, nil
}

func (f *fakeContentRepo) FindAllRanked(query repositories.ContentQuery) ([]models.Content, error) {
	f.lastQuery = query
	f.rankedCalled = true
	return f.ranked, nil
}

func (f *fakeContentRepo) CountAll(repositories.ContentQuery) (int, error) {
	return f.countAll, nil
}

func (f *fakeContentRepo) CountAllRanked() (int, error) {
	f.rankedCountCalled = true
	return f.countAllRanked, nil
}

func (f *fakeContentRepo) FindOne(where []repositories.Condition) (*models.Content, error) {
	var id *uuid.UUID
	var status *models.ContentStatus
	for _, condition := range where {
		equals, ok := condition.(repositories.Equals)
		if !ok {
			continue
		}
		switch equals.Column {
		case "id":
			value := equals.Value.(uuid.UUID)
			id = &value
		case "status":
			value := equals.Value.(models.ContentStatus)
			status = &value
		}
	}
	if id == nil {
		return nil, nil
	}
	content, ok := f.byID[*id]
	if !ok {
		return nil, nil
	}
	if status != nil && content.Status != *status {
		return nil, nil
	}
	found := *content
	return &found, nil
}

func (f *fakeContentRepo) Insert(content *models.Content) error {
	stored := *content
	f.byID[content.ID] = &stored
	f.inserted = append(f.inserted, &stored)
	return nil
}

func (f *fakeContentRepo) Update(content *models.Content) error {
	stored := *content
	f.byID[content.ID] = &stored
	f.updated = append(f.updated, &stored)
	return nil
}

func (f *fakeContentRepo) FindTree(repositories.TreeQuery) ([]models.Content, error) {
	return f.tree, nil
}

func (f *fakeContentRepo) FindRootContent(uuid.UUID) (*models.Content, error) {
	return f.root, nil
}

type fakeBalanceRepo struct {
	operations []models.BalanceOperation
}

func (f *fakeBalanceRepo) WithTx(*gorm.DB) repositories.BalanceRepository { return f }

func (f *fakeBalanceRepo) GetTotal(balanceType models.BalanceType, recipientID uuid.UUID) (int, error) {
	total := 0
	for _, operation := range f.operations {
		if operation.BalanceType == balanceType && operation.RecipientID == recipientID {
			total += operation.Amount
		}
	}
	return total, nil
}

func (f *fakeBalanceRepo) Create(operation *models.BalanceOperation) error {
	f.operations = append(f.operations, *operation)
	return nil
}

type fakeUserRepo struct {
	byID map[uuid.UUID]*models.User
}

func (f *fakeUserRepo) WithTx(*gorm.DB) repositories.UserRepository { return f }

func (f *fakeUserRepo) Create(user *models.User) error {
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUserRepo) GetByID(id uuid.UUID) (*models.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetByUsername(string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

type fakePrestigeRepo struct {
	rootEarnings    int
	childEarnings   int
	contentEarnings int
}

func (f *fakePrestigeRepo) WithTx(*gorm.DB) repositories.PrestigeRepository { return f }

func (f *fakePrestigeRepo) GetByContentID(uuid.UUID) (int, error) {
	return f.contentEarnings, nil
}

func (f *fakePrestigeRepo) GetByUserID(_ uuid.UUID, isRoot bool) (int, error) {
	if isRoot {
		return f.rootEarnings, nil
	}
	return f.childEarnings, nil
}

type serviceFixture struct {
	now      time.Time
	ownerID  uuid.UUID
	contents *fakeContentRepo
	balances *fakeBalanceRepo
	users    *fakeUserRepo
	prestige *fakePrestigeRepo
	service  *contentService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	fixture := &serviceFixture{
		now:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		ownerID:  uuid.New(),
		contents: newFakeContentRepo(),
		balances: &fakeBalanceRepo{},
		users:    &fakeUserRepo{byID: map[uuid.UUID]*models.User{}},
		prestige: &fakePrestigeRepo{rootEarnings: 2, childEarnings: 1, contentEarnings: 1},
	}
	fixture.users.byID[fixture.ownerID] = &models.User{ID: fixture.ownerID, Username: "owner"}

	fixture.service = &contentService{
		db:       db,
		contents: fixture.contents,
		balances: fixture.balances,
		users:    fixture.users,
		tabcoins: NewTabcoinService(fixture.balances, fixture.prestige),
		now:      func() time.Time { return fixture.now },
	}
	return fixture
}

func (f *serviceFixture) seedContent(t *testing.T, content models.Content) *models.Content {
	t.Helper()
	if content.ID == uuid.Nil {
		content.ID = uuid.New()
	}
	if content.OwnerID == uuid.Nil {
		content.OwnerID = f.ownerID
	}
	if content.Body == "" {
		content.Body = "body"
	}
	stored := content
	f.contents.byID[stored.ID] = &stored
	return &stored
}

func strPtr(s string) *string { return &s }

func statusPtr(s models.ContentStatus) *models.ContentStatus { return &s }

func boolPtr(b bool) *bool { return &b }

func TestCreateRootContentRequiresTitle(t *testing.T) {
	fixture := newServiceFixture(t)

	_, err := fixture.service.Create(fixture.ownerID, models.CreateContentRequest{
		Body: "No title here",
	}, models.ContentWriteOptions{})

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "title", validation.Key)
}

func TestCreateRejectsExplicitDeletedStatus(t *testing.T) {
	fixture := newServiceFixture(t)

	_, err := fixture.service.Create(fixture.ownerID, models.CreateContentRequest{
		Title:  strPtr("A title"),
		Body:   "body",
		Status: models.StatusDeleted,
	}, models.ContentWriteOptions{})

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "status", validation.Key)
}

func TestCreateGeneratesSlugFromTitle(t *testing.T) {
	fixture := newServiceFixture(t)

	content, err := fixture.service.Create(fixture.ownerID, models.CreateContentRequest{
		Title: strPtr("My First Post"),
		Body:  "body",
	}, models.ContentWriteOptions{})

	require.NoError(t, err)
	assert.Equal(t, "my-first-post", content.Slug)
	assert.Equal(t, models.StatusDraft, content.Status)
	assert.Nil(t, content.PublishedAt)
	assert.Equal(t, "owner", content.OwnerUsername)
}

func TestCreateFallsBackToRandomSlug(t *testing.T) {
	fixture := newServiceFixture(t)
	parent := fixture.seedContent(t, models.Content{
		OwnerID: uuid.New(),
		Slug:    "parent",
		Status:  models.StatusPublished,
	})

	content, err := fixture.service.Create(fixture.ownerID, models.CreateContentRequest{
		ParentID: &parent.ID,
		Body:     "a reply without a title",
	}, models.ContentWriteOptions{})

	require.NoError(t, err)
	_, parseErr := uuid.Parse(content.Slug)
	assert.NoError(t, parseErr)
}

func TestCreateParentMustExist(t *testing.T) {
	fixture := newServiceFixture(t)
	missingID := uuid.New()

	_, err := fixture.service.Create(fixture.ownerID, models.CreateContentRequest{
		ParentID: &missingID,
		Body:     "orphan reply",
	}, models.ContentWriteOptions{})

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "parent_id", validation.Key)
}

func TestCreatePublishedCreditsLedger(t *testing.T) {
	fixture := newServiceFixture(t)

	content, err := fixture.service.Create(fixture.ownerID, models.CreateContentRequest{
		Title:  strPtr("Fresh publication"),
		Body:   "body",
		Status: models.StatusPublished,
	}, models.ContentWriteOptions{})

	require.NoError(t, err)
	require.NotNil(t, content.PublishedAt)
	assert.True(t, content.PublishedAt.Equal(fixture.now))

	require.Len(t, fixture.balances.operations, 2)
	userOp := fixture.balances.operations[0]
	assert.Equal(t, models.BalanceTypeUserTabcoin, userOp.BalanceType)
	assert.Equal(t, fixture.ownerID, userOp.RecipientID)
	assert.Equal(t, 2, userOp.Amount)
	assert.Equal(t, models.OriginatorContent, userOp.OriginatorType)
	assert.Equal(t, content.ID, userOp.OriginatorID)

	contentOp := fixture.balances.operations[1]
	assert.Equal(t, models.BalanceTypeContentTabcoin, contentOp.BalanceType)
	assert.Equal(t, content.ID, contentOp.RecipientID)
	assert.Equal(t, 1, contentOp.Amount)

	assert.Equal(t, 1, content.Tabcoins)
}

func TestCreateSelfReplySettlesNothing(t *testing.T) {
	fixture := newServiceFixture(t)
	parent := fixture.seedContent(t, models.Content{
		Slug:   "own-post",
		Status: models.StatusPublished,
	})

	content, err := fixture.service.Create(fixture.ownerID, models.CreateContentRequest{
		ParentID: &parent.ID,
		Body:     "replying to myself",
		Status:   models.StatusPublished,
	}, models.ContentWriteOptions{})

	require.NoError(t, err)
	assert.Empty(t, fixture.balances.operations)
	assert.Equal(t, 0, content.Tabcoins)
}

func TestCreateBlockedByNegativePrestige(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.prestige.rootEarnings = -1

	_, err := fixture.service.Create(fixture.ownerID, models.CreateContentRequest{
		Title:  strPtr("Blocked publication"),
		Body:   "body",
		Status: models.StatusPublished,
	}, models.ContentWriteOptions{})

	var forbidden *models.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Empty(t, fixture.balances.operations)
}

func TestCreateSkipBalanceOperations(t *testing.T) {
	fixture := newServiceFixture(t)

	content, err := fixture.service.Create(fixture.ownerID, models.CreateContentRequest{
		Title:  strPtr("Imported publication"),
		Body:   "body",
		Status: models.StatusPublished,
	}, models.ContentWriteOptions{SkipBalanceOperations: true})

	require.NoError(t, err)
	assert.Empty(t, fixture.balances.operations)
	assert.Equal(t, 0, content.Tabcoins)
}

func TestUpdateNotFound(t *testing.T) {
	fixture := newServiceFixture(t)

	_, err := fixture.service.Update(uuid.New(), models.UpdateContentRequest{
		Body: strPtr("updated"),
	}, models.ContentWriteOptions{})

	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestUpdateForbiddenForNonOwner(t *testing.T) {
	fixture := newServiceFixture(t)
	existing := fixture.seedContent(t, models.Content{
		Slug:   "someones-post",
		Title:  strPtr("Someone's post"),
		Status: models.StatusDraft,
	})
	requesterID := uuid.New()

	_, err := fixture.service.Update(existing.ID, models.UpdateContentRequest{
		Body: strPtr("hijacked"),
	}, models.ContentWriteOptions{RequesterID: &requesterID})

	var forbidden *models.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
}

func TestUpdateDeletedContentRejected(t *testing.T) {
	fixture := newServiceFixture(t)
	deletedAt := fixture.now.Add(-time.Hour)
	existing := fixture.seedContent(t, models.Content{
		Slug:      "gone",
		Title:     strPtr("Gone"),
		Status:    models.StatusDeleted,
		DeletedAt: &deletedAt,
	})

	_, err := fixture.service.Update(existing.ID, models.UpdateContentRequest{
		Body: strPtr("resurrection attempt"),
	}, models.ContentWriteOptions{})

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "status", validation.Key)
}

func TestUpdatePublishedCannotReturnToDraft(t *testing.T) {
	fixture := newServiceFixture(t)
	publishedAt := fixture.now.Add(-time.Hour)
	existing := fixture.seedContent(t, models.Content{
		Slug:        "published-post",
		Title:       strPtr("Published post"),
		Status:      models.StatusPublished,
		PublishedAt: &publishedAt,
	})

	_, err := fixture.service.Update(existing.ID, models.UpdateContentRequest{
		Status: statusPtr(models.StatusDraft),
	}, models.ContentWriteOptions{})

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "status", validation.Key)
}

func TestUpdatePreservesPublishedAt(t *testing.T) {
	fixture := newServiceFixture(t)
	publishedAt := fixture.now.Add(-time.Hour)
	existing := fixture.seedContent(t, models.Content{
		Slug:        "edited-post",
		Title:       strPtr("Edited post"),
		Status:      models.StatusPublished,
		PublishedAt: &publishedAt,
	})

	updated, err := fixture.service.Update(existing.ID, models.UpdateContentRequest{
		Body: strPtr("a better body"),
	}, models.ContentWriteOptions{})

	require.NoError(t, err)
	require.NotNil(t, updated.PublishedAt)
	assert.True(t, updated.PublishedAt.Equal(publishedAt))
	assert.Equal(t, "a better body", updated.Body)
}

func TestUpdateDraftPublishCreditsLedger(t *testing.T) {
	fixture := newServiceFixture(t)
	existing := fixture.seedContent(t, models.Content{
		Slug:   "draft-post",
		Title:  strPtr("Draft post"),
		Status: models.StatusDraft,
	})

	updated, err := fixture.service.Update(existing.ID, models.UpdateContentRequest{
		Status: statusPtr(models.StatusPublished),
	}, models.ContentWriteOptions{})

	require.NoError(t, err)
	require.NotNil(t, updated.PublishedAt)
	assert.True(t, updated.PublishedAt.Equal(fixture.now))
	require.Len(t, fixture.balances.operations, 2)
	assert.Equal(t, 1, updated.Tabcoins)
}

func TestUpdateDeletePublishedDebitsOwner(t *testing.T) {
	fixture := newServiceFixture(t)
	publishedAt := fixture.now.Add(-time.Hour)
	existing := fixture.seedContent(t, models.Content{
		Slug:        "to-delete",
		Title:       strPtr("To delete"),
		Status:      models.StatusPublished,
		PublishedAt: &publishedAt,
	})
	// the content holds 3 tabcoins and earned its owner 1 on publish
	fixture.balances.operations = append(fixture.balances.operations, models.BalanceOperation{
		BalanceType: models.BalanceTypeContentTabcoin,
		RecipientID: existing.ID,
		Amount:      3,
	})
	fixture.prestige.contentEarnings = 1

	updated, err := fixture.service.Update(existing.ID, models.UpdateContentRequest{
		Status: statusPtr(models.StatusDeleted),
	}, models.ContentWriteOptions{})

	require.NoError(t, err)
	assert.Equal(t, models.StatusDeleted, updated.Status)
	require.NotNil(t, updated.DeletedAt)
	assert.True(t, updated.DeletedAt.Equal(fixture.now))

	require.Len(t, fixture.balances.operations, 2)
	debit := fixture.balances.operations[1]
	assert.Equal(t, models.BalanceTypeUserTabcoin, debit.BalanceType)
	assert.Equal(t, existing.OwnerID, debit.RecipientID)
	assert.Equal(t, -3, debit.Amount)
}

func TestUpdateRejectsSelfParent(t *testing.T) {
	fixture := newServiceFixture(t)
	existing := fixture.seedContent(t, models.Content{
		Slug:   "self-referencing",
		Title:  strPtr("Self referencing"),
		Status: models.StatusDraft,
	})

	_, err := fixture.service.Update(existing.ID, models.UpdateContentRequest{
		ParentID: &existing.ID,
	}, models.ContentWriteOptions{})

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "parent_id", validation.Key)
}

func TestUpdateEventOriginatesLedgerEntries(t *testing.T) {
	fixture := newServiceFixture(t)
	publishedAt := fixture.now.Add(-time.Hour)
	existing := fixture.seedContent(t, models.Content{
		Slug:        "moderated",
		Title:       strPtr("Moderated"),
		Status:      models.StatusPublished,
		PublishedAt: &publishedAt,
	})
	eventID := uuid.New()

	_, err := fixture.service.Update(existing.ID, models.UpdateContentRequest{
		Status: statusPtr(models.StatusDeleted),
	}, models.ContentWriteOptions{EventID: &eventID})

	require.NoError(t, err)
	require.Len(t, fixture.balances.operations, 1)
	assert.Equal(t, models.OriginatorEvent, fixture.balances.operations[0].OriginatorType)
	assert.Equal(t, eventID, fixture.balances.operations[0].OriginatorID)
}

func TestFindSlugWithoutOwnerRejected(t *testing.T) {
	fixture := newServiceFixture(t)

	_, err := fixture.service.Find(models.FindContentArgs{Slug: "some-slug"})

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestFindWithParentRequiresAddress(t *testing.T) {
	fixture := newServiceFixture(t)

	_, err := fixture.service.Find(models.FindContentArgs{WithParent: true})

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestFindRejectsDisablingRootAndChildren(t *testing.T) {
	fixture := newServiceFixture(t)

	_, err := fixture.service.Find(models.FindContentArgs{
		WithRoot:     boolPtr(false),
		WithChildren: boolPtr(false),
	})

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestFindGlobalRelevantUsesRankedListing(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.contents.ranked = []models.Content{
		{ID: uuid.New(), Slug: "top", TotalRows: 12},
	}

	result, err := fixture.service.Find(models.FindContentArgs{Strategy: models.StrategyRelevant})

	require.NoError(t, err)
	assert.True(t, fixture.contents.rankedCalled)
	require.NotNil(t, result.Page)
	assert.Equal(t, 12, result.Page.Pagination.TotalRows)
	assert.Equal(t, models.StrategyRelevant, result.Page.Pagination.Strategy)
}

func TestFindGlobalRelevantEmptyPageCountsRankedWindow(t *testing.T) {
	fixture := newServiceFixture(t)
	// stale roots exist outside the ranked window
	fixture.contents.countAll = 100
	fixture.contents.countAllRanked = 0

	result, err := fixture.service.Find(models.FindContentArgs{Strategy: models.StrategyRelevant})

	require.NoError(t, err)
	assert.True(t, fixture.contents.rankedCalled)
	assert.True(t, fixture.contents.rankedCountCalled)
	require.NotNil(t, result.Page)
	assert.Equal(t, 0, result.Page.Pagination.TotalRows)
	assert.Equal(t, 0, result.Page.Pagination.LastPage)
	assert.Nil(t, result.Page.Pagination.NextPage)
}

func TestFindScopedRelevantRanksInMemory(t *testing.T) {
	fixture := newServiceFixture(t)
	older := fixture.now.Add(-8 * time.Hour)
	fresher := fixture.now.Add(-1 * time.Hour)
	fixture.contents.listing = []models.Content{
		{ID: uuid.New(), Slug: "older-low", Tabcoins: 1, PublishedAt: &older, TotalRows: 2},
		{ID: uuid.New(), Slug: "fresher-high", Tabcoins: 6, PublishedAt: &fresher, TotalRows: 2},
	}

	result, err := fixture.service.Find(models.FindContentArgs{
		OwnerUsername: "owner",
		Strategy:      models.StrategyRelevant,
	})

	require.NoError(t, err)
	assert.False(t, fixture.contents.rankedCalled)
	require.NotNil(t, result.Page)
	require.Len(t, result.Page.Rows, 2)
	assert.Equal(t, "fresher-high", result.Page.Rows[0].Slug)
}

func TestFindNewStrategyOrdersByPublishedAtDesc(t *testing.T) {
	fixture := newServiceFixture(t)

	_, err := fixture.service.Find(models.FindContentArgs{Strategy: models.StrategyNew})

	require.NoError(t, err)
	assert.Equal(t, "published_at DESC", fixture.contents.lastQuery.Order)
	assert.True(t, fixture.contents.lastQuery.ExcludeBody)
}

func TestFindEmptyListingFallsBackToCount(t *testing.T) {
	fixture := newServiceFixture(t)
	fixture.contents.countAll = 0

	result, err := fixture.service.Find(models.FindContentArgs{Strategy: models.StrategyNew})

	require.NoError(t, err)
	require.NotNil(t, result.Page)
	assert.Equal(t, 0, result.Page.Pagination.TotalRows)
	assert.Equal(t, 0, result.Page.Pagination.LastPage)
}

func TestFindTreeRequiresAnchor(t *testing.T) {
	fixture := newServiceFixture(t)

	_, err := fixture.service.FindTree(repositories.TreeQuery{})

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestFindByParentIDReturnsAssembledTree(t *testing.T) {
	fixture := newServiceFixture(t)
	parentID := uuid.New()
	anchorID := uuid.New()
	replyAt := fixture.now.Add(-time.Hour)
	nestedAt := fixture.now.Add(-30 * time.Minute)
	fixture.contents.tree = []models.Content{
		{ID: anchorID, ParentID: &parentID, Slug: "anchor", Status: models.StatusPublished, PublishedAt: &replyAt},
		{ID: uuid.New(), ParentID: &anchorID, Slug: "nested", Status: models.StatusPublished, PublishedAt: &nestedAt},
	}

	result, err := fixture.service.Find(models.FindContentArgs{ParentID: &parentID})

	require.NoError(t, err)
	require.Len(t, result.Tree, 1)
	assert.Equal(t, "anchor", result.Tree[0].Slug)
	require.Len(t, result.Tree[0].Children, 1)
	assert.Equal(t, "nested", result.Tree[0].Children[0].Slug)
}
