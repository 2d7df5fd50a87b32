package feeds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"redish/server/internal/apperr"
	"redish/server/internal/blob"
	"redish/server/internal/model"
	"redish/server/internal/store/memory"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type testEnv struct {
	svc   *Service
	store *memory.Store
	blobs *blob.FileStore
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestEnv(t *testing.T, opts ...Option) testEnv {
	t.Helper()
	blobs, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)
	st := memory.NewStore()
	return testEnv{
		svc:   NewService(st, blobs, quietLogger(), opts...),
		store: st,
		blobs: blobs,
	}
}

func parseFeed(t *testing.T, b []byte) *gofeed.Feed {
	t.Helper()
	feed, err := gofeed.NewParser().ParseString(string(b))
	require.NoError(t, err)
	return feed
}

type failingFeedStore struct {
	*memory.Store
}

func (failingFeedStore) CreateFeed(context.Context, model.Feed) (model.Feed, error) {
	return model.Feed{}, errors.New("db down")
}

type failingBlobStore struct {
	blob.Store
}

func (failingBlobStore) Write(context.Context, string, []byte) error {
	return errors.New("disk full")
}

type stubTitles map[string]string

func (s stubTitles) Title(_ context.Context, link string) string {
	if title, ok := s[link]; ok {
		return title
	}
	return link
}

func TestCreateFeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	feedID, err := env.svc.CreateFeed(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, model.IsUUID(feedID))

	row, err := env.store.GetUserFeed(ctx, feedID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, row.Title)
	assert.Equal(t, DefaultDescription, row.Description)
	assert.Equal(t, DefaultLink, row.Link)

	_, err = os.Stat(filepath.Join(env.blobs.Root(), "user-1", feedID+".xml"))
	require.NoError(t, err)

	doc, err := env.svc.GetFeed(ctx, "user-1", feedID)
	require.NoError(t, err)
	feed := parseFeed(t, doc)
	assert.Equal(t, DefaultTitle, feed.Title)
	assert.Empty(t, feed.Items)
}

func TestCreateFeed_RowFailureRemovesDocument(t *testing.T) {
	blobs, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)
	svc := NewService(failingFeedStore{memory.NewStore()}, blobs, quietLogger())

	_, err = svc.CreateFeed(context.Background(), "user-1")
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(blobs.Root(), "user-1"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateFeed_BlobFailureWritesNoRow(t *testing.T) {
	blobs, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)
	st := memory.NewStore()
	svc := NewService(st, failingBlobStore{blobs}, quietLogger())

	_, err = svc.CreateFeed(context.Background(), "user-1")
	require.Error(t, err)

	feeds, err := st.ListFeeds(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, feeds)
}

func TestListFeeds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id1, err := env.svc.CreateFeed(ctx, "user-1")
	require.NoError(t, err)
	id2, err := env.svc.CreateFeed(ctx, "user-1")
	require.NoError(t, err)
	_, err = env.svc.CreateFeed(ctx, "user-2")
	require.NoError(t, err)

	feeds, err := env.svc.ListFeeds(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, feeds, 2)

	ids := []string{feeds[0].ID, feeds[1].ID}
	assert.ElementsMatch(t, []string{id1, id2}, ids)
}

func TestGetFeed_OwnershipMatchesNonexistence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	feedID, err := env.svc.CreateFeed(ctx, "owner")
	require.NoError(t, err)

	_, errOther := env.svc.GetFeed(ctx, "intruder", feedID)
	_, errMissing := env.svc.GetFeed(ctx, "intruder", "00000000-0000-0000-0000-000000000000")

	require.Error(t, errOther)
	require.Error(t, errMissing)
	assert.True(t, apperr.Is(errOther, apperr.KindAccessDenied))
	assert.True(t, apperr.Is(errMissing, apperr.KindAccessDenied))
	assert.Equal(t, errMissing.Error(), errOther.Error())
}

func TestGetFeed_InvalidID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.GetFeed(context.Background(), "user-1", "not-a-uuid")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = env.svc.GetPublicFeed(context.Background(), "not-a-uuid")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestGetFeed_MissingDocumentIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	feedID, err := env.svc.CreateFeed(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(env.blobs.Root(), "user-1", feedID+".xml")))

	_, err = env.svc.GetFeed(ctx, "user-1", feedID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = env.svc.GetPublicFeed(ctx, feedID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = env.svc.AddItem(ctx, "user-1", feedID, "https://example.com")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGetPublicFeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	feedID, err := env.svc.CreateFeed(ctx, "user-1")
	require.NoError(t, err)

	owner, err := env.svc.GetFeed(ctx, "user-1", feedID)
	require.NoError(t, err)
	public, err := env.svc.GetPublicFeed(ctx, feedID)
	require.NoError(t, err)
	assert.Equal(t, owner, public)

	_, err = env.svc.GetPublicFeed(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAddItem_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	feedID, err := env.svc.CreateFeed(ctx, "user-1")
	require.NoError(t, err)

	const link = "https://example.com/post?id=7&ref=rss"
	require.NoError(t, env.svc.AddItem(ctx, "user-1", feedID, link))

	doc, err := env.svc.GetFeed(ctx, "user-1", feedID)
	require.NoError(t, err)
	feed := parseFeed(t, doc)

	assert.Equal(t, DefaultTitle, feed.Title)
	assert.Equal(t, DefaultDescription, feed.Description)
	assert.Equal(t, DefaultLink, feed.Link)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, link, feed.Items[0].Title)
	assert.Equal(t, link, feed.Items[0].Link)
}

func TestAddItem_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	feedID, err := env.svc.CreateFeed(ctx, "user-1")
	require.NoError(t, err)

	err = env.svc.AddItem(ctx, "user-1", feedID, "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	// Ownership is checked before the link.
	err = env.svc.AddItem(ctx, "user-2", feedID, "")
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))

	err = env.svc.AddItem(ctx, "user-2", feedID, "https://example.com")
	assert.True(t, apperr.Is(err, apperr.KindAccessDenied))

	err = env.svc.AddItem(ctx, "user-1", "bogus", "https://example.com")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestAddItem_ConcurrentAppendsKeepEveryItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	feedID, err := env.svc.CreateFeed(ctx, "user-1")
	require.NoError(t, err)

	const n = 25
	var g errgroup.Group
	for i := 0; i < n; i++ {
		link := fmt.Sprintf("https://example.com/%d", i)
		g.Go(func() error {
			return env.svc.AddItem(ctx, "user-1", feedID, link)
		})
	}
	require.NoError(t, g.Wait())

	doc, err := env.svc.GetFeed(ctx, "user-1", feedID)
	require.NoError(t, err)
	feed := parseFeed(t, doc)
	require.Len(t, feed.Items, n)

	seen := make(map[string]bool, n)
	for _, item := range feed.Items {
		seen[item.Link] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, 0, env.svc.locks.size())
}

func TestAddItem_UsesTitleResolver(t *testing.T) {
	env := newTestEnv(t, WithTitleResolver(stubTitles{
		"https://example.com/known": "Known Page",
	}))
	ctx := context.Background()

	feedID, err := env.svc.CreateFeed(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, env.svc.AddItem(ctx, "user-1", feedID, "https://example.com/known"))
	require.NoError(t, env.svc.AddItem(ctx, "user-1", feedID, "https://example.com/unknown"))

	doc, err := env.svc.GetFeed(ctx, "user-1", feedID)
	require.NoError(t, err)
	feed := parseFeed(t, doc)
	require.Len(t, feed.Items, 2)
	assert.Equal(t, "Known Page", feed.Items[0].Title)
	assert.Equal(t, "https://example.com/known", feed.Items[0].Link)
	assert.Equal(t, "https://example.com/unknown", feed.Items[1].Title)
}
