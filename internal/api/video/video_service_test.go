package video

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/viberoll/viberoll/app/tracer"
	"github.com/viberoll/viberoll/internal/types"
)

func TestMain(m *testing.M) {
	tracer.InitAppMetrics()
	os.Exit(m.Run())
}

type MockVideoRepo struct {
	mock.Mock
}

func (m *MockVideoRepo) CreateVideo(ctx context.Context, params CreateVideoParams) (*types.Video, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Video), args.Error(1)
}

func (m *MockVideoRepo) ListVideos(ctx context.Context, viewerID *int64) ([]types.Video, error) {
	args := m.Called(ctx, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Video), args.Error(1)
}

func (m *MockVideoRepo) GetVideoByID(ctx context.Context, id uuid.UUID) (*types.Video, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Video), args.Error(1)
}

func (m *MockVideoRepo) SetVideoTags(ctx context.Context, id uuid.UUID, tags []string) error {
	args := m.Called(ctx, id, tags)
	return args.Error(0)
}

type MockUploadStore struct {
	mock.Mock
}

func (m *MockUploadStore) PresignPut(ctx context.Context) (string, string, error) {
	args := m.Called(ctx)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockUploadStore) PresignGet(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

type MockTagger struct {
	mock.Mock
}

func (m *MockTagger) SuggestTags(ctx context.Context, title, description string) ([]string, error) {
	args := m.Called(ctx, title, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTagger) Enabled() bool {
	args := m.Called()
	return args.Bool(0)
}

func disabledTagger() *MockTagger {
	tagger := new(MockTagger)
	tagger.On("Enabled").Return(false).Maybe()
	return tagger
}

func newTestVideoService(t *testing.T, repo VideoRepo, uploads UploadStore, tagger *MockTagger) *VideoServiceImpl {
	t.Helper()
	cache, _ := newTestCache(t)
	return NewVideoService(repo, cache, uploads, tagger, slog.Default())
}

func TestListVideosService(t *testing.T) {
	t.Run("CachesDatabaseResult", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockVideoRepo)
		mockUploads := new(MockUploadStore)
		service := newTestVideoService(t, mockRepo, mockUploads, disabledTagger())

		listing := sampleListing()
		mockRepo.On("ListVideos", ctx, (*int64)(nil)).Return(listing, nil).Once()
		mockUploads.On("PresignGet", ctx, listing[0].Key).Return("https://cdn/first?sig=1", nil)

		first, err := service.List(ctx, nil)
		assert.NoError(t, err)
		assert.Len(t, first, 1)
		assert.Equal(t, "https://cdn/first?sig=1", first[0].URL)

		// Second read must come from cache: the repo expectation is Once.
		second, err := service.List(ctx, nil)
		assert.NoError(t, err)
		assert.Len(t, second, 1)

		mockRepo.AssertExpectations(t)
	})

	t.Run("ResignsURLsOnEveryRead", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockVideoRepo)
		mockUploads := new(MockUploadStore)
		service := newTestVideoService(t, mockRepo, mockUploads, disabledTagger())

		listing := sampleListing()
		mockRepo.On("ListVideos", ctx, (*int64)(nil)).Return(listing, nil).Once()
		mockUploads.On("PresignGet", ctx, listing[0].Key).Return("https://cdn/first?sig=1", nil).Once()
		mockUploads.On("PresignGet", ctx, listing[0].Key).Return("https://cdn/first?sig=2", nil).Once()

		first, err := service.List(ctx, nil)
		assert.NoError(t, err)
		assert.Equal(t, "https://cdn/first?sig=1", first[0].URL)

		// A cache hit still goes through the signer, so the link a viewer
		// receives is always fresh regardless of how long the listing has
		// been cached.
		second, err := service.List(ctx, nil)
		assert.NoError(t, err)
		assert.Equal(t, "https://cdn/first?sig=2", second[0].URL)

		mockUploads.AssertExpectations(t)
	})

	t.Run("EmptyFeedIsNotAnError", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockVideoRepo)
		service := newTestVideoService(t, mockRepo, new(MockUploadStore), disabledTagger())

		mockRepo.On("ListVideos", ctx, (*int64)(nil)).Return([]types.Video(nil), nil).Once()

		videos, err := service.List(ctx, nil)

		assert.NoError(t, err)
		assert.NotNil(t, videos)
		assert.Empty(t, videos)
	})

	t.Run("SignerFailureIsInternal", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockVideoRepo)
		mockUploads := new(MockUploadStore)
		service := newTestVideoService(t, mockRepo, mockUploads, disabledTagger())

		mockRepo.On("ListVideos", ctx, (*int64)(nil)).Return(sampleListing(), nil).Once()
		mockUploads.On("PresignGet", ctx, mock.Anything).Return("", assert.AnError).Once()

		_, err := service.List(ctx, nil)
		assert.ErrorIs(t, err, types.ErrInternal)
	})
}

func TestCreateVideoService(t *testing.T) {
	t.Run("InvalidatesListings", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockVideoRepo)
		mockUploads := new(MockUploadStore)
		service := newTestVideoService(t, mockRepo, mockUploads, disabledTagger())

		// Warm the public cache, then upload and expect a fresh read.
		warm := sampleListing()
		mockRepo.On("ListVideos", ctx, (*int64)(nil)).Return(warm, nil).Twice()
		mockUploads.On("PresignGet", ctx, mock.Anything).Return("https://cdn/signed", nil)
		_, err := service.List(ctx, nil)
		assert.NoError(t, err)

		created := &types.Video{ID: uuid.New(), Creator: 7, Title: "new", Key: "videos/2026/08/30/abc", Visibility: types.VisibilityPublic}
		mockRepo.On("CreateVideo", ctx, CreateVideoParams{
			Creator:    7,
			Title:      "new",
			Key:        "videos/2026/08/30/abc",
			Visibility: types.VisibilityPublic,
		}).Return(created, nil).Once()

		_, err = service.Create(ctx, 7, CreateVideoRequest{Key: "videos/2026/08/30/abc", Title: "new"})
		assert.NoError(t, err)

		_, err = service.List(ctx, nil)
		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("PersistsObjectKeyNotSignedURL", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockVideoRepo)
		mockUploads := new(MockUploadStore)
		service := newTestVideoService(t, mockRepo, mockUploads, disabledTagger())

		// Signed URLs expire in minutes; the row must carry the bare key so
		// listings served later can sign a fresh one.
		signed := "https://bucket.s3.amazonaws.com/videos/k1?X-Amz-Expires=900&X-Amz-Signature=abc"
		mockUploads.On("PresignGet", ctx, "videos/k1").Return(signed, nil).Once()

		var inserted CreateVideoParams
		mockRepo.On("CreateVideo", ctx, mock.MatchedBy(func(p CreateVideoParams) bool {
			inserted = p
			return true
		})).Return(&types.Video{ID: uuid.New(), Creator: 7, Key: "videos/k1"}, nil).Once()

		video, err := service.Create(ctx, 7, CreateVideoRequest{Key: "videos/k1", Title: "t"})
		assert.NoError(t, err)
		assert.Equal(t, "videos/k1", inserted.Key)
		assert.Equal(t, signed, video.URL)
	})

	t.Run("SignerFailureDoesNotUndoCreate", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockVideoRepo)
		mockUploads := new(MockUploadStore)
		service := newTestVideoService(t, mockRepo, mockUploads, disabledTagger())

		mockRepo.On("CreateVideo", ctx, mock.Anything).
			Return(&types.Video{ID: uuid.New(), Creator: 7, Key: "k"}, nil).Once()
		mockUploads.On("PresignGet", ctx, "k").Return("", assert.AnError).Once()

		video, err := service.Create(ctx, 7, CreateVideoRequest{Key: "k", Title: "t"})
		assert.NoError(t, err)
		assert.Empty(t, video.URL)
	})

	t.Run("DefaultsToPublic", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockVideoRepo)
		mockUploads := new(MockUploadStore)
		service := newTestVideoService(t, mockRepo, mockUploads, disabledTagger())

		mockUploads.On("PresignGet", ctx, mock.Anything).Return("https://cdn/k", nil)
		mockRepo.On("CreateVideo", ctx, mock.MatchedBy(func(p CreateVideoParams) bool {
			return p.Visibility == types.VisibilityPublic
		})).Return(&types.Video{ID: uuid.New(), Key: "k"}, nil).Once()

		_, err := service.Create(ctx, 7, CreateVideoRequest{Key: "k", Title: "t"})
		assert.NoError(t, err)
	})

	t.Run("RejectsBadInput", func(t *testing.T) {
		service := newTestVideoService(t, new(MockVideoRepo), new(MockUploadStore), disabledTagger())

		_, err := service.Create(context.Background(), 7, CreateVideoRequest{Title: "no key"})
		assert.ErrorIs(t, err, types.ErrBadRequest)

		_, err = service.Create(context.Background(), 7, CreateVideoRequest{Key: "k", Title: "t", Visibility: "unlisted"})
		assert.ErrorIs(t, err, types.ErrBadRequest)
	})
}

func TestGetVideoService(t *testing.T) {
	ctx := context.Background()

	t.Run("SignsStoredKey", func(t *testing.T) {
		mockRepo := new(MockVideoRepo)
		mockUploads := new(MockUploadStore)
		service := newTestVideoService(t, mockRepo, mockUploads, disabledTagger())

		videoID := uuid.New()
		mockRepo.On("GetVideoByID", ctx, videoID).
			Return(&types.Video{ID: videoID, Creator: 1, Key: "videos/k", Visibility: types.VisibilityPublic}, nil).Once()
		mockUploads.On("PresignGet", ctx, "videos/k").Return("https://cdn/k?sig=1", nil).Once()

		video, err := service.Get(ctx, nil, videoID)
		assert.NoError(t, err)
		assert.Equal(t, "https://cdn/k?sig=1", video.URL)
	})

	t.Run("PrivateVideoHiddenFromOthers", func(t *testing.T) {
		mockRepo := new(MockVideoRepo)
		mockUploads := new(MockUploadStore)
		service := newTestVideoService(t, mockRepo, mockUploads, disabledTagger())

		videoID := uuid.New()
		mockRepo.On("GetVideoByID", ctx, videoID).
			Return(&types.Video{ID: videoID, Creator: 1, Key: "k", Visibility: types.VisibilityPrivate}, nil)

		_, err := service.Get(ctx, nil, videoID)
		assert.ErrorIs(t, err, types.ErrNotFound)

		stranger := int64(8)
		_, err = service.Get(ctx, &stranger, videoID)
		assert.ErrorIs(t, err, types.ErrNotFound)

		mockUploads.AssertNotCalled(t, "PresignGet")
	})

	t.Run("PrivateVideoVisibleToCreator", func(t *testing.T) {
		mockRepo := new(MockVideoRepo)
		mockUploads := new(MockUploadStore)
		service := newTestVideoService(t, mockRepo, mockUploads, disabledTagger())

		videoID := uuid.New()
		mockRepo.On("GetVideoByID", ctx, videoID).
			Return(&types.Video{ID: videoID, Creator: 7, Key: "k", Visibility: types.VisibilityPrivate}, nil).Once()
		mockUploads.On("PresignGet", ctx, "k").Return("https://cdn/k", nil).Once()

		creator := int64(7)
		video, err := service.Get(ctx, &creator, videoID)
		assert.NoError(t, err)
		assert.Equal(t, "https://cdn/k", video.URL)
	})

	t.Run("Missing", func(t *testing.T) {
		mockRepo := new(MockVideoRepo)
		service := newTestVideoService(t, mockRepo, new(MockUploadStore), disabledTagger())

		videoID := uuid.New()
		mockRepo.On("GetVideoByID", ctx, videoID).Return(nil, types.ErrNotFound).Once()

		_, err := service.Get(ctx, nil, videoID)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("SignerFailureIsInternal", func(t *testing.T) {
		mockRepo := new(MockVideoRepo)
		mockUploads := new(MockUploadStore)
		service := newTestVideoService(t, mockRepo, mockUploads, disabledTagger())

		videoID := uuid.New()
		mockRepo.On("GetVideoByID", ctx, videoID).
			Return(&types.Video{ID: videoID, Creator: 1, Key: "k", Visibility: types.VisibilityPublic}, nil).Once()
		mockUploads.On("PresignGet", ctx, "k").Return("", assert.AnError).Once()

		_, err := service.Get(ctx, nil, videoID)
		assert.ErrorIs(t, err, types.ErrInternal)
	})
}

func TestTagAsync(t *testing.T) {
	t.Run("StoresSuggestedTags", func(t *testing.T) {
		mockRepo := new(MockVideoRepo)
		mockTagger := new(MockTagger)
		service := newTestVideoService(t, mockRepo, new(MockUploadStore), mockTagger)

		videoID := uuid.New()
		mockTagger.On("SuggestTags", mock.Anything, "t", "d").Return([]string{"dance"}, nil).Once()
		mockRepo.On("SetVideoTags", mock.Anything, videoID, []string{"dance"}).Return(nil).Once()

		service.tagAsync(videoID, 7, "t", "d")

		mockRepo.AssertExpectations(t)
		mockTagger.AssertExpectations(t)
	})

	t.Run("NoTagsMeansNoWrite", func(t *testing.T) {
		mockRepo := new(MockVideoRepo)
		mockTagger := new(MockTagger)
		service := newTestVideoService(t, mockRepo, new(MockUploadStore), mockTagger)

		mockTagger.On("SuggestTags", mock.Anything, "t", "d").Return([]string{}, nil).Once()

		service.tagAsync(uuid.New(), 7, "t", "d")

		mockRepo.AssertNotCalled(t, "SetVideoTags")
	})
}
