package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fonsecaaso/linkdrop/go-server/internal/model"
	"github.com/fonsecaaso/linkdrop/go-server/internal/repository"
	"github.com/fonsecaaso/linkdrop/go-server/internal/service"
)

type MockLinkService struct {
	mock.Mock
}

func (m *MockLinkService) Shorten(ctx context.Context, req service.ShortenRequest) (*service.ShortenResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ShortenResult), args.Error(1)
}

func (m *MockLinkService) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Link, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Link), args.Error(1)
}

func (m *MockLinkService) Get(ctx context.Context, actor *model.User, id uuid.UUID) (*service.LinkDetail, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LinkDetail), args.Error(1)
}

func (m *MockLinkService) Update(ctx context.Context, actor *model.User, id uuid.UUID, update service.LinkUpdate) (*model.Link, error) {
	args := m.Called(ctx, actor, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Link), args.Error(1)
}

func (m *MockLinkService) Delete(ctx context.Context, actor *model.User, id uuid.UUID) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}

func (m *MockLinkService) ListPublic(ctx context.Context) ([]service.PublicLink, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.PublicLink), args.Error(1)
}

func (m *MockLinkService) ListAll(ctx context.Context) ([]service.AdminLink, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.AdminLink), args.Error(1)
}

func (m *MockLinkService) Preview(ctx context.Context, code string) (*service.LinkPreview, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LinkPreview), args.Error(1)
}

func (m *MockLinkService) QRCode(ctx context.Context, code string) ([]byte, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

var testOwner = &model.User{ID: uuid.New(), Email: "ana@example.com", Role: model.RoleUser, IsActive: true}

// withUser stands in for the session middleware.
func withUser(user *model.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set("user", user)
		}
		c.Next()
	}
}

func linkRouter(svc service.LinkService, user *model.User) *gin.Engine {
	h := NewLinkHandler(svc)
	router := gin.New()
	router.Use(withUser(user))
	router.POST("/api/shorten", h.Shorten)
	router.PATCH("/api/links/:id", h.Update)
	router.DELETE("/api/links/:id", h.Delete)
	router.GET("/api/qr/:shortCode", h.QRCode)
	return router
}

func TestShorten_JSON(t *testing.T) {
	setupTest(t)
	svc := new(MockLinkService)
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	svc.On("Shorten", mock.Anything, mock.MatchedBy(func(r service.ShortenRequest) bool {
		return r.URL == "https://example.com" &&
			r.CustomAlias == "launch" &&
			r.MaxClicks != nil && *r.MaxClicks == 3 &&
			r.ExpirationDate != nil && r.ExpirationDate.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)) &&
			r.UserID == nil
	})).Return(&service.ShortenResult{
		ShortURL:    "https://lnk.test/launch",
		OriginalURL: "https://example.com",
		ShortCode:   "launch",
		CreatedAt:   created,
	}, nil).Once()

	body := `{"url":"https://example.com","customAlias":"launch","maxClicks":3,"expirationDate":"2030-01-01T00:00:00Z"}`
	req, _ := http.NewRequest(http.MethodPost, "/api/shorten", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	linkRouter(svc, nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"shortUrl":"https://lnk.test/launch"`)
	assert.Contains(t, w.Body.String(), `"clicks":0`)
	svc.AssertExpectations(t)
}

func TestShorten_MultipartWithFile(t *testing.T) {
	setupTest(t)
	svc := new(MockLinkService)

	var got service.ShortenRequest
	var content string
	svc.On("Shorten", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			got = args.Get(1).(service.ShortenRequest)
			b, _ := io.ReadAll(got.File.Body)
			content = string(b)
		}).
		Return(&service.ShortenResult{ShortCode: "abcdefgh", OriginalURL: "File: notes.txt"}, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("description", "My notes"))
	require.NoError(t, mw.WriteField("password", "secret"))
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("hello"))
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest(http.MethodPost, "/api/shorten", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	linkRouter(svc, testOwner).ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, got.File)
	assert.Equal(t, "notes.txt", got.File.Name)
	assert.Equal(t, "hello", content)
	assert.Nil(t, got.OGImage)
	assert.Equal(t, "My notes", got.Description)
	assert.Equal(t, "secret", got.Password)
	assert.Equal(t, testOwner.ID, *got.UserID)
}

func TestShorten_InvalidFormValues(t *testing.T) {
	setupTest(t)

	testCases := []struct {
		field string
		value string
		code  string
	}{
		{"maxClicks", "many", "INVALID_MAX_CLICKS"},
		{"expirationDate", "tomorrow", "INVALID_EXPIRATION"},
	}

	for _, tc := range testCases {
		t.Run(tc.field, func(t *testing.T) {
			svc := new(MockLinkService)

			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			_ = mw.WriteField("url", "https://example.com")
			_ = mw.WriteField(tc.field, tc.value)
			_ = mw.Close()

			req, _ := http.NewRequest(http.MethodPost, "/api/shorten", &buf)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			w := httptest.NewRecorder()
			linkRouter(svc, nil).ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tc.code)
			svc.AssertNotCalled(t, "Shorten", mock.Anything, mock.Anything)
		})
	}
}

func TestUpdate_NullClearsFields(t *testing.T) {
	setupTest(t)
	svc := new(MockLinkService)
	id := uuid.New()

	svc.On("Update", mock.Anything, testOwner, id, mock.MatchedBy(func(u service.LinkUpdate) bool {
		return u.ClearExpiration && u.MaxClicks != nil && *u.MaxClicks == 4 &&
			u.Description != nil && *u.Description == "new" && u.Password == nil
	})).Return(&model.Link{ID: id, ShortCode: "abc"}, nil).Once()

	body := `{"description":"new","expirationDate":null,"maxClicks":4}`
	req, _ := http.NewRequest(http.MethodPatch, "/api/links/"+id.String(), strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	linkRouter(svc, testOwner).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestUpdateLinkRequest_ToUpdate(t *testing.T) {
	keep, err := UpdateLinkRequest{}.toUpdate()
	require.NoError(t, err)
	assert.False(t, keep.ClearExpiration)
	assert.False(t, keep.ClearMaxClicks)
	assert.Nil(t, keep.ExpirationDate)

	cleared, err := UpdateLinkRequest{MaxClicks: []byte("null"), ExpirationDate: []byte(`""`)}.toUpdate()
	require.NoError(t, err)
	assert.True(t, cleared.ClearMaxClicks)
	assert.True(t, cleared.ClearExpiration)

	_, err = UpdateLinkRequest{MaxClicks: []byte(`"ten"`)}.toUpdate()
	assert.ErrorIs(t, err, service.ErrInvalidMaxClicks)

	_, err = UpdateLinkRequest{ExpirationDate: []byte(`"someday"`)}.toUpdate()
	assert.ErrorIs(t, err, service.ErrInvalidExpiry)
}

func TestDelete_Forbidden(t *testing.T) {
	setupTest(t)
	svc := new(MockLinkService)
	id := uuid.New()
	svc.On("Delete", mock.Anything, testOwner, id).Return(service.ErrForbidden)

	req, _ := http.NewRequest(http.MethodDelete, "/api/links/"+id.String(), nil)
	w := httptest.NewRecorder()
	linkRouter(svc, testOwner).ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDelete_InvalidID(t *testing.T) {
	setupTest(t)
	svc := new(MockLinkService)

	req, _ := http.NewRequest(http.MethodDelete, "/api/links/not-a-uuid", nil)
	w := httptest.NewRecorder()
	linkRouter(svc, testOwner).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_ID")
}

func TestQRCode(t *testing.T) {
	setupTest(t)
	svc := new(MockLinkService)
	svc.On("QRCode", mock.Anything, "abc").Return([]byte("\x89PNG..."), nil)
	svc.On("QRCode", mock.Anything, "nope").Return(nil, repository.ErrLinkNotFound)
	router := linkRouter(svc, nil)

	req, _ := http.NewRequest(http.MethodGet, "/api/qr/abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	req, _ = http.NewRequest(http.MethodGet, "/api/qr/nope", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
