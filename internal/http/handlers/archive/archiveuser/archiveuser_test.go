package archiveuser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/edtechhq/user-lifecycle/internal/models"
	"github.com/edtechhq/user-lifecycle/internal/storage/repository"
)

// MockService реализует интерфейс archiveuser.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Archive(ctx context.Context, userUID string) (*models.ArchivedUser, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ArchivedUser), args.Error(1)
}

func TestArchiveUserHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	userID := "7f9c24e5-2b31-4a5c-9f0e-8b1d3c6a7e42"

	tests := []struct {
		name           string
		userID         string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "успешная архивация",
			userID: userID,
			setupMock: func(m *MockService) {
				m.On("Archive", mock.Anything, userID).
					Return(&models.ArchivedUser{OriginalID: userID}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"original_id":"` + userID + `"`,
		},
		{
			name:           "некорректный идентификатор",
			userID:         "123",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid user id"`,
		},
		{
			name:   "пользователь не найден",
			userID: userID,
			setupMock: func(m *MockService) {
				m.On("Archive", mock.Anything, userID).
					Return(nil, repository.ErrUserNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"user not found"`,
		},
		{
			name:   "ошибка архивации",
			userID: userID,
			setupMock: func(m *MockService) {
				m.On("Archive", mock.Anything, userID).
					Return(nil, errors.New("archive db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"failed to archive user"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/archive/archive-user/"+tt.userID, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("userId", tt.userID)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
