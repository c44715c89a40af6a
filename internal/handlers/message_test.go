package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/push"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "alice")
		c.Next()
	})
	r.POST("/api/messages/send", handler.Send)
	r.POST("/api/messages/get", handler.Get)
	r.GET("/api/messages/recent", handler.Recent)
	r.POST("/api/messages/seen", handler.Seen)
	return r
}

func newTestHandler(messageRepo *mocks.MessageRepositoryMock, userRepo *mocks.UserRepositoryMock, registry *push.Registry, uploader *mocks.UploaderMock) *MessageHandler {
	return NewMessageHandler(messageRepo, userRepo, registry, uploader, nil, nil, nil, zap.NewNop())
}

func sendForm(fields map[string]string, image []byte) (*bytes.Buffer, string) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	if image != nil {
		part, _ := writer.CreateFormFile("image", "photo.png")
		part.Write(image)
	}
	writer.Close()
	return &body, writer.FormDataContentType()
}

func TestSendTextNoChannelRegistered(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	registry := push.NewRegistry(0)
	handler := newTestHandler(messageRepo, userRepo, registry, new(mocks.UploaderMock))
	router := setupMessageRouter(handler)

	userRepo.On("Exists", mock.Anything, "bob").Return(true, nil).Once()
	userRepo.On("GetUser", mock.Anything, "alice").Return(models.User{ID: "alice", FullName: "Alice"}, nil).Once()
	stored := models.Message{ID: 1, FromUserID: "alice", ToUserID: "bob", Text: "hi", MessageType: "text", CreatedAt: time.Now()}
	messageRepo.On("CreateMessage", mock.Anything, "alice", "bob", "hi", "text", "").Return(stored, nil).Once()

	body, contentType := sendForm(map[string]string{"to_user_id": "bob", "text": "hi"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/messages/send", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Success bool           `json:"success"`
		Message models.Message `json:"message"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(1), resp.Message.ID)
	assert.Equal(t, "hi", resp.Message.Text)
	messageRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestSendWithoutTextOrImage(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newTestHandler(messageRepo, new(mocks.UserRepositoryMock), push.NewRegistry(0), new(mocks.UploaderMock))
	router := setupMessageRouter(handler)

	body, contentType := sendForm(map[string]string{"to_user_id": "bob"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/messages/send", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	messageRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendUnknownRecipient(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	handler := newTestHandler(messageRepo, userRepo, push.NewRegistry(0), new(mocks.UploaderMock))
	router := setupMessageRouter(handler)

	userRepo.On("Exists", mock.Anything, "ghost").Return(false, nil).Once()

	body, contentType := sendForm(map[string]string{"to_user_id": "ghost", "text": "hi"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/messages/send", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	messageRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	userRepo.AssertExpectations(t)
}

func TestSendDeliversToRegisteredChannel(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	registry := push.NewRegistry(0)
	handler := newTestHandler(messageRepo, userRepo, registry, new(mocks.UploaderMock))
	router := setupMessageRouter(handler)

	ch := registry.Register("bob")

	userRepo.On("Exists", mock.Anything, "bob").Return(true, nil).Once()
	stored := models.Message{ID: 9, FromUserID: "alice", ToUserID: "bob", Text: "yo", MessageType: "text", CreatedAt: time.Now()}
	messageRepo.On("CreateMessage", mock.Anything, "alice", "bob", "yo", "text", "").Return(stored, nil).Once()

	body, contentType := sendForm(map[string]string{"to_user_id": "bob", "text": "yo"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/messages/send", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	select {
	case got := <-ch.Events():
		assert.Equal(t, int64(9), got.ID)
		assert.Equal(t, "yo", got.Text)
		assert.Equal(t, "alice", got.FromUserID)
	default:
		t.Fatal("expected one payload on the recipient's channel")
	}
	select {
	case <-ch.Events():
		t.Fatal("expected exactly one payload")
	default:
	}
	messageRepo.AssertExpectations(t)
}

func TestSendAfterUnregisterStillPersists(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	registry := push.NewRegistry(0)
	handler := newTestHandler(messageRepo, userRepo, registry, new(mocks.UploaderMock))
	router := setupMessageRouter(handler)

	ch := registry.Register("bob")
	registry.Unregister("bob", ch)

	userRepo.On("Exists", mock.Anything, "bob").Return(true, nil).Once()
	userRepo.On("GetUser", mock.Anything, "alice").Return(models.User{}, assert.AnError).Once()
	stored := models.Message{ID: 2, FromUserID: "alice", ToUserID: "bob", Text: "hi", MessageType: "text"}
	messageRepo.On("CreateMessage", mock.Anything, "alice", "bob", "hi", "text", "").Return(stored, nil).Once()

	body, contentType := sendForm(map[string]string{"to_user_id": "bob", "text": "hi"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/messages/send", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestSendImageUploadsBeforePersisting(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	uploader := new(mocks.UploaderMock)
	handler := newTestHandler(messageRepo, userRepo, push.NewRegistry(0), uploader)
	router := setupMessageRouter(handler)

	userRepo.On("Exists", mock.Anything, "bob").Return(true, nil).Once()
	userRepo.On("GetUser", mock.Anything, "alice").Return(models.User{FullName: "Alice"}, nil).Once()
	uploader.On("Upload", mock.Anything, []byte("png-bytes"), "photo.png").Return("/msgs/photo.png", nil).Once()
	uploader.On("URL", "/msgs/photo.png", "q-auto", "f-webp", "w-1280").Return("https://cdn.example.com/msgs/photo.png").Once()
	stored := models.Message{ID: 3, FromUserID: "alice", ToUserID: "bob", MessageType: "image", MediaURL: "https://cdn.example.com/msgs/photo.png"}
	messageRepo.On("CreateMessage", mock.Anything, "alice", "bob", "", "image", "https://cdn.example.com/msgs/photo.png").Return(stored, nil).Once()

	body, contentType := sendForm(map[string]string{"to_user_id": "bob"}, []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/messages/send", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	uploader.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestSendImagePipelineFailureAbortsBeforePersist(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	uploader := new(mocks.UploaderMock)
	handler := newTestHandler(messageRepo, userRepo, push.NewRegistry(0), uploader)
	router := setupMessageRouter(handler)

	userRepo.On("Exists", mock.Anything, "bob").Return(true, nil).Once()
	uploader.On("Upload", mock.Anything, []byte("png-bytes"), "photo.png").Return("", assert.AnError).Once()

	body, contentType := sendForm(map[string]string{"to_user_id": "bob"}, []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/messages/send", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	messageRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	uploader.AssertExpectations(t)
}

func TestGetConversation(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newTestHandler(messageRepo, new(mocks.UserRepositoryMock), push.NewRegistry(0), new(mocks.UploaderMock))
	router := setupMessageRouter(handler)

	msgs := []models.Message{
		{ID: 1, FromUserID: "alice", ToUserID: "bob", Text: "hi"},
		{ID: 2, FromUserID: "bob", ToUserID: "alice", Text: "hello"},
	}
	messageRepo.On("ListBetween", mock.Anything, "alice", "bob").Return(msgs, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/messages/get", bytes.NewBufferString(`{"to_user_id":"bob"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success  bool             `json:"success"`
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Messages, 2)
	messageRepo.AssertExpectations(t)
}

func TestSeenMarksConversation(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newTestHandler(messageRepo, new(mocks.UserRepositoryMock), push.NewRegistry(0), new(mocks.UploaderMock))
	router := setupMessageRouter(handler)

	messageRepo.On("MarkSeen", mock.Anything, "bob", "alice").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/messages/seen", bytes.NewBufferString(`{"from_user_id":"bob"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestRecentMessages(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := newTestHandler(messageRepo, new(mocks.UserRepositoryMock), push.NewRegistry(0), new(mocks.UploaderMock))
	router := setupMessageRouter(handler)

	recent := []models.RecentMessage{
		{Message: models.Message{ID: 5, FromUserID: "bob", ToUserID: "alice", Text: "latest"}, UnreadCount: 3},
	}
	messageRepo.On("RecentForUser", mock.Anything, "alice").Return(recent, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages/recent", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success  bool                   `json:"success"`
		Messages []models.RecentMessage `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, int64(3), resp.Messages[0].UnreadCount)
	messageRepo.AssertExpectations(t)
}
