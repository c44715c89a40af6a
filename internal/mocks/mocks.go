package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/media"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, fromUserID, toUserID, text, messageType, mediaURL string) (models.Message, error) {
	args := m.Called(ctx, fromUserID, toUserID, text, messageType, mediaURL)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListBetween(ctx context.Context, userA, userB string) ([]models.Message, error) {
	args := m.Called(ctx, userA, userB)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkSeen(ctx context.Context, fromUserID, toUserID string) error {
	args := m.Called(ctx, fromUserID, toUserID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) RecentForUser(ctx context.Context, userID string) ([]models.RecentMessage, error) {
	args := m.Called(ctx, userID)
	var msgs []models.RecentMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.RecentMessage)
	}
	return msgs, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Upsert(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepositoryMock) Exists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

type UploaderMock struct {
	mock.Mock
}

func (m *UploaderMock) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	args := m.Called(ctx, data, filename)
	return args.String(0), args.Error(1)
}

func (m *UploaderMock) URL(filePath string, transformations ...string) string {
	callArgs := make([]interface{}, 0, len(transformations)+1)
	callArgs = append(callArgs, filePath)
	for _, tr := range transformations {
		callArgs = append(callArgs, tr)
	}
	args := m.Called(callArgs...)
	return args.String(0)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ media.Uploader = (*UploaderMock)(nil)
