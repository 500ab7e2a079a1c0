package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"anoa.com/lazylegends/internal/entity"
	"anoa.com/lazylegends/internal/modules/search/dto"
	"anoa.com/lazylegends/pkg/logger"
	"github.com/meilisearch/meilisearch-go"
)

const usersIndex = "users"

// SearchService keeps the handle index in step with the users table.
type SearchService interface {
	IndexUser(user *entity.User) error
	DeleteUser(handle string) error
	SearchUsers(ctx context.Context, query string, limit int) ([]dto.UserHit, error)
}

type meiliSearchService struct {
	client meilisearch.ServiceManager
}

func NewMeiliSearchService(client meilisearch.ServiceManager) SearchService {
	s := &meiliSearchService{client: client}
	s.initIndex()
	return s
}

func (s *meiliSearchService) initIndex() {
	searchable := []string{"handle"}
	if _, err := s.client.Index(usersIndex).UpdateSearchableAttributes(&searchable); err != nil {
		logger.WithError(err).Warn("Failed to update users searchable attributes")
	}

	sortable := []string{"points"}
	if _, err := s.client.Index(usersIndex).UpdateSortableAttributes(&sortable); err != nil {
		logger.WithError(err).Warn("Failed to update users sortable attributes")
	}

	logger.Info("Meilisearch users index initialized")
}

type meiliUserDoc struct {
	ID       string `json:"id"`
	Handle   string `json:"handle"`
	Points   int    `json:"points"`
	ImageURL string `json:"image_url"`
}

// documentID strips the "@" since meilisearch ids only allow [a-zA-Z0-9_-].
func documentID(handle string) string {
	return strings.TrimPrefix(handle, "@")
}

func toDoc(user *entity.User) meiliUserDoc {
	doc := meiliUserDoc{
		ID:     documentID(user.Handle),
		Handle: user.Handle,
		Points: user.Points,
	}
	if user.ImageURL != nil {
		doc.ImageURL = *user.ImageURL
	}
	return doc
}

func (s *meiliSearchService) IndexUser(user *entity.User) error {
	task, err := s.client.Index(usersIndex).AddDocuments([]meiliUserDoc{toDoc(user)}, strPtr("id"))
	if err != nil {
		return fmt.Errorf("failed to index user %s: %w", user.Handle, err)
	}
	logger.WithFields(map[string]interface{}{"handle": user.Handle, "task_uid": task.TaskUID}).Debug("Indexed user")
	return nil
}

func (s *meiliSearchService) DeleteUser(handle string) error {
	_, err := s.client.Index(usersIndex).DeleteDocument(documentID(handle))
	return err
}

func (s *meiliSearchService) SearchUsers(ctx context.Context, query string, limit int) ([]dto.UserHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := s.client.Index(usersIndex).SearchRaw(query, &meilisearch.SearchRequest{
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"handle", "points", "image_url"},
	})
	if err != nil {
		return nil, fmt.Errorf("meilisearch query failed: %w", err)
	}
	return decodeHits(*raw)
}

func decodeHits(raw []byte) ([]dto.UserHit, error) {
	var payload struct {
		Hits []dto.UserHit `json:"hits"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode search hits: %w", err)
	}
	if payload.Hits == nil {
		return []dto.UserHit{}, nil
	}
	return payload.Hits, nil
}

func strPtr(s string) *string {
	return &s
}

// Noop is used when MEILISEARCH_HOST is not configured.
type Noop struct{}

func (Noop) IndexUser(*entity.User) error { return nil }
func (Noop) DeleteUser(string) error      { return nil }

func (Noop) SearchUsers(context.Context, string, int) ([]dto.UserHit, error) {
	return []dto.UserHit{}, nil
}
