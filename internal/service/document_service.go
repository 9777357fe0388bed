package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/knowhub/internal/ai"
	"github.com/xxxsen/knowhub/internal/model"
	appErr "github.com/xxxsen/knowhub/internal/pkg/errors"
	"github.com/xxxsen/knowhub/internal/repo"
	"github.com/xxxsen/knowhub/internal/vector"
)

type DocumentCreateInput struct {
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	SourceURL string            `json:"source_url"`
	MimeType  string            `json:"mime_type"`
	Metadata  map[string]string `json:"metadata"`
}

type DocumentService struct {
	docRepo     *repo.DocumentRepo
	projectRepo *repo.ProjectRepo
	index       vector.Index
	manager     *ai.Manager
}

func NewDocumentService(docRepo *repo.DocumentRepo, projectRepo *repo.ProjectRepo, index vector.Index, manager *ai.Manager) *DocumentService {
	return &DocumentService{
		docRepo:     docRepo,
		projectRepo: projectRepo,
		index:       index,
		manager:     manager,
	}
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func (s *DocumentService) Create(ctx context.Context, tenantID string, input DocumentCreateInput) (*model.Document, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, appErr.ErrInvalid
	}
	now := time.Now().Unix()
	doc := &model.Document{
		ID:          newID(),
		TenantID:    tenantID,
		Title:       input.Title,
		Content:     input.Content,
		ContentHash: contentHash(input.Content),
		SourceURL:   input.SourceURL,
		MimeType:    input.MimeType,
		Status:      model.DocumentStatusPending,
		Metadata:    input.Metadata,
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, tenantID, docID string) (*model.Document, error) {
	return s.docRepo.GetByID(ctx, tenantID, docID)
}

func (s *DocumentService) List(ctx context.Context, tenantID string, filter repo.DocumentListFilter) ([]*model.Document, int, error) {
	return s.docRepo.List(ctx, tenantID, filter)
}

func (s *DocumentService) Stats(ctx context.Context, tenantID string) (*model.DocumentStats, error) {
	return s.docRepo.Stats(ctx, tenantID)
}

// Delete removes the document row and best-effort drops its vector;
// the two stores are only eventually consistent.
func (s *DocumentService) Delete(ctx context.Context, tenantID, docID string) error {
	doc, err := s.docRepo.GetByID(ctx, tenantID, docID)
	if err != nil {
		return err
	}
	if err := s.docRepo.Delete(ctx, tenantID, docID); err != nil {
		return err
	}
	if doc.VectorID != "" {
		if err := s.index.Delete(ctx, tenantID, []string{doc.VectorID}); err != nil {
			logutil.GetLogger(ctx).Warn("delete vector failed",
				zap.String("document_id", docID), zap.Error(err))
		}
	}
	return nil
}

func (s *DocumentService) BulkDelete(ctx context.Context, tenantID string, docIDs []string) (int64, error) {
	if len(docIDs) == 0 {
		return 0, nil
	}
	docs, err := s.docRepo.ListByIDs(ctx, tenantID, docIDs)
	if err != nil {
		return 0, err
	}
	vectorIDs := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc.VectorID != "" {
			vectorIDs = append(vectorIDs, doc.VectorID)
		}
	}
	deleted, err := s.docRepo.BulkDelete(ctx, tenantID, docIDs)
	if err != nil {
		return deleted, err
	}
	if len(vectorIDs) > 0 {
		if err := s.index.Delete(ctx, tenantID, vectorIDs); err != nil {
			logutil.GetLogger(ctx).Warn("bulk delete vectors failed",
				zap.Int("count", len(vectorIDs)), zap.Error(err))
		}
	}
	return deleted, nil
}

func (s *DocumentService) BulkClassify(ctx context.Context, tenantID string, docIDs []string, classification string, confidence float64) (int64, error) {
	if len(docIDs) == 0 {
		return 0, nil
	}
	classification = strings.ToLower(strings.TrimSpace(classification))
	if classification != "work" && classification != "personal" {
		return 0, appErr.ErrInvalid
	}
	if confidence < 0 || confidence > 1 {
		return 0, appErr.ErrInvalid
	}
	return s.docRepo.BulkClassify(ctx, tenantID, docIDs, classification, confidence, time.Now().Unix())
}

func (s *DocumentService) BulkUpdateStatus(ctx context.Context, tenantID string, docIDs []string, status string) (int64, error) {
	if len(docIDs) == 0 {
		return 0, nil
	}
	switch status {
	case model.DocumentStatusPending, model.DocumentStatusProcessing,
		model.DocumentStatusClassified, model.DocumentStatusIndexed, model.DocumentStatusFailed:
	default:
		return 0, appErr.ErrInvalid
	}
	return s.docRepo.BulkUpdateStatus(ctx, tenantID, docIDs, status, time.Now().Unix())
}

func (s *DocumentService) BulkAssignProject(ctx context.Context, tenantID string, docIDs []string, projectID string) (int64, error) {
	if len(docIDs) == 0 {
		return 0, nil
	}
	if projectID != "" {
		if _, err := s.projectRepo.GetByID(ctx, tenantID, projectID); err != nil {
			return 0, err
		}
	}
	return s.docRepo.BulkAssignProject(ctx, tenantID, docIDs, projectID, time.Now().Unix())
}

// AutoClassify runs the AI classifier on one document and persists the
// label.
func (s *DocumentService) AutoClassify(ctx context.Context, tenantID, docID string) (*model.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	result, err := s.manager.ClassifyDocument(ctx, doc.Title, doc.Content)
	if err != nil {
		return nil, mapAIErr(err)
	}
	now := time.Now().Unix()
	if err := s.docRepo.SetClassification(ctx, tenantID, docID, result.Label, result.Confidence, now); err != nil {
		return nil, err
	}
	doc.Classification = result.Label
	doc.ClassificationConfidence = result.Confidence
	doc.Status = model.DocumentStatusClassified
	doc.Mtime = now
	return doc, nil
}
