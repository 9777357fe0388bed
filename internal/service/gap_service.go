package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/knowhub/internal/ai"
	"github.com/xxxsen/knowhub/internal/model"
	appErr "github.com/xxxsen/knowhub/internal/pkg/errors"
	"github.com/xxxsen/knowhub/internal/repo"
)

// gapDetectDocLimit bounds how many recent documents feed one detection
// pass.
const gapDetectDocLimit = 20

type GapService struct {
	gapRepo *repo.GapRepo
	docRepo *repo.DocumentRepo
	manager *ai.Manager
}

func NewGapService(gapRepo *repo.GapRepo, docRepo *repo.DocumentRepo, manager *ai.Manager) *GapService {
	return &GapService{
		gapRepo: gapRepo,
		docRepo: docRepo,
		manager: manager,
	}
}

func (s *GapService) Create(ctx context.Context, tenantID, question, category string, priority int) (*model.KnowledgeGap, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, appErr.ErrInvalid
	}
	if priority < 1 || priority > 5 {
		return nil, appErr.ErrInvalid
	}
	now := time.Now().Unix()
	gap := &model.KnowledgeGap{
		ID:       newID(),
		TenantID: tenantID,
		Question: question,
		Category: category,
		Priority: priority,
		Status:   model.GapStatusOpen,
		Ctime:    now,
		Mtime:    now,
	}
	if err := s.gapRepo.Create(ctx, gap); err != nil {
		return nil, err
	}
	return gap, nil
}

func (s *GapService) Get(ctx context.Context, tenantID, gapID string) (*model.KnowledgeGap, error) {
	return s.gapRepo.GetByID(ctx, tenantID, gapID)
}

func (s *GapService) List(ctx context.Context, tenantID string, filter repo.GapListFilter) ([]*model.KnowledgeGap, int, error) {
	return s.gapRepo.List(ctx, tenantID, filter)
}

func (s *GapService) Answer(ctx context.Context, tenantID, gapID, answer string) (*model.KnowledgeGap, error) {
	if strings.TrimSpace(answer) == "" {
		return nil, appErr.ErrInvalid
	}
	updated, err := s.gapRepo.Answer(ctx, tenantID, gapID, answer, time.Now().Unix())
	if err != nil {
		return nil, err
	}
	if !updated {
		// Distinguish a missing gap from one already resolved.
		if _, err := s.gapRepo.GetByID(ctx, tenantID, gapID); err != nil {
			return nil, err
		}
		return nil, appErr.ErrConflict
	}
	return s.gapRepo.GetByID(ctx, tenantID, gapID)
}

func (s *GapService) Dismiss(ctx context.Context, tenantID, gapID string) error {
	updated, err := s.gapRepo.Dismiss(ctx, tenantID, gapID, time.Now().Unix())
	if err != nil {
		return err
	}
	if !updated {
		if _, err := s.gapRepo.GetByID(ctx, tenantID, gapID); err != nil {
			return err
		}
		return appErr.ErrConflict
	}
	return nil
}

func (s *GapService) BulkDismiss(ctx context.Context, tenantID string, gapIDs []string) (int64, error) {
	if len(gapIDs) == 0 {
		return 0, nil
	}
	return s.gapRepo.BulkDismiss(ctx, tenantID, gapIDs, time.Now().Unix())
}

func (s *GapService) Delete(ctx context.Context, tenantID, gapID string) error {
	return s.gapRepo.Delete(ctx, tenantID, gapID)
}

func (s *GapService) Stats(ctx context.Context, tenantID string) (*model.GapStats, error) {
	return s.gapRepo.Stats(ctx, tenantID)
}

func (s *GapService) Categories(ctx context.Context, tenantID string) ([]model.GapCategory, error) {
	return s.gapRepo.Categories(ctx, tenantID)
}

// Detect runs the AI gap analysis over the tenant's most recent
// documents and records the suggested gaps as open.
func (s *GapService) Detect(ctx context.Context, tenantID string) ([]*model.KnowledgeGap, error) {
	docs, _, err := s.docRepo.List(ctx, tenantID, repo.DocumentListFilter{Limit: gapDetectDocLimit})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return []*model.KnowledgeGap{}, nil
	}
	contextDocs := make([]ai.ContextDoc, 0, len(docs))
	sourceIDs := make([]string, 0, len(docs))
	for _, doc := range docs {
		contextDocs = append(contextDocs, ai.ContextDoc{Title: doc.Title, Content: doc.Content})
		sourceIDs = append(sourceIDs, doc.ID)
	}
	suggestions, err := s.manager.DetectKnowledgeGaps(ctx, contextDocs)
	if err != nil {
		return nil, mapAIErr(err)
	}
	now := time.Now().Unix()
	gaps := make([]*model.KnowledgeGap, 0, len(suggestions))
	for _, suggestion := range suggestions {
		gaps = append(gaps, &model.KnowledgeGap{
			ID:                newID(),
			TenantID:          tenantID,
			Question:          suggestion.Question,
			Category:          suggestion.Category,
			Priority:          suggestion.Priority,
			Status:            model.GapStatusOpen,
			SourceDocumentIDs: sourceIDs,
			Ctime:             now,
			Mtime:             now,
		})
	}
	if err := s.gapRepo.CreateBulk(ctx, gaps); err != nil {
		return nil, err
	}
	return gaps, nil
}
