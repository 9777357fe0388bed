package service

import (
	"context"

	"github.com/xxxsen/knowhub/internal/connector"
	"github.com/xxxsen/knowhub/internal/model"
)

type documentFinder interface {
	FindByExternalIDs(ctx context.Context, connectorID string, externalIDs []string) (map[string]*model.Document, error)
}

// Deduplicator splits a fetched batch into new items and items already
// known to the connector, using one lookup for the whole batch.
type Deduplicator struct {
	docs documentFinder
}

func NewDeduplicator(docs documentFinder) *Deduplicator {
	return &Deduplicator{docs: docs}
}

// Classify returns the items to create and a map from external id to
// the existing document for items matched in scope. Items without an
// external id are always new. An empty batch performs no lookup.
func (d *Deduplicator) Classify(ctx context.Context, connectorID string, items []connector.Item) ([]connector.Item, map[string]*model.Document, error) {
	if len(items) == 0 {
		return []connector.Item{}, map[string]*model.Document{}, nil
	}
	externalIDs := make([]string, 0, len(items))
	for _, item := range items {
		if item.ExternalID != "" {
			externalIDs = append(externalIDs, item.ExternalID)
		}
	}
	known := map[string]*model.Document{}
	if len(externalIDs) > 0 {
		var err error
		known, err = d.docs.FindByExternalIDs(ctx, connectorID, externalIDs)
		if err != nil {
			return nil, nil, err
		}
	}
	fresh := make([]connector.Item, 0, len(items))
	for _, item := range items {
		if item.ExternalID != "" {
			if _, ok := known[item.ExternalID]; ok {
				continue
			}
		}
		fresh = append(fresh, item)
	}
	return fresh, known, nil
}
