package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/knowhub/internal/connector"
	"github.com/xxxsen/knowhub/internal/model"
)

type fakeFinder struct {
	known   map[string]*model.Document
	lookups int
	lastIDs []string
}

func (f *fakeFinder) FindByExternalIDs(ctx context.Context, connectorID string, externalIDs []string) (map[string]*model.Document, error) {
	f.lookups++
	f.lastIDs = externalIDs
	out := map[string]*model.Document{}
	for _, id := range externalIDs {
		if doc, ok := f.known[id]; ok {
			out[id] = doc
		}
	}
	return out, nil
}

func TestDeduplicatorSplitsKnownAndFresh(t *testing.T) {
	finder := &fakeFinder{known: map[string]*model.Document{
		"ext-1": {ID: "doc-1", ExternalID: "ext-1"},
	}}
	dedup := NewDeduplicator(finder)

	items := []connector.Item{
		{ExternalID: "ext-1", Title: "known"},
		{ExternalID: "ext-2", Title: "new"},
	}
	fresh, known, err := dedup.Classify(context.Background(), "conn-1", items)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	require.Equal(t, "ext-2", fresh[0].ExternalID)
	require.Len(t, known, 1)
	require.Equal(t, "doc-1", known["ext-1"].ID)
	require.Equal(t, 1, finder.lookups)
	require.ElementsMatch(t, []string{"ext-1", "ext-2"}, finder.lastIDs)
}

func TestDeduplicatorEmptyBatchSkipsLookup(t *testing.T) {
	finder := &fakeFinder{}
	dedup := NewDeduplicator(finder)

	fresh, known, err := dedup.Classify(context.Background(), "conn-1", nil)
	require.NoError(t, err)
	require.Empty(t, fresh)
	require.Empty(t, known)
	require.Equal(t, 0, finder.lookups)
}

func TestDeduplicatorItemsWithoutExternalIDAreFresh(t *testing.T) {
	finder := &fakeFinder{known: map[string]*model.Document{
		"ext-1": {ID: "doc-1", ExternalID: "ext-1"},
	}}
	dedup := NewDeduplicator(finder)

	items := []connector.Item{
		{Title: "manual note"},
		{ExternalID: "ext-1", Title: "known"},
	}
	fresh, _, err := dedup.Classify(context.Background(), "conn-1", items)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	require.Equal(t, "manual note", fresh[0].Title)
}
