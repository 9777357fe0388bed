package repo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/knowhub/internal/model"
	appErr "github.com/xxxsen/knowhub/internal/pkg/errors"
	"github.com/xxxsen/knowhub/internal/repo"
	"github.com/xxxsen/knowhub/test/testutil"
)

func TestChatRepoSessions(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	otherTenant := testutil.SeedTenant(t, conn)
	chats := repo.NewChatRepo(conn)

	now := time.Now().Unix()
	session := &model.ChatSession{
		ID:       testutil.NewID("sess"),
		TenantID: tenantID,
		Ctime:    now,
		Mtime:    now,
	}
	require.NoError(t, chats.CreateSession(context.Background(), session))

	fetched, err := chats.GetSession(context.Background(), tenantID, session.ID)
	require.NoError(t, err)
	require.Empty(t, fetched.Title)

	_, err = chats.GetSession(context.Background(), otherTenant, session.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	require.NoError(t, chats.UpdateSessionTitle(context.Background(), tenantID, session.ID, "named", time.Now().Unix()))
	fetched, err = chats.GetSession(context.Background(), tenantID, session.ID)
	require.NoError(t, err)
	require.Equal(t, "named", fetched.Title)

	sessions, err := chats.ListSessions(context.Background(), tenantID, 10, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	require.NoError(t, chats.DeleteSession(context.Background(), tenantID, session.ID))
	_, err = chats.GetSession(context.Background(), tenantID, session.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestChatRepoMessagesOrderAndWindow(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	tenantID := testutil.SeedTenant(t, conn)
	chats := repo.NewChatRepo(conn)

	now := time.Now().Unix()
	session := &model.ChatSession{
		ID:       testutil.NewID("sess"),
		TenantID: tenantID,
		Ctime:    now,
		Mtime:    now,
	}
	require.NoError(t, chats.CreateSession(context.Background(), session))

	for i := 0; i < 12; i++ {
		role := model.ChatRoleUser
		var sources []string
		if i%2 == 1 {
			role = model.ChatRoleAssistant
			sources = []string{"doc-a"}
		}
		require.NoError(t, chats.AddMessage(context.Background(), &model.ChatMessage{
			ID:        testutil.NewID("msg"),
			SessionID: session.ID,
			Role:      role,
			Content:   fmt.Sprintf("message %d", i),
			Sources:   sources,
			Ctime:     now + int64(i),
		}))
	}

	msgs, err := chats.ListMessages(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 12)
	require.Equal(t, "message 0", msgs[0].Content)
	require.Equal(t, "message 11", msgs[11].Content)
	require.Equal(t, []string{"doc-a"}, msgs[1].Sources)
	require.Empty(t, msgs[0].Sources)

	// LastMessages returns the tail of the conversation, oldest first.
	recent, err := chats.LastMessages(context.Background(), session.ID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 10)
	require.Equal(t, "message 2", recent[0].Content)
	require.Equal(t, "message 11", recent[9].Content)

	// Adding a message bumps the session mtime.
	fetched, err := chats.GetSession(context.Background(), tenantID, session.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, fetched.Mtime, now)
}
