package service

import (
	"context"
	"strings"
	"time"

	"github.com/xxxsen/knowhub/internal/connector"
	"github.com/xxxsen/knowhub/internal/model"
	appErr "github.com/xxxsen/knowhub/internal/pkg/errors"
	"github.com/xxxsen/knowhub/internal/pkg/secret"
	"github.com/xxxsen/knowhub/internal/repo"
)

type ConnectorCreateInput struct {
	ConnectorType string `json:"connector_type"`
	Name          string `json:"name"`
	// Credentials is the plaintext credential JSON for the source; it is
	// sealed before it reaches storage.
	Credentials string `json:"credentials"`
}

type ConnectorService struct {
	connRepo *repo.ConnectorRepo
	box      *secret.Box
}

func NewConnectorService(connRepo *repo.ConnectorRepo, box *secret.Box) *ConnectorService {
	return &ConnectorService{connRepo: connRepo, box: box}
}

func (s *ConnectorService) Create(ctx context.Context, tenantID string, input ConnectorCreateInput) (*model.Connector, error) {
	connectorType := strings.ToLower(strings.TrimSpace(input.ConnectorType))
	if connectorType == "" || strings.TrimSpace(input.Name) == "" {
		return nil, appErr.ErrInvalid
	}
	// Reject unknown types up front; building the source also validates
	// the credential shape.
	if _, err := connector.NewSource(connectorType, input.Credentials); err != nil {
		return nil, appErr.ErrInvalid
	}
	sealed, err := s.box.Seal([]byte(input.Credentials))
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	conn := &model.Connector{
		ID:            newID(),
		TenantID:      tenantID,
		ConnectorType: connectorType,
		Name:          input.Name,
		Credentials:   sealed,
		IsActive:      true,
		SyncStatus:    model.SyncStatusIdle,
		Ctime:         now,
		Mtime:         now,
	}
	if err := s.connRepo.Create(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *ConnectorService) Get(ctx context.Context, tenantID, connectorID string) (*model.Connector, error) {
	return s.connRepo.GetByID(ctx, tenantID, connectorID)
}

func (s *ConnectorService) List(ctx context.Context, tenantID, connectorType string) ([]*model.Connector, error) {
	return s.connRepo.List(ctx, tenantID, connectorType)
}

func (s *ConnectorService) Update(ctx context.Context, tenantID, connectorID, name string, isActive bool) (*model.Connector, error) {
	conn, err := s.connRepo.GetByID(ctx, tenantID, connectorID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) != "" {
		conn.Name = name
	}
	conn.IsActive = isActive
	conn.Mtime = time.Now().Unix()
	if err := s.connRepo.Update(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *ConnectorService) UpdateCredentials(ctx context.Context, tenantID, connectorID, credentials string) error {
	conn, err := s.connRepo.GetByID(ctx, tenantID, connectorID)
	if err != nil {
		return err
	}
	if _, err := connector.NewSource(conn.ConnectorType, credentials); err != nil {
		return appErr.ErrInvalid
	}
	sealed, err := s.box.Seal([]byte(credentials))
	if err != nil {
		return err
	}
	return s.connRepo.UpdateCredentials(ctx, tenantID, connectorID, sealed, time.Now().Unix())
}

func (s *ConnectorService) Delete(ctx context.Context, tenantID, connectorID string) error {
	return s.connRepo.Delete(ctx, tenantID, connectorID)
}

func (s *ConnectorService) SealCredentials(credentials string) (string, error) {
	return s.box.Seal([]byte(credentials))
}

// OpenSource unseals the stored credentials and builds the source.
func (s *ConnectorService) OpenSource(conn *model.Connector) (connector.Source, error) {
	plain, err := s.box.Open(conn.Credentials)
	if err != nil {
		return nil, err
	}
	return connector.NewSource(conn.ConnectorType, string(plain))
}

func (s *ConnectorService) TestConnection(ctx context.Context, tenantID, connectorID string) error {
	conn, err := s.connRepo.GetByID(ctx, tenantID, connectorID)
	if err != nil {
		return err
	}
	source, err := s.OpenSource(conn)
	if err != nil {
		return err
	}
	return source.TestConnection(ctx)
}

func (s *ConnectorService) SupportedTypes() []string {
	return connector.SupportedTypes()
}
