package catalog

import (
	"context"
	"fmt"

	"github.com/dbsmedya/metaport/internal/config"
)

// Manager holds the clients for the source and target catalog instances.
type Manager struct {
	Source Client
	Target Client
	config *config.Config
}

// NewManager creates a catalog manager from configuration.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{config: cfg}
}

// ConnectSource builds the source client and verifies the instance is
// reachable. Export runs only need the source side.
func (m *Manager) ConnectSource(ctx context.Context) error {
	client := NewHTTPClient(m.config.Source.ServerURL, m.config.Source.JWTToken,
		m.config.Advanced.RequestTimeoutDuration())
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("source catalog unreachable: %w", err)
	}
	m.Source = client
	return nil
}

// ConnectTarget builds the target client and verifies the instance is
// reachable. Import runs only need the target side.
func (m *Manager) ConnectTarget(ctx context.Context) error {
	client := NewHTTPClient(m.config.Target.ServerURL, m.config.Target.JWTToken,
		m.config.Advanced.RequestTimeoutDuration())
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("target catalog unreachable: %w", err)
	}
	m.Target = client
	return nil
}

// Connect builds and verifies both clients.
func (m *Manager) Connect(ctx context.Context) error {
	if err := m.ConnectSource(ctx); err != nil {
		return err
	}
	return m.ConnectTarget(ctx)
}
