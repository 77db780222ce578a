package connector

import (
	"fmt"
	"time"

	"comradarr/internal/domain"
)

// Factory builds a domain.ConnectorClient for a managed Connector, resolving
// its decrypted API key via creds. The underlying HTTP/retry logic is
// shared across kinds, so the factory only has to vary per-connector
// config.
type Factory struct {
	Creds   domain.CredentialProvider
	Timeout time.Duration
}

// NewFactory constructs a Factory.
func NewFactory(creds domain.CredentialProvider, timeout time.Duration) *Factory {
	return &Factory{Creds: creds, Timeout: timeout}
}

// Build resolves a Connector's credentials and returns its ConnectorClient,
// selected by the connector's recorded kind. Every kind speaks the same
// wire shape, so build never needs to fall back to live detection;
// DetectKind exists separately for onboarding a new connector.
func (f *Factory) Build(ctx domain.Context, conn domain.Connector) (domain.ConnectorClient, error) {
	if conn.Kind != domain.KindA && conn.Kind != domain.KindB && conn.Kind != domain.KindC {
		return nil, fmt.Errorf("op=connector.factory.build: %w", domain.ErrUnknownConnectorKind)
	}

	apiKey, err := f.Creds.Decrypt(ctx, conn.EncryptedAPIKey)
	if err != nil {
		return nil, fmt.Errorf("op=connector.factory.build.decrypt: %w", err)
	}

	cfg := Config{
		BaseURL: conn.BaseURL,
		APIKey:  apiKey,
		Timeout: f.Timeout,
	}
	return NewConnectorClient(conn.Kind, cfg), nil
}
