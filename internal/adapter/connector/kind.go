package connector

import (
	"strings"

	"comradarr/internal/domain"
)

// appNameToKind maps a system-status appName (case-insensitive) to a
// ConnectorKind.
var appNameToKind = map[string]domain.ConnectorKind{
	"kinda-app": domain.KindA,
	"kindb-app": domain.KindB,
	"kindc-app": domain.KindC,
}

// DetectKind calls GET /api/v3/system/status and maps appName to a
// ConnectorKind, rejecting unrecognised names with ErrUnknownConnectorKind.
func DetectKind(ctx domain.Context, c *Client) (domain.ConnectorKind, error) {
	var raw map[string]any
	if err := c.requestWithRetry(ctx, "GET", "/api/v3/system/status", nil, &raw); err != nil {
		return "", err
	}
	status, err := ParseSystemStatus(raw)
	if err != nil {
		return "", err
	}
	kind, ok := appNameToKind[strings.ToLower(status.AppName)]
	if !ok {
		return "", domain.ErrUnknownConnectorKind
	}
	return kind, nil
}
