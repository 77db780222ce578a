package connector

import (
	"net/http"
	"strconv"

	"comradarr/internal/domain"
)

// connectorClient implements domain.ConnectorClient. All three kinds share
// this single implementation since they speak the same v3 API shape; the
// factory only varies Config by kind metadata (base URL, API key).
type connectorClient struct {
	kind domain.ConnectorKind
	c    *Client
}

// NewConnectorClient constructs a domain.ConnectorClient for the given kind
// and HTTP config.
func NewConnectorClient(kind domain.ConnectorKind, cfg Config) domain.ConnectorClient {
	return &connectorClient{kind: kind, c: New(cfg)}
}

// Ping calls the unauthenticated GET /ping endpoint, which returns a
// plain-text body. Any 2xx response is a successful ping. Errors are
// returned rather than swallowed: the reconnect service distinguishes
// authentication faults from plain unreachability.
func (cc *connectorClient) Ping(ctx domain.Context) (bool, error) {
	if err := cc.c.request(ctx, http.MethodGet, "/ping", nil, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (cc *connectorClient) SystemStatus(ctx domain.Context) (domain.SystemStatus, error) {
	var raw map[string]any
	if err := cc.c.requestWithRetry(ctx, http.MethodGet, "/api/v3/system/status", nil, &raw); err != nil {
		return domain.SystemStatus{}, err
	}
	return ParseSystemStatus(raw)
}

func (cc *connectorClient) Health(ctx domain.Context) ([]domain.HealthCheckEntry, error) {
	var raw []rawHealthEntry
	if err := cc.c.requestWithRetry(ctx, http.MethodGet, "/api/v3/health", nil, &raw); err != nil {
		return nil, err
	}
	entries, _ := ParseHealth(raw)
	return entries, nil
}

type rawEpisodeEnvelope struct {
	Page          int          `json:"page"`
	PageSize      int          `json:"pageSize"`
	SortKey       string       `json:"sortKey"`
	SortDirection string       `json:"sortDirection"`
	TotalRecords  int          `json:"totalRecords"`
	Records       []rawEpisode `json:"records"`
}

func (cc *connectorClient) listEpisodes(ctx domain.Context, endpoint string, page, pageSize int) (domain.PaginatedEnvelope[domain.Episode], error) {
	var raw rawEpisodeEnvelope
	q := "?page=" + strconv.Itoa(page) + "&pageSize=" + strconv.Itoa(pageSize)
	if err := cc.c.requestWithRetry(ctx, http.MethodGet, endpoint+q, nil, &raw); err != nil {
		return domain.PaginatedEnvelope[domain.Episode]{}, err
	}

	records := make([]domain.Episode, 0, len(raw.Records))
	for _, r := range raw.Records {
		if err := validateRawEpisode(r); err != nil {
			continue
		}
		records = append(records, r.toDomain(0))
	}

	return domain.PaginatedEnvelope[domain.Episode]{
		Page: raw.Page, PageSize: raw.PageSize, SortKey: raw.SortKey,
		SortDirection: raw.SortDirection, TotalRecords: raw.TotalRecords, Records: records,
	}, nil
}

func (cc *connectorClient) ListWantedMissing(ctx domain.Context, page, pageSize int) (domain.PaginatedEnvelope[domain.Episode], error) {
	return cc.listEpisodes(ctx, "/api/v3/wanted/missing", page, pageSize)
}

func (cc *connectorClient) ListWantedCutoff(ctx domain.Context, page, pageSize int) (domain.PaginatedEnvelope[domain.Episode], error) {
	return cc.listEpisodes(ctx, "/api/v3/wanted/cutoff", page, pageSize)
}

// SendSearch issues the command with a single attempt, no retry wrapper: a
// 429 must reach the dispatcher immediately so it can pause the connector
// and skip the rest of the pass rather than sleeping inside the client.
func (cc *connectorClient) SendSearch(ctx domain.Context, cmd domain.Command) (domain.CommandResponse, error) {
	body, err := commandBody(cmd)
	if err != nil {
		return domain.CommandResponse{}, err
	}
	var raw rawCommandResponse
	if err := cc.c.request(ctx, http.MethodPost, "/api/v3/command", body, &raw); err != nil {
		return domain.CommandResponse{}, err
	}
	return ParseCommandResponse(raw)
}

func (cc *connectorClient) GetCommand(ctx domain.Context, id int64) (domain.CommandResponse, error) {
	var raw rawCommandResponse
	endpoint := "/api/v3/command/" + strconv.FormatInt(id, 10)
	if err := cc.c.requestWithRetry(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
		return domain.CommandResponse{}, err
	}
	return ParseCommandResponse(raw)
}

var _ domain.ConnectorClient = (*connectorClient)(nil)
