package connector

import (
	"comradarr/internal/domain"
)

// Fetcher returns one page of a paginated upstream listing.
type Fetcher[T any] func(ctx domain.Context, page, pageSize int) (domain.PaginatedEnvelope[T], error)

// RecordValidator validates a single record in lenient mode, returning a
// non-nil error for malformed records without ever panicking.
type RecordValidator[T any] func(T) error

// FetchAll streams every record from a paginated endpoint.
// It issues exactly ceil(totalRecords/pageSize) calls (1 when totalRecords=0),
// starting at startPage, and never yields duplicates across pages.
func FetchAll[T any](ctx domain.Context, fetch Fetcher[T], pageSize, startPage int) ([]T, error) {
	if pageSize <= 0 {
		pageSize = 1000
	}
	if startPage <= 0 {
		startPage = 1
	}

	var out []T
	page := startPage
	for {
		envelope, err := fetch(ctx, page, pageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, envelope.Records...)

		if page*pageSize >= envelope.TotalRecords || len(envelope.Records) == 0 {
			break
		}
		page++
	}
	return out, nil
}

// FetchAllLenient is FetchAll's lenient-mode counterpart: each
// record is validated; malformed ones are skipped and counted rather than
// failing the whole fetch. If every record in a non-empty response fails
// validation, ErrSchemaMismatch is returned (fatal for that call).
func FetchAllLenient[T any](ctx domain.Context, fetch Fetcher[T], validate RecordValidator[T], pageSize, startPage int) ([]T, int, error) {
	if pageSize <= 0 {
		pageSize = 1000
	}
	if startPage <= 0 {
		startPage = 1
	}

	var (
		out     []T
		skipped int
	)
	page := startPage
	for {
		envelope, err := fetch(ctx, page, pageSize)
		if err != nil {
			return nil, skipped, err
		}

		valid := 0
		for _, rec := range envelope.Records {
			if err := validate(rec); err != nil {
				skipped++
				continue
			}
			out = append(out, rec)
			valid++
		}
		if len(envelope.Records) > 0 && valid == 0 {
			return nil, skipped, domain.ErrSchemaMismatch
		}

		if page*pageSize >= envelope.TotalRecords || len(envelope.Records) == 0 {
			break
		}
		page++
	}
	return out, skipped, nil
}
