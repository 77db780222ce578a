package postgres_test

// rowStub implements pgx.Row with a configurable Scan, for pool stubs that
// need to hand back a row without a live connection.
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }
