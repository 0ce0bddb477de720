// Package appctx holds the context keys shared across the compensation
// engine so that no package reaches for an ambient global.
package appctx

// CTXKey is the type for all context keys used by this module.
type CTXKey string

const (
	// DatastoreCTXKey is the context key for the primary datastore.
	DatastoreCTXKey CTXKey = "datastore"
	// DatabaseTransactionCTXKey is the context key for an in-flight sqlx.Tx.
	DatabaseTransactionCTXKey CTXKey = "db_tx"
	// LogWriterCTXKey overrides the default log writer, used by tests.
	LogWriterCTXKey CTXKey = "log_writer"
	// LogLevelCTXKey sets the minimum zerolog level for the request.
	LogLevelCTXKey CTXKey = "log_level"
	// EnvironmentCTXKey is "local", "staging" or "production".
	EnvironmentCTXKey CTXKey = "environment"
	// PartnerIDCTXKey carries the authenticated caller's partner id.
	PartnerIDCTXKey CTXKey = "partner_id"
	// IsAdminCTXKey marks a request as authenticated with the admin scope.
	IsAdminCTXKey CTXKey = "is_admin"
	// RequestIDCTXKey carries the caller-supplied logical request id used
	// for retry correlation (spec: "Retries ... must use a fresh request
	// id for logging").
	RequestIDCTXKey CTXKey = "request_id"
)
