package database

// ChangesChannel is the LISTEN/NOTIFY channel carrying the collection name
// of every document write.
const ChangesChannel = "docstore_changes"

// Document queries
const (
	InsertDocumentSQL = `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)`

	MergeDocumentSQL = `
		UPDATE documents SET data = data || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id = $2`

	GetDocumentSQL = `
		SELECT id, data, created_at, updated_at
		FROM documents WHERE collection = $1 AND id = $2`

	ListDocumentsSQL = `
		SELECT id, data, created_at, updated_at
		FROM documents WHERE collection = $1
		ORDER BY created_at ASC`

	NotifyChangeSQL = `SELECT pg_notify($1, $2)`
)

// Status log queries
const (
	InsertStatusLogSQL = `
		INSERT INTO order_status_log (order_id, table_number, event_type, old_status, status, changed_by, total, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8)`

	GetStatusHistorySQL = `
		SELECT status, changed_by, changed_at
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC`

	GetLatestStatusSQL = `
		SELECT order_id, table_number, status, COALESCE(total::text, '0'), changed_at
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at DESC, id DESC
		LIMIT 1`
)
