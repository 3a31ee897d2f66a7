package store

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS import_batch (
		id TEXT PRIMARY KEY,
		source_name TEXT NOT NULL,
		doc_hash TEXT NOT NULL,
		bank TEXT NOT NULL,
		company TEXT NOT NULL,
		account TEXT NOT NULL DEFAULT '',
		format TEXT NOT NULL,
		status TEXT NOT NULL,
		override INTEGER NOT NULL DEFAULT 0,
		row_count INTEGER NOT NULL DEFAULT 0,
		line_count INTEGER NOT NULL DEFAULT 0,
		committed_by TEXT NOT NULL,
		committed_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_import_batch_doc_hash ON import_batch(doc_hash)`,
	`CREATE TABLE IF NOT EXISTS bank_transaction (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL REFERENCES import_batch(id),
		bank TEXT NOT NULL,
		company TEXT NOT NULL,
		account TEXT NOT NULL DEFAULT '',
		posted_on TEXT NOT NULL,
		description TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		bank_direction TEXT NOT NULL,
		balance TEXT,
		doc_hash TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		source_line INTEGER NOT NULL DEFAULT 0,
		direction TEXT NOT NULL,
		client TEXT,
		process TEXT,
		category TEXT,
		reconciled_by TEXT,
		reconciled_at TEXT,
		version INTEGER NOT NULL DEFAULT 0,
		UNIQUE (doc_hash, row_index)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bank_transaction_dedup
		ON bank_transaction(bank, company, account, posted_on, amount, description)`,
	`CREATE INDEX IF NOT EXISTS idx_bank_transaction_client
		ON bank_transaction(client, posted_on)`,
	`CREATE INDEX IF NOT EXISTS idx_bank_transaction_company
		ON bank_transaction(company, posted_on)`,
	`CREATE TABLE IF NOT EXISTS audit_entry (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id INTEGER NOT NULL REFERENCES bank_transaction(id),
		prior TEXT NOT NULL,
		next TEXT NOT NULL,
		actor TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entry_transaction ON audit_entry(transaction_id)`,
	`CREATE TRIGGER IF NOT EXISTS audit_entry_no_update BEFORE UPDATE ON audit_entry
	BEGIN
		SELECT RAISE(ABORT, 'audit_entry is append-only');
	END`,
	`CREATE TRIGGER IF NOT EXISTS audit_entry_no_delete BEFORE DELETE ON audit_entry
	BEGIN
		SELECT RAISE(ABORT, 'audit_entry is append-only');
	END`,
	`CREATE TABLE IF NOT EXISTS import_line (
		batch_id TEXT NOT NULL REFERENCES import_batch(id),
		line_no INTEGER NOT NULL,
		page INTEGER NOT NULL DEFAULT 0,
		text TEXT NOT NULL,
		PRIMARY KEY (batch_id, line_no)
	)`,
	`CREATE TRIGGER IF NOT EXISTS import_line_no_update BEFORE UPDATE ON import_line
	BEGIN
		SELECT RAISE(ABORT, 'import_line is append-only');
	END`,
	`CREATE TRIGGER IF NOT EXISTS import_line_no_delete BEFORE DELETE ON import_line
	BEGIN
		SELECT RAISE(ABORT, 'import_line is append-only');
	END`,
	`CREATE TRIGGER IF NOT EXISTS bank_transaction_no_delete BEFORE DELETE ON bank_transaction
	BEGIN
		SELECT RAISE(ABORT, 'bank_transaction rows cannot be deleted');
	END`,
	`CREATE TRIGGER IF NOT EXISTS bank_transaction_immutable
	BEFORE UPDATE OF batch_id, bank, company, account, posted_on, description, reference,
		amount, bank_direction, balance, doc_hash, row_index, source_line ON bank_transaction
	BEGIN
		SELECT RAISE(ABORT, 'bank_transaction statement fields are immutable');
	END`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS import_batch (
		id TEXT PRIMARY KEY,
		source_name TEXT NOT NULL,
		doc_hash TEXT NOT NULL,
		bank TEXT NOT NULL,
		company TEXT NOT NULL,
		account TEXT NOT NULL DEFAULT '',
		format TEXT NOT NULL,
		status TEXT NOT NULL,
		override INTEGER NOT NULL DEFAULT 0,
		row_count INTEGER NOT NULL DEFAULT 0,
		line_count INTEGER NOT NULL DEFAULT 0,
		committed_by TEXT NOT NULL,
		committed_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_import_batch_doc_hash ON import_batch(doc_hash)`,
	`CREATE TABLE IF NOT EXISTS bank_transaction (
		id BIGSERIAL PRIMARY KEY,
		batch_id TEXT NOT NULL REFERENCES import_batch(id),
		bank TEXT NOT NULL,
		company TEXT NOT NULL,
		account TEXT NOT NULL DEFAULT '',
		posted_on TEXT NOT NULL,
		description TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		bank_direction TEXT NOT NULL,
		balance TEXT,
		doc_hash TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		source_line INTEGER NOT NULL DEFAULT 0,
		direction TEXT NOT NULL,
		client TEXT,
		process TEXT,
		category TEXT,
		reconciled_by TEXT,
		reconciled_at TEXT,
		version INTEGER NOT NULL DEFAULT 0,
		UNIQUE (doc_hash, row_index)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bank_transaction_dedup
		ON bank_transaction(bank, company, account, posted_on, amount, description)`,
	`CREATE INDEX IF NOT EXISTS idx_bank_transaction_client
		ON bank_transaction(client, posted_on)`,
	`CREATE INDEX IF NOT EXISTS idx_bank_transaction_company
		ON bank_transaction(company, posted_on)`,
	`CREATE TABLE IF NOT EXISTS audit_entry (
		id BIGSERIAL PRIMARY KEY,
		transaction_id BIGINT NOT NULL REFERENCES bank_transaction(id),
		prior TEXT NOT NULL,
		next TEXT NOT NULL,
		actor TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entry_transaction ON audit_entry(transaction_id)`,
	`CREATE OR REPLACE FUNCTION conciliar_reject_change() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION '% on % is not allowed', TG_OP, TG_TABLE_NAME;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS audit_entry_append_only ON audit_entry`,
	`CREATE TRIGGER audit_entry_append_only BEFORE UPDATE OR DELETE ON audit_entry
		FOR EACH ROW EXECUTE FUNCTION conciliar_reject_change()`,
	`CREATE TABLE IF NOT EXISTS import_line (
		batch_id TEXT NOT NULL REFERENCES import_batch(id),
		line_no INTEGER NOT NULL,
		page INTEGER NOT NULL DEFAULT 0,
		text TEXT NOT NULL,
		PRIMARY KEY (batch_id, line_no)
	)`,
	`DROP TRIGGER IF EXISTS import_line_append_only ON import_line`,
	`CREATE TRIGGER import_line_append_only BEFORE UPDATE OR DELETE ON import_line
		FOR EACH ROW EXECUTE FUNCTION conciliar_reject_change()`,
	`DROP TRIGGER IF EXISTS bank_transaction_no_delete ON bank_transaction`,
	`CREATE TRIGGER bank_transaction_no_delete BEFORE DELETE ON bank_transaction
		FOR EACH ROW EXECUTE FUNCTION conciliar_reject_change()`,
	`DROP TRIGGER IF EXISTS bank_transaction_immutable ON bank_transaction`,
	`CREATE TRIGGER bank_transaction_immutable
		BEFORE UPDATE OF batch_id, bank, company, account, posted_on, description, reference,
			amount, bank_direction, balance, doc_hash, row_index, source_line ON bank_transaction
		FOR EACH ROW EXECUTE FUNCTION conciliar_reject_change()`,
}
