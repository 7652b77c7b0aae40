package sqlstore

func (s *SQLStore) initSchema() error {
	var stmts []string

	if s.dbType == Postgres {
		stmts = []string{`
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`, `
		CREATE TABLE IF NOT EXISTS notes (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			is_pinned BOOLEAN NOT NULL DEFAULT FALSE,
			is_shared BOOLEAN NOT NULL DEFAULT FALSE,
			is_template BOOLEAN NOT NULL DEFAULT FALSE,
			sort_order INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`, `
		CREATE TABLE IF NOT EXISTS checkboxes (
			id BIGSERIAL PRIMARY KEY,
			note_id BIGINT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
			label TEXT NOT NULL,
			checked BOOLEAN NOT NULL DEFAULT FALSE,
			position INTEGER NOT NULL DEFAULT 0
		);`, `
		CREATE TABLE IF NOT EXISTS note_invitations (
			id BIGSERIAL PRIMARY KEY,
			note_id BIGINT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
			invited_email TEXT NOT NULL,
			invited_by_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			permission TEXT NOT NULL CHECK (permission IN ('READ', 'WRITE', 'ADMIN')),
			message TEXT NOT NULL DEFAULT '',
			token TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL CHECK (status IN ('PENDING', 'ACCEPTED', 'DECLINED', 'EXPIRED', 'REVOKED')),
			expires_at TIMESTAMPTZ NOT NULL,
			accepted_at TIMESTAMPTZ,
			accepted_by_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (note_id, invited_email)
		);`, `
		CREATE TABLE IF NOT EXISTS note_access (
			id BIGSERIAL PRIMARY KEY,
			note_id BIGINT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			permission TEXT NOT NULL CHECK (permission IN ('READ', 'WRITE', 'ADMIN')),
			granted_by BIGINT NOT NULL,
			granted_at TIMESTAMPTZ NOT NULL,
			UNIQUE (note_id, user_id)
		);`, `
		CREATE TABLE IF NOT EXISTS api_keys (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			key_hash TEXT NOT NULL UNIQUE,
			prefix TEXT NOT NULL,
			expires_at TIMESTAMPTZ,
			last_used_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL
		);`, `
		CREATE TABLE IF NOT EXISTS api_key_permissions (
			api_key_id BIGINT NOT NULL REFERENCES api_keys(id) ON DELETE CASCADE,
			permission TEXT NOT NULL,
			PRIMARY KEY (api_key_id, permission)
		);`, `
		CREATE TABLE IF NOT EXISTS webhooks (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			action TEXT NOT NULL,
			url TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`}
	} else {
		stmts = []string{
			`PRAGMA foreign_keys = ON;`, `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`, `
		CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			is_pinned BOOLEAN NOT NULL DEFAULT 0,
			is_shared BOOLEAN NOT NULL DEFAULT 0,
			is_template BOOLEAN NOT NULL DEFAULT 0,
			sort_order INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);`, `
		CREATE TABLE IF NOT EXISTS checkboxes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			note_id INTEGER NOT NULL,
			label TEXT NOT NULL,
			checked BOOLEAN NOT NULL DEFAULT 0,
			position INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(note_id) REFERENCES notes(id) ON DELETE CASCADE
		);`, `
		CREATE TABLE IF NOT EXISTS note_invitations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			note_id INTEGER NOT NULL,
			invited_email TEXT NOT NULL,
			invited_by_id INTEGER NOT NULL,
			permission TEXT NOT NULL CHECK (permission IN ('READ', 'WRITE', 'ADMIN')),
			message TEXT NOT NULL DEFAULT '',
			token TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL CHECK (status IN ('PENDING', 'ACCEPTED', 'DECLINED', 'EXPIRED', 'REVOKED')),
			expires_at DATETIME NOT NULL,
			accepted_at DATETIME,
			accepted_by_id INTEGER,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE (note_id, invited_email),
			FOREIGN KEY(note_id) REFERENCES notes(id) ON DELETE CASCADE,
			FOREIGN KEY(invited_by_id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY(accepted_by_id) REFERENCES users(id) ON DELETE SET NULL
		);`, `
		CREATE TABLE IF NOT EXISTS note_access (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			note_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			permission TEXT NOT NULL CHECK (permission IN ('READ', 'WRITE', 'ADMIN')),
			granted_by INTEGER NOT NULL,
			granted_at DATETIME NOT NULL,
			UNIQUE (note_id, user_id),
			FOREIGN KEY(note_id) REFERENCES notes(id) ON DELETE CASCADE,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);`, `
		CREATE TABLE IF NOT EXISTS api_keys (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			key_hash TEXT NOT NULL UNIQUE,
			prefix TEXT NOT NULL,
			expires_at DATETIME,
			last_used_at DATETIME,
			created_at DATETIME NOT NULL,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);`, `
		CREATE TABLE IF NOT EXISTS api_key_permissions (
			api_key_id INTEGER NOT NULL,
			permission TEXT NOT NULL,
			PRIMARY KEY (api_key_id, permission),
			FOREIGN KEY(api_key_id) REFERENCES api_keys(id) ON DELETE CASCADE
		);`, `
		CREATE TABLE IF NOT EXISTS webhooks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			action TEXT NOT NULL,
			url TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);`}
	}

	stmts = append(stmts,
		`CREATE INDEX IF NOT EXISTS idx_notes_user ON notes(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_checkboxes_note ON checkboxes(note_id);`,
		`CREATE INDEX IF NOT EXISTS idx_invitations_email ON note_invitations(invited_email);`,
		`CREATE INDEX IF NOT EXISTS idx_invitations_status ON note_invitations(status);`,
		`CREATE INDEX IF NOT EXISTS idx_access_user ON note_access(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_webhooks_user_action ON webhooks(user_id, action);`,
	)

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
