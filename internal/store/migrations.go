package store

// migration is a single versioned schema change.
type migration struct {
	version int
	sql     string
}

// migrations are applied in order; each runs at most once per database.
var migrations = []migration{
	{
		version: 1,
		sql: `
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY
			);

			CREATE TABLE IF NOT EXISTS sync_marks (
				account       TEXT NOT NULL,
				folder        TEXT NOT NULL,
				uid_validity  INTEGER NOT NULL,
				last_uid      INTEGER NOT NULL,
				updated_at    TIMESTAMP NOT NULL,
				PRIMARY KEY (account, folder)
			);

			INSERT INTO schema_version (version) VALUES (1);
		`,
	},
}
