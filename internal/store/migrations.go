package store

type migration struct {
	Version     int
	Description string
	SQL         string
}

var sqliteMigrations = []migration{
	{
		Version:     1,
		Description: "profiles and conversations",
		SQL: `
CREATE TABLE profiles (
    id           TEXT PRIMARY KEY,
    display_name TEXT,
    full_name    TEXT,
    email        TEXT
);

CREATE TABLE conversations (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL DEFAULT 'New Conversation',
    invite_code TEXT UNIQUE,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "messages",
		SQL: `
CREATE TABLE messages (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    sender_id       TEXT,
    content         TEXT NOT NULL,
    is_ai_mediator  INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE,
    FOREIGN KEY (sender_id) REFERENCES profiles(id)
);

CREATE INDEX idx_messages_conversation_created ON messages(conversation_id, created_at DESC);
`,
	},
	{
		Version:     3,
		Description: "room_keys: one key per conversation",
		SQL: `
CREATE TABLE room_keys (
    conversation_id TEXT PRIMARY KEY,
    key             TEXT NOT NULL,
    created_at      TEXT NOT NULL,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);
`,
	},
}

var postgresMigrations = []migration{
	{
		Version:     1,
		Description: "profiles and conversations",
		SQL: `
CREATE TABLE IF NOT EXISTS profiles (
    id           TEXT PRIMARY KEY,
    display_name TEXT,
    full_name    TEXT,
    email        TEXT
);

CREATE TABLE IF NOT EXISTS conversations (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL DEFAULT 'New Conversation',
    invite_code TEXT UNIQUE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`,
	},
	{
		Version:     2,
		Description: "messages",
		SQL: `
CREATE TABLE IF NOT EXISTS messages (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    sender_id       TEXT REFERENCES profiles(id),
    content         TEXT NOT NULL,
    is_ai_mediator  BOOLEAN NOT NULL DEFAULT false,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages(conversation_id, created_at DESC);
`,
	},
	{
		Version:     3,
		Description: "room_keys: one key per conversation",
		SQL: `
CREATE TABLE IF NOT EXISTS room_keys (
    conversation_id TEXT PRIMARY KEY REFERENCES conversations(id) ON DELETE CASCADE,
    key             TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
`,
	},
}
