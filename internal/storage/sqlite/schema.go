package sqlite

const schema = `
-- Conversations table
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    key TEXT NOT NULL,
    channel TEXT NOT NULL,
    thread_id TEXT NOT NULL DEFAULT '',
    first_seen_at DATETIME NOT NULL,
    last_seen_at DATETIME NOT NULL,
    finalized INTEGER NOT NULL DEFAULT 0 CHECK(finalized IN (0, 1)),
    finalized_at DATETIME,
    derived_message_id TEXT,
    CHECK(first_seen_at <= last_seen_at)
);

-- At most one open conversation per key. New messages after finalization
-- start a fresh row rather than reopening the old one.
CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_open_key
    ON conversations(key) WHERE finalized = 0;
CREATE INDEX IF NOT EXISTS idx_conversations_first_seen ON conversations(first_seen_at);
CREATE INDEX IF NOT EXISTS idx_conversations_finalized_at ON conversations(finalized_at);

-- Ordered raw messages per conversation
CREATE TABLE IF NOT EXISTS conversation_messages (
    conversation_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    sender TEXT NOT NULL,
    body TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    PRIMARY KEY (conversation_id, seq),
    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

-- Flattened text records produced at finalization
CREATE TABLE IF NOT EXISTS derived_messages (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

-- Recorded tasks
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    action TEXT NOT NULL,
    priority TEXT NOT NULL DEFAULT 'medium',
    sender TEXT NOT NULL DEFAULT '',
    environment TEXT NOT NULL DEFAULT '',
    synced INTEGER NOT NULL DEFAULT 0 CHECK(synced IN (0, 1)),
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);
`
