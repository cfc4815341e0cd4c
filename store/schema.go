package store

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    current_node_id TEXT NOT NULL DEFAULT '',
    is_active INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    branch_name TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    merge_metadata TEXT,
    attachments TEXT,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

-- Parent edges in ordinal order. Ordinal 0 is the primary (left) parent,
-- which recovers the history path through merge nodes deterministically.
CREATE TABLE IF NOT EXISTS node_parents (
    node_id TEXT NOT NULL,
    parent_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    PRIMARY KEY (node_id, ordinal),
    FOREIGN KEY (node_id) REFERENCES nodes(id) ON DELETE CASCADE
);

-- Cached state summaries keyed by node id. Kept out of the nodes table so
-- rewriting a conversation's nodes does not discard them; saves prune rows
-- whose node no longer exists.
CREATE TABLE IF NOT EXISTS node_summaries (
    node_id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    record TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_nodes_conversation ON nodes(conversation_id);
CREATE INDEX IF NOT EXISTS idx_node_summaries_conversation ON node_summaries(conversation_id);
CREATE INDEX IF NOT EXISTS idx_node_parents_parent ON node_parents(parent_id);

CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
    node_id UNINDEXED,
    conversation_id UNINDEXED,
    content,
    role UNINDEXED
);

-- Keep the FTS index in sync with the nodes table.
CREATE TRIGGER IF NOT EXISTS nodes_fts_ai AFTER INSERT ON nodes BEGIN
    INSERT INTO nodes_fts(node_id, conversation_id, content, role)
    VALUES (NEW.id, NEW.conversation_id, NEW.content, NEW.role);
END;

CREATE TRIGGER IF NOT EXISTS nodes_fts_ad AFTER DELETE ON nodes BEGIN
    DELETE FROM nodes_fts WHERE node_id = OLD.id;
END;

CREATE TRIGGER IF NOT EXISTS nodes_fts_au AFTER UPDATE ON nodes BEGIN
    UPDATE nodes_fts SET content = NEW.content, role = NEW.role
    WHERE node_id = OLD.id;
END;
`
