package db

const schemaSQL = `
-- ===========================================================================
-- DEVICE ATTRIBUTES (last known value per attribute, survives restarts)
-- ===========================================================================

CREATE TABLE IF NOT EXISTS attributes (
  name TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- ===========================================================================
-- DEVICE IDENTITY (single row keyed by a fixed id)
-- ===========================================================================

CREATE TABLE IF NOT EXISTS device_identity (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  network_id TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`
