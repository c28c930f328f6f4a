// ABOUTME: SQLite database schema for the refinement store
// ABOUTME: Projects, units, roster, outlines, refinement records and single-flight leases
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Projects (background facts and default model)
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    genre TEXT,
    synopsis TEXT,
    time_period TEXT,
    location TEXT,
    default_model TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Units (chapters); content is the active text
CREATE TABLE IF NOT EXISTS units (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    number INTEGER NOT NULL,
    title TEXT,
    content TEXT,
    word_count INTEGER DEFAULT 0,
    summary TEXT,
    outline_id TEXT,
    is_refined INTEGER NOT NULL DEFAULT 0,
    refinement_id TEXT,
    refinement_model TEXT,
    refined_at DATETIME,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (project_id, number)
);

-- Characters (roster)
CREATE TABLE IF NOT EXISTS characters (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    role TEXT,
    personality TEXT,
    position INTEGER DEFAULT 0
);

-- Outlines (planning text per unit)
CREATE TABLE IF NOT EXISTS outlines (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    title TEXT,
    content TEXT
);

-- Refinement records, one per attempt; originals are never updated
CREATE TABLE IF NOT EXISTS refinements (
    id TEXT PRIMARY KEY,
    unit_id TEXT NOT NULL REFERENCES units(id) ON DELETE CASCADE,
    project_id TEXT NOT NULL,
    unit_number INTEGER NOT NULL,
    version INTEGER NOT NULL,
    original_content TEXT NOT NULL,
    original_word_count INTEGER NOT NULL,
    seg1_original TEXT NOT NULL,
    seg1_original_wc INTEGER NOT NULL,
    seg1_refined TEXT,
    seg1_refined_wc INTEGER,
    seg2_original TEXT NOT NULL,
    seg2_original_wc INTEGER NOT NULL,
    seg2_refined TEXT,
    seg2_refined_wc INTEGER,
    seg3_original TEXT NOT NULL,
    seg3_original_wc INTEGER NOT NULL,
    seg3_refined TEXT,
    seg3_refined_wc INTEGER,
    prior_tail TEXT,
    refined_content TEXT,
    refined_word_count INTEGER,
    status TEXT NOT NULL DEFAULT 'pending',
    current_segment INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    model TEXT NOT NULL,
    review_status TEXT,
    review_comment TEXT,
    reviewed_at DATETIME,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    completed_at DATETIME,
    UNIQUE (unit_id, version)
);

-- Single-flight leases keyed by unit; expires_at is unix nanoseconds
CREATE TABLE IF NOT EXISTS refinement_leases (
    unit_id TEXT PRIMARY KEY,
    holder TEXT NOT NULL,
    expires_at INTEGER NOT NULL
);

-- Indexes for efficient querying
CREATE INDEX IF NOT EXISTS idx_units_project ON units(project_id, number);
CREATE INDEX IF NOT EXISTS idx_characters_project ON characters(project_id, position);
CREATE INDEX IF NOT EXISTS idx_refinements_unit ON refinements(unit_id, version);
CREATE INDEX IF NOT EXISTS idx_refinements_project_status ON refinements(project_id, status);
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 1
