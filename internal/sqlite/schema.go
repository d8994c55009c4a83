package sqlite

// Schema DDL. properties holds one row per aggregate with the aggregate
// itself as JSON in body; record_keys indexes every child record so new
// pkIds can be allocated per collection.
const (
	createProperties = `CREATE TABLE properties (
    uprn INTEGER PRIMARY KEY,
    parent_uprn INTEGER,
    logical_status INTEGER NOT NULL,
    address TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createRecordKeys = `CREATE TABLE record_keys (
    collection TEXT NOT NULL,
    pk_id INTEGER NOT NULL,
    uprn INTEGER NOT NULL,
    PRIMARY KEY (collection, pk_id),
    FOREIGN KEY (uprn) REFERENCES properties(uprn) ON DELETE CASCADE
);`

	createLookups = `CREATE TABLE lookups (
    lookup_id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    ref INTEGER NOT NULL,
    value TEXT NOT NULL,
    code TEXT,
    language TEXT,
    historic INTEGER NOT NULL DEFAULT 0
);`
)

// Index DDL.
const (
	idxPropertiesParent = `CREATE INDEX idx_properties_parent ON properties(parent_uprn);`
	idxRecordKeysUPRN   = `CREATE INDEX idx_record_keys_uprn ON record_keys(uprn);`
	idxLookupsKindRef   = `CREATE UNIQUE INDEX idx_lookups_kind_ref ON lookups(kind, ref);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createProperties,
	createRecordKeys,
	createLookups,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxPropertiesParent,
	idxRecordKeysUPRN,
	idxLookupsKindRef,
}
