package db

import (
	"testing"
)

func TestOpenMemory(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	// Verify tables exist by querying each one.
	tables := []string{
		"flows", "flow_versions", "flow_audit",
		"legacy_flows", "flow_steps", "flow_fields",
	}

	for _, table := range tables {
		var count int
		err := d.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestMigrateIdempotent(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	// Running migrate again should not fail.
	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate() error: %v", err)
	}
}

func TestLiveSlugUniqueIndex(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	if _, err := d.Exec(`INSERT INTO flows (id, name, slug, status) VALUES ('f1', 'One', 'shared', 'active')`); err != nil {
		t.Fatalf("inserting first flow: %v", err)
	}
	if _, err := d.Exec(`INSERT INTO flows (id, name, slug, status) VALUES ('f2', 'Two', 'shared', 'draft')`); err == nil {
		t.Fatal("expected duplicate live slug insert to fail")
	}

	// Archiving the holder frees the slug.
	if _, err := d.Exec(`UPDATE flows SET status = 'archived' WHERE id = 'f1'`); err != nil {
		t.Fatalf("archiving: %v", err)
	}
	if _, err := d.Exec(`INSERT INTO flows (id, name, slug, status) VALUES ('f2', 'Two', 'shared', 'draft')`); err != nil {
		t.Fatalf("insert after archive: %v", err)
	}
}

func TestVersionPrimaryKeyConflict(t *testing.T) {
	d, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	defer d.Close()

	if _, err := d.Exec(`INSERT INTO flows (id, name, slug) VALUES ('f1', 'Test', 'test')`); err != nil {
		t.Fatalf("inserting flow: %v", err)
	}
	if _, err := d.Exec(`INSERT INTO flow_versions (flow_id, version, slug, payload) VALUES ('f1', 1, 'test', '{}')`); err != nil {
		t.Fatalf("inserting version: %v", err)
	}
	if _, err := d.Exec(`INSERT INTO flow_versions (flow_id, version, slug, payload) VALUES ('f1', 1, 'test', '{}')`); err == nil {
		t.Fatal("expected duplicate (flow_id, version) insert to fail")
	}
}
