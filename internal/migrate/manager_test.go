package migrate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSplitSQL(t *testing.T) {
	sql := `create table a (id text); insert into a values ('x;y'); update a set id='z'`
	stmts := splitSQL(sql)
	if len(stmts) != 3 {
		t.Fatalf("statements = %d, want 3: %q", len(stmts), stmts)
	}
	if got := stmts[1]; got != `insert into a values ('x;y');` {
		t.Fatalf("semicolon inside literal was split: %q", got)
	}
}

func TestSplitSQLDropsBlankStatements(t *testing.T) {
	stmts := splitSQL("select 1;\n;\n  ;\n")
	if len(stmts) != 1 || stmts[0] != "select 1;" {
		t.Fatalf("statements = %q, want just the select", stmts)
	}
}

func TestListScriptsOrdersByName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.up.sql", "0001_a.up.sql", "ignore.txt", "0003_c.down.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("select 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	scripts, err := listScripts(dir, upSuffix)
	if err != nil {
		t.Fatalf("listScripts: %v", err)
	}
	if len(scripts) != 2 {
		t.Fatalf("scripts = %d, want 2", len(scripts))
	}
	if scripts[0].name != "0001_a.up.sql" || scripts[1].name != "0002_b.up.sql" {
		t.Fatalf("order = %v", scripts)
	}
}

func TestListScriptsMissingDir(t *testing.T) {
	scripts, err := listScripts(filepath.Join(t.TempDir(), "nope"), ".sql")
	if err != nil {
		t.Fatalf("listScripts: %v", err)
	}
	if scripts != nil {
		t.Fatalf("scripts = %v, want nil", scripts)
	}
}
