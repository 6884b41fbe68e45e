package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies every .sql file in lexical order. When dir is
// non-empty and exists on disk it overrides the embedded set, which lets
// deployments patch the schema without rebuilding.
func RunMigrations(db *sql.DB, dir string) error {
	source, root := migrationSource(dir)
	names, err := listMigrations(source, root)
	if err != nil {
		return err
	}
	for _, name := range names {
		stmt, err := fs.ReadFile(source, filepath.Join(root, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if len(stmt) == 0 {
			continue
		}
		if _, err := db.Exec(string(stmt)); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
	}
	return nil
}

func migrationSource(dir string) (fs.FS, string) {
	if dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return os.DirFS(dir), "."
		}
	}
	return embeddedMigrations, "migrations"
}

func listMigrations(source fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(source, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
