package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"github.com/praisehq/praise/internal/api"
	"github.com/praisehq/praise/internal/db"
	"github.com/praisehq/praise/internal/middleware"
	"github.com/praisehq/praise/internal/utils"
)

func main() {
	_ = godotenv.Load()

	addr := utils.SafeEnv("PRAISE_ADDR", ":8080")
	commit := os.Getenv("PRAISE_COMMIT")
	buildTime := os.Getenv("PRAISE_BUILD_TIME")

	store, err := openStore()
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	mux := http.NewServeMux()
	router := api.NewRouter(store)
	router.Register(mux)

	if email := os.Getenv("PRAISE_ADMIN_EMAIL"); email != "" {
		name := utils.SafeEnv("PRAISE_ADMIN_NAME", "admin")
		password := os.Getenv("PRAISE_ADMIN_PASSWORD")
		if err := router.AuthService().EnsureAdmin(name, email, password); err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":   true,
			"name": "Praise API",
		})
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"commit":     commit,
			"build_time": buildTime,
		})
	})

	handler := middleware.CORS(middleware.SecureHeaders(middleware.NoStore(middleware.WithAuth(mux))))

	log.Printf("Praise server listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// openStore picks SQLite when PRAISE_DB_PATH is set and falls back to the
// in-memory store, which is enough for local development.
func openStore() (api.Store, error) {
	path := os.Getenv("PRAISE_DB_PATH")
	if path == "" {
		log.Printf("PRAISE_DB_PATH not set, using in-memory store")
		return api.NewMemoryStore(), nil
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(conn, os.Getenv("PRAISE_MIGRATIONS_DIR")); err != nil {
		return nil, err
	}
	return db.NewStore(conn)
}
