package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"formbuilder/internal/domain"
	"formbuilder/internal/formfile"
	mcpserver "formbuilder/internal/mcp"
	"formbuilder/internal/service"
	"formbuilder/internal/storage"
)

// noopEmitter is a no-op EventEmitter for stdio mode: there is no attached
// frontend, agents read state from tool results instead.
type noopEmitter struct{}

func (noopEmitter) Emit(_ context.Context, _ string, _ any) {}

// main runs the form builder as a standalone MCP server on stdin/stdout.
//
// Configuration comes from the environment (a .env file is honored):
//
//	FORMBUILDER_DB            SQLite file path (default ~/.local/share/formbuilder/forms.db)
//	FORMBUILDER_POSTGRES_DSN  when set, use Postgres instead of SQLite
//	FORMBUILDER_EXPORT_DIR    directory for exported form documents
//	FORMBUILDER_AUTOSAVE      cron expression for background saves (default "* * * * *")
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local", "share", "formbuilder")

	forms, history, closeStores, err := openStores(dataDir)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer closeStores()

	emitter := noopEmitter{}
	builder := service.NewBuilderService(forms, history, emitter)

	exportDir := os.Getenv("FORMBUILDER_EXPORT_DIR")
	if exportDir == "" {
		exportDir = filepath.Join(dataDir, "exports")
	}

	// External edits to exported documents flow back into the builder.
	bridge, err := formfile.NewBridge(func(formID string, doc *formfile.Document) {
		if err := builder.ImportState(ctx, doc.ToState()); err != nil {
			log.Printf("formfile reload: %v", err)
		}
	})
	if err != nil {
		log.Printf("Warning: file watching disabled: %v", err)
	} else {
		defer bridge.Close()
		if err := os.MkdirAll(exportDir, 0o755); err != nil {
			log.Printf("Warning: create export dir: %v", err)
		} else if err := bridge.WatchDir(exportDir); err != nil {
			log.Printf("Warning: watch export dir: %v", err)
		} else {
			log.Printf("Watching %s for form document edits", exportDir)
		}
	}

	autosave := service.NewAutosave(builder)
	expr := os.Getenv("FORMBUILDER_AUTOSAVE")
	if expr == "" {
		expr = "* * * * *"
	}
	if err := autosave.Start(ctx, expr); err != nil {
		log.Printf("Warning: autosave disabled: %v", err)
	}
	defer autosave.Stop()

	srv := mcpserver.New(ctx, mcpserver.Deps{
		Emitter:   emitter,
		Builder:   builder,
		ExportDir: exportDir,
	})
	if err := srv.ServeStdio(); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}

// openStores picks the storage backend: Postgres when a DSN is configured,
// a local SQLite file otherwise.
func openStores(dataDir string) (domain.FormStore, domain.HistoryStore, func(), error) {
	if dsn := os.Getenv("FORMBUILDER_POSTGRES_DSN"); dsn != "" {
		db, err := storage.NewPostgres(dsn)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Println("Using Postgres storage")
		return storage.NewPostgresFormStore(db), storage.NewPostgresHistoryStore(db), func() { db.Close() }, nil
	}

	dbPath := os.Getenv("FORMBUILDER_DB")
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "forms.db")
	}
	db, err := storage.New(dbPath)
	if err != nil {
		return nil, nil, nil, err
	}
	return storage.NewFormStore(db), storage.NewHistoryStore(db), func() { db.Close() }, nil
}
