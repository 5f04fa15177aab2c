// Package sqlite implementa los repositorios sobre SQLite (modernc, sin cgo).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/dropDatabas3/caixa/internal/domain/repository"
)

// DB abre dos pools sobre el mismo archivo: un writer de una sola conexión
// (evita "database is locked") y un reader con hasta 4 conexiones.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	dsn    string
}

var _ repository.Store = (*DB)(nil)

const pragmas = "_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"

// DSNFor arma el DSN a partir de una ruta o de un DSN "file:" ya armado.
// Para archivos se activa WAL; en memoria no aplica.
func DSNFor(path string) string {
	if strings.HasPrefix(path, "file:") {
		if strings.Contains(path, "_pragma=") {
			return path
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + pragmas
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&%s", path, pragmas)
}

func Open(ctx context.Context, path string) (*DB, error) {
	dsn := DSNFor(path)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(ctx); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("ping writer: %w", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.PingContext(ctx); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("ping reader: %w", err)
	}

	return &DB{Writer: writer, Reader: reader, dsn: dsn}, nil
}

// Close cierra ambos pools; devuelve el primer error.
func (db *DB) Close() error {
	var firstErr error
	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}
	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}
	return firstErr
}

func (db *DB) Ping(ctx context.Context) error { return db.Reader.PingContext(ctx) }

func (db *DB) Credentials() repository.CredentialRepository { return &credentialRepo{db: db} }
func (db *DB) Inbox() repository.InboxRepository            { return &inboxRepo{db: db} }
