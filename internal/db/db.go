package db

import (
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose"
	"github.com/sirupsen/logrus"
)

// Connect открывает подключение к PostgreSQL и проверяет его ping-ом
func Connect(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("database dsn is not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	logrus.Info("Connected to PostgreSQL successfully!")
	return db, nil
}

// Migrate прогоняет goose-миграции из каталога dir
func Migrate(db *sql.DB, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "failed to set goose dialect")
	}
	if err := goose.Up(db, dir); err != nil {
		return errors.Wrap(err, "failed to apply migrations")
	}
	logrus.Info("Migrations applied")
	return nil
}
