// Package postgresdb provides the PostgreSQL-backed implementation of the
// storage interface. It runs goose migrations at startup and maps
// unique-constraint violations to the service's sentinel errors.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/clipr-link/clipr/internal/models"
	"github.com/clipr-link/clipr/internal/user"
)

// PostgresDB is a PostgreSQL-backed implementation of the service storage.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

const pgUniqueViolationCode = "23505"

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables dropping all public tables before running migrations.
// It is intended for test setups.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.Up()` calling: %w",
				err,
			)
	}

	return result, nil
}

// CreateUser inserts a new user record.
// Returns models.ErrEmailAlreadyTaken when the email unique index is violated.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User) (*user.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			INSERT INTO users (name, email, password)
				VALUES ($1, $2, $3)
				RETURNING id, created_at, updated_at
		`,
		usr.Name,
		usr.Email,
		usr.PasswordHash,
	)

	created := *usr
	err := row.Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrEmailAlreadyTaken
		}
		return nil, err
	}

	return &created, nil
}

// FindUserByEmail fetches a user by email.
// The boolean reports whether the user exists.
func (db *PostgresDB) FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			SELECT id, name, email, password, created_at, updated_at
				FROM users
				WHERE email = $1
		`,
		email,
	)

	return scanUser(row)
}

// GetUserByID fetches a user by their UUID.
// The boolean reports whether the user exists.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			SELECT id, name, email, password, created_at, updated_at
				FROM users
				WHERE id = $1
		`,
		userID,
	)

	return scanUser(row)
}

// InsertShortURL persists a new short URL record owned by record.UserID.
// Returns models.ErrShortCodeTaken when the short code unique index is violated.
func (db *PostgresDB) InsertShortURL(ctx context.Context, record *models.ShortURL) (*models.ShortURL, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			INSERT INTO urls (short_code, target_url, user_id)
				VALUES ($1, $2, $3)
				RETURNING id, created_at, updated_at
		`,
		record.ShortCode,
		record.TargetURL,
		record.UserID,
	)

	created := *record
	err := row.Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrShortCodeTaken
		}
		return nil, err
	}

	return &created, nil
}

// FindURLByShortCode fetches the record mapped to the given short code.
func (db *PostgresDB) FindURLByShortCode(ctx context.Context, shortCode string) (*models.ShortURL, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			SELECT id, short_code, target_url, user_id, created_at, updated_at
				FROM urls
				WHERE short_code = $1
		`,
		shortCode,
	)

	record := &models.ShortURL{}
	err := row.Scan(
		&record.ID,
		&record.ShortCode,
		&record.TargetURL,
		&record.UserID,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return record, true, nil
}

// FindURLsByUser returns every record owned by the given user.
func (db *PostgresDB) FindURLsByUser(ctx context.Context, userID string) ([]models.ShortURL, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT id, short_code, target_url, user_id, created_at, updated_at
				FROM urls
				WHERE user_id = $1
				ORDER BY created_at
		`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.ShortURL{}
	for rows.Next() {
		var record models.ShortURL
		err = rows.Scan(
			&record.ID,
			&record.ShortCode,
			&record.TargetURL,
			&record.UserID,
			&record.CreatedAt,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		result = append(result, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteShortURL removes the record matching both the short code and the
// owner in a single conditional DELETE. It reports whether a row matched.
func (db *PostgresDB) DeleteShortURL(ctx context.Context, shortCode, userID string) (bool, error) {
	result, err := db.database.ExecContext(
		ctx,
		`DELETE FROM urls WHERE short_code = $1 AND user_id = $2`,
		shortCode,
		userID,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// GetNumberOfUsers returns the total number of registered users.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM users`)
}

// GetNumberOfShortenedURLs returns the total number of shortened URLs.
func (db *PostgresDB) GetNumberOfShortenedURLs(ctx context.Context) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM urls`)
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) count(ctx context.Context, query string) (int64, error) {
	row := db.database.QueryRowContext(ctx, query)
	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}

	return total, nil
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}

func scanUser(row *sql.Row) (*user.User, bool, error) {
	usr := &user.User{}
	err := row.Scan(
		&usr.ID,
		&usr.Name,
		&usr.Email,
		&usr.PasswordHash,
		&usr.CreatedAt,
		&usr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return usr, true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode
}
