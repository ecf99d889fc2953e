package testutil

import (
	"context"
	"fmt"
	"log"
	"time"

	"event-checkin/config"
	"event-checkin/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
)

// Setup connects to the test Postgres and Redis from config.LoadTestConfig. When they are
// not running it starts throwaway containers instead. The schema is migrated either way.
func Setup() (*pgxpool.Pool, *redis.Client, func(), error) {
	cfg := config.LoadTestConfig()

	testDB, dbErr := database.InitDatabase(&cfg.Database)
	testRdb, rdbErr := database.InitRedis(&cfg.Redis)
	if dbErr == nil && rdbErr == nil {
		if err := database.Migrate(context.Background(), testDB); err != nil {
			testDB.Close()
			testRdb.Close()
			return nil, nil, nil, fmt.Errorf("failed to migrate test database: %v", err)
		}
		log.Println("Test database and redis connected successfully")
		return testDB, testRdb, func() {
			testDB.Close()
			testRdb.Close()
		}, nil
	}
	if testDB != nil {
		testDB.Close()
	}
	if testRdb != nil {
		testRdb.Close()
	}

	return setupContainers()
}

func setupContainers() (*pgxpool.Pool, *redis.Client, func(), error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not construct docker pool: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		return nil, nil, nil, fmt.Errorf("could not connect to docker: %v", err)
	}
	pool.MaxWait = 2 * time.Minute

	noRestart := func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	}

	pg, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_DB=test_db",
		},
	}, noRestart)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not start postgres: %v", err)
	}
	_ = pg.Expire(300)

	rd, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Tag:        "7-alpine",
	}, noRestart)
	if err != nil {
		_ = pool.Purge(pg)
		return nil, nil, nil, fmt.Errorf("could not start redis: %v", err)
	}
	_ = rd.Expire(300)

	purge := func() {
		_ = pool.Purge(pg)
		_ = pool.Purge(rd)
	}

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s/test_db?sslmode=disable", pg.GetHostPort("5432/tcp"))
	var testDB *pgxpool.Pool
	if err := pool.Retry(func() error {
		var err error
		testDB, err = database.InitDatabaseWithDSN(dsn)
		return err
	}); err != nil {
		purge()
		return nil, nil, nil, fmt.Errorf("postgres never became ready: %v", err)
	}
	if err := database.Migrate(context.Background(), testDB); err != nil {
		testDB.Close()
		purge()
		return nil, nil, nil, fmt.Errorf("failed to migrate test database: %v", err)
	}

	redisCfg := config.RedisConfig{Host: "localhost", Port: rd.GetPort("6379/tcp")}
	var testRdb *redis.Client
	if err := pool.Retry(func() error {
		var err error
		testRdb, err = database.InitRedis(&redisCfg)
		return err
	}); err != nil {
		testDB.Close()
		purge()
		return nil, nil, nil, fmt.Errorf("redis never became ready: %v", err)
	}

	log.Println("Test containers started")

	cleanup := func() {
		testDB.Close()
		testRdb.Close()
		purge()
		log.Println("Test containers removed")
	}
	return testDB, testRdb, cleanup, nil
}

// Truncate empties every domain table between tests.
func Truncate(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, "TRUNCATE scanner_sessions, guests, events RESTART IDENTITY CASCADE")
	return err
}
