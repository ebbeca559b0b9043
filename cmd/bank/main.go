package main

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/vaultbank/backend/internal/audit"
	"github.com/vaultbank/backend/internal/database"
	"github.com/vaultbank/backend/internal/models"
	"github.com/vaultbank/backend/internal/services"
)

// Exercises the transaction engine end to end against the configured storage
// backend: opens two accounts, funds one, runs opposing concurrent transfers
// and reports the final balances. The surrounding service that exposes the
// engine over a transport lives outside this repository.
func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	viper.BindEnv("storage.driver", "STORAGE_DRIVER")
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("engine.lock_timeout", "ENGINE_LOCK_TIMEOUT")
	viper.BindEnv("notify.queue", "NOTIFY_QUEUE")

	viper.SetDefault("storage.driver", "memory")
	viper.SetDefault("engine.lock_timeout", 3*time.Second)

	var (
		ledger   services.Ledger
		recorder services.Recorder
	)

	switch driver := viper.GetString("storage.driver"); driver {
	case "memory":
		log.Println("Using in-memory storage backend")
		ledger = services.NewMemoryLedger(viper.GetDuration("engine.lock_timeout"))
		recorder = services.NewMemoryRecorder()
	case "postgres":
		db, err := database.InitDB()
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()

		if err := database.Migrate(db); err != nil {
			log.Fatalf("Failed to migrate schema: %v", err)
		}

		ledger = services.NewPostgresLedger(db)
		recorder = services.NewPostgresRecorder(db)
	default:
		log.Fatalf("Unknown storage driver: %s", driver)
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	auditLogger := audit.NewLogger()
	notifier := services.NewRedisNotifier(redisClient)
	engine := services.NewTransactionEngine(ledger, recorder, notifier, auditLogger)
	accounts := services.NewAccountService(ledger, recorder, auditLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := services.NewNotificationWorker(redisClient)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	alice, err := accounts.CreateAccount(ctx, models.CreateAccountRequest{
		AccountType: models.AccountTypeChecking,
		OwnerID:     "user-alice",
	})
	if err != nil {
		log.Fatalf("Failed to create account: %v", err)
	}
	bob, err := accounts.CreateAccount(ctx, models.CreateAccountRequest{
		AccountType: models.AccountTypeSavings,
		OwnerID:     "user-bob",
	})
	if err != nil {
		log.Fatalf("Failed to create account: %v", err)
	}

	if _, err := engine.Process(ctx, models.TransactionRequest{
		Type:               models.TransactionTypeDeposit,
		DestinationAccount: alice.AccountNumber,
		Amount:             decimal.NewFromInt(1000),
	}); err != nil {
		log.Fatalf("Failed to fund account: %v", err)
	}
	if _, err := engine.Process(ctx, models.TransactionRequest{
		Type:               models.TransactionTypeDeposit,
		DestinationAccount: bob.AccountNumber,
		Amount:             decimal.NewFromInt(1000),
	}); err != nil {
		log.Fatalf("Failed to fund account: %v", err)
	}

	const transfers = 100
	var wg sync.WaitGroup
	wg.Add(2 * transfers)
	for i := 0; i < transfers; i++ {
		go func() {
			defer wg.Done()
			if _, err := engine.Process(ctx, models.TransactionRequest{
				Type:               models.TransactionTypeTransfer,
				SourceAccount:      alice.AccountNumber,
				DestinationAccount: bob.AccountNumber,
				Amount:             decimal.NewFromInt(2),
			}); err != nil {
				log.Printf("transfer error: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := engine.Process(ctx, models.TransactionRequest{
				Type:               models.TransactionTypeTransfer,
				SourceAccount:      bob.AccountNumber,
				DestinationAccount: alice.AccountNumber,
				Amount:             decimal.NewFromInt(1),
			}); err != nil {
				log.Printf("transfer error: %v", err)
			}
		}()
	}
	wg.Wait()

	finalAlice, _ := accounts.GetAccount(ctx, alice.AccountNumber)
	finalBob, _ := accounts.GetAccount(ctx, bob.AccountNumber)
	log.Printf("Final balances: %s=%s, %s=%s",
		finalAlice.AccountNumber, finalAlice.Balance, finalBob.AccountNumber, finalBob.Balance)

	history, err := accounts.ListTransactions(ctx, alice.AccountNumber, 1, 10)
	if err != nil {
		log.Fatalf("Failed to list transactions: %v", err)
	}
	log.Printf("Most recent transactions for %s: %d", alice.AccountNumber, len(history))

	// Give the worker a moment to drain queued notifications before stopping.
	time.Sleep(2 * time.Second)
	cancel()

	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
		log.Println("Notification worker did not stop in time")
	}
}
