package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/config"
	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

const (
	initialStock  = 20
	totalRequests = 50
	replayed      = 10
)

func main() {
	ctx := context.Background()

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()

	// Clear previous test data
	rdb.Del(ctx, "ledger:snapshot", "ledger:revision")
	keys, _ := rdb.Keys(ctx, "idempotency:sale:stress-*").Result()
	if len(keys) > 0 {
		rdb.Del(ctx, keys...)
	}

	// Initialize adapter and service
	redisAdapter := storage.NewRedisAdapter(rdb)
	inventory := service.NewInventoryService(redisAdapter, logger, service.WithIdempotency(redisAdapter))

	price := decimal.NewFromInt(100)
	stock := initialStock
	item, err := inventory.AddProduct(ctx, service.NewProduct{Name: "Flash Sale Item", Price: &price, Quantity: &stock})
	if err != nil {
		logger.Fatal("failed to add product", zap.Error(err))
	}

	// Counters
	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var duplicateCount atomic.Int32
	var errorCount atomic.Int32

	buy := func(requestID string) {
		_, err := inventory.RecordSale(ctx, service.NewSale{ProductID: item.ID, Quantity: 1, RequestID: requestID})
		switch {
		case err == nil:
			successCount.Add(1)
		case errors.Is(err, domain.ErrInsufficientStock):
			soldOutCount.Add(1)
		case errors.Is(err, domain.ErrDuplicateRequest):
			duplicateCount.Add(1)
		default:
			errorCount.Add(1)
			logger.Error("sale failed", zap.String("request_id", requestID), zap.Error(err))
		}
	}

	// Spawn concurrent requests; the first few buyers retry their request.
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			buy(fmt.Sprintf("stress-%d", userID))
		}(i)
	}
	for i := 0; i < replayed; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			buy(fmt.Sprintf("stress-%d", userID))
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	soldOut := soldOutCount.Load()
	duplicates := duplicateCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d (+%d replays)\n", totalRequests, replayed)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Duplicates:       %d\n", duplicates)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == initialStock {
		fmt.Printf("PASS: Exactly %d sales succeeded\n", initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d successful sales, got %d\n", initialStock, success)
	}

	// Verify final state in Redis
	product, err := inventory.GetProduct(ctx, item.ID)
	if err != nil {
		logger.Fatal("failed to read product", zap.Error(err))
	}
	fmt.Printf("Final Stock: %d\n", product.Quantity)

	if product.Quantity == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", product.Quantity)
	}

	txs, err := inventory.ListTransactions(ctx)
	if err != nil {
		logger.Fatal("failed to read ledger", zap.Error(err))
	}
	sum := 0
	for _, tx := range txs {
		sum += tx.Delta()
	}
	if sum == product.Quantity {
		fmt.Printf("PASS: Ledger deltas sum to %d across %d entries\n", sum, len(txs))
	} else {
		fmt.Printf("FAIL: Ledger deltas sum to %d, stock is %d\n", sum, product.Quantity)
	}
}
