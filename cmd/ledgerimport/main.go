// Command ledgerimport imports a chronological series of legacy database
// documents into an empty store. A recorded ledger is kept; for documents
// written without one the ledger is rebuilt from successive differences.
//
//	ledgerimport [-dry-run] backup-1.json backup-2.json ... database.json
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/config"
	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
	"github.com/rl1809/stock-ledger/internal/port"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "print the rebuilt document instead of importing it")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-dry-run] snapshot.json...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	snap, err := rebuild(flag.Args(), logger)
	if err != nil {
		logger.Fatal("failed to rebuild ledger", zap.Error(err))
	}

	if *dryRun {
		data, err := storage.EncodeSnapshot(snap)
		if err != nil {
			logger.Fatal("failed to encode snapshot", zap.Error(err))
		}
		fmt.Println(string(data))
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	inventory := service.NewInventoryService(store, logger)
	if err := inventory.Import(ctx, snap); err != nil {
		logger.Fatal("import failed", zap.Error(err))
	}
	logger.Info("ledger imported",
		zap.String("driver", cfg.StoreDriver),
		zap.Int("transactions", len(snap.Transactions)),
	)
}

// rebuild turns a chronological series of documents into one snapshot. The
// newest document that carries a ledger supplies it as recorded; documents
// after it are replayed through a LedgerDeriver, each dated by its
// modification time. The last document supplies the final catalog.
func rebuild(paths []string, logger *zap.Logger) (*domain.Snapshot, error) {
	type observation struct {
		path    string
		modTime time.Time
		snap    *domain.Snapshot
	}

	observations := make([]observation, 0, len(paths))
	base := -1
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		snap, err := storage.DecodeSnapshot(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if len(snap.Transactions) > 0 {
			base = len(observations)
		}
		observations = append(observations, observation{path: path, modTime: info.ModTime(), snap: snap})
	}

	var observedAt time.Time
	deriver := service.NewLedgerDeriver(func() time.Time { return observedAt })

	result := domain.NewSnapshot()
	for i, obs := range observations {
		result.Products = obs.snap.Products
		result.Sales = obs.snap.Sales

		switch {
		case i < base:
			logger.Info("snapshot covered by a later ledger", zap.String("path", obs.path))
		case i == base:
			deriver.Seed(obs.snap.Products, obs.snap.Sales)
			result.Transactions = append(result.Transactions[:0], obs.snap.Transactions...)
			logger.Info("kept recorded ledger",
				zap.String("path", obs.path),
				zap.Int("transactions", len(obs.snap.Transactions)),
			)
		default:
			observedAt = obs.modTime
			records := deriver.Observe(obs.snap.Products, obs.snap.Sales)
			result.Transactions = append(result.Transactions, records...)
			logger.Info("derived ledger entries",
				zap.String("path", obs.path),
				zap.Int("products", len(obs.snap.Products)),
				zap.Int("sales", len(obs.snap.Sales)),
				zap.Int("derived", len(records)),
			)
		}
	}
	result.Normalize()
	return result, nil
}

func openStore(ctx context.Context, cfg *config.Config) (port.SnapshotRepository, func(), error) {
	noop := func() {}
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, noop, err
		}
		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, noop, err
		}
		return adapter, func() { db.Close() }, nil
	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, noop, err
		}
		return storage.NewRedisAdapter(rdb), func() { rdb.Close() }, nil
	case config.DriverMemory:
		return nil, noop, fmt.Errorf("importing into the memory store would discard the result")
	default:
		return storage.NewFileAdapter(cfg.DataFile), noop, nil
	}
}
