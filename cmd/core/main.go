package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/fidalex-ledger/internal/app/core/adapter/in/grpc"
	http_adapter "github.com/JoeShih716/fidalex-ledger/internal/app/core/adapter/in/http"
	events_adapter "github.com/JoeShih716/fidalex-ledger/internal/app/core/adapter/out/events"
	memory_adapter "github.com/JoeShih716/fidalex-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/fidalex-ledger/internal/app/core/adapter/out/mysql"
	postgres_adapter "github.com/JoeShih716/fidalex-ledger/internal/app/core/adapter/out/postgres"
	"github.com/JoeShih716/fidalex-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/fidalex-ledger/internal/config"
	"github.com/JoeShih716/fidalex-ledger/pkg/logger"
	"github.com/JoeShih716/fidalex-ledger/pkg/mysql"
	"github.com/JoeShih716/fidalex-ledger/pkg/postgres"
	"github.com/JoeShih716/fidalex-ledger/pkg/wal"
	pb "github.com/JoeShih716/fidalex-ledger/proto"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("ledger exited", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化帳本 (Driven Adapter)
	ledger, closeLedger, err := newLedger(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLedger()

	// 3. 事件發佈
	publisher, err := newPublisher(cfg.Publisher)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("close publisher", zap.Error(err))
		}
	}()

	// 4. 初始化 UseCase
	core := usecase.NewCoreUseCase(ledger,
		usecase.WithPublisher(publisher),
		usecase.WithLogger(log.Named("core")),
	)

	errCh := make(chan error, 2)

	// 5. gRPC Server (Driving Adapter)
	var grpcServer *grpc.Server
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(grpc_adapter.LoggingInterceptor(log.Named("grpc"))))
		pb.RegisterLedgerServiceServer(grpcServer, grpc_adapter.NewGrpcServer(core))
		reflection.Register(grpcServer)
		go func() {
			log.Info("starting grpc server", zap.String("addr", cfg.GRPC.Addr))
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc serve: %w", err)
			}
		}()
	}

	// 6. HTTP Server (Driving Adapter)
	var httpServer *http.Server
	if cfg.HTTP.Addr != "" {
		httpServer = &http.Server{
			Addr:    cfg.HTTP.Addr,
			Handler: http_adapter.NewRouter(http_adapter.NewHandler(core), log.Named("http"), cfg.HTTP.AllowedOrigins),
		}
		go func() {
			log.Info("starting http server", zap.String("addr", cfg.HTTP.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http serve: %w", err)
			}
		}()
	}

	// Graceful Shutdown
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		log.Error("server failed, shutting down", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	log.Info("server exited")
	return nil
}

// newLedger 依設定建立帳本，回傳的 close 函式負責釋放底層資源
func newLedger(ctx context.Context, cfg config.Config, log *zap.Logger) (usecase.Ledger, func(), error) {
	switch cfg.Ledger.Type {
	case config.LedgerMySQL:
		client, err := mysql.NewClient(ctx, cfg.MySQL, log.Named("mysql"))
		if err != nil {
			return nil, nil, err
		}
		ledger := mysql_adapter.NewMySQLLedger(client)
		if cfg.Ledger.AutoMigrate {
			if err := ledger.Migrate(ctx); err != nil {
				client.Close()
				return nil, nil, err
			}
		}
		return ledger, func() { _ = client.Close() }, nil

	case config.LedgerPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres, log.Named("postgres"))
		if err != nil {
			return nil, nil, err
		}
		ledger := postgres_adapter.NewPostgresLedger(pool)
		if cfg.Ledger.AutoMigrate {
			if err := ledger.Migrate(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return ledger, pool.Close, nil

	case config.LedgerMemoryMutex, config.LedgerMemoryLMAX:
		walFile, err := openWAL(cfg.Ledger.WALPath)
		if err != nil {
			return nil, nil, err
		}
		closeWAL := func() {
			if walFile != nil {
				_ = walFile.Close()
			}
		}

		if cfg.Ledger.Type == config.LedgerMemoryMutex {
			ledger, err := memory_adapter.NewMutexLedger(walFile)
			if err != nil {
				closeWAL()
				return nil, nil, fmt.Errorf("recover mutex ledger: %w", err)
			}
			log.Info("memory ledger ready", zap.String("type", cfg.Ledger.Type), zap.String("wal", cfg.Ledger.WALPath))
			return ledger, closeWAL, nil
		}

		ledger, err := memory_adapter.NewLMAXLedger(walFile, cfg.Ledger.LMAXBufferSize)
		if err != nil {
			closeWAL()
			return nil, nil, fmt.Errorf("recover lmax ledger: %w", err)
		}
		// 核心迴圈在關閉時先處理完輸送帶上的指令，再關閉 WAL
		loopCtx, cancelLoop := context.WithCancel(context.Background())
		ledger.Start(loopCtx)
		log.Info("memory ledger ready", zap.String("type", cfg.Ledger.Type), zap.String("wal", cfg.Ledger.WALPath))
		return ledger, func() {
			cancelLoop()
			<-ledger.Done()
			closeWAL()
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown ledger type %q", cfg.Ledger.Type)
}

func openWAL(path string) (*wal.WAL, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create wal dir: %w", err)
	}
	w, err := wal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}
	return w, nil
}

func newPublisher(cfg config.PublisherConfig) (usecase.EventPublisher, error) {
	switch cfg.Type {
	case config.PublisherKafka:
		return events_adapter.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic), nil
	case config.PublisherRedis:
		return events_adapter.NewRedisPublisher(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel), nil
	case config.PublisherRabbitMQ:
		return events_adapter.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	default:
		return events_adapter.NopPublisher{}, nil
	}
}
