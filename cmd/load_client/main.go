package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/fidalex-ledger/pkg/grpc"
	"github.com/JoeShih716/fidalex-ledger/pkg/logger"
	pb "github.com/JoeShih716/fidalex-ledger/proto"
)

// 對同一個帳戶併發提款，確認帳本不會透支：
// 成功筆數 * 金額 <= 初始餘額，且最終餘額 = 初始餘額 - 成功筆數 * 金額
func main() {
	target := flag.String("target", "localhost:50051", "ledger gRPC address")
	total := flag.Int("n", 10000, "number of withdrawals")
	concurrency := flag.Int("c", 200, "concurrent requests")
	initial := flag.String("balance", "1000.00", "initial balance of the test account")
	amount := flag.String("amount", "0.30", "amount per withdrawal")
	flag.Parse()

	log, err := logger.New("info", "console")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(log, *target, *total, *concurrency, *initial, *amount); err != nil {
		log.Error("load test failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(log *zap.Logger, target string, total, concurrency int, initial, amount string) error {
	initialBalance, err := decimal.NewFromString(initial)
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}
	perWithdrawal, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}

	pool := grpc.NewPool()
	defer pool.Close()
	conn, err := pool.GetConnection(target)
	if err != nil {
		return err
	}
	client := pb.NewLedgerServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	req, _ := structpb.NewStruct(map[string]any{
		"name":                "load test",
		"external_account_id": "LT-" + uuid.NewString()[:8],
		"account_type":        "savings",
		"initial_balance":     initial,
	})
	acc, err := client.CreateAccount(ctx, req)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	accountID := acc.GetFields()["id"].GetNumberValue()
	log.Info("account created", zap.Float64("account_id", accountID), zap.String("balance", initial))

	var (
		wg           sync.WaitGroup
		ok, rejected atomic.Int64
		failed       atomic.Int64
		sem          = make(chan struct{}, concurrency)
	)
	start := time.Now()
	for i := 0; i < total; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			in, _ := structpb.NewStruct(map[string]any{
				"account_id": accountID,
				"amount":     amount,
				"type":       "withdraw",
				"reference":  uuid.NewString(),
			})
			_, err := client.AppendTransaction(ctx, in)
			switch status.Code(err) {
			case codes.OK:
				ok.Add(1)
			case codes.FailedPrecondition:
				rejected.Add(1)
			default:
				failed.Add(1)
				if idx%1000 == 0 {
					log.Warn("withdraw failed", zap.Int("idx", idx), zap.Error(err))
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	got, err := client.GetAccount(ctx, mustStruct(map[string]any{"account_id": accountID}))
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	finalBalance, err := decimal.NewFromString(got.GetFields()["balance"].GetStringValue())
	if err != nil {
		return fmt.Errorf("final balance: %w", err)
	}
	want := initialBalance.Sub(perWithdrawal.Mul(decimal.NewFromInt(ok.Load())))

	log.Info("load test finished",
		zap.Int("requests", total),
		zap.Int64("succeeded", ok.Load()),
		zap.Int64("insufficient_funds", rejected.Load()),
		zap.Int64("errors", failed.Load()),
		zap.Duration("elapsed", elapsed),
		zap.Float64("tps", float64(total)/elapsed.Seconds()),
		zap.String("final_balance", finalBalance.StringFixed(2)))

	if finalBalance.IsNegative() {
		return fmt.Errorf("balance went negative: %s", finalBalance)
	}
	if !finalBalance.Equal(want) {
		return fmt.Errorf("final balance %s, expected %s", finalBalance, want)
	}
	return nil
}

func mustStruct(m map[string]any) *structpb.Struct {
	s, err := structpb.NewStruct(m)
	if err != nil {
		panic(err)
	}
	return s
}
