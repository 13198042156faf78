package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount 金額不合法 (<= 0、初始餘額為負、超過兩位小數、或金額/餘額達到 10^12)
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateAccount 外部帳號已存在
	ErrDuplicateAccount = errors.New("duplicate account")

	// ErrInvalidAccountType 帳戶類型不合法
	ErrInvalidAccountType = errors.New("invalid account type")

	// ErrInvalidTransactionType 交易類型不合法
	ErrInvalidTransactionType = errors.New("invalid transaction type")

	// ErrInvalidRequest 請求欄位缺漏或格式錯誤
	ErrInvalidRequest = errors.New("invalid request")

	// ErrReferenceReused 同一個 Reference 已用於帳戶、金額或類型不同的交易
	ErrReferenceReused = fmt.Errorf("%w: reference already used by a different transaction", ErrInvalidRequest)

	// ErrWALWriteFailed 寫入 WAL 失敗 (基礎設施錯誤，非呼叫端錯誤)
	ErrWALWriteFailed = errors.New("wal write failed")
)

// IsCallerError 判斷是否為呼叫端造成的領域錯誤 (4xx)
func IsCallerError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrDuplicateAccount),
		errors.Is(err, ErrInvalidAccountType),
		errors.Is(err, ErrInvalidTransactionType),
		errors.Is(err, ErrInvalidRequest):
		return true
	}
	return false
}
