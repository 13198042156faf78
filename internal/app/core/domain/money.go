package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// MoneyScale 金額精度：小數點後 2 位 (對應資料庫 NUMERIC(14,2))
	MoneyScale int32 = 2
	// MoneyIntegerDigits 整數部分最多 12 位，金額與餘額皆須小於 10^12
	MoneyIntegerDigits int32 = 12

	// 輸入字串長度與尾端零的上限，超過就不必解析或運算
	maxAmountLength   = 32
	maxFractionDigits = 16
	maxCoefficientBit = 128
)

var maxMoney = decimal.New(1, MoneyIntegerDigits)

// ParseAmount 將字串解析為金額，不做任何四捨五入
//
// 參數:
//
//	s: 金額字串 (e.g. "150.00")
//
// 回傳:
//
//	decimal.Decimal: 金額
//	error: 格式錯誤時回傳 ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if len(s) > maxAmountLength {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount 固定輸出兩位小數 (e.g. 0 -> "0.00")
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

// ValidateAmount 交易金額必須 > 0、小於 10^12 且精度不超過 MoneyScale
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !inRange(amount) {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateBalance 餘額可以為 0，但不可為負，也不可達到 10^12
func ValidateBalance(balance decimal.Decimal) error {
	if balance.IsNegative() || !inRange(balance) {
		return ErrInvalidAmount
	}
	return nil
}

// inRange 先只看指數與位數，通過後才做 decimal 運算
// (decimal 接受 "1e7000000"，直接比較或相加會展開成數百萬位的整數)
func inRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp > MoneyIntegerDigits || exp < -maxFractionDigits {
		return false
	}
	if d.Coefficient().BitLen() > maxCoefficientBit {
		return false
	}
	if int32(d.NumDigits())+exp > MoneyIntegerDigits {
		return false
	}
	return d.Abs().LessThan(maxMoney) && withinScale(d)
}

func withinScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}
