// Package idgen は128ビットのランダムIDの採番を提供する。
package idgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MaxAttempts は一意なIDの採番を試行する最大回数。
const MaxAttempts = 5

// ErrExhausted は試行回数内に一意なIDを得られなかったことを表す。
var ErrExhausted = errors.New("failed to generate unique id")

// ExistsFunc は対象テーブルにIDが既に存在するかどうかを返す。
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// New はハイフンなしの16進文字列のランダムIDを返す。
func New() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Unique はexistsで衝突がないことを確認したIDを返す。
// MaxAttempts回衝突した場合はErrExhaustedを返す。
func Unique(ctx context.Context, exists ExistsFunc) (string, error) {
	return unique(ctx, exists, New)
}

func unique(ctx context.Context, exists ExistsFunc, gen func() string) (string, error) {
	for i := 0; i < MaxAttempts; i++ {
		id := gen()
		taken, err := exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check id uniqueness: %w", err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", ErrExhausted
}
