package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
const MaxPasswordBytes = 72

// CredentialHasher はパスワードのハッシュ化と照合のインターフェースを定義する。
type CredentialHasher interface {
	// Hash は平文パスワードからダイジェストを生成する。
	Hash(plain string) (string, error)
	// Verify は平文パスワードがダイジェストと一致するかどうかを返す。
	// 不一致や不正なダイジェストはエラーではなくfalseとして扱う。
	Verify(plain, digest string) bool
}

// BcryptHasher はbcryptによるCredentialHasherの実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はBcryptHasherを生成する。
// costがbcryptの許容範囲外の場合はbcrypt.DefaultCostを使用する。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash は平文パスワードからbcryptダイジェストを生成する。
func (h *BcryptHasher) Hash(plain string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("password exceeds %d bytes: %w", MaxPasswordBytes, err)
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify は平文パスワードがbcryptダイジェストと一致するかどうかを返す。
func (h *BcryptHasher) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

// compile-time interface check
var _ CredentialHasher = (*BcryptHasher)(nil)
