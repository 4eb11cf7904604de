package password

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MinLength 密码最小长度
const MinLength = 6

// bcrypt 只使用前72字节
const maxBytes = 72

// Validate 校验密码长度
func Validate(plain string) error {
	if utf8.RuneCountInString(plain) < MinLength {
		return errors.New("password must be at least 6 characters")
	}
	if len(plain) > maxBytes {
		return errors.New("password must be at most 72 bytes")
	}
	return nil
}

// Hash 生成密码哈希
func Hash(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify 校验密码
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
