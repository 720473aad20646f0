package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a bcrypt hash of the password using DefaultCost.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPassword compares a bcrypt hashed password with its possible plaintext equivalent.
func CheckPassword(hash string, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Credentials представляет учётную запись администратора из конфигурации
type Credentials struct {
	Username     string
	PasswordHash string
}

// Verify проверяет имя и пароль. Без заданного хеша вход запрещён.
func (c Credentials) Verify(username, password string) bool {
	if c.PasswordHash == "" {
		return false
	}
	nameOK := subtle.ConstantTimeCompare([]byte(c.Username), []byte(username)) == 1
	return CheckPassword(c.PasswordHash, password) && nameOK
}
