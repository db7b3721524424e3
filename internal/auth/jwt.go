package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims identify the principal. The fixed system account carries
// System=true and no EmployeeID; the sale service resolves it to the
// auto-created Administrator employee.
type Claims struct {
	EmployeeID int64  `json:"employee_id,omitempty"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	System     bool   `json:"system,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for an employee. Issuance belongs to the
// credential service; this is used by posctl and tests.
func GenerateToken(secret string, employeeID int64, username, role string, ttl time.Duration) (string, error) {
	return sign(secret, Claims{EmployeeID: employeeID, Username: username, Role: role}, ttl)
}

// GenerateSystemToken signs a token for the fixed system account.
func GenerateSystemToken(secret, username string, ttl time.Duration) (string, error) {
	return sign(secret, Claims{Username: username, Role: "ADMIN", System: true}, ttl)
}

func sign(secret string, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if !claims.System && claims.EmployeeID <= 0 {
		return nil, fmt.Errorf("token has no employee")
	}
	return claims, nil
}
