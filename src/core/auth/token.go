package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrStateMismatch 隐藏字段与签名不一致
var ErrStateMismatch = errors.New("state token does not match form fields")

// StateSigner 对表单隐藏字段签名，secret为空时签名和校验都是空操作
type StateSigner struct {
	secretKey []byte
	ttl       time.Duration
}

func NewStateSigner(secretKey string, ttl time.Duration) *StateSigner {
	return &StateSigner{
		secretKey: []byte(secretKey),
		ttl:       ttl,
	}
}

// Enabled 是否配置了签名密钥
func (s *StateSigner) Enabled() bool {
	return s != nil && len(s.secretKey) > 0
}

// digest 隐藏字段摘要，字段之间用长度前缀隔开
func digest(fields ...string) string {
	h := sha256.New()
	for _, f := range fields {
		fmt.Fprintf(h, "%d:%s|", len(f), f)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Sign 为一组隐藏字段生成token
func (s *StateSigner) Sign(name, info, img string) (string, error) {
	if !s.Enabled() {
		return "", nil
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sum": digest(name, info, img),
		"iat": now.Unix(),
	}
	if s.ttl > 0 {
		claims["exp"] = now.Add(s.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Verify 校验token与回传的隐藏字段是否一致
func (s *StateSigner) Verify(tokenString, name, info, img string) error {
	if !s.Enabled() {
		return nil
	}
	if tokenString == "" {
		return ErrStateMismatch
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return errors.New("invalid claims")
	}
	sum, ok := claims["sum"].(string)
	if !ok || sum != digest(name, info, img) {
		return ErrStateMismatch
	}
	return nil
}
