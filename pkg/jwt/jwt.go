package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims incluye los claims estándar JWT más la identidad del actor dentro de su organización.
// Role y Name viajan en el token para que el middleware resuelva permisos sin consultar la DB.
type Claims struct {
	jwt.RegisteredClaims
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name,omitempty"`
	Role           string `json:"role"` // "owner" | "admin" | "member"
}

// Identity datos del actor extraídos de un token válido.
type Identity struct {
	UserID         string
	OrganizationID string
	Name           string
	Role           string
}

// Generate genera un token JWT firmado con la identidad dada.
func Generate(secret string, id Identity, issuer string, expMinutes int) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt: secret vacío")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expMinutes) * time.Minute)),
		},
		UserID:         id.UserID,
		OrganizationID: id.OrganizationID,
		Name:           id.Name,
		Role:           id.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse valida el token y devuelve la identidad. Con issuer no vacío también valida el emisor.
// Retorna error si el token es inválido, expirado, tiene firma incorrecta o le falta la organización.
func Parse(secret, issuer, tokenString string) (Identity, error) {
	if secret == "" {
		return Identity{}, fmt.Errorf("jwt: secret vacío")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("método de firma inesperado: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return Identity{}, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("claims inválidos")
	}
	if claims.UserID == "" || claims.OrganizationID == "" {
		return Identity{}, fmt.Errorf("claims incompletos")
	}
	return Identity{
		UserID:         claims.UserID,
		OrganizationID: claims.OrganizationID,
		Name:           claims.Name,
		Role:           claims.Role,
	}, nil
}
