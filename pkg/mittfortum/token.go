package mittfortum

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// tokenExpiry reads the exp claim of a JWT without verifying its signature.
// Opaque tokens yield an error and are used until the API answers 403.
func tokenExpiry(rawToken string) (*time.Time, error) {
	token, _, err := new(jwt.Parser).ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid or missing claims")
	}
	unixTs, ok := claims["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid or missing 'exp' claim")
	}
	tm := time.Unix(int64(unixTs), 0)
	return &tm, nil
}
