package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenAuth проверяет статический токен оператора в заголовке Authorization.
// Пустой токен в конфигурации полностью закрывает защищённые маршруты.
type TokenAuth struct {
	token string
}

// NewTokenAuth создаёт middleware с указанным токеном оператора.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: token}
}

// Middleware пропускает запрос дальше только с корректным bearer-токеном.
func (a *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.token == "" {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		header := r.Header.Get("Authorization")
		supplied, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		if subtle.ConstantTimeCompare([]byte(supplied), []byte(a.token)) != 1 {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
