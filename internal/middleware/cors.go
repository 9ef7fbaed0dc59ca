package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS headers accepted from browser clients.
var corsAllowedHeaders = []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type", "X-Correlation-ID"}

var corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}

// CORS returns the CORS middleware for allowedOrigins ("*" allows any).
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: corsAllowedMethods,
		AllowedHeaders: corsAllowedHeaders,
		ExposedHeaders: []string{"X-Correlation-ID", "Retry-After"},
		MaxAge:         300,
	})
}

// Preflight answers a bare OPTIONS request with permissive CORS headers
// and no body, for clients that send it without the usual preflight headers.
func Preflight(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", strings.ToLower(strings.Join(corsAllowedHeaders, ", ")))
	h.Set("Access-Control-Allow-Methods", strings.Join(corsAllowedMethods, ", "))
	w.WriteHeader(http.StatusOK)
}
