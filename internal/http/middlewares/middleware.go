package middlewares

import "net/http"

// Middleware es un decorador de http.Handler. El router los apila con chi.
type Middleware func(http.Handler) http.Handler
