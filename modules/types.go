package modules

import "net/http"

// Module is a feature mounted on the server under a path prefix.
type Module interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
	Shutdown()
}
