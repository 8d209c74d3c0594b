// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// SyncHTTPClient is shared by the collaborator change-feed pollers.
var SyncHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}
