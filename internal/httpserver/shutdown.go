package httpserver

import "time"

// ShutdownTimeout bounds how long serve waits for in-flight requests to
// drain after SIGINT/SIGTERM.
var ShutdownTimeout = 10 * time.Second
