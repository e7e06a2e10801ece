// Package lifecycle holds values shared by fx start/stop hooks.
package lifecycle

import "time"

// DefaultTimeout bounds every OnStart/OnStop hook (DB ping, HTTP shutdown, publisher close).
const DefaultTimeout = 10 * time.Second
