// Package testing flips the binaries into test mode. Black-box test packages
// import it for its side effect before anything dials Postgres or Redis.
package testing

import (
	"os"
	stdtesting "testing"

	"github.com/mxstorebi/mxstorebi/internal/app"
)

func init() {
	_ = os.Setenv(app.TestModeEnv, "1")
	// PDF rendering must never reach a real Gotenberg from a test run.
	if os.Getenv("GOTENBERG_URL") == "" {
		_ = os.Setenv("GOTENBERG_URL", "http://127.0.0.1:0")
	}
}

// TestMain runs m with test mode already set by init.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
