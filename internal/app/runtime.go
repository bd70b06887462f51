package app

import (
	"os"
	"sync"
)

// TestModeEnv is set by the testing package so binaries linked into tests skip
// connecting to Postgres and Redis.
const TestModeEnv = "MXSTOREBI_TEST_MODE"

var inTestMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether runtime side effects should be skipped.
func InTestMode() bool {
	return inTestMode()
}
