package guest

import "sync"

// Shared runtime for tests, so each test does not pay for a fresh wazero
// runtime.
var (
	testRuntime     *Runtime
	testRuntimeOnce sync.Once
	testRuntimeErr  error
)

// GetTestRuntime returns a shared Runtime for testing. It is created once
// and reused.
func GetTestRuntime() (*Runtime, error) {
	testRuntimeOnce.Do(func() {
		testRuntime, testRuntimeErr = NewRuntime()
	})
	return testRuntime, testRuntimeErr
}

// CloseTestRuntime closes the shared test runtime.
func CloseTestRuntime() {
	if testRuntime != nil {
		testRuntime.Close()
		testRuntime = nil
		testRuntimeOnce = sync.Once{}
	}
}
