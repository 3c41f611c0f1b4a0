package main

import (
	"os"
	"syscall"
	"testing"
	"time"
)

// TestMainBadConfig tests that an invalid environment is fatal
func TestMainBadConfig(t *testing.T) {
	t.Setenv("TSVD_BUCKETS", "zero")

	oldLogFatal := logFatal
	defer func() { logFatal = oldLogFatal }()
	fatalCalled := false
	logFatal = func(format string, v ...interface{}) {
		fatalCalled = true
	}

	main()

	if !fatalCalled {
		t.Error("Expected log.Fatal to be called but it wasn't")
	}
}

// TestMainFunction tests the main function with full lifecycle
func TestMainFunction(t *testing.T) {
	t.Setenv("TSVD_LISTEN", "127.0.0.1:0")
	t.Setenv("TSVD_POOL_MIN", "0")

	oldLogFatal := logFatal
	defer func() { logFatal = oldLogFatal }()
	logFatal = func(format string, v ...interface{}) {
		t.Logf("fatal: "+format, v...)
	}

	done := make(chan bool)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.Logf("Main function panicked (expected during shutdown): %v", r)
			}
			done <- true
		}()
		main()
	}()

	// Give the server time to start
	time.Sleep(100 * time.Millisecond)

	process, _ := os.FindProcess(os.Getpid())
	_ = process.Signal(syscall.SIGTERM)

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Error("Main function did not shutdown within timeout")
	}
}
