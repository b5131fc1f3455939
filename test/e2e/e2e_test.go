//go:build e2e

package e2e

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"
)

var testCtx *TestContext

func TestMain(m *testing.M) {
	flag.Parse()

	if os.Getenv("DOCKER_HOST") == "" && os.Getenv("TESTCONTAINERS_DOCKER_SOCKET") == "" {
		// testcontainers will use default docker socket, which should work on most systems
		log.Println("Using default Docker socket for testcontainers")
	}

	ctx := context.Background()
	testCtx = &TestContext{Chain: newFakeChain()}

	// 1. Start Postgres container
	log.Println("Starting Postgres container...")
	var err error
	testCtx.PostgresContainer, testCtx.ConnString, err = setupPostgresE(ctx)
	if err != nil {
		log.Fatalf("Failed to start postgres: %v", err)
	}
	defer func() {
		if err := testCtx.PostgresContainer.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate postgres container: %v", err)
		}
	}()
	log.Println("Postgres container started")

	// 2. Start test server
	log.Println("Starting test server...")
	stop, err := startServerE(testCtx)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Println("Test server started at:", testCtx.TestServer.URL)

	log.Println("Running E2E tests...")
	exitCode := m.Run()
	stop()

	log.Println("E2E tests completed with exit code:", exitCode)
	os.Exit(exitCode)
}
