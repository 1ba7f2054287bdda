package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/localnerve/orca-tagsdb/internal/testutil"
)

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	var noRedis, noMinio bool
	flag.BoolVar(&noRedis, "no-redis", false, "skip the redis audit bus")
	flag.BoolVar(&noMinio, "no-minio", false, "skip the minio object store")
	flag.Parse()

	usage := `
Run the orca-tagsdb dev stack (postgres, redis, minio) with the environment variables from the .env file.
Prints the service variables for the mapped ports, then waits for a signal to tear down.

Usage:

testcontainers [-h] [-f ENV_FILE_PATH] [-no-redis] [-no-minio]

ENV_FILE_PATH: path to the .env file

example
  testcontainers -f /path/to/something/.env
`
	if showHelp {
		fmt.Println(usage)
		return
	}

	if envFilename != "" {
		log.Printf("Loading environment variables from %s\n", envFilename)
		if err := godotenv.Load(envFilename); err != nil {
			log.Fatalf("Failed to load environment variables: %v\n", err)
		}
	} else {
		log.Printf("No environment file specified, using current environment variables\n")
	}

	cfg := testutil.StackConfigFromEnv()
	cfg.WithRedis = !noRedis
	cfg.WithMinio = !noMinio

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	stack, err := testutil.StartDevStack(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create test containers: %v\n", err)
	}

	keys := make([]string, 0, len(stack.Env))
	for k := range stack.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(os.Stdout, "%s=%s\n", k, stack.Env[k])
	}

	<-ctx.Done()
	log.Printf("\nReceived signal, terminating test containers...\n")
	if err := stack.Terminate(context.Background()); err != nil {
		log.Printf("Terminate: %v\n", err)
	}
}
