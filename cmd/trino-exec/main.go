// Command trino-exec runs one SQL statement against a coordinator and
// prints the decoded rows, the way the teacher's cmd/select1 exercises
// its driver end to end against a live server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/trinodb/trino-go-client"
)

func main() {
	serverURL := flag.String("server", envOr("TRINO_SERVER_URL", "http://localhost:8080"), "coordinator URL")
	user := flag.String("user", envOr("TRINO_USER", "trino-exec"), "session user")
	catalog := flag.String("catalog", os.Getenv("TRINO_CATALOG"), "default catalog")
	schema := flag.String("schema", os.Getenv("TRINO_SCHEMA"), "default schema")
	flag.Parse()

	query := strings.Join(flag.Args(), " ")
	if query == "" {
		query = "SELECT 1"
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	defer func() {
		signal.Stop(c)
		cancel()
	}()
	go func() {
		<-c
		log.Println("caught interrupt, canceling...")
		cancel()
	}()

	client, err := trino.NewClient(trino.Config{
		ServerURL: *serverURL,
		User:      *user,
		Catalog:   *catalog,
		Schema:    *schema,
		Source:    "trino-exec",
	})
	if err != nil {
		log.Fatalf("failed to build client: %v", err)
	}
	defer client.Close()

	stream, err := client.Execute(ctx, query)
	if err != nil {
		log.Fatalf("failed to run %q: %v", query, err)
	}
	defer stream.Dispose()

	if err := stream.WaitForColumns(ctx); err != nil {
		log.Fatalf("failed waiting for columns: %v", err)
	}
	for _, col := range stream.Columns() {
		fmt.Printf("%s\t", col.Name)
	}
	fmt.Println()

	rowCount := 0
	err = stream.ReadToEnd(ctx, func(row trino.Row) error {
		for _, v := range row {
			fmt.Printf("%v\t", v)
		}
		fmt.Println()
		rowCount++
		return nil
	})
	if err != nil {
		log.Fatalf("failed reading results: %v", err)
	}
	fmt.Printf("(%d rows)\n", rowCount)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
