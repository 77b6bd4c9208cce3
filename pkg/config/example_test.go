package config_test

import (
	"fmt"

	"github.com/ajitpratap0/nebula-copy/pkg/config"
)

// ExampleNewCopyConfig shows the defaults a job starts from.
func ExampleNewCopyConfig() {
	cfg := config.NewCopyConfig("events-import")

	fmt.Printf("Name: %s\n", cfg.Name)
	fmt.Printf("Format: %s\n", cfg.Format)
	fmt.Printf("Direction: %s\n", cfg.Direction)
	fmt.Printf("Connect timeout: %s\n", cfg.Database.ConnectTimeout)

	// Output:
	// Name: events-import
	// Format: jsonlines
	// Direction: from
	// Connect timeout: 10s
}

// ExampleCopyConfig_Validate shows a compressed export job.
func ExampleCopyConfig_Validate() {
	cfg := config.NewCopyConfig("events-export")
	cfg.Direction = config.DirectionTo
	cfg.Path = "s3://archive/events.jsonl.gz"
	cfg.Query = "SELECT id, payload FROM events"
	cfg.Options["compression"] = "gzip"
	cfg.Options["compression_detail"] = "level=9"

	fmt.Println(cfg.Validate())

	cfg.Path = ""
	fmt.Println(cfg.Validate())

	// Output:
	// <nil>
	// config: path is required
}

// ExampleParse shows environment substitution in a job file.
func ExampleParse() {
	doc := []byte(`
name: nightly
direction: to
path: ${NEBULA_EXAMPLE_UNSET:-out.jsonl}
table: events
`)

	cfg := config.NewCopyConfig("")
	if err := config.Parse(doc, cfg); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(cfg.Name, cfg.Direction, cfg.Path, cfg.Table)

	// Output:
	// nightly to out.jsonl events
}
