// Package nebulacopy streams rows between PostgreSQL and JSON Lines files.
//
// Each line of a JSON Lines file holds one JSON object, one row per line.
// Reading maps the top-level keys of each object onto the target columns by
// name: absent keys and JSON nulls load as NULL, unknown keys are ignored and
// nested values load as their compact JSON text. Writing renders each row as
// one object keyed by column name, in column order. Files whose name ends in
// ".gz" are decompressed while reading, and exports can be gzip compressed.
//
// # Architecture
//
// The codec is a pair of per-copy state machines registered under the
// format name "jsonlines":
//
//  1. The read state pulls bytes from a Source in fixed size chunks,
//     inflates them when the file is compressed, splits complete lines and
//     decodes one row per line. A final line without a newline is dropped
//     with a single warning.
//
//  2. The write state encodes one row per line and hands the text to a Sink,
//     either directly or through a gzip stream that emits compressed chunks
//     as they fill. The gzip trailer is written once, when the copy ends.
//
// Both states hold fixed size buffers for their whole lifetime, so memory
// does not grow with the size of the file.
//
// # Quick Start
//
// Load a compressed file into a table:
//
//	nebula-copy import --path s3://bucket/events.jsonl.gz --table events --dsn "$DATABASE_URL"
//
// Export a query as gzip compressed JSON Lines:
//
//	nebula-copy export --query "SELECT * FROM events" --path out.jsonl.gz --compression-detail 9
//
// Use the codec directly:
//
//	import (
//	    "github.com/ajitpratap0/nebula-copy/pkg/copyformat"
//	    "github.com/ajitpratap0/nebula-copy/pkg/jsonlines"
//	)
//
//	r := jsonlines.NewReader(copyformat.Env{Logger: logger})
//	err := r.Start(copyformat.FromStart{Filename: "events.jsonl.gz", Source: src, Columns: columns})
//	for {
//	    info, ok, err := r.OneRow(values, nulls)
//	    ...
//	}
//
// # Key Packages
//
//	pkg/jsonlines     - JSON Lines read and write states
//	pkg/copyformat    - Format routines, options and the format registry
//	pkg/compression   - Streaming gzip inflate and deflate over caller buffers
//	pkg/coltype       - Per-column value converters backed by pgtype
//	pkg/json          - Object parsing and value rendering
//	pkg/storage       - Local, stdio, S3 and GCS sources and sinks
//	internal/pipeline - COPY FROM and COPY TO against PostgreSQL
//	pkg/config        - YAML job configuration
//	pkg/errors        - Structured error handling
//	pkg/logger        - Structured logging
//	pkg/metrics       - Prometheus metrics
//	pkg/observability - Tracing and progress logging
//
// # Configuration
//
// Jobs are described in YAML or with flags. Environment variables are
// substituted with ${VAR_NAME} or ${VAR_NAME:-default} syntax, and every flag
// can also be set as NEBULA_COPY_<FLAG>.
//
// # Development
//
// Run tests and benchmarks:
//
//	go test ./...
//	go test -bench . ./pkg/jsonlines
package nebulacopy
