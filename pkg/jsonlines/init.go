package jsonlines

import (
	"github.com/ajitpratap0/nebula-copy/pkg/copyformat"
)

func init() {
	copyformat.Register(FormatName, FromRoutine{}, ToRoutine{})

	copyformat.RegisterFormatInfo(&copyformat.FormatInfo{
		Name:        FormatName,
		Description: "Line-delimited JSON objects, one row per line, with optional gzip compression",
		Version:     "1.0.0",
		Extensions:  []string{".jsonl", ".ndjson", ".jsonl.gz"},
		Capabilities: []string{
			"copy_from",
			"copy_to",
			"streaming",
			"gzip",
		},
		Options: map[string]interface{}{
			OptionCompression: map[string]interface{}{
				"type":        "string",
				"direction":   "to",
				"default":     "none",
				"description": "Output compression algorithm",
				"enum":        []string{"none", "gzip"},
			},
			OptionCompressionDetail: map[string]interface{}{
				"type":        "string",
				"direction":   "to",
				"description": "Compression level as an integer or level=N",
			},
		},
	})
}
