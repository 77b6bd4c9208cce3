// Package compression provides the streaming compression layer of the copy
// codecs: algorithm and compression-detail parsing, a read-side Inflater that
// turns compressed chunks from a source into decompressed windows, and a
// write-side Deflater that pushes compressed chunks to a sink.
//
// # Algorithms
//
// Four algorithm names are recognised: none, gzip, lz4 and zstd. Only none
// and gzip are supported; the other two are rejected at configuration time.
//
// # Compression detail
//
// The detail string is either a bare integer, taken as the level, or a
// comma-separated list of keyword[=value] items:
//
//	level=6
//	level=9, workers=4
//
// gzip accepts levels 1 through 9 and neither workers nor long-distance mode.
// When no level is given the library default is used.
//
// # Usage
//
//	spec, err := compression.ParseSpec(compression.Gzip, "level=6")
//	def, err := compression.NewDeflater(sink, spec, compression.DefaultChunkSize)
//	err = def.Write(line)
//	err = def.Finish() // exactly once, at stream end
package compression

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ajitpratap0/nebula-copy/pkg/errors"
	"github.com/klauspost/compress/gzip"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// LZ4 is recognised but not supported
	LZ4 Algorithm = "lz4"
	// Zstd is recognised but not supported
	Zstd Algorithm = "zstd"
)

const (
	// DefaultLevel selects the library default level.
	DefaultLevel = gzip.DefaultCompression
	// MinGzipLevel is the lowest accepted gzip level.
	MinGzipLevel = gzip.BestSpeed
	// MaxGzipLevel is the highest accepted gzip level.
	MaxGzipLevel = gzip.BestCompression

	// DefaultRawSize is the capacity of the compressed read buffer.
	DefaultRawSize = 64 * 1024
	// DefaultChunkSize is the capacity of the compressed write buffer.
	DefaultChunkSize = 256 * 1024
)

// ParseAlgorithm maps an option value to a recognised Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(name); a {
	case None, Gzip, LZ4, Zstd:
		return a, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig,
			"unrecognized compression algorithm: %q", name).
			WithDetail("algorithm", name)
	}
}

// Supported returns a configuration error for recognised algorithms that
// this build cannot stream.
func (a Algorithm) Supported() error {
	switch a {
	case None, Gzip:
		return nil
	case LZ4:
		return errors.New(errors.ErrorTypeConfig, "LZ4 compression is not supported")
	case Zstd:
		return errors.New(errors.ErrorTypeConfig, "Zstd compression is not supported")
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unrecognized compression algorithm: %q", string(a))
	}
}

// Extension returns the file suffix for the algorithm.
func (a Algorithm) Extension() string {
	if a == Gzip {
		return ".gz"
	}
	return ""
}

// DetectFromName selects the read-side algorithm from a file name: a
// trailing ".gz" means gzip, anything else is read uncompressed. The content
// is never inspected.
func DetectFromName(name string) Algorithm {
	if strings.HasSuffix(name, ".gz") {
		return Gzip
	}
	return None
}

// Spec is a parsed compression specification.
type Spec struct {
	Algorithm Algorithm
	Level     int
	Workers   int
	Long      bool

	hasLevel   bool
	hasWorkers bool
	hasLong    bool
}

// HasLevel reports whether the detail string set an explicit level.
func (s Spec) HasLevel() bool { return s.hasLevel }

// ParseSpec parses a compression detail string for the given algorithm and
// validates the result.
func ParseSpec(algorithm Algorithm, detail string) (Spec, error) {
	spec := Spec{Algorithm: algorithm, Level: DefaultLevel}
	if algorithm == "" {
		spec.Algorithm = None
	}

	if err := spec.parseDetail(strings.TrimSpace(detail)); err != nil {
		return Spec{}, invalidSpec(err.Error(), detail)
	}
	if msg := spec.validate(); msg != "" {
		return Spec{}, invalidSpec(msg, detail)
	}
	return spec, nil
}

func invalidSpec(msg, detail string) error {
	return errors.Newf(errors.ErrorTypeConfig, "invalid compression specification: %s", msg).
		WithDetail("detail", detail)
}

func (s *Spec) parseDetail(detail string) error {
	if detail == "" {
		return nil
	}

	if level, err := strconv.Atoi(detail); err == nil {
		s.Level = level
		s.hasLevel = true
		return nil
	}

	for _, item := range strings.Split(detail, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			return fmt.Errorf("found empty string where a compression option was expected")
		}

		keyword, value, hasValue := strings.Cut(item, "=")
		keyword = strings.TrimSpace(keyword)
		value = strings.TrimSpace(value)

		switch keyword {
		case "level":
			n, err := parseIntOption(keyword, value, hasValue)
			if err != nil {
				return err
			}
			s.Level = n
			s.hasLevel = true
		case "workers":
			n, err := parseIntOption(keyword, value, hasValue)
			if err != nil {
				return err
			}
			s.Workers = n
			s.hasWorkers = true
		case "long":
			b := true
			if hasValue {
				var err error
				if b, err = parseBoolOption(value); err != nil {
					return fmt.Errorf("value for compression option %q must be a Boolean value", keyword)
				}
			}
			s.Long = b
			s.hasLong = true
		default:
			return fmt.Errorf("unrecognized compression option: %q", keyword)
		}
	}
	return nil
}

func parseIntOption(keyword, value string, hasValue bool) (int, error) {
	if !hasValue || value == "" {
		return 0, fmt.Errorf("compression option %q requires a value", keyword)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("value for compression option %q must be an integer", keyword)
	}
	return n, nil
}

func parseBoolOption(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on", "true", "yes", "1", "t", "y":
		return true, nil
	case "off", "false", "no", "0", "f", "n":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", value)
	}
}

// validate returns an empty string when the spec is usable.
func (s *Spec) validate() string {
	switch s.Algorithm {
	case None:
		if s.hasLevel {
			return `compression algorithm "none" does not accept a compression level`
		}
	case Gzip:
		if s.hasLevel && (s.Level < MinGzipLevel || s.Level > MaxGzipLevel) {
			return fmt.Sprintf("compression algorithm %q expects a compression level between %d and %d",
				string(s.Algorithm), MinGzipLevel, MaxGzipLevel)
		}
	}

	if s.hasWorkers && s.Algorithm != Zstd {
		return fmt.Sprintf("compression algorithm %q does not accept a worker count", string(s.Algorithm))
	}
	if s.hasLong && s.Algorithm != Zstd {
		return fmt.Sprintf("compression algorithm %q does not support long-distance mode", string(s.Algorithm))
	}
	return ""
}
