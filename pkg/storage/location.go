// Package storage opens the byte sources and sinks of a copy: local files,
// standard input and output, Amazon S3 objects and Google Cloud Storage
// objects. Sources and sinks satisfy copyformat.Source and copyformat.Sink.
//
// Locations are written as
//
//	/path/to/rows.jsonl    local file (also file:///path)
//	s3://bucket/key        Amazon S3 object
//	gs://bucket/key        Google Cloud Storage object
//
// and a single dash selects standard input or output.
package storage

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/nebula-copy/pkg/errors"
)

// Scheme identifies the backend of a Location.
type Scheme string

const (
	SchemeFile  Scheme = "file"
	SchemeStdio Scheme = "stdio"
	SchemeS3    Scheme = "s3"
	SchemeGCS   Scheme = "gs"
)

// Location is a parsed source or sink address.
type Location struct {
	Scheme Scheme
	Bucket string
	Key    string
	Path   string
}

// ParseLocation parses a location string.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return Location{}, errors.New(errors.ErrorTypeConfig, "location is empty")
	case raw == "-":
		return Location{Scheme: SchemeStdio}, nil
	case strings.HasPrefix(raw, "s3://"):
		return parseBucketKey(SchemeS3, strings.TrimPrefix(raw, "s3://"), raw)
	case strings.HasPrefix(raw, "gs://"):
		return parseBucketKey(SchemeGCS, strings.TrimPrefix(raw, "gs://"), raw)
	case strings.HasPrefix(raw, "file://"):
		p := strings.TrimPrefix(raw, "file://")
		if p == "" {
			return Location{}, errors.Newf(errors.ErrorTypeConfig, "location %q has no path", raw)
		}
		return Location{Scheme: SchemeFile, Path: filepath.Clean(p)}, nil
	case strings.Contains(raw, "://"):
		return Location{}, errors.Newf(errors.ErrorTypeConfig, "unsupported location scheme in %q", raw)
	default:
		return Location{Scheme: SchemeFile, Path: filepath.Clean(raw)}, nil
	}
}

func parseBucketKey(scheme Scheme, rest, raw string) (Location, error) {
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return Location{}, errors.Newf(errors.ErrorTypeConfig,
			"location %q must name a bucket and an object key", raw)
	}
	return Location{Scheme: scheme, Bucket: bucket, Key: key}, nil
}

// Name returns the object name used for format decisions such as
// compression detection by suffix.
func (l Location) Name() string {
	switch l.Scheme {
	case SchemeS3, SchemeGCS:
		return path.Base(l.Key)
	case SchemeFile:
		return filepath.Base(l.Path)
	default:
		return "-"
	}
}

func (l Location) String() string {
	switch l.Scheme {
	case SchemeS3, SchemeGCS:
		return string(l.Scheme) + "://" + l.Bucket + "/" + l.Key
	case SchemeFile:
		return l.Path
	default:
		return "-"
	}
}

// ContentType returns the MIME type stored with uploaded objects.
func (l Location) ContentType() string {
	if strings.HasSuffix(l.Name(), ".gz") {
		return "application/gzip"
	}
	return "application/x-ndjson"
}
