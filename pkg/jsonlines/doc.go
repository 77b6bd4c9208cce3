// Package jsonlines implements the JSON Lines copy format: one JSON object
// per '\n' terminated line, keys matching column names.
//
// Reading is driven by Reader.OneRow. Each call assembles one line from a
// fixed-size input buffer that is refilled, only once drained, either
// straight from the source or through a gzip Inflater when the source name
// ends in ".gz". The line is parsed once and every column is looked up by
// name; a missing key or a null value yields a null cell. Bytes after the
// last newline do not form a row: they are discarded, logged and reported
// by Reader.Truncated.
//
// Writing is driven by Writer.OneRow, which renders a complete line per row
// and hands it to the sink, or to a gzip Deflater when the compression
// option is set. Writer.End finishes the compressed stream.
//
// The format registers itself under the name "jsonlines".
package jsonlines
