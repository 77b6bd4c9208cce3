package jsonlines

// FormatName is the name the format registers under.
const FormatName = "jsonlines"

// Write-side option names.
const (
	OptionCompression       = "compression"
	OptionCompressionDetail = "compression_detail"
)

const (
	// DefaultInputSize is the capacity of the decompressed input buffer.
	DefaultInputSize = 64 * 1024
	// initialLineSize is the starting capacity of the line buffer.
	initialLineSize = 1024
)

func orDefault(size, def int) int {
	if size <= 0 {
		return def
	}
	return size
}
