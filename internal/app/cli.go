package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: http, sse or stdio")
	flags.StringP("host", "H", "", "Host for the HTTP server")
	flags.IntP("port", "p", 0, "Port for the HTTP server")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")

	flags.StringP("data-dir", "d", "", "Directory holding projects, raw files and chunk indexes")
	flags.IntP("workers", "w", 0, "Number of concurrent processing workers")
	flags.Int("chunk-size", 0, "Maximum chunk size in characters")
	flags.Int("chunk-overlap", 0, "Characters repeated at the start of each following chunk")
	flags.Int64("max-file-size", 0, "Maximum upload size in bytes")
	flags.Bool("ocr", true, "Enable the OCR fallback for PDFs")
	flags.String("ocr-languages", "", "Tesseract language list, e.g. ita+eng")
	flags.Int("max-results", 0, "Default number of chunks returned by a search")
}
