// Package logging provides the slog handler used by the command line.
//
// The handler is installed as the default logger before flags are parsed and
// buffers everything it receives. Once flags are known the command line sets
// the level, formatter and stream, then flushes:
//
//	handler := logging.NewHandler()
//	slog.SetDefault(slog.New(handler))
//
//	// after flag parsing
//	formatter := logging.NewPrettyFormatter(isTerminal)
//	formatter.SetVerbose(verbose)
//	handler.SetLevel(slog.LevelDebug)
//	handler.SetFormatter(formatter)
//	handler.SetStream(os.Stderr)
//	handler.Flush()
package logging
