// Package logging provides a simple leveled logging interface for the
// shelter media service.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// DEBUG=true. A Component value prefixes messages with the name of the code
// path that produced them:
//
//	var log = logging.Component("media.attach_file")
//	log.Debug("received data URI '%s' (%d bytes)", name, len(data))
package logging
