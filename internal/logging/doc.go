// Package logging provides the leveled logger shared by every component of
// the viewer engine.
//
// It supports the following log levels:
//   - DEBUG: Verbose scheduling and transform tracing
//   - INFO: Session lifecycle messages
//   - WARN: Contained failures (a slot that did not load, a swap timeout)
//   - ERROR: Failures that need operator attention
//   - FATAL: Fatal errors that terminate the CLI
//
// The level is read once from DEBUG or LOG_LEVEL and can be overridden with
// SetLevel. Components obtain a prefixed Logger with For:
//
//	log := logging.For("scheduler")
//	log.Debug("dispatching %s", key)
package logging
