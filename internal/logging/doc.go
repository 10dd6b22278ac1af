// Package logging provides leveled logging for the media encoder.
//
// Levels are debug, info, warn and error. The initial level comes from the
// DEBUG and LOG_LEVEL environment variables; once the configuration document
// is loaded, main calls SetLevel with the configured log_level.
package logging
