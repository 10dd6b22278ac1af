// Package startup handles service initialization: the startup banner,
// configuration and system information logging, directory validation,
// encoder binary checks, route logging and the shutdown log sequence.
//
// Keeping the verbose startup narration here keeps main.go readable:
// main wires components, startup explains what happened.
package startup
