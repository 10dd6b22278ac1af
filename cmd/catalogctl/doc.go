// Command catalogctl is an operator utility for the encoder's catalog
// database. It runs against the same SQLite file the service uses and
// offers two commands: "status" prints item counts, "clear <server>"
// removes one media server's rows so the next scan starts from scratch.
package main
