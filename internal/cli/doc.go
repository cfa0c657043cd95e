// Package cli implements the command-line interface for ConferenceScanner.
//
// The root command performs a single aggregation run: it scrapes the
// configured conference sites, deduplicates and classifies new listings,
// reconciles them with the workbook and prints a run summary as text or
// JSON. The schedule subcommand repeats the run on the configured cron
// expression until interrupted.
package cli
