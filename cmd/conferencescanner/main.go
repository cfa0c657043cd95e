package main

import "ConferenceScanner/internal/cli"

func main() {
	cli.Execute()
}
