// Command maat runs the rules-governed, tamper-evident case analysis pipeline.
package main

import "github.com/ppiankov/maat/internal/cli"

func main() {
	cli.Execute()
}
