// Command veilcask is the CLI front end for the vault core in
// internal/vault.
package main

import "github.com/veilcask/veilcask/cmd/veilcask/cmd"

func main() {
	cmd.Execute()
}
