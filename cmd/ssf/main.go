// Command ssf is the secure socket funnelling CLI: a `client` subcommand
// that dials a peer and a `server` subcommand that accepts connections from
// one, each exposing the `-L`/`-R`/`-U`/`-V`/`-D`/`-F`/`-X`/`-Y` forwarding
// flags described by the carrier's user-service contract.
package main

func main() {
	Execute()
}
