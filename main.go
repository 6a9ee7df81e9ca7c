package main

import "github.com/gaurav-prasanna/deckproxy/cmd"

func main() {
	cmd.Execute()
}
