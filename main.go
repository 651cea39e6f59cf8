package main

import "github/chapool/go-cardsigner/cmd"

func main() {
	cmd.Execute()
}
