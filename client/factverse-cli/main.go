package main

import "FactVerse/client/factverse-cli/cmd"

func main() {
	cmd.Execute()
}
