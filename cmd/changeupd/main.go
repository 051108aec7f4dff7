package main

import "github.com/gyara/changeup/cmd/changeupd/commands"

func main() {
	commands.Execute()
}
