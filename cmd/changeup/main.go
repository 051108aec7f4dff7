package main

import "github.com/gyara/changeup/cmd/changeup/commands"

func main() {
	commands.Execute()
}
