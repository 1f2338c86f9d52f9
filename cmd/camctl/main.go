package main

import "github.com/phreda4/webcamlib/cmd/camctl/commands"

func main() {
	commands.Execute()
}
