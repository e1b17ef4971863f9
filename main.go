package main

import "github.com/nextlevelbuilder/otcdesk/cmd"

func main() {
	cmd.Execute()
}
