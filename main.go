package main

import "github.com/user/fricadelle/cmd"

func main() {
	cmd.Execute()
}
