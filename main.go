package main

import "github.com/devfolio/apiserver/cmd"

func main() {
	cmd.Execute()
}
