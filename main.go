package main

import "github.com/yz4230/deployhook/cmd"

func main() {
	cmd.Execute()
}
