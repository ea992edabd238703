package main

import "github.com/docbench/docbench/cmd"

func main() {
	cmd.Execute()
}
