package main

import "github.com/emrgen/docgen/cmd"

func main() {
	cmd.Execute()
}
