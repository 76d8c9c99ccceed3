package main

import "github.com/sarchlab/sparta/cmd"

func main() {
	cmd.Execute()
}
