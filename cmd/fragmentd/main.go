package main

import "github.com/mkhatri/fragmentd/cmd/fragmentd/cmd"

func main() {
	cmd.Execute()
}
