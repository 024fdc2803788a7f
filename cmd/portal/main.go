package main

import "github.com/kochabx/portal/cmd/portal/cmd"

func main() {
	cmd.Execute()
}
