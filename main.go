package main

import "github.com/liuxd6825/conductor/cmd"

func main() {
	cmd.Execute()
}
