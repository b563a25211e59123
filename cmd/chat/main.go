package main

import "github.com/vladislav-moscow/Social/internal/cmd"

func main() {
	cmd.Execute()
}
