package main

import "github.com/embedsh/embedsh/cmd"

func main() {
	cmd.Execute()
}
