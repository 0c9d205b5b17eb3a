package main

import "github.com/agentic-research/docudump/cmd"

func main() {
	cmd.Execute()
}
