package main

import "github.com/agentic-research/subreq/cmd"

func main() {
	cmd.Execute()
}
