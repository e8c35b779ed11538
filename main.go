package main

import "github.com/framefold/timeline-engine/cmd"

func main() {
	cmd.Execute()
}
