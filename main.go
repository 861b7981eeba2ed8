package main

import "github.com/jmehdipour/outreach-engine/cmd"

func main() {
	cmd.Execute()
}
