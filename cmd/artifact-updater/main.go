package main

import "github.com/oshokin/artifact-updater/cmd/artifact-updater/cmd"

func main() {
	cmd.Execute()
}
