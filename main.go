package main

import "media-viewer-engine/cmd"

func main() {
	cmd.Execute()
}
