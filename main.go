package main

import "crash-review-pipeline/cmd"

func main() {
	cmd.Execute()
}
