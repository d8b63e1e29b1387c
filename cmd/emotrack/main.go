package main

import "github.com/xaenox/emotrack/internal/cmd"

func main() {
	cmd.Execute()
}
