package main

import "github.com/cd8875/clinical-ai-assistant/internal/cli"

func main() {
	cli.Execute()
}
