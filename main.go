package main

import "github.com/ConfabulousDev/confab-insights/cmd"

func main() {
	cmd.Execute()
}
