package main

import "github.com/dmitriyy0828-web/diet-bot-v2/cmd/dietbot"

func main() {
	dietbot.Execute()
}
