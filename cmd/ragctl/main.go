package main

import "rag-chatbot/internal/cli"

func main() {
	cli.Execute()
}
