package main

import (
	"log"

	"transbot-ops/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
