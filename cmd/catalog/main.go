package main

import (
	"os"

	"karigari.shop/catalog/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
