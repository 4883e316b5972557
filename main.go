package main

import (
	chatapp "github.com/ngophuc29/sockettuBuild/app"
)

func main() {
	app := chatapp.New(nil, nil)
	app.Start()
}
