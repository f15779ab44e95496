package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/roverpilot/cmd/roverpilot/app"
)

func main() {
	app.NewApp().Run()
}
