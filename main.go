package main

import (
	"github.com/mickamy/xplain/cmd/xplain"
)

var version = "dev"

func main() {
	xplain.Execute(version)
}
