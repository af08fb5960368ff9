package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"bothelp.app/voiceover/tools/linters/enumvalidator"
)

func main() {
	singlechecker.Main(enumvalidator.Analyzer)
}
