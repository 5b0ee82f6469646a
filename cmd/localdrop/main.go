package main

import (
	"log/slog"

	"github.com/localdrop/localdrop/internal/command"
	"github.com/localdrop/localdrop/internal/logging"
)

func main() {
	logging.Init(slog.LevelError)
	command.Execute()
}
