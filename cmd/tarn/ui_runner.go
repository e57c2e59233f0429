package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"tarn/internal/driver"
	"tarn/internal/ui"
)

type optOutcome struct {
	result *driver.RunResult
	err    error
}

func runOptWithUI(ctx context.Context, title string, files []string, opts driver.Options) (*driver.RunResult, error) {
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan optOutcome, 1)

	go func() {
		optsCopy := opts
		optsCopy.Progress = driver.ChannelSink{Ch: events}
		res, err := driver.Run(ctx, files, optsCopy)
		outcomeCh <- optOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
