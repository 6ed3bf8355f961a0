// Package flows assembles the conversation variants served by convo.
package flows

import (
	"github.com/appsail/convo/internal/flows/reminder"
	"github.com/appsail/convo/internal/flows/scripted"
	"github.com/appsail/convo/internal/flows/wallet"
	"github.com/appsail/convo/internal/runtime"
)

// Config carries the per-variant settings.
type Config struct {
	Scripted scripted.Config
	Reminder reminder.Config
	Wallet   wallet.Config
}

// All builds every flow.
func All(cfg Config) ([]*runtime.Flow, error) {
	s, err := scripted.New(cfg.Scripted)
	if err != nil {
		return nil, err
	}
	return []*runtime.Flow{
		s,
		reminder.New(cfg.Reminder),
		wallet.New(cfg.Wallet),
	}, nil
}
