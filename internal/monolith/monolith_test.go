package monolith

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/amm-connector/internal/config"
	"github.com/fd1az/amm-connector/internal/di"
	"github.com/fd1az/amm-connector/internal/health"
	"github.com/fd1az/amm-connector/internal/logger"
)

type recordingModule struct {
	name  string
	order *[]string
}

func (m recordingModule) RegisterServices(c di.Container) error {
	c.Register(m.name, m.name)
	*m.order = append(*m.order, "register:"+m.name)
	return nil
}

func (m recordingModule) Startup(_ context.Context, mono Monolith) error {
	*m.order = append(*m.order, "start:"+m.name)
	name := m.name
	mono.OnClose(func() error {
		*m.order = append(*m.order, "close:"+name)
		return nil
	})
	return nil
}

func TestApp_ModuleLifecycle(t *testing.T) {
	var order []string
	a := New(&config.Config{}, logger.Nop(), health.NewServer(0, "test", logger.Nop()))

	mods := []Module{
		recordingModule{name: "chain", order: &order},
		recordingModule{name: "amm", order: &order},
	}
	require.NoError(t, a.RegisterModules(mods...))
	require.NoError(t, a.StartModules(context.Background(), mods...))

	assert.Equal(t, "amm", a.Services().Get("amm"))
	assert.NotNil(t, a.Services().Get("config"))

	require.NoError(t, a.Close())
	assert.Equal(t, []string{
		"register:chain", "register:amm",
		"start:chain", "start:amm",
		"close:amm", "close:chain",
	}, order)
}

func TestApp_CloseJoinsErrors(t *testing.T) {
	a := New(&config.Config{}, logger.Nop(), nil)
	boom := errors.New("boom")
	a.OnClose(func() error { return boom })
	a.OnClose(func() error { return nil })

	err := a.Close()
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, a.Close(), "closers run once")
}
