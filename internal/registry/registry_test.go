package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/raider/internal/config"
	"github.com/ocx/raider/internal/creds"
	"github.com/ocx/raider/internal/probe"
)

type stubProbe struct {
	probe.Base
	name      string
	setupErr  error
	setupSeen *config.Options
}

func (s *stubProbe) Description() string { return "stub: " + s.name }
func (s *stubProbe) Setup(opts *config.Options) error {
	s.setupSeen = opts
	return s.setupErr
}
func (s *stubProbe) Attempt(context.Context, creds.Credentials, time.Duration) ([]probe.Loot, error) {
	return nil, nil
}

func TestRegistry_RegisterAndList(t *testing.T) {
	r := New()
	r.Register("zeta", &stubProbe{name: "zeta"})
	r.Register("alpha", &stubProbe{name: "alpha"})

	plugins := r.List()
	require.Len(t, plugins, 2)
	assert.Equal(t, "alpha", plugins[0].Name, "List must be sorted by name")
	assert.Equal(t, "zeta", plugins[1].Name)
}

func TestRegistry_RegisterDuplicatePanics(t *testing.T) {
	r := New()
	r.Register("ftp", &stubProbe{name: "ftp"})

	assert.Panics(t, func() {
		r.Register("ftp", &stubProbe{name: "ftp-again"})
	})
}

func TestRegistry_SetupRemovesPlugin(t *testing.T) {
	r := New()
	r.Register("ftp", &stubProbe{name: "ftp"})

	opts := &config.Options{Plugin: "ftp"}
	p, err := r.Setup(opts)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Empty(t, r.List(), "Setup must transfer ownership out of the registry")

	_, err = r.Setup(opts)
	assert.Error(t, err, "selecting an already-removed plugin must fail")
}

func TestRegistry_SetupUnknownPlugin(t *testing.T) {
	r := New()
	_, err := r.Setup(&config.Options{Plugin: "does-not-exist"})
	assert.Error(t, err)
}

func TestRegistry_SetupPropagatesProbeSetupError(t *testing.T) {
	r := New()
	boom := assert.AnError
	r.Register("broken", &stubProbe{name: "broken", setupErr: boom})

	_, err := r.Setup(&config.Options{Plugin: "broken"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assert.NotEmpty(t, r.List(), "a plugin whose Setup fails must stay in the registry")
}
