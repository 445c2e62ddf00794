package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/raider/internal/config"
	"github.com/ocx/raider/internal/probe"
)

func optsWith(targets, users, passwords []string) *config.Options {
	return &config.Options{
		Concurrency: 2,
		Targets:     targets,
		Usernames:   users,
		Passwords:   passwords,
	}
}

func TestCombinations_UsernamePasswordCrossProduct(t *testing.T) {
	s := New(optsWith([]string{"h1", "h2"}, []string{"u1", "u2"}, []string{"p1", "p2"}), nil)

	out, err := s.Combinations(nil, false)
	require.NoError(t, err)

	var got []string
	for c := range out {
		got = append(got, c.Target+"/"+c.Username+"/"+c.Password)
	}

	assert.Len(t, got, 2*2*2, "must be the full cross product of targets x usernames x passwords")
}

func TestCombinations_SingleStrategyUsesUsernamesOnly(t *testing.T) {
	s := New(optsWith([]string{"h1"}, []string{"u1", "u2", "u3"}, []string{"unused"}), nil)

	out, err := s.Combinations(nil, true)
	require.NoError(t, err)

	var got []string
	for c := range out {
		assert.Empty(t, c.Password, "single strategy must not populate Password")
		got = append(got, c.Username)
	}
	assert.Len(t, got, 3)
}

func TestCombinations_OverrideReplacesPayloadSource(t *testing.T) {
	s := New(optsWith([]string{"h1"}, []string{"u1"}, []string{"ignored"}), nil)
	override := probe.Expression{"9000", "9001"}

	out, err := s.Combinations(&override, false)
	require.NoError(t, err)

	var passwords []string
	for c := range out {
		passwords = append(passwords, c.Password)
	}
	assert.ElementsMatch(t, []string{"9000", "9001"}, passwords, "override must replace the password source, not add to it")
}

func TestCombinations_NoTargetsIsError(t *testing.T) {
	s := New(optsWith(nil, []string{"u1"}, []string{"p1"}), nil)
	_, err := s.Combinations(nil, false)
	assert.Error(t, err)
}

func TestSession_StopIsMonotonic(t *testing.T) {
	s := New(optsWith([]string{"h1"}, []string{"u1"}, []string{"p1"}), nil)
	assert.False(t, s.IsStop())
	s.Stop()
	assert.True(t, s.IsStop())
	s.Stop()
	assert.True(t, s.IsStop())
}

func TestSession_CountersAreIndependent(t *testing.T) {
	s := New(optsWith([]string{"h1"}, []string{"u1"}, []string{"p1"}), nil)
	s.IncDone()
	s.IncDone()
	s.IncErrors()
	assert.Equal(t, uint64(2), s.Done())
	assert.Equal(t, uint64(1), s.Errors())
}

func TestSession_AddLootNilSinkIsNoop(t *testing.T) {
	s := New(optsWith([]string{"h1"}, []string{"u1"}, []string{"p1"}), nil)
	err := s.AddLoot(context.Background(), probe.Loot{Plugin: "x", Target: "h1"})
	assert.NoError(t, err)
}
