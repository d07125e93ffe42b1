package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

type fakeMigrator struct {
	upErr    error
	steps    []int
	forced   []int
	version  uint
	dirty    bool
	versErr  error
	upCalled int
}

func (f *fakeMigrator) Up() error {
	f.upCalled++
	return f.upErr
}

func (f *fakeMigrator) Steps(n int) error {
	f.steps = append(f.steps, n)
	return nil
}

func (f *fakeMigrator) Force(version int) error {
	f.forced = append(f.forced, version)
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	return f.version, f.dirty, f.versErr
}

func TestRun_DefaultsToUp(t *testing.T) {
	m := &fakeMigrator{}
	require.NoError(t, run(nil, m, logging.New("error")))
	assert.Equal(t, 1, m.upCalled)
}

func TestRun_UpIgnoresNoChange(t *testing.T) {
	m := &fakeMigrator{upErr: migrate.ErrNoChange}
	require.NoError(t, run([]string{"up"}, m, logging.New("error")))

	m = &fakeMigrator{upErr: errors.New("dirty database")}
	assert.ErrorContains(t, run([]string{"up"}, m, logging.New("error")), "dirty database")
}

func TestRun_Down(t *testing.T) {
	m := &fakeMigrator{}
	require.NoError(t, run([]string{"down"}, m, logging.New("error")))
	require.NoError(t, run([]string{"down", "3"}, m, logging.New("error")))
	assert.Equal(t, []int{-1, -3}, m.steps)

	assert.ErrorIs(t, run([]string{"down", "0"}, m, logging.New("error")), errUsage)
	assert.ErrorIs(t, run([]string{"down", "x"}, m, logging.New("error")), errUsage)
	assert.Len(t, m.steps, 2)
}

func TestRun_Force(t *testing.T) {
	m := &fakeMigrator{}
	require.NoError(t, run([]string{"force", "1"}, m, logging.New("error")))
	assert.Equal(t, []int{1}, m.forced)

	assert.ErrorIs(t, run([]string{"force"}, m, logging.New("error")), errUsage)
	assert.ErrorIs(t, run([]string{"force", "one"}, m, logging.New("error")), errUsage)
}

func TestRun_VersionLogsState(t *testing.T) {
	var buf bytes.Buffer
	m := &fakeMigrator{version: 1}
	require.NoError(t, run([]string{"version"}, m, logging.NewWithWriter("info", &buf)))
	assert.Contains(t, buf.String(), `"version":1`)
	assert.Contains(t, buf.String(), `"dirty":false`)

	m = &fakeMigrator{versErr: migrate.ErrNilVersion}
	require.NoError(t, run([]string{"version"}, m, logging.New("error")))
}

func TestRun_UnknownCommand(t *testing.T) {
	assert.ErrorIs(t, run([]string{"sideways"}, &fakeMigrator{}, logging.New("error")), errUsage)
}
