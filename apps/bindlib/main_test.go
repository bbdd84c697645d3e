package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldsec/bindlib/pkg/binding"
	"github.com/ldsec/bindlib/pkg/library"
)

func runCommand(ctx context.Context, args ...string) (string, error) {
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func fileBackend(dir string, args ...string) []string {
	return append([]string{"--backend", "file", "--dir", dir}, args...)
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "bindlib", cmd.Use)

	for _, name := range []string{"show", "set-point", "set-scene", "remove", "delete"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	for _, flag := range []string{"config", "backend", "dir", "db", "format", "verbose"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
}

func TestShowGolden(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	out, err := runCommand(ctx, fileBackend(dir, "set-point", "Kitchen", "lamp", "--anchor", "pcf-a", "--pos", "0.25,1.5,-2")...)
	require.NoError(t, err)
	require.Equal(t, "set point \"lamp\" in library \"Kitchen\"\n", out)

	_, err = runCommand(ctx, fileBackend(dir, "set-point", "Kitchen", "chair", "--anchor", "pcf-b", "--pos", "-4,0,0.125", "--rot", "0.5,0.5,0.5,0.5")...)
	require.NoError(t, err)
	_, err = runCommand(ctx, fileBackend(dir, "set-scene", "Kitchen", "room", "--points", "lamp,chair")...)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "Kitchen.bld"))

	g := newGoldie(t)

	out, err = runCommand(ctx, fileBackend(dir, "show", "Kitchen")...)
	require.NoError(t, err)
	g.Assert(t, "show_text", []byte(out))

	out, err = runCommand(ctx, fileBackend(dir, "--format", "json", "show", "Kitchen")...)
	require.NoError(t, err)
	g.Assert(t, "show_json", []byte(out))
}

func TestRemoveAndDelete(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	_, err := runCommand(ctx, fileBackend(dir, "set-point", "L1", "k1", "--anchor", "pcf-a")...)
	require.NoError(t, err)
	_, err = runCommand(ctx, fileBackend(dir, "set-scene", "L1", "s1", "--points", "k1")...)
	require.NoError(t, err)

	out, err := runCommand(ctx, fileBackend(dir, "remove", "L1", "s1", "--kind", "scene")...)
	require.NoError(t, err)
	require.Equal(t, "removed scene \"s1\" in library \"L1\"\n", out)

	_, err = runCommand(ctx, fileBackend(dir, "remove", "L1", "s1", "--kind", "scene")...)
	require.Error(t, err)
	require.Equal(t, ExitFailure, GetExitCode(err))

	out, err = runCommand(ctx, fileBackend(dir, "show", "L1")...)
	require.NoError(t, err)
	require.Equal(t, "library L1\npoints (1)\n  k1: anchor=pcf-a pos=(0, 0, 0) rot=(0, 0, 0, 1)\nscenes (0)\n", out)

	out, err = runCommand(ctx, fileBackend(dir, "delete", "L1")...)
	require.NoError(t, err)
	require.Equal(t, "deleted library \"L1\"\n", out)
	require.NoFileExists(t, filepath.Join(dir, "L1.bld"))
}

func TestSecureStoreBackend(t *testing.T) {
	db := filepath.Join(t.TempDir(), "db")
	ctx := context.Background()

	_, err := runCommand(ctx, "--db", db, "set-point", "DefaultLibrary", "k1", "--anchor", "pcf-a", "--pos", "1,2,3")
	require.NoError(t, err)

	out, err := runCommand(ctx, "--db", db, "show", "DefaultLibrary")
	require.NoError(t, err)
	require.Contains(t, out, "k1: anchor=pcf-a pos=(1, 2, 3)")
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "bindlib.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("backend: file\ndirectory: "+filepath.Join(dir, "libs")+"\n"), 0o600))
	ctx := context.Background()

	_, err := runCommand(ctx, "--config", conf, "set-point", "L1", "k1", "--anchor", "pcf-a")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "libs", "L1.bld"))
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	tests := []struct {
		name string
		args []string
		code int
	}{
		{name: "bad-format", args: fileBackend(dir, "--format", "xml", "show", "L1"), code: ExitCommandError},
		{name: "bad-backend", args: []string{"--backend", "cloud", "show", "L1"}, code: ExitCommandError},
		{name: "bad-position", args: fileBackend(dir, "set-point", "L1", "k", "--anchor", "a", "--pos", "1,2"), code: ExitCommandError},
		{name: "bad-kind", args: fileBackend(dir, "remove", "L1", "k", "--kind", "anchor"), code: ExitCommandError},
		{name: "missing-point", args: fileBackend(dir, "set-scene", "L1", "s", "--points", "nope"), code: ExitFailure},
		{name: "empty-id", args: fileBackend(dir, "show", ""), code: ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCommand(ctx, tt.args...)
			require.Error(t, err)
			require.Equal(t, tt.code, GetExitCode(err))
		})
	}
}

func TestCancelledCommandSavesNothing(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runCommand(ctx, fileBackend(dir, "set-point", "L1", "k1", "--anchor", "pcf-a")...)
	require.ErrorIs(t, err, context.Canceled)
	require.NoFileExists(t, filepath.Join(dir, "L1.bld"))
}

func TestMutationSavedWhenInterruptedMidCommand(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	cmd.SetErr(io.Discard)
	opts := &RootOptions{Backend: "file", Dir: dir, Format: "text"}

	err := withRegistry(cmd, opts, func(reg *library.Registry) error {
		// the interrupt fires the shutdown hook before the mutation happens
		fired := make(chan struct{})
		reg.ShutdownHook().Subscribe(func() { close(fired) })
		cancel()
		<-fired

		lib, err := reg.GetLibrary("L1", false, false)
		if err != nil {
			return err
		}
		lib.SetPoint("k1", binding.PointRecord{AnchorID: "pcf-a"})
		commit(reg, lib)
		return nil
	})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "L1.bld"))

	out, err := runCommand(context.Background(), fileBackend(dir, "show", "L1")...)
	require.NoError(t, err)
	require.Contains(t, out, "points (1)\n  k1: anchor=pcf-a")
}
