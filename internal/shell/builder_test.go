package shell_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/CZERTAINLY/rootshell/internal/shell"
	"github.com/stretchr/testify/require"
)

func TestBuilderFallback(t *testing.T) {
	t.Parallel()
	requireSh(t)

	p, err := shell.NewBuilder().
		WithFallback(
			[]string{"/does/not/exist/su", "--mount-master"},
			[]string{"/does/not/exist/su"},
			[]string{"sh"},
		).
		SetFlags(shell.FlagMountMaster).
		SetTimeout(5 * time.Second).
		Build(t.Context())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.Close()
	})
	require.Equal(t, plainStatus(), p.Status())
	require.Equal(t, []string{"sh"}, p.Argv())
}

func TestBuilderFallback_RootVariantNotRoot(t *testing.T) {
	t.Parallel()
	requireSh(t)
	if os.Geteuid() == 0 {
		t.Skip("skipped, every shell is root for uid 0")
	}

	// a "root" command which gives a plain shell is not accepted as root
	p, err := shell.NewBuilder().
		WithFallback(nil, []string{"sh", "-s"}, []string{"sh"}).
		SetTimeout(5 * time.Second).
		Build(t.Context())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.Close()
	})
	require.Equal(t, shell.StatusNonRoot, p.Status())
	require.Equal(t, []string{"sh"}, p.Argv())
}

func TestBuilderFallback_AllFail(t *testing.T) {
	t.Parallel()

	_, err := shell.NewBuilder().
		WithFallback(nil, []string{"/does/not/exist/su"}, []string{"/does/not/exist/sh"}).
		SetTimeout(time.Second).
		Build(t.Context())
	require.Error(t, err)
	require.ErrorIs(t, err, shell.ErrShellConstruction)
}

func TestBuilderInitializers(t *testing.T) {
	t.Parallel()
	requireSh(t)

	t.Run("commands", func(t *testing.T) {
		t.Parallel()
		p, err := shell.NewBuilder().
			SetFlags(shell.FlagNonRootShell).
			SetInitializers(shell.CommandInitializer("FOO=bar", "export FOO")).
			Build(t.Context())
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = p.Close()
		})

		res := p.NewJob().Add("sh -c 'echo $FOO'").Exec(t.Context())
		require.Equal(t, []string{"bar"}, res.Out)
	})

	t.Run("failing command", func(t *testing.T) {
		t.Parallel()
		_, err := shell.NewBuilder().
			SetFlags(shell.FlagNonRootShell).
			SetInitializers(shell.CommandInitializer("false")).
			Build(t.Context())
		require.ErrorIs(t, err, shell.ErrShellConstruction)
		require.ErrorContains(t, err, "initializer 0")
	})

	t.Run("func", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		var seen *shell.Process
		_, err := shell.NewBuilder().
			SetFlags(shell.FlagNonRootShell).
			SetInitializers(func(_ context.Context, p *shell.Process) error {
				seen = p
				return boom
			}).
			Build(t.Context())
		require.ErrorIs(t, err, boom)
		require.NotNil(t, seen)
		// the rejected shell is released
		require.False(t, seen.IsAlive())
	})
}

func TestBuilderTimeout(t *testing.T) {
	t.Parallel()
	b := shell.NewBuilder().SetTimeout(0).SetFlags(shell.FlagNonRootShell | shell.FlagRedirectStderr)
	require.Equal(t, shell.FlagNonRootShell|shell.FlagRedirectStderr, b.Flags())
}
