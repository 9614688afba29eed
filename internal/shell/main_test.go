package shell_test

import (
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/CZERTAINLY/rootshell/internal/shell"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newShell builds a plain sh closed at the end of the test.
func newShell(t *testing.T, flags ...shell.Flag) *shell.Process {
	t.Helper()
	requireSh(t)

	f := shell.FlagNonRootShell
	for _, flag := range flags {
		f |= flag
	}
	p, err := shell.NewBuilder().
		SetFlags(f).
		SetTimeout(10 * time.Second).
		Build(t.Context())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = p.Close()
	})
	return p
}

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
}

// plainStatus is the classification of sh for the user running the tests.
func plainStatus() shell.Status {
	if os.Geteuid() == 0 {
		return shell.StatusRoot
	}
	return shell.StatusNonRoot
}
