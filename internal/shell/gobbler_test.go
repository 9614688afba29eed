package shell_test

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/CZERTAINLY/rootshell/internal/shell"
	"github.com/stretchr/testify/require"
)

func TestDrainStream(t *testing.T) {
	t.Parallel()
	s := shell.Sentinel()

	type given struct {
		input  string
		stdout bool
	}
	type then struct {
		lines []string
		code  int
		err   error
	}

	var testCases = []struct {
		scenario string
		given    given
		then     then
	}{
		{"plain", given{"a\n\nb\n" + s + "\n0\n", true}, then{[]string{"a", "", "b"}, 0, nil}},
		{"payload on sentinel line", given{"a\npayload" + s + "\n7\n", true}, then{[]string{"a", "payload"}, 7, nil}},
		{"no output", given{s + "\n1\n", true}, then{nil, 1, nil}},
		{"missing exit code", given{"a\n" + s + "\n", true}, then{[]string{"a"}, shell.JobNotExecuted, nil}},
		{"garbage exit code", given{s + "\nxx\n", true}, then{nil, shell.JobNotExecuted, nil}},
		{"crlf", given{"a\r\n" + s + "\r\n3\r\n", true}, then{[]string{"a"}, 3, nil}},
		{"stderr", given{"e1\ne2" + s + "\n", false}, then{[]string{"e1", "e2"}, shell.JobNotExecuted, nil}},
		{"eof before sentinel", given{"a\nb", true}, then{[]string{"a", "b"}, shell.JobNotExecuted, io.EOF}},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			lines := shell.NewLines()
			code, err := shell.DrainStream(bufio.NewReader(strings.NewReader(tt.given.input)), lines, tt.given.stdout)
			if tt.then.err != nil {
				require.ErrorIs(t, err, tt.then.err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.then.code, code)
			require.Equal(t, tt.then.lines, lines.Lines())
		})
	}
}

func TestDrainStream_NextJobUntouched(t *testing.T) {
	t.Parallel()
	s := shell.Sentinel()
	r := bufio.NewReader(strings.NewReader("one\n" + s + "\n0\ntwo\n" + s + "\n2\n"))

	// both jobs share the reader, like consecutive jobs of one shell
	first := shell.NewLines()
	code, err := shell.DrainStream(r, first, true)
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.Equal(t, []string{"one"}, first.Lines())

	second := shell.NewLines()
	code, err = shell.DrainStream(r, second, true)
	require.NoError(t, err)
	require.Equal(t, 2, code)
	require.Equal(t, []string{"two"}, second.Lines())
}

func TestDrainStream_NilSink(t *testing.T) {
	t.Parallel()
	code, err := shell.DrainStream(bufio.NewReader(strings.NewReader("ignored\n"+shell.Sentinel()+"\n5\n")), nil, true)
	require.NoError(t, err)
	require.Equal(t, 5, code)
}

func TestTrailer(t *testing.T) {
	t.Parallel()
	s := shell.Sentinel()
	require.NotEmpty(t, s)
	require.Equal(t,
		"__RET=$?;echo "+s+";echo "+s+" >&2;echo $__RET;unset __RET\n",
		shell.Trailer(),
	)
}
