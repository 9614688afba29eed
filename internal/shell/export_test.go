package shell

import (
	"bufio"
	"sync"
)

// DrainStream runs a gobbler over r.
func DrainStream(r *bufio.Reader, sink Sink, stdout bool) (int, error) {
	return gobbler{r: r, sink: sink, mx: &sync.Mutex{}, stdout: stdout}.drain()
}

func Trailer() string {
	return trailer()
}

// WithFallback replaces the command vectors of the fallback chain.
func (b *Builder) WithFallback(mountMaster, root, user []string) *Builder {
	b.mountMaster = mountMaster
	b.root = root
	b.user = user
	return b
}
