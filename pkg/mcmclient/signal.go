package mcmclient

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/open-mcm/mesh-dataplane/internal/mlog"
)

// installOnce guards the single process-wide SIGINT/SIGTERM
// subscription every Client shares, per spec.md §4.8/§9 ("Registers
// process-level termination handlers once (install-only-if-absent;
// previous handler chained)"). signal.Notify is additive in the Go
// runtime — registering our own channel never displaces a channel an
// embedding application already registered for the same signals, so
// "chained" falls out of the stdlib's own semantics; installOnce only
// needs to guarantee *our* subscription happens a single time no
// matter how many Clients are constructed in the process.
var installOnce sync.Once

var (
	liveMu      sync.Mutex
	liveClients = make(map[*Client]struct{})
)

func installSignalHandler() {
	installOnce.Do(func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			for sig := range ch {
				mlog.Component("mcmclient").Info().Str("signal", sig.String()).Msg("received termination signal, cancelling all clients")
				liveMu.Lock()
				for c := range liveClients {
					c.ctx.Cancel()
				}
				liveMu.Unlock()
			}
		}()
	})
}

func registerLive(c *Client) {
	liveMu.Lock()
	liveClients[c] = struct{}{}
	liveMu.Unlock()
}

func unregisterLive(c *Client) {
	liveMu.Lock()
	delete(liveClients, c)
	liveMu.Unlock()
}
