package mocks

import (
	"sync"
	"time"

	"github.com/srg/previewsim/internal/invoke"
	"github.com/srg/previewsim/internal/provider"
	"github.com/srg/previewsim/pkg/facade"
)

const NetworkNamespace = "network"

// Network types reported by getType and typeChange
const (
	TypeNone     = "none"
	TypeWifi     = "wifi"
	TypeCellular = "cellular"
	TypeEthernet = "ethernet"
)

var typeCycle = []string{TypeCellular, TypeEthernet, TypeNone, TypeWifi}

// networkState tracks the simulated connection so getType follows typeChange
type networkState struct {
	mu   sync.Mutex
	kind string
	step int
}

func (s *networkState) snapshot() map[string]any {
	return map[string]any{
		"type":      s.kind,
		"metered":   s.kind == TypeCellular,
		"available": s.kind != TypeNone,
	}
}

func (s *networkState) current() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

func (s *networkState) next() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kind = typeCycle[s.step%len(typeCycle)]
	s.step++
	return s.snapshot(), nil
}

// InstallNetwork registers the network payloads and events.
// getType reports whatever the last typeChange emission announced.
func InstallNetwork(f *facade.Facade, cat *provider.Catalog, interval time.Duration) *facade.Namespace {
	state := &networkState{kind: TypeWifi}

	cat.Register("network.getType", func([]any) invoke.Result {
		v, _ := state.current()
		return invoke.Success(v)
	}).
		Value("network.hasDefaultNet", true).
		Value("network.getDefaultNet", map[string]any{"netId": 100}).
		Value("network.getIpAddress", "192.168.1.100").
		Fail("network.setAppNet", notSupported("network.setAppNet"))

	return f.Namespace(NetworkNamespace).
		Event("typeChange", facade.EventSpec{Interval: interval, Producer: state.next}).
		Event("netAvailable", facade.EventSpec{Interval: interval, Producer: func() (any, error) {
			v, _ := state.current()
			return v.(map[string]any)["available"], nil
		}})
}
