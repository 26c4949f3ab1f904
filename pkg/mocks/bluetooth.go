package mocks

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/google/uuid"
	"github.com/srg/previewsim/internal/invoke"
	"github.com/srg/previewsim/internal/provider"
	"github.com/srg/previewsim/pkg/facade"
)

const BluetoothNamespace = "bluetooth"

// Bluetooth adapter states
const (
	StateOff = iota
	StateTurningOn
	StateOn
	StateTurningOff
)

// stateCycle is the order stateChange walks through
var stateCycle = []int{StateTurningOn, StateOn, StateTurningOff, StateOff}

// simulatedDevice is one peripheral the fake scanner reports
type simulatedDevice struct {
	Name     string
	Address  ble.Addr
	Services []ble.UUID
	TxPower  int
}

// defaultDevices are the peripherals reported by BLEDeviceFind, in rotation
var defaultDevices = []simulatedDevice{
	newSimulatedDevice("Heart Rate Sensor", 4, ble.UUID16(0x180D), ble.UUID16(0x180F)),
	newSimulatedDevice("Thermometer", 0, ble.UUID16(0x1809)),
	newSimulatedDevice("UART Bridge", -4, ble.MustParse("6e400001-b5a3-f393-e0a9-e50e24dcca9e")),
}

// newSimulatedDevice derives a stable MAC-style address from the device name
func newSimulatedDevice(name string, txPower int, services ...ble.UUID) simulatedDevice {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("previewsim/"+name))
	mac := make([]string, 6)
	for i := range mac {
		mac[i] = fmt.Sprintf("%02X", id[i])
	}
	return simulatedDevice{
		Name:     name,
		Address:  ble.NewAddr(strings.Join(mac, ":")),
		Services: services,
		TxPower:  txPower,
	}
}

func (d simulatedDevice) serviceUUIDs() []any {
	out := make([]any, 0, len(d.Services))
	for _, s := range d.Services {
		out = append(out, s.String())
	}
	return out
}

// scanner produces BLEDeviceFind batches, one device per emission
type scanner struct {
	mu      sync.Mutex
	devices []simulatedDevice
	step    int
}

func (s *scanner) next() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.devices) == 0 {
		return nil, fmt.Errorf("scanner has no simulated devices")
	}
	d := s.devices[s.step%len(s.devices)]
	rssi := -40 - (s.step%6)*10
	s.step++

	return []any{map[string]any{
		"deviceId":     d.Address.String(),
		"name":         d.Name,
		"rssi":         rssi,
		"txPower":      d.TxPower,
		"serviceUuids": d.serviceUUIDs(),
		"connectable":  true,
	}}, nil
}

// stateMachine produces stateChange emissions; getState reports the last one
type stateMachine struct {
	mu    sync.Mutex
	step  int
	state int
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: StateOn}
}

func (m *stateMachine) next() (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = stateCycle[m.step%len(stateCycle)]
	m.step++
	return m.state, nil
}

func (m *stateMachine) current() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// InstallBluetooth registers the bluetooth payloads and events
func InstallBluetooth(f *facade.Facade, cat *provider.Catalog, interval time.Duration) *facade.Namespace {
	localName := &struct {
		sync.Mutex
		name string
	}{name: "previewsim"}

	addresses := make([]any, 0, len(defaultDevices))
	for _, d := range defaultDevices {
		addresses = append(addresses, d.Address.String())
	}

	states := newStateMachine()

	cat.Register("bluetooth.getState", func([]any) invoke.Result {
		return invoke.Success(states.current())
	}).
		Register("bluetooth.getLocalName", func([]any) invoke.Result {
			localName.Lock()
			defer localName.Unlock()
			return invoke.Success(localName.name)
		}).
		Register("bluetooth.setLocalName", func(args []any) invoke.Result {
			if len(args) != 1 {
				return invoke.Failure(invalidParameter("setLocalName expects one name"))
			}
			name, ok := args[0].(string)
			if !ok || name == "" {
				return invoke.Failure(invalidParameter("name must be a non-empty string"))
			}
			localName.Lock()
			localName.name = name
			localName.Unlock()
			return invoke.Success(true)
		}).
		Value("bluetooth.enableBluetooth", true).
		Value("bluetooth.disableBluetooth", true).
		Register("bluetooth.getPairedDevices", func([]any) invoke.Result {
			return invoke.Success(slices.Clone(addresses))
		}).
		Value("bluetooth.getConnectedBLEDevices", []any{}).
		Value("bluetooth.getRemoteDeviceName", UnknownString).
		Fail("bluetooth.pairDevice", notSupported("bluetooth.pairDevice"))

	scan := &scanner{devices: defaultDevices}

	return f.Namespace(BluetoothNamespace).
		Event("stateChange", facade.EventSpec{Interval: interval, Producer: states.next}).
		Event("bluetoothDeviceFind", facade.EventSpec{Interval: interval, Producer: func() (any, error) {
			return slices.Clone(addresses), nil
		}}).
		Event("BLEDeviceFind", facade.EventSpec{Interval: interval, Producer: scan.next})
}
