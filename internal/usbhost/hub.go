package usbhost

import "fmt"

// Handle is an opaque reference to an open controller or hub handle. The
// real Windows implementation backs it with a file handle; fakes back it
// with an index into an in-memory table.
type Handle uintptr

// ConnectionInfoEx is the parsed result of the node-connection-info-ex
// ioctl: port status, whether the attached entity is itself a hub, the
// negotiated speed, and the attached device's standard descriptor.
type ConnectionInfoEx struct {
	Connected bool
	IsHub     bool
	HighSpeed bool
	Device    DeviceDescriptor
}

// hubController is the seam between the pure topology-walking algorithm and
// the OS USB hub ioctl surface, so the walker can be exercised with a fake
// in tests without touching real Windows syscalls.
type hubController interface {
	// OpenController opens the index'th host controller device
	// ("\\.\HCDn" on the real implementation). ok is false when no such
	// controller exists; the walker then moves on to the next index.
	OpenController(index int) (h Handle, ok bool, err error)
	// OpenHub opens a hub by its device name, as returned by
	// GetRootHubName or GetConnectionName.
	OpenHub(name string) (Handle, error)
	Close(h Handle)

	GetRootHubName(controller Handle) (string, error)
	GetNodeInformation(hub Handle) (numPorts int, err error)
	GetConnectionInfo(hub Handle, port int) (ConnectionInfoEx, error)
	GetConnectionName(hub Handle, port int) (string, error)
	GetDriverKeyName(hub Handle, port int) (string, error)
	GetConfigurationDescriptor(hub Handle, port int, index int) (ConfigDescBlob, error)
	GetStringDescriptor(hub Handle, port int, index uint8, languageID uint16) ([]uint16, error)
}

// fakeHubController is an in-memory hubController used by unit tests for
// the topology walker and string collector, modeled after the usbproxy package's own
// USBDeviceEnumerator interface separation (a real implementation and a
// test-only implementation sharing one interface).
type fakeHubController struct {
	controllers []string // index -> root hub name
	hubs        map[string]*fakeHub
	nextHandle  Handle
	byHandle    map[Handle]string // handle -> hub name ("" reserved for controller handles, tracked separately)
	controllerByHandle map[Handle]int
}

type fakeHub struct {
	ports []fakePort
}

type fakePort struct {
	Connected    bool
	IsHub        bool
	ChildHubName string
	DriverKey    string
	Descriptor   DeviceDescriptor
	Config       ConfigDescBlob
	Strings      map[fakeStringKey][]uint16
	HighSpeed    bool
}

type fakeStringKey struct {
	Index      uint8
	LanguageID uint16
}

func newFakeHubController() *fakeHubController {
	return &fakeHubController{
		hubs:               make(map[string]*fakeHub),
		byHandle:           make(map[Handle]string),
		controllerByHandle: make(map[Handle]int),
	}
}

func (f *fakeHubController) addController(rootHubName string) {
	f.controllers = append(f.controllers, rootHubName)
}

func (f *fakeHubController) addHub(name string, ports []fakePort) {
	f.hubs[name] = &fakeHub{ports: ports}
}

func (f *fakeHubController) OpenController(index int) (Handle, bool, error) {
	if index < 0 || index >= len(f.controllers) {
		return 0, false, nil
	}
	f.nextHandle++
	h := f.nextHandle
	f.controllerByHandle[h] = index
	return h, true, nil
}

func (f *fakeHubController) OpenHub(name string) (Handle, error) {
	if _, ok := f.hubs[name]; !ok {
		return 0, newError(KindIO, fmt.Sprintf("no such fake hub %q", name), nil)
	}
	f.nextHandle++
	h := f.nextHandle
	f.byHandle[h] = name
	return h, nil
}

func (f *fakeHubController) Close(h Handle) {
	delete(f.byHandle, h)
	delete(f.controllerByHandle, h)
}

func (f *fakeHubController) GetRootHubName(controller Handle) (string, error) {
	idx, ok := f.controllerByHandle[controller]
	if !ok {
		return "", newError(KindIO, "invalid controller handle", nil)
	}
	return f.controllers[idx], nil
}

func (f *fakeHubController) hub(h Handle) (*fakeHub, error) {
	name, ok := f.byHandle[h]
	if !ok {
		return nil, newError(KindIO, "invalid hub handle", nil)
	}
	hub, ok := f.hubs[name]
	if !ok {
		return nil, newError(KindIO, "invalid hub handle", nil)
	}
	return hub, nil
}

func (f *fakeHubController) port(h Handle, port int) (*fakePort, error) {
	hub, err := f.hub(h)
	if err != nil {
		return nil, err
	}
	if port < 1 || port > len(hub.ports) {
		return nil, newError(KindIO, "port out of range", nil)
	}
	return &hub.ports[port-1], nil
}

func (f *fakeHubController) GetNodeInformation(h Handle) (int, error) {
	hub, err := f.hub(h)
	if err != nil {
		return 0, err
	}
	return len(hub.ports), nil
}

func (f *fakeHubController) GetConnectionInfo(h Handle, port int) (ConnectionInfoEx, error) {
	p, err := f.port(h, port)
	if err != nil {
		return ConnectionInfoEx{}, err
	}
	return ConnectionInfoEx{Connected: p.Connected, IsHub: p.IsHub, HighSpeed: p.HighSpeed, Device: p.Descriptor}, nil
}

func (f *fakeHubController) GetConnectionName(h Handle, port int) (string, error) {
	p, err := f.port(h, port)
	if err != nil {
		return "", err
	}
	if !p.IsHub {
		return "", newError(KindIO, "port is not a hub", nil)
	}
	return p.ChildHubName, nil
}

func (f *fakeHubController) GetDriverKeyName(h Handle, port int) (string, error) {
	p, err := f.port(h, port)
	if err != nil {
		return "", err
	}
	return p.DriverKey, nil
}

func (f *fakeHubController) GetConfigurationDescriptor(h Handle, port int, index int) (ConfigDescBlob, error) {
	p, err := f.port(h, port)
	if err != nil {
		return ConfigDescBlob{}, err
	}
	return p.Config, nil
}

func (f *fakeHubController) GetStringDescriptor(h Handle, port int, index uint8, languageID uint16) ([]uint16, error) {
	p, err := f.port(h, port)
	if err != nil {
		return nil, err
	}
	v, ok := p.Strings[fakeStringKey{Index: index, LanguageID: languageID}]
	if !ok {
		return nil, newError(KindIO, "no such fake string descriptor", nil)
	}
	return v, nil
}
