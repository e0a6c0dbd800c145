package audio

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/fluidvoice/fluidvoice/internal/apperror"
	"github.com/fluidvoice/fluidvoice/internal/logging"
)

// DevicePicker enumerates input-capable audio devices, classifies their
// transport, applies the external > built-in > other precedence of spec
// section 4.2, and reacts to device-list changes with a debounced
// re-evaluation. Grounded on emmc15-vox's internal/audio/device.go,
// which performs the same kind of name-based transport classification
// over a different backend (malgo instead of PortAudio).
type DevicePicker struct {
	log            *logging.Logger
	forcedUID      string
	debounce       time.Duration
	mu             sync.Mutex
	active         *Device
	onRebind       func(*Device)
	rescanTimer    *time.Timer
	lastDeviceKeys map[string]struct{}
}

// NewDevicePicker creates a picker. forcedUID, if non-empty, is the
// user's forced_device_uid override from spec section 4.2.
func NewDevicePicker(forcedUID string, onRebind func(*Device)) *DevicePicker {
	return &DevicePicker{
		log:       logging.New("device"),
		forcedUID: forcedUID,
		debounce:  250 * time.Millisecond,
		onRebind:  onRebind,
	}
}

// List enumerates every input-capable device, excluding Bluetooth
// (spec section 3 invariant 5) unless it is the forced device, in
// precedence order.
func (p *DevicePicker) List() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, apperror.New(apperror.DeviceUnavailable, "device.List", err)
	}

	var devices []Device
	for i, info := range infos {
		if info.MaxInputChannels <= 0 {
			continue
		}
		transport := classifyTransport(info.Name, info.HostApi)
		if transport == TransportBluetooth && stableUID(info) != p.forcedUID {
			continue // spec section 3 invariant 5: never a candidate unless forced
		}
		devices = append(devices, Device{
			ID:                i,
			StableUID:         stableUID(info),
			HumanName:         info.Name,
			Transport:         transport,
			InputChannelCount: info.MaxInputChannels,
			NativeSampleRate:  info.DefaultSampleRate,
		})
	}

	sort.SliceStable(devices, func(i, j int) bool {
		pi, pj := precedenceRank(devices[i].Transport), precedenceRank(devices[j].Transport)
		if pi != pj {
			return pi < pj
		}
		if devices[i].InputChannelCount != devices[j].InputChannelCount {
			return devices[i].InputChannelCount > devices[j].InputChannelCount
		}
		return devices[i].HumanName < devices[j].HumanName
	})
	return devices, nil
}

// Select applies the forced-device override, falling back to automatic
// precedence-based selection (with a warning) if the forced device is
// absent, per spec section 4.2.
func (p *DevicePicker) Select() (*Device, error) {
	devices, err := p.List()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, apperror.New(apperror.DeviceUnavailable, "device.Select", fmt.Errorf("no non-bluetooth input devices found"))
	}

	if p.forcedUID != "" {
		for i := range devices {
			if devices[i].StableUID == p.forcedUID {
				return &devices[i], nil
			}
		}
		p.log.Warnf("forced_device_uid %q not present, falling back to automatic selection", p.forcedUID)
	}

	return &devices[0], nil
}

// StartWatching begins polling the device list (PortAudio exposes no
// native device-change callback) and calls onRebind when the active
// device disappears, debounced per spec section 4.2's 250ms window.
func (p *DevicePicker) StartWatching(pollInterval time.Duration) {
	go func() {
		for range time.Tick(pollInterval) {
			p.reevaluate()
		}
	}()
}

func (p *DevicePicker) reevaluate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys, err := p.deviceKeySet()
	if err != nil {
		return
	}
	if p.sameKeySet(keys) {
		return
	}
	p.lastDeviceKeys = keys

	if p.rescanTimer != nil {
		p.rescanTimer.Stop()
	}
	p.rescanTimer = time.AfterFunc(p.debounce, p.rebindIfNeeded)
}

func (p *DevicePicker) deviceKeySet() (map[string]struct{}, error) {
	devices, err := p.List()
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		keys[d.StableUID] = struct{}{}
	}
	return keys, nil
}

func (p *DevicePicker) sameKeySet(keys map[string]struct{}) bool {
	if len(keys) != len(p.lastDeviceKeys) {
		return false
	}
	for k := range keys {
		if _, ok := p.lastDeviceKeys[k]; !ok {
			return false
		}
	}
	return true
}

func (p *DevicePicker) rebindIfNeeded() {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active != nil {
		devices, err := p.List()
		if err == nil {
			for _, d := range devices {
				if d.StableUID == active.StableUID {
					return // still present, don't disrupt a running recording
				}
			}
		}
	}

	next, err := p.Select()
	if err != nil {
		p.log.Warnf("device re-selection failed: %v", err)
		return
	}
	p.mu.Lock()
	p.active = next
	p.mu.Unlock()
	if p.onRebind != nil {
		p.onRebind(next)
	}
}

// SetActive records which device the engine is currently bound to, so
// StartWatching knows whether a disappearance requires a rebind.
func (p *DevicePicker) SetActive(d *Device) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = d
}

func stableUID(info *portaudio.DeviceInfo) string {
	return fmt.Sprintf("%s|%s", info.HostApi.Name, info.Name)
}

func precedenceRank(t Transport) int {
	switch t {
	case TransportUSB, TransportThunderbolt, TransportFirewire, TransportHDMI:
		return 0 // external
	case TransportBuiltin:
		return 1
	default:
		return 2 // other
	}
}

// classifyTransport infers a device's transport from its name and host
// API, the same string-matching idiom emmc15-vox's device classification
// uses, since PortAudio does not expose a structured transport field.
func classifyTransport(name string, hostAPI *portaudio.HostApiInfo) Transport {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "bluetooth") || strings.Contains(lower, "airpods") || strings.Contains(lower, "headset"):
		return TransportBluetooth
	case strings.Contains(lower, "built-in") || strings.Contains(lower, "internal") || strings.Contains(lower, "macbook"):
		return TransportBuiltin
	case strings.Contains(lower, "thunderbolt"):
		return TransportThunderbolt
	case strings.Contains(lower, "firewire"):
		return TransportFirewire
	case strings.Contains(lower, "hdmi") || strings.Contains(lower, "displayport"):
		return TransportHDMI
	case strings.Contains(lower, "usb"):
		return TransportUSB
	case strings.Contains(lower, "aggregate"):
		return TransportAggregate
	case strings.Contains(lower, "virtual") || strings.Contains(lower, "loopback") || strings.Contains(lower, "blackhole"):
		return TransportVirtual
	case hostAPI != nil && strings.Contains(strings.ToLower(hostAPI.Name), "pci"):
		return TransportPCI
	default:
		return TransportOther
	}
}
