package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/iottrends-tech/dvb-s2-SDR/internal/dvbs2"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/file"
	"github.com/iottrends-tech/dvb-s2-SDR/pkg/log"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

const (
	ProductName       = "dvbs2"
	DefaultConfigPath = "/etc/" + ProductName + "/config.toml"
	DefaultWorkDir    = "/run/" + ProductName + "/"

	DefaultFreq        = 2.4e9
	DefaultRate        = 2e6
	DefaultReceiveGain = 40
	DefaultSendGain    = 30
	DefaultModCod      = dvbs2.QPSK1_2
	DefaultRollOff     = 0.35
	DefaultPort        = 5004

	DefaultRunner         = "dvbs2-flowgraph --description {description}"
	DefaultRunnerGrace    = 5 * time.Second
	DefaultStartupTimeout = 10 * time.Second
	DefaultReadyMarker    = "flowgraph running"

	DefaultPlayer        = "cvlc udp://@:{port} --network-caching=100"
	DefaultMuxer         = "gst-launch-1.0 -v udpsrc port={listen_port} ! tsparse ! udpsink host=127.0.0.1 port={forward_port}"
	DefaultStartupDelay  = 2 * time.Second
	DefaultCompanionStop = 3 * time.Second

	SampleMetricsListen = "localhost:9100"

	EnumeratorSoapy = "soapy"
	EnumeratorUSB   = "usb"
	DefaultSoapy    = "SoapySDRUtil"
)

// DirectionConfig holds the flag defaults of one direction
type DirectionConfig struct {
	Freq    float64 `toml:"freq"`
	Rate    float64 `toml:"rate"`
	Gain    float64 `toml:"gain"`
	ModCod  string  `toml:"modcod"`
	RollOff float64 `toml:"rolloff"`
	Port    int     `toml:"port"`
	Pilots  bool    `toml:"pilots"`
}

// Parameters turns the file defaults into resolver input
func (d DirectionConfig) Parameters() Parameters {
	return Parameters{
		Freq:    d.Freq,
		Rate:    d.Rate,
		Gain:    d.Gain,
		ModCod:  d.ModCod,
		RollOff: d.RollOff,
		Pilots:  d.Pilots,
		Port:    d.Port,
	}
}

type DeviceConfig struct {
	Enumerator string `toml:"enumerator"`
	SoapyUtil  string `toml:"soapy_util,omitempty"`
	Hotplug    bool   `toml:"hotplug"`
}

type FlowgraphConfig struct {
	Runner         string       `toml:"runner"`
	WorkDir        string       `toml:"work_dir"`
	ReadyMarker    string       `toml:"ready_marker,omitempty"`
	GracePeriod    TOMLDuration `toml:"grace_period"`
	StartupTimeout TOMLDuration `toml:"startup_timeout"`
	CaptureOutput  bool         `toml:"capture_output"`
}

type CompanionConfig struct {
	Player       string       `toml:"player"`
	Muxer        string       `toml:"muxer"`
	StartupDelay TOMLDuration `toml:"startup_delay"`
	GracePeriod  TOMLDuration `toml:"grace_period"`
}

type MetricsConfig struct {
	Listen string `toml:"listen,omitempty"`
}

type MainConfig struct {
	Debug     bool            `toml:"debug"`
	Receive   DirectionConfig `toml:"receive"`
	Transmit  DirectionConfig `toml:"transmit"`
	Device    DeviceConfig    `toml:"device"`
	Flowgraph FlowgraphConfig `toml:"flowgraph"`
	Companion CompanionConfig `toml:"companion"`
	Metrics   MetricsConfig   `toml:"metrics,omitempty"`
}

// Default returns the built-in configuration used when no file is present
func Default() *MainConfig {
	return &MainConfig{
		Receive: DirectionConfig{
			Freq:    DefaultFreq,
			Rate:    DefaultRate,
			Gain:    DefaultReceiveGain,
			ModCod:  string(DefaultModCod),
			RollOff: DefaultRollOff,
			Port:    DefaultPort,
			Pilots:  true,
		},
		Transmit: DirectionConfig{
			Freq:    DefaultFreq,
			Rate:    DefaultRate,
			Gain:    DefaultSendGain,
			ModCod:  string(DefaultModCod),
			RollOff: DefaultRollOff,
			Port:    DefaultPort,
			Pilots:  true,
		},
		Device: DeviceConfig{
			Enumerator: EnumeratorSoapy,
			SoapyUtil:  DefaultSoapy,
			Hotplug:    true,
		},
		Flowgraph: FlowgraphConfig{
			Runner:         DefaultRunner,
			WorkDir:        DefaultWorkDir,
			ReadyMarker:    DefaultReadyMarker,
			GracePeriod:    TOMLDuration(DefaultRunnerGrace),
			StartupTimeout: TOMLDuration(DefaultStartupTimeout),
		},
		Companion: CompanionConfig{
			Player:       DefaultPlayer,
			Muxer:        DefaultMuxer,
			StartupDelay: TOMLDuration(DefaultStartupDelay),
			GracePeriod:  TOMLDuration(DefaultCompanionStop),
		},
	}
}

type DeviceSectionManager struct {
	BaseSectionManager[DeviceConfig]
}

// Verify checks the "hard" conditions the device selection relies on
func (d *DeviceSectionManager) Verify() error {
	switch d.conf.Enumerator {
	case EnumeratorSoapy:
		if strings.TrimSpace(d.conf.SoapyUtil) == "" {
			return NewConfigurationError("device.soapy_util", d.conf.SoapyUtil, "a command name or path")
		}
	case EnumeratorUSB:
	default:
		return NewConfigurationError("device.enumerator", d.conf.Enumerator, fmt.Sprintf("one of {%s, %s}", EnumeratorSoapy, EnumeratorUSB))
	}
	return nil
}

type FlowgraphSectionManager struct {
	BaseSectionManager[FlowgraphConfig]
}

func (f *FlowgraphSectionManager) Verify() error {
	if !strings.Contains(f.conf.Runner, "{description}") {
		return NewConfigurationError("flowgraph.runner", f.conf.Runner, "a command line containing {description}")
	}
	// A missing work dir is created on start, an existing file is in the way
	if f.conf.WorkDir == "" || errors.Is(file.IsDir(f.conf.WorkDir), file.ErrPathIsFile) {
		return NewConfigurationError("flowgraph.work_dir", f.conf.WorkDir, "a directory")
	}
	if f.conf.GracePeriod.Value() <= 0 {
		return NewConfigurationError("flowgraph.grace_period", f.conf.GracePeriod.Value(), "a positive duration")
	}
	return nil
}

type CompanionSectionManager struct {
	BaseSectionManager[CompanionConfig]
}

func (c *CompanionSectionManager) Verify() error {
	if c.conf.StartupDelay.Value() < 0 {
		return NewConfigurationError("companion.startup_delay", c.conf.StartupDelay.Value(), "zero or a positive duration")
	}
	if c.conf.GracePeriod.Value() <= 0 {
		return NewConfigurationError("companion.grace_period", c.conf.GracePeriod.Value(), "a positive duration")
	}
	return nil
}

type SectionKey string

const (
	SectionDevice    SectionKey = "device"
	SectionFlowgraph SectionKey = "flowgraph"
	SectionCompanion SectionKey = "companion"
)

type Manager struct {
	mu sync.RWMutex

	// The actual config, never share this with other code
	config *MainConfig

	store map[SectionKey]SectionManager

	// The config path
	path string
}

func NewManager() *Manager {
	return &Manager{
		config: Default(),
		store:  make(map[SectionKey]SectionManager),
	}
}

// Load reads the file at path on top of the built-in defaults. A missing file is
// only accepted when acceptEmptyConfig is set, broken files are always an error.
func (m *Manager) Load(path string, acceptEmptyConfig bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if errors.Is(file.Exists(path), file.ErrPathIsDir) {
		return NewConfigurationError("config path", path, "a file")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err = toml.Unmarshal(data, m.config); err != nil {
			log.Error("failed to unmarshal config file", zap.String("path", path), zap.Error(err))
			return err
		}
	case errors.Is(err, os.ErrNotExist) && acceptEmptyConfig:
		log.Debug("no config file found, using defaults", zap.String("path", path))
	default:
		return err
	}

	m.path = path
	m.store = map[SectionKey]SectionManager{
		SectionDevice:    &DeviceSectionManager{BaseSectionManager[DeviceConfig]{conf: &m.config.Device}},
		SectionFlowgraph: &FlowgraphSectionManager{BaseSectionManager[FlowgraphConfig]{conf: &m.config.Flowgraph}},
		SectionCompanion: &CompanionSectionManager{BaseSectionManager[CompanionConfig]{conf: &m.config.Companion}},
	}

	// Verify all sections contain the mandatory values
	for _, value := range m.store {
		if err := value.Verify(); err != nil {
			return err
		}
	}

	log.Debug("active config", zap.Any("config", m.config), zap.String("path", m.path))

	return nil
}

func (m *Manager) Device() *DeviceSectionManager {
	return section[*DeviceSectionManager](m, SectionDevice)
}

func (m *Manager) Flowgraph() *FlowgraphSectionManager {
	return section[*FlowgraphSectionManager](m, SectionFlowgraph)
}

func (m *Manager) Companion() *CompanionSectionManager {
	return section[*CompanionSectionManager](m, SectionCompanion)
}

func section[T SectionManager](m *Manager, key SectionKey) T {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cm, ok := m.store[key].(T)
	if !ok {
		log.Panic("implementation mistake, section not loaded", zap.String("section", string(key)))
	}
	return cm
}

// Defaults returns the flag defaults of the given direction
func (m *Manager) Defaults(direction Direction) DirectionConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if direction == Transmit {
		return m.config.Transmit
	}
	return m.config.Receive
}

func (m *Manager) Debug() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Debug
}

func (m *Manager) Metrics() MetricsConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Metrics
}

func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// Marshal renders the active configuration as TOML
func (m *Manager) Marshal() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return toml.Marshal(m.config)
}

type TOMLDuration time.Duration

func (d *TOMLDuration) UnmarshalText(b []byte) error {
	x, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = TOMLDuration(x)
	return nil
}

func (c TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(c).String()), nil
}

func (c TOMLDuration) Value() time.Duration {
	return time.Duration(c)
}
