package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zbear0808/laser-idn-project-sub009/internal/show"
	"github.com/zbear0808/laser-idn-project-sub009/internal/stream"
)

type DeviceCfg struct {
	ID          string `yaml:"id"`
	Addr        string `yaml:"addr"`
	Port        int    `yaml:"port,omitempty"` // 0 means the protocol default
	ClientGroup uint8  `yaml:"client_group,omitempty"`
}

type GeometryCfg struct {
	TL [2]float64 `yaml:"tl"`
	TR [2]float64 `yaml:"tr"`
	BR [2]float64 `yaml:"br"`
	BL [2]float64 `yaml:"bl"`
}

type OutputCfg struct {
	ID         string       `yaml:"id"`
	Kind       string       `yaml:"kind"` // "physical" | "virtual"
	DeviceID   string       `yaml:"device_id"`
	ZoneGroups []int        `yaml:"zone_groups"`
	Tags       []string     `yaml:"tags,omitempty"`
	Disabled   bool         `yaml:"disabled,omitempty"`
	Geometry   *GeometryCfg `yaml:"geometry,omitempty"` // absent = identity square
}

type Config struct {
	Profile        string `yaml:"profile"` // default | high-precision | compact | high-color
	FPS            int    `yaml:"fps"`
	ConfigResendMS int    `yaml:"config_resend_ms"`

	Devices []DeviceCfg `yaml:"devices"`
	Outputs []OutputCfg `yaml:"outputs"`
}

// Load reads and validates a show configuration.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// Save writes the configuration back out.
func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate rejects unusable settings before anything touches the network.
func (c *Config) Validate() error {
	if _, err := stream.ProfileByName(c.Profile); err != nil {
		return err
	}
	if c.FPS < 0 {
		return fmt.Errorf("fps must not be negative")
	}
	for _, d := range c.Devices {
		if d.ID == "" || d.Addr == "" {
			return fmt.Errorf("device entries need id and addr")
		}
		if d.ClientGroup > 0x0F {
			return fmt.Errorf("device %q: client group %d out of range 0..15", d.ID, d.ClientGroup)
		}
	}
	for _, o := range c.Outputs {
		if o.ID == "" {
			return fmt.Errorf("output entries need an id")
		}
		switch o.Kind {
		case "", "physical", "virtual":
		default:
			return fmt.Errorf("output %q: unknown kind %q", o.ID, o.Kind)
		}
	}
	return nil
}

// BitDepth resolves the configured preset.
func (c *Config) BitDepth() (stream.BitDepthProfile, error) {
	return stream.ProfileByName(c.Profile)
}

// ShowOutputs converts the output entries into the snapshot form routing
// consumes.
func (c *Config) ShowOutputs() []show.Output {
	outs := make([]show.Output, 0, len(c.Outputs))
	for _, o := range c.Outputs {
		kind := show.OutputPhysical
		if o.Kind == "virtual" {
			kind = show.OutputVirtual
		}
		geom := show.IdentityGeometry()
		if g := o.Geometry; g != nil {
			geom = show.Geometry{
				{X: g.TL[0], Y: g.TL[1]},
				{X: g.TR[0], Y: g.TR[1]},
				{X: g.BR[0], Y: g.BR[1]},
				{X: g.BL[0], Y: g.BL[1]},
			}
		}
		outs = append(outs, show.Output{
			Kind:       kind,
			ID:         o.ID,
			DeviceID:   o.DeviceID,
			Geometry:   geom,
			ZoneGroups: append([]int(nil), o.ZoneGroups...),
			Tags:       append([]string(nil), o.Tags...),
			Enabled:    !o.Disabled,
		})
	}
	return outs
}
