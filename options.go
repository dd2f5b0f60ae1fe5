package joycond

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Options are the daemon's tunables, loaded from JOYCOND_* environment
// variables. The three feature toggles only seed the Mapping's initial
// state; past startup they live in the shared Mapping record.
type Options struct {
	Combined bool `default:"true"`
	Analog   bool `default:"true"`
	RSMouse  bool `envconfig:"RSMOUSE" default:"true"`

	MouseSenseX float64 `envconfig:"MOUSE_SENSE_X" default:"0.0003"`
	MouseSenseY float64 `envconfig:"MOUSE_SENSE_Y" default:"0.0003"`
	MouseDeadX  float64 `envconfig:"MOUSE_DEAD_X" default:"5"`
	MouseDeadY  float64 `envconfig:"MOUSE_DEAD_Y" default:"5"`
	MousePollUS int     `envconfig:"MOUSE_POLL_US" default:"10000"`

	StateDir   string `envconfig:"STATE_DIR" default:"/var/lib/joycond"`
	UinputPath string `envconfig:"UINPUT_PATH" default:"/dev/uinput"`
}

// LoadOptions reads the environment.
func LoadOptions() (Options, error) {
	var opts Options
	if err := envconfig.Process("joycond", &opts); err != nil {
		return Options{}, errors.Wrap(err, "load options")
	}
	return opts, nil
}

// Seed applies the boolean toggles to a fresh Mapping.
func (o Options) Seed(m *Mapping) {
	m.Combined.Store(o.Combined)
	m.Analog.Store(o.Analog)
	m.RSMouse.Store(o.RSMouse)
}

func (o Options) mouseTuning() MouseTuning {
	return MouseTuning{
		SenseX: o.MouseSenseX,
		SenseY: o.MouseSenseY,
		DeadX:  o.MouseDeadX,
		DeadY:  o.MouseDeadY,
		Poll:   time.Duration(o.MousePollUS) * time.Microsecond,
	}
}
