package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" validate:"required"`

	TickRateHz         int `yaml:"tick_rate_hz" validate:"gte=1,lte=240"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks" validate:"gte=0"`

	PlayerMaxItems   int `yaml:"player_max_items" validate:"gte=0"`
	CustomerMaxItems int `yaml:"customer_max_items" validate:"gte=0"`
	MachineMaxItems  int `yaml:"machine_max_items" validate:"gte=0"`

	Machines      int `yaml:"machines" validate:"gte=0,lte=64"`
	MachineWorkMs int `yaml:"machine_work_ms" validate:"gte=0"`

	Spawn Spawn `yaml:"spawn"`
}

type Spawn struct {
	// ChancePerTick is the probability that one customer spawns on a tick.
	ChancePerTick float64 `yaml:"chance_per_tick" validate:"gte=0,lte=1"`
	// MaxCustomers caps live customers; 0 means no cap.
	MaxCustomers int      `yaml:"max_customers" validate:"gte=0"`
	StarterItems []string `yaml:"starter_items" validate:"dive,required"`
}

// Defaults mirrors the shipped configs/tuning.yaml.
func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         60,
		SnapshotEveryTicks: 3600,
		PlayerMaxItems:     20,
		CustomerMaxItems:   5,
		MachineMaxItems:    5,
		Machines:           1,
		MachineWorkMs:      5000,
		Spawn: Spawn{
			ChancePerTick: 1.0 / 600.0,
			MaxCustomers:  4,
			StarterItems:  []string{"suit", "pen"},
		},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Load reads a tuning file over Defaults(): keys missing from the file keep
// their default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	err := validate.Struct(t)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
	}
	return errors.New(strings.Join(parts, "; "))
}

// Digest identifies a tuning set; clients compare it against WELCOME.
func (t Tuning) Digest() string {
	b, err := yaml.Marshal(t)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
