package util

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/spf13/viper"
)

func ReadConfig(path string) error {
	viper.SetConfigName("config")
	viper.AddConfigPath(path)

	setDefaults(viper.GetViper())
	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("fatal error config file: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("partition.max_cell_nodes", 5000)
	v.SetDefault("partition.min_cell_nodes", 0)
	v.SetDefault("partition.split_ratio", 0.4)
	v.SetDefault("partition.min_splitting_iteration", 0)
	v.SetDefault("partition.max_splitting_iteration", 1<<26)
	v.SetDefault("partition.workers", runtime.NumCPU())

	v.SetDefault("contour.supercells_enabled", true)

	v.SetDefault("eccentricity.workers", runtime.NumCPU())
	v.SetDefault("eccentricity.radius", 0.0)

	v.SetDefault("isochrone.approximation", 1.0)

	v.SetDefault("storage.dir", "./data/fastiso")
	v.SetDefault("weighting", "fastest")
	v.SetDefault("log.level", "info")
}

type PartitionConfig struct {
	MaxCellNodes          int     `validate:"gte=1"`
	MinCellNodes          int     `validate:"gte=0"`
	SplitRatio            float64 `validate:"gt=0,lt=0.5"`
	MinSplittingIteration int     `validate:"gte=0"`
	MaxSplittingIteration int     `validate:"gte=1,lte=67108864"`
	Workers               int     `validate:"gte=1"`
}

type FastIsochroneConfig struct {
	Partition PartitionConfig

	SupercellsEnabled bool

	EccentricityWorkers int     `validate:"gte=1"`
	EccentricityRadius  float64 `validate:"gte=0"`

	Approximation float64 `validate:"gte=0,lte=1"`

	StorageDir string `validate:"required"`
	OsmFile    string
	Weighting  string `validate:"oneof=shortest fastest"`

	LogFile  string
	LogLevel string `validate:"oneof=debug info warn error"`
}

// DefaultFastIsochroneConfig returns the configuration used when no config file is present.
// It ignores values set on the global viper instance.
func DefaultFastIsochroneConfig() FastIsochroneConfig {
	v := viper.New()
	setDefaults(v)
	cfg, err := loadConfig(v)
	AssertPanic(err == nil, fmt.Sprintf("invalid default config: %v", err))
	return cfg
}

// LoadFastIsochroneConfig reads the config from the global viper instance and validates it.
func LoadFastIsochroneConfig() (FastIsochroneConfig, error) {
	setDefaults(viper.GetViper())
	return loadConfig(viper.GetViper())
}

func loadConfig(v *viper.Viper) (FastIsochroneConfig, error) {
	cfg := FastIsochroneConfig{
		Partition: PartitionConfig{
			MaxCellNodes:          v.GetInt("partition.max_cell_nodes"),
			MinCellNodes:          v.GetInt("partition.min_cell_nodes"),
			SplitRatio:            v.GetFloat64("partition.split_ratio"),
			MinSplittingIteration: v.GetInt("partition.min_splitting_iteration"),
			MaxSplittingIteration: v.GetInt("partition.max_splitting_iteration"),
			Workers:               v.GetInt("partition.workers"),
		},
		SupercellsEnabled:   v.GetBool("contour.supercells_enabled"),
		EccentricityWorkers: v.GetInt("eccentricity.workers"),
		EccentricityRadius:  v.GetFloat64("eccentricity.radius"),
		Approximation:       v.GetFloat64("isochrone.approximation"),
		StorageDir:          v.GetString("storage.dir"),
		OsmFile:             v.GetString("osm.file"),
		Weighting:           v.GetString("weighting"),
		LogFile:             v.GetString("log.file"),
		LogLevel:            v.GetString("log.level"),
	}

	if err := ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func ValidateConfig(cfg FastIsochroneConfig) error {
	validate := validator.New()
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	vv := translateError(err, trans)
	vvString := make([]string, 0, len(vv))
	for _, v := range vv {
		vvString = append(vvString, v.Error())
	}
	return WrapErrorf(err, ErrBadParamInput, "validation error: %s", strings.Join(vvString, "; "))
}

func translateError(err error, trans ut.Translator) []error {
	if err == nil {
		return nil
	}
	var validatorErrs validator.ValidationErrors
	if !errors.As(err, &validatorErrs) {
		return []error{err}
	}
	errs := make([]error, 0, len(validatorErrs))
	for _, e := range validatorErrs {
		errs = append(errs, errors.New(e.Translate(trans)))
	}
	return errs
}
