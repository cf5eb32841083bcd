package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/graphics/vgb"
)

// Config is the contents of the probe's TOML file. Every field is optional.
type Config struct {
	ApplicationName string `toml:"application_name"`
	LogLevel        string `toml:"log_level"`
	Validation      bool   `toml:"validation"`

	Frames       int `toml:"frames"`
	TargetWidth  int `toml:"target_width"`
	TargetHeight int `toml:"target_height"`

	UploadBufferSize      int            `toml:"upload_buffer_size"`
	MaxDescriptorSetCount int            `toml:"max_descriptor_set_count"`
	DescriptorTypeLimits  map[string]int `toml:"descriptor_type_limits"`

	// StatsPath receives the device's JSON statistics after the run when set
	StatsPath string `toml:"stats_path"`
}

func defaultConfig() Config {
	return Config{
		ApplicationName: "vgbprobe",
		LogLevel:        "info",
		Frames:          60,
		TargetWidth:     256,
		TargetHeight:    256,
	}
}

func loadConfig(path string) (Config, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return config, errors.Wrap(err, "opening config")
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	err = decoder.Decode(&config)
	if err != nil {
		return config, errors.Wrapf(err, "decoding %s", path)
	}

	if config.Frames <= 0 {
		return config, errors.Newf("frames must be positive, got %d", config.Frames)
	}
	if config.TargetWidth <= 0 || config.TargetHeight <= 0 {
		return config, errors.Newf("target size %dx%d is invalid", config.TargetWidth, config.TargetHeight)
	}
	return config, nil
}

var descriptorTypesByName = map[string]core1_0.DescriptorType{
	"sampler":                core1_0.DescriptorTypeSampler,
	"combined_image_sampler": core1_0.DescriptorTypeCombinedImageSampler,
	"sampled_image":          core1_0.DescriptorTypeSampledImage,
	"storage_image":          core1_0.DescriptorTypeStorageImage,
	"uniform_texel_buffer":   core1_0.DescriptorTypeUniformTexelBuffer,
	"storage_texel_buffer":   core1_0.DescriptorTypeStorageTexelBuffer,
	"uniform_buffer":         core1_0.DescriptorTypeUniformBuffer,
	"storage_buffer":         core1_0.DescriptorTypeStorageBuffer,
	"uniform_buffer_dynamic": core1_0.DescriptorTypeUniformBufferDynamic,
	"storage_buffer_dynamic": core1_0.DescriptorTypeStorageBufferDynamic,
	"input_attachment":       core1_0.DescriptorTypeInputAttachment,
}

func (c Config) deviceOptions(queueFamilyIndex int) (vgb.CreateOptions, error) {
	options := vgb.CreateOptions{
		QueueFamilyIndex:      queueFamilyIndex,
		UploadBufferSize:      c.UploadBufferSize,
		MaxDescriptorSetCount: c.MaxDescriptorSetCount,
	}

	if len(c.DescriptorTypeLimits) > 0 {
		options.DescriptorTypeLimits = make(map[core1_0.DescriptorType]int, len(c.DescriptorTypeLimits))
		for name, limit := range c.DescriptorTypeLimits {
			descriptorType, ok := descriptorTypesByName[name]
			if !ok {
				return options, errors.Newf("unknown descriptor type %q", name)
			}
			options.DescriptorTypeLimits[descriptorType] = limit
		}
	}

	return options, nil
}

func (c Config) level() (log.Level, error) {
	return log.ParseLevel(c.LogLevel)
}
