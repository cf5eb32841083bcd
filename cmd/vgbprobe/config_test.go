package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
)

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "probe.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), config)

	level, err := config.level()
	require.NoError(t, err)
	require.Equal(t, log.InfoLevel, level)
}

func TestLoadConfig_ShippedFile(t *testing.T) {
	config, err := loadConfig("vgbprobe.toml")
	require.NoError(t, err)
	require.Equal(t, 120, config.Frames)
	require.Equal(t, 512, config.TargetWidth)
	require.True(t, config.Validation)

	options, err := config.deviceOptions(2)
	require.NoError(t, err)
	require.Equal(t, 2, options.QueueFamilyIndex)
	require.Equal(t, 8388608, options.UploadBufferSize)
	require.Equal(t, map[core1_0.DescriptorType]int{
		core1_0.DescriptorTypeSampledImage:  1024,
		core1_0.DescriptorTypeUniformBuffer: 1024,
	}, options.DescriptorTypeLimits)
}

func TestLoadConfig_Errors(t *testing.T) {
	testCases := map[string]struct {
		contents string
		message  string
	}{
		"UnknownField": {
			contents: "frame_count = 3\n",
			message:  "decoding",
		},
		"NegativeFrames": {
			contents: "frames = -1\n",
			message:  "frames must be positive",
		},
		"ZeroTarget": {
			contents: "target_width = 0\n",
			message:  "target size",
		},
		"Malformed": {
			contents: "frames = \n",
			message:  "decoding",
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, testCase.contents))
			require.Error(t, err)
			require.Contains(t, err.Error(), testCase.message)
		})
	}
}

func TestConfig_DeviceOptions(t *testing.T) {
	config := defaultConfig()
	options, err := config.deviceOptions(0)
	require.NoError(t, err)
	require.Nil(t, options.DescriptorTypeLimits)

	config.DescriptorTypeLimits = map[string]int{"texel_buffer": 3}
	_, err = config.deviceOptions(0)
	require.ErrorContains(t, err, "unknown descriptor type")

	config.LogLevel = "loud"
	_, err = config.level()
	require.Error(t, err)
}
