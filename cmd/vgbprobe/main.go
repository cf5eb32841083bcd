// Command vgbprobe opens a Vulkan device through vgb and runs a short headless frame loop
// against it: clear an offscreen target, copy it into a staging texture, read it back, and time
// the GPU work with timestamp queries.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/graphics/vgb"
	"golang.org/x/exp/slog"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "vgbprobe",
	})

	config, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("loading config", "err", err)
	}

	level, err := config.level()
	if err != nil {
		logger.Fatal("parsing log level", "err", err)
	}
	logger.SetLevel(level)

	err = run(logger, config)
	if err != nil {
		logger.Fatal("probe failed", "err", err)
	}
}

func libraryLogger(level log.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if level <= log.DebugLevel {
		options.Level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, options))
}

func run(logger *log.Logger, config Config) error {
	runID := uuid.New()
	logger = logger.With("run", runID.String())

	app, err := createApplication(logger, config)
	if err != nil {
		return err
	}
	defer app.destroy()

	options, err := config.deviceOptions(app.queueFamilyIndex)
	if err != nil {
		return err
	}

	device, err := vgb.New(libraryLogger(logger.GetLevel()), app.instance, app.physicalDevice, app.device, options)
	if err != nil {
		return errors.Wrap(err, "creating vgb device")
	}
	defer device.Destroy()

	p := &probe{
		logger: logger,
		app:    app,
		device: device,
		config: config,
	}
	defer p.destroy()

	err = p.create()
	if err != nil {
		return err
	}

	start := hrtime.Now()
	for frame := 0; frame < config.Frames; frame++ {
		err = p.frame(frame)
		if err != nil {
			return errors.Wrapf(err, "frame %d", frame)
		}
	}
	elapsed := hrtime.Since(start)

	logger.Info("run complete",
		"frames", config.Frames,
		"elapsed", elapsed,
		"perFrame", elapsed/time.Duration(config.Frames),
		"gpuAverage", p.gpuAverage(),
	)

	if config.StatsPath != "" {
		err = os.WriteFile(config.StatsPath, []byte(device.BuildStatsString()), 0o644)
		if err != nil {
			return errors.Wrap(err, "writing stats")
		}
		logger.Info("wrote stats", "path", config.StatsPath)
	}

	return device.WaitIdle()
}

type probe struct {
	logger *log.Logger
	app    *application
	device *vgb.Device
	config Config

	target     *vgb.Texture
	readback   *vgb.Texture
	timestamps *vgb.QueryPool
	list       *vgb.CommandList

	gpuTotal   time.Duration
	gpuSamples int
}

func (p *probe) create() error {
	var err error
	p.target, err = vgb.NewTexture(p.device, vgb.TextureDescription{
		Dimension: vgb.Texture2D,
		Width:     p.config.TargetWidth,
		Height:    p.config.TargetHeight,
		Format:    core1_0.FormatR8G8B8A8SRGB,
		Flags:     vgb.TextureRenderTarget | vgb.TextureShaderResource,
		Name:      "ProbeTarget",
	})
	if err != nil {
		return err
	}

	p.readback, err = vgb.NewTexture(p.device, vgb.TextureDescription{
		Dimension: vgb.Texture2D,
		Width:     p.config.TargetWidth,
		Height:    p.config.TargetHeight,
		Format:    core1_0.FormatR8G8B8A8SRGB,
		Usage:     vgb.UsageStaging,
		Name:      "ProbeReadback",
	})
	if err != nil {
		return err
	}

	p.timestamps, err = vgb.NewQueryPool(p.device, 2)
	if err != nil {
		return err
	}

	p.list, err = vgb.NewCommandList(p.device)
	return err
}

func (p *probe) frame(index int) error {
	if !p.list.IsOpen() {
		err := p.list.Reset()
		if err != nil {
			return err
		}
	}

	shade := float32(index%p.config.Frames) / float32(p.config.Frames)
	color := [4]float32{shade, 0.25, 1 - shade, 1}

	p.list.ResetQueryPool(p.timestamps)
	err := p.list.WriteTimestamp(p.timestamps, 0)
	if err != nil {
		return err
	}

	err = p.list.SetRenderTargetsAndViewport(nil, p.target)
	if err != nil {
		return err
	}

	err = p.list.ClearRenderTarget(p.target, color)
	if err != nil {
		return err
	}

	err = p.list.Copy(p.target, p.readback)
	if err != nil {
		return err
	}

	err = p.list.WriteTimestamp(p.timestamps, 1)
	if err != nil {
		return err
	}

	compiled, err := p.list.Close()
	if err != nil {
		return err
	}

	fenceValue, err := p.device.ExecuteCommandList(compiled)
	if err != nil {
		return err
	}

	err = p.list.Reset()
	if err != nil {
		return err
	}

	mapped, err := p.list.MapSubresource(p.readback, 0, vgb.MapRead, false, 0, 0)
	if err != nil {
		return err
	}
	pixel := [4]byte{mapped.Data[0], mapped.Data[1], mapped.Data[2], mapped.Data[3]}
	p.list.UnmapSubresource(mapped)

	p.logger.Debug("frame", "index", index, "fence", fenceValue, "pixel", pixel)

	var results [2]uint64
	ready, err := p.timestamps.TryGetData(results[:])
	if err != nil {
		return err
	}
	if ready && results[1] >= results[0] {
		p.gpuTotal += time.Duration(float64(results[1]-results[0]) * float64(p.app.timestampPeriod))
		p.gpuSamples++
	}

	_, err = p.device.EndFrame()
	return err
}

func (p *probe) gpuAverage() time.Duration {
	if p.gpuSamples == 0 {
		return 0
	}
	return p.gpuTotal / time.Duration(p.gpuSamples)
}

func (p *probe) destroy() {
	if p.list != nil {
		p.list.Destroy()
	}
	if p.timestamps != nil {
		p.timestamps.Destroy()
	}
	if p.readback != nil {
		p.readback.Destroy()
	}
	if p.target != nil {
		p.target.Destroy()
	}
}
