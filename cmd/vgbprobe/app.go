package main

import (
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v2/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v2/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v2/khr_swapchain"
)

type application struct {
	logger *log.Logger

	instance         core1_0.Instance
	debugMessenger   ext_debug_utils.DebugUtilsMessenger
	physicalDevice   core1_0.PhysicalDevice
	device           core1_0.Device
	queueFamilyIndex int
	timestampPeriod  float32
}

func (a *application) logDebugMessage(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	if severity&ext_debug_utils.SeverityError != 0 {
		a.logger.Error(data.Message, "type", msgType)
	} else {
		a.logger.Warn(data.Message, "type", msgType)
	}
	return false
}

func createApplication(logger *log.Logger, config Config) (*application, error) {
	runtime.LockOSThread()

	app := &application{logger: logger}
	err := app.createInstance(config)
	if err != nil {
		app.destroy()
		return nil, err
	}

	err = app.createDevice()
	if err != nil {
		app.destroy()
		return nil, err
	}

	return app, nil
}

func (a *application) createInstance(config Config) error {
	loader, err := core.CreateSystemLoader()
	if err != nil {
		return errors.Wrap(err, "loading vulkan")
	}

	instanceExtensions, _, err := loader.AvailableExtensions()
	if err != nil {
		return err
	}

	var extensionNames []string
	var flags core1_0.InstanceCreateFlags
	_, ok := instanceExtensions[khr_portability_enumeration.ExtensionName]
	if ok {
		extensionNames = append(extensionNames, khr_portability_enumeration.ExtensionName)
		flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	_, hasDebugUtils := instanceExtensions[ext_debug_utils.ExtensionName]
	validation := config.Validation && hasDebugUtils
	if config.Validation && !hasDebugUtils {
		a.logger.Warn("validation requested but not available", "extension", ext_debug_utils.ExtensionName)
	}
	if validation {
		extensionNames = append(extensionNames, ext_debug_utils.ExtensionName)
	}

	a.instance, _, err = loader.CreateInstance(nil, core1_0.InstanceCreateInfo{
		ApplicationName:       config.ApplicationName,
		ApplicationVersion:    common.CreateVersion(1, 0, 0),
		EngineName:            "vgb",
		EngineVersion:         common.CreateVersion(1, 0, 0),
		APIVersion:            common.Vulkan1_0,
		EnabledExtensionNames: extensionNames,
		Flags:                 flags,
	})
	if err != nil {
		return errors.Wrap(err, "creating instance")
	}

	if validation {
		debugLoader := ext_debug_utils.CreateExtensionFromInstance(a.instance)
		a.debugMessenger, _, err = debugLoader.CreateDebugUtilsMessenger(a.instance, nil, ext_debug_utils.DebugUtilsMessengerCreateInfo{
			MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
			MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
			UserCallback:    a.logDebugMessage,
		})
		if err != nil {
			return errors.Wrap(err, "creating debug messenger")
		}
	}

	return nil
}

// createDevice opens the first physical device exposing a graphics queue and the swapchain
// extension
func (a *application) createDevice() error {
	gpus, _, err := a.instance.EnumeratePhysicalDevices()
	if err != nil {
		return err
	}

	for _, gpu := range gpus {
		graphicsFamily := -1
		for queueIndex, queueFamily := range gpu.QueueFamilyProperties() {
			if queueFamily.QueueFlags&core1_0.QueueGraphics != 0 {
				graphicsFamily = queueIndex
				break
			}
		}
		if graphicsFamily < 0 {
			continue
		}

		deviceExtensions, _, err := gpu.EnumerateDeviceExtensionProperties()
		if err != nil {
			return err
		}
		if _, ok := deviceExtensions[khr_swapchain.ExtensionName]; !ok {
			continue
		}

		extensionNames := []string{khr_swapchain.ExtensionName}
		if _, ok := deviceExtensions[khr_portability_subset.ExtensionName]; ok {
			extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
		}

		properties, err := gpu.Properties()
		if err != nil {
			return err
		}

		a.device, _, err = gpu.CreateDevice(nil, core1_0.DeviceCreateInfo{
			QueueCreateInfos: []core1_0.DeviceQueueCreateInfo{
				{
					QueueFamilyIndex: graphicsFamily,
					QueuePriorities:  []float32{1.0},
				},
			},
			EnabledExtensionNames: extensionNames,
		})
		if err != nil {
			return errors.Wrapf(err, "creating device on %s", properties.DriverName)
		}

		a.physicalDevice = gpu
		a.queueFamilyIndex = graphicsFamily
		a.timestampPeriod = properties.Limits.TimestampPeriod
		a.logger.Info("selected physical device", "name", properties.DriverName, "queueFamily", graphicsFamily)
		return nil
	}

	return errors.New("no physical device offers a graphics queue and the swapchain extension")
}

func (a *application) destroy() {
	if a.device != nil {
		_, err := a.device.WaitIdle()
		if err != nil {
			a.logger.Warn("waiting for device idle", "err", err)
		}
		a.device.Destroy(nil)
	}
	if a.debugMessenger != nil {
		a.debugMessenger.Destroy(nil)
	}
	if a.instance != nil {
		a.instance.Destroy(nil)
	}

	runtime.UnlockOSThread()
}
