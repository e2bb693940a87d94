package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint8

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
// Every pin this controller owns is an output: STEP, DIR, and the
// three shift-register lines.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	// Returns error if pin is invalid or already in use
	ConfigureOutput(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error
}

// Global singleton used by core code.
var gpioDriver GPIODriver

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// GetGPIODriver returns the registered driver, or nil before the target
// installs one. The sleep register treats a nil driver as "lines not
// wired" and skips the shift-out.
func GetGPIODriver() GPIODriver {
	return gpioDriver
}

// MustGPIO returns the configured driver or panics if missing.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}
