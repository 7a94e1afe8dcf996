//go:build !linux

package actuator

import "fmt"

type gpioDriver struct{}

func openGPIO(chipName string, _ int, _ bool) (*gpioDriver, error) {
	return nil, fmt.Errorf("%w: gpio (chip %s)", ErrUnsupported, chipName)
}

func (*gpioDriver) Set(bool) error { return ErrUnsupported }
func (*gpioDriver) Close() error   { return nil }
