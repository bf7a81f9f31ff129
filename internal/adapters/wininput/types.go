package wininput

import (
	"time"

	"github.com/ezhoncho/fallen-recoil/internal/core/compensator"
)

type RuntimeConfig struct {
	TriggerCode  uint16
	CrouchCode   uint16
	Offsets      compensator.Offsets
	Interval     time.Duration
	CrouchScale  float64
	StartEnabled bool
}

type DeviceInfo struct {
	Path      string
	Name      string
	IsVirtual bool
	IsPointer bool
}
