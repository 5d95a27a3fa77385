// internal/status/constants.go
package status

// Status block layout constants.
// These values define the exported register block and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of registers per bridge.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the bridge health state.
const SlotHealthCode = 0

// SlotFaultBits holds the sticky fault register.
const SlotFaultBits = 1

// Queue pointer slots hold the low 16 bits of each free-running counter.
const (
	SlotInterceptWrite = 2
	SlotInterceptRead  = 3
	SlotRequestWrite   = 4
	SlotRequestRead    = 5
	SlotResponseWrite  = 6
	SlotResponseRead   = 7
)

// SlotFlags holds the console flag bits (see Flag*).
const SlotFlags = 8

// ---- RESERVED RANGE ----

// Slots 9–10 are reserved for future use.
const SlotReservedStart = 9
const SlotReservedEnd = 10

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the status block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents a bridge with a clear fault register.
const HealthOK uint16 = 1

// HealthFault represents a bridge with at least one sticky fault.
const HealthFault uint16 = 2

// ---- FLAG BITS ----

const (
	FlagVerboseBus uint16 = 1 << iota
	FlagVerboseHost
	FlagDedupStatus
	FlagQuietRequests
	FlagRouteToHost
)
